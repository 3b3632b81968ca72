package semantic

import "github.com/element-run/element/internal/ast"

// localVar is one slot in a FunctionScope's flat local-variable array.
type localVar struct {
	name    string
	index   int
	boxed   bool
	isParam bool
}

// BlockScope holds the names declared directly in one `{ }` block. Blocks
// nest inside a FunctionScope; name lookup walks the block stack
// innermost-first before falling through to the enclosing function.
type BlockScope struct {
	vars []*localVar

	// pendingLits are function literals encountered while walking this
	// block's statements, held back until the block's own statements have
	// all been scanned (spec §4.2's two-phase traversal), so a closure can
	// still capture a sibling local this block declares later in its text.
	pendingLits []*ast.FunctionLit
}

func (b *BlockScope) declare(v *localVar) { b.vars = append(b.vars, v) }

func (b *BlockScope) find(name string) *localVar {
	for i := len(b.vars) - 1; i >= 0; i-- {
		if b.vars[i].name == name {
			return b.vars[i]
		}
	}
	return nil
}

// FunctionScope tracks one function body's locals, its block stack, and the
// free-variable capture it has accumulated so far.
type FunctionScope struct {
	node   *ast.FunctionNode
	parent *FunctionScope

	blocks []*BlockScope
	locals []*localVar

	// freeVariables are names this function closes over, in discovery
	// order; closureMapping[i] is how to find freeVariables[i] at
	// MakeClosure time:
	//   >= 0  -> parent's local slot (always boxed)
	//   < 0   -> -(v)-1 is parent's own freeVariables index
	closureMapping []int32
	freeVariables  []string
	freeIndex      map[string]int

	parametersToBox map[int]bool

	// refs records every VariableNode that resolved to a local in this
	// function, so a final fixup pass can promote SemLocal to
	// SemLocalBoxed for locals a later-discovered nested closure ends up
	// capturing (box status is only known once the whole body, including
	// nested function literals, has been walked).
	refs    []localRef
	forRefs []forRef
	seenRef map[int]bool

	loopDepth int
}

type localRef struct {
	node *ast.VariableNode
	v    *localVar
}

// recordRef also marks node.FirstOccurrence the first time a given local
// index is referenced in this function — always that local's declaring
// write, since declareLocal only ever runs at a first write (spec §4.2's
// "LocalBoxed" promotion). The Compiler uses this to know exactly where to
// emit the local's MakeBox instruction.
func (fs *FunctionScope) recordRef(node *ast.VariableNode, v *localVar) {
	node.Index = v.index
	if !fs.seenRef[v.index] {
		fs.seenRef[v.index] = true
		node.FirstOccurrence = true
	}
	fs.refs = append(fs.refs, localRef{node, v})
}

// forRef mirrors localRef for a ForStmt's induction variable, whose boxed
// status (like every local's) is only known once the whole function body,
// including nested closures, has been walked.
type forRef struct {
	node *ast.ForStmt
	v    *localVar
}

func (fs *FunctionScope) recordForRef(node *ast.ForStmt, v *localVar) {
	fs.forRefs = append(fs.forRefs, forRef{node, v})
}

func newFunctionScope(node *ast.FunctionNode, parent *FunctionScope) *FunctionScope {
	fs := &FunctionScope{
		node:            node,
		parent:          parent,
		freeIndex:       map[string]int{},
		parametersToBox: map[int]bool{},
		seenRef:         map[int]bool{},
	}
	fs.pushBlock()
	for _, p := range node.Params {
		local := fs.declareLocal(p, true)
		// Parameters are boxed (if at all) by the compiled function's
		// prologue, not at their first in-body reference, so they must
		// never trip the FirstOccurrence->MakeBox path recordRef drives
		// for ordinary locals.
		fs.seenRef[local.index] = true
	}
	return fs
}

func (fs *FunctionScope) pushBlock() { fs.blocks = append(fs.blocks, &BlockScope{}) }

func (fs *FunctionScope) popBlock() { fs.blocks = fs.blocks[:len(fs.blocks)-1] }

func (fs *FunctionScope) currentBlock() *BlockScope { return fs.blocks[len(fs.blocks)-1] }

// declareLocal allocates a new local slot in the current block and returns
// it. Re-declaration of the same name in an inner block shadows the outer
// one (a fresh slot); re-declaration in the *same* block reuses the slot,
// matching ordinary assignment semantics.
func (fs *FunctionScope) declareLocal(name string, isParam bool) *localVar {
	if existing := fs.currentBlock().find(name); existing != nil {
		return existing
	}
	v := &localVar{name: name, index: len(fs.locals), isParam: isParam}
	fs.locals = append(fs.locals, v)
	fs.currentBlock().declare(v)
	return v
}

// findLocal searches this function's block stack only (no recursion into
// enclosing functions).
func (fs *FunctionScope) findLocal(name string) *localVar {
	for i := len(fs.blocks) - 1; i >= 0; i-- {
		if v := fs.blocks[i].find(name); v != nil {
			return v
		}
	}
	return nil
}

// captureFree is called by fs itself (via resolveRead/resolveWrite) to make
// name available as one of fs's *own* free variables, memoizing the result
// so repeated references share one closure slot. It never touches fs's own
// locals directly — findLocal is checked by the caller first — only the
// enclosing chain. Returns false if name is not found anywhere above fs
// (i.e. it is global).
func (fs *FunctionScope) captureFree(name string) (int, bool) {
	if idx, ok := fs.freeIndex[name]; ok {
		return idx, true
	}
	if fs.parent == nil {
		return 0, false
	}
	mapping, ok := fs.parent.resolveForChild(name)
	if !ok {
		return 0, false
	}
	return fs.addFree(name, mapping), true
}

// resolveForChild is called by a direct child scope asking fs to supply
// name for capture. If fs owns name as a local, that local is boxed and its
// slot returned directly (non-negative closureMapping entry). Otherwise fs
// must itself capture name as one of its own free variables (recursing up
// further if needed) and hand the child a reference into fs's own
// freeVariables (encoded as -(i)-1).
func (fs *FunctionScope) resolveForChild(name string) (int32, bool) {
	if local := fs.findLocal(name); local != nil {
		local.boxed = true
		if local.isParam {
			fs.parametersToBox[local.index] = true
		}
		return int32(local.index), true
	}
	idx, ok := fs.captureFree(name)
	if !ok {
		return 0, false
	}
	return int32(-idx - 1), true
}

func (fs *FunctionScope) addFree(name string, mapping int32) int {
	idx := len(fs.freeVariables)
	fs.freeVariables = append(fs.freeVariables, name)
	fs.closureMapping = append(fs.closureMapping, mapping)
	fs.freeIndex[name] = idx
	return idx
}

func (fs *FunctionScope) inLoop() bool { return fs.loopDepth > 0 }
