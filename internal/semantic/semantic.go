// Package semantic implements the Semantic Analyzer: it walks the AST a
// parser produced, validates every structural rule (break/continue/return
// placement, assignment-target legality, destructuring restrictions), and
// resolves every VariableNode to a local/free-variable/global/native slot,
// computing each FunctionNode's closure-capture metadata along the way.
//
// Diagnostics accumulate across the whole analysis instead of stopping at
// the first error (spec §7): a single malformed function should not hide
// errors in its siblings. The Compiler, by contrast, reports only the first
// error it meets.
package semantic

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/element-run/element/internal/ast"
)

// Analyzer resolves names against a single compilation unit. Natives is the
// set of names the host has registered as native functions (internal/vm
// supplies this list); any read of a name not found as local, free variable,
// or global falls back to SemNative only if it appears here, otherwise it is
// treated as an (initially nil) global.
type Analyzer struct {
	natives map[string]bool

	globals     map[string]int32
	globalOrder []string

	errs *multierror.Error
}

func New(natives []string) *Analyzer {
	return NewIncremental(natives, map[string]int32{})
}

// NewIncremental builds an Analyzer sharing an existing global-name→index
// map: a name already present keeps its index, and a name seen for the
// first time gets the next one in declaration order across every call that
// shares globals, the way the Compiler's CompileIncremental shares a
// constant pool and native index across REPL lines compiled one at a time.
func NewIncremental(natives []string, globals map[string]int32) *Analyzer {
	set := make(map[string]bool, len(natives))
	for _, n := range natives {
		set[n] = true
	}
	return &Analyzer{natives: set, globals: globals}
}

// GlobalNames returns every global name discovered, in first-use order —
// the order Module.Globals slots were assigned, which the Compiler and the
// host use to size a fresh Module's global array.
func (a *Analyzer) GlobalNames() []string { return a.globalOrder }

func (a *Analyzer) addErr(p ast.Pos, format string, args ...any) {
	a.errs = multierror.Append(a.errs, fmt.Errorf("%d:%d: "+format, append([]any{p.Line, p.Column}, args...)...))
}

// Analyze validates and resolves main (the implicit top-level function for
// one source unit) and every function literal reachable from it. It is
// idempotent (spec property P6): re-running it against an already-resolved
// tree recomputes the same slots, since slot assignment depends only on
// declaration order in the AST, not on prior analyzer state.
func (a *Analyzer) Analyze(main *ast.FunctionNode) error {
	root := newFunctionScope(main, nil)
	a.analyzeFunctionBody(root)
	return a.errs.ErrorOrNil()
}

func (a *Analyzer) declareGlobal(name string) int32 {
	if idx, ok := a.globals[name]; ok {
		return idx
	}
	idx := int32(len(a.globals))
	a.globals[name] = idx
	a.globalOrder = append(a.globalOrder, name)
	return idx
}

func (a *Analyzer) analyzeFunctionBody(fs *FunctionScope) {
	a.analyzeStatements(fs, fs.node.Body.Statements)

	for _, ref := range fs.refs {
		if ref.v.boxed {
			ref.node.Semantic = ast.SemLocalBoxed
		} else {
			ref.node.Semantic = ast.SemLocal
		}
	}
	for _, ref := range fs.forRefs {
		ref.node.VarBoxed = ref.v.boxed
	}

	fs.node.LocalVariablesCount = len(fs.locals)
	fs.node.ClosureMapping = append([]int32(nil), fs.closureMapping...)
	fs.node.FreeVariables = append([]string(nil), fs.freeVariables...)

	boxedParams := make([]int, 0, len(fs.parametersToBox))
	for idx := range fs.parametersToBox {
		boxedParams = append(boxedParams, idx)
	}
	sort.Ints(boxedParams)
	fs.node.ParametersToBox = boxedParams
}

// analyzeStatements walks stmts — all belonging to one already-pushed block —
// resolving everything except nested function literals, which analyzeExpr
// defers onto that block's pendingLits instead of entering them immediately.
// Once every statement has been scanned, the deferred literals are analyzed
// while the block is still open, so a closure can capture a sibling local
// this block declares later in its text against the block's final, complete
// set of locals (spec §4.2's two-phase traversal: "forward references within
// a function resolve against the final local-variable set").
func (a *Analyzer) analyzeStatements(fs *FunctionScope, stmts []ast.Node) {
	for _, stmt := range stmts {
		a.analyzeStmt(fs, stmt)
	}
	block := fs.currentBlock()
	pending := block.pendingLits
	block.pendingLits = nil
	for _, lit := range pending {
		child := newFunctionScope(lit.Fn, fs)
		a.analyzeFunctionBody(child)
	}
}

func (a *Analyzer) analyzeStmt(fs *FunctionScope, stmt ast.Node) {
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		a.analyzeExpr(fs, s.Expr)
	case *ast.IfStmt:
		a.analyzeExpr(fs, s.Cond)
		a.analyzeNestedBlock(fs, s.Then)
		switch e := s.Else.(type) {
		case nil:
		case *ast.Block:
			a.analyzeNestedBlock(fs, e)
		case *ast.IfStmt:
			a.analyzeStmt(fs, e)
		default:
			a.addErr(s.At(), "invalid else clause")
		}
	case *ast.WhileStmt:
		a.analyzeExpr(fs, s.Cond)
		fs.loopDepth++
		a.analyzeNestedBlock(fs, s.Body)
		fs.loopDepth--
	case *ast.ForStmt:
		a.analyzeExpr(fs, s.Iterable)
		fs.pushBlock()
		loopLocal := fs.declareLocal(s.VarName, false)
		s.VarIndex = loopLocal.index
		fs.recordForRef(s, loopLocal)
		// The loop itself boxes this slot each iteration when it is captured,
		// so no in-body reference may trip the FirstOccurrence->MakeBox path.
		fs.seenRef[loopLocal.index] = true
		fs.loopDepth++
		a.analyzeStatements(fs, s.Body.Statements)
		fs.loopDepth--
		fs.popBlock()
	case *ast.BreakStmt:
		if !fs.inLoop() {
			a.addErr(s.At(), "break used outside a loop")
		}
		if s.Value != nil {
			a.analyzeExpr(fs, s.Value)
		}
	case *ast.ContinueStmt:
		if !fs.inLoop() {
			a.addErr(s.At(), "continue used outside a loop")
		}
	case *ast.ReturnStmt:
		if s.Value != nil {
			a.analyzeExpr(fs, s.Value)
		}
	default:
		a.addErr(stmt.At(), "unsupported statement")
	}
}

func (a *Analyzer) analyzeNestedBlock(fs *FunctionScope, b *ast.Block) {
	fs.pushBlock()
	a.analyzeStatements(fs, b.Statements)
	fs.popBlock()
}

func (a *Analyzer) analyzeExpr(fs *FunctionScope, expr ast.Node) {
	switch e := expr.(type) {
	case nil, *ast.NilLit, *ast.BoolLit, *ast.IntLit, *ast.FloatLit, *ast.StringLit:
		// leaves, nothing to resolve
	case *ast.VariableNode:
		a.resolveRead(fs, e)
	case *ast.ArrayLit:
		for _, el := range e.Elements {
			a.analyzeExpr(fs, el)
		}
	case *ast.ObjectLit:
		for _, pair := range e.Pairs {
			a.analyzeExpr(fs, pair.Value)
		}
	case *ast.FunctionLit:
		// Deferred to analyzeStatements, once the enclosing block's own
		// statements are fully scanned — see analyzeStatements' doc comment.
		fs.currentBlock().pendingLits = append(fs.currentBlock().pendingLits, e)
	case *ast.BinaryExpr:
		a.analyzeExpr(fs, e.Left)
		if e.Op == ast.OpMember {
			// right side is a bare member name, not a value reference
			if _, ok := e.Right.(*ast.VariableNode); !ok {
				a.addErr(e.At(), "member access requires a name")
			}
			return
		}
		a.analyzeExpr(fs, e.Right)
	case *ast.UnaryExpr:
		a.analyzeExpr(fs, e.Operand)
	case *ast.PushExpr:
		a.analyzeExpr(fs, e.Array)
		a.analyzeExpr(fs, e.Value)
	case *ast.CallExpr:
		a.analyzeExpr(fs, e.Callee)
		for _, arg := range e.Args {
			a.analyzeExpr(fs, arg)
		}
	case *ast.AssignExpr:
		a.analyzeAssign(fs, e)
	case *ast.YieldExpr:
		if e.Value != nil {
			a.analyzeExpr(fs, e.Value)
		}
	case *ast.ReturnStmt:
		// reachable as the RHS of a short-circuit `cond or return x` idiom
		if e.Value != nil {
			a.analyzeExpr(fs, e.Value)
		}
	case *ast.BreakStmt:
		if !fs.inLoop() {
			a.addErr(e.At(), "break used outside a loop")
		}
		if e.Value != nil {
			a.analyzeExpr(fs, e.Value)
		}
	case *ast.ContinueStmt:
		if !fs.inLoop() {
			a.addErr(e.At(), "continue used outside a loop")
		}
	default:
		a.addErr(expr.At(), "unsupported expression")
	}
}

// analyzeAssign resolves (and, for bare names, declares) the assignment
// target, then the value. The target is resolved first so a named function
// literal can reference its own name recursively (spec §4.2's fibonacci
// example): `fib = :(n) { ... fib(n-1) ... }` needs `fib` declared as a
// local/global before the function literal on the right is analyzed.
func (a *Analyzer) analyzeAssign(fs *FunctionScope, assign *ast.AssignExpr) {
	if assign.Compound != "" && isDestructuring(assign.Target) {
		a.addErr(assign.At(), "compound assignment cannot destructure")
	}
	a.resolveAssignTarget(fs, assign.Target)
	a.analyzeExpr(fs, assign.Value)
}

func isDestructuring(target ast.Node) bool {
	_, ok := target.(*ast.ArrayLit)
	return ok
}

func (a *Analyzer) resolveAssignTarget(fs *FunctionScope, target ast.Node) {
	switch t := target.(type) {
	case *ast.VariableNode:
		a.resolveWrite(fs, t)
	case *ast.BinaryExpr:
		if t.Op != ast.OpIndex && t.Op != ast.OpMember {
			a.addErr(t.At(), "invalid assignment target")
			return
		}
		a.analyzeExpr(fs, t.Left)
		if t.Op == ast.OpIndex {
			a.analyzeExpr(fs, t.Right)
		}
	case *ast.ArrayLit:
		for _, el := range t.Elements {
			a.resolveAssignTarget(fs, el)
		}
	default:
		a.addErr(target.At(), "invalid assignment target")
	}
}

func (a *Analyzer) resolveWrite(fs *FunctionScope, v *ast.VariableNode) {
	switch v.VariableType {
	case ast.VarUnderscore:
		return // discard target, nothing to resolve
	case ast.VarThis, ast.VarDollarDollar, ast.VarPositional:
		a.addErr(v.At(), "cannot assign to this/$$/positional parameters")
		return
	case ast.VarNamed:
	default:
		a.addErr(v.At(), "invalid assignment target")
		return
	}

	if local := fs.findLocal(v.Name); local != nil {
		fs.recordRef(v, local)
		return
	}
	if idx, ok := fs.captureFree(v.Name); ok {
		v.Semantic = ast.SemFreeVariable
		v.Index = idx
		return
	}
	if _, ok := a.globals[v.Name]; ok {
		v.Semantic = ast.SemGlobal
		v.Index = int(a.globals[v.Name])
		return
	}
	if fs.node.IsMain {
		idx := a.declareGlobal(v.Name)
		v.Semantic = ast.SemGlobal
		v.Index = int(idx)
		return
	}
	local := fs.declareLocal(v.Name, false)
	fs.recordRef(v, local)
}

func (a *Analyzer) resolveRead(fs *FunctionScope, v *ast.VariableNode) {
	switch v.VariableType {
	case ast.VarThis:
		v.Semantic = ast.SemLocal // compiler special-cases VarThis regardless
		return
	case ast.VarDollarDollar, ast.VarPositional:
		return // compiler reads these straight from the frame, no slot needed
	case ast.VarUnderscore:
		a.addErr(v.At(), "_ cannot be read, only assigned")
		return
	}

	if local := fs.findLocal(v.Name); local != nil {
		fs.recordRef(v, local)
		return
	}
	if idx, ok := fs.captureFree(v.Name); ok {
		v.Semantic = ast.SemFreeVariable
		v.Index = idx
		return
	}
	if idx, ok := a.globals[v.Name]; ok {
		v.Semantic = ast.SemGlobal
		v.Index = int(idx)
		return
	}
	if a.natives[v.Name] {
		v.Semantic = ast.SemNative
		return
	}
	// Unknown name: treat as a (nil-valued until assigned) global rather
	// than a hard error, matching typical dynamic-language leniency for
	// forward references between top-level statements.
	idx := a.declareGlobal(v.Name)
	v.Semantic = ast.SemGlobal
	v.Index = int(idx)
}
