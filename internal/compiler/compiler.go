// Package compiler lowers a semantically-resolved AST into the stack-machine
// bytecode the VM executes (spec §4.3). Each FunctionNode becomes one flat
// CodeObject; expressions always leave exactly one value on the operand
// stack, and the `keep` parameter threaded through every compile method
// decides whether a statement's trailing value survives or gets popped —
// the "keepValue" discipline that lets the last expression of a block serve
// as a function's (or an if/while/for statement's) implicit result.
package compiler

import (
	"fmt"

	"github.com/element-run/element/internal/ast"
	"github.com/element-run/element/internal/bytecode"
	"github.com/element-run/element/internal/symbol"
	"github.com/element-run/element/internal/value"
)

// Result is everything a compile produces: the root CodeObject, the shared
// constant pool every nested CodeObject's constants (and the root's) live
// in, and the native-function names referenced, in first-use order (the
// index a Loader/VM needs to build its native registry lookup).
type Result struct {
	Code        *value.CodeObject
	Pool        *symbol.Pool
	NativeNames []string
}

// Compile compiles main, which must already have been through
// semantic.Analyzer.Analyze (every VariableNode resolved, every
// FunctionNode's closure metadata filled in), against a fresh constant pool
// and native registry. Use CompileIncremental instead when main shares a VM
// (and therefore a pool/native table) with code compiled earlier, e.g. a
// REPL's successive lines (spec §6 bytecode blob layout: "new symbols this
// blob" appended at a running offset rather than renumbered from zero).
func Compile(main *ast.FunctionNode, table *symbol.Table) (*Result, error) {
	return CompileIncremental(main, table, symbol.NewPool(), map[string]int32{})
}

// CompileIncremental compiles main into pool and nativeIndex in place: each
// call only appends constants/native-name slots it newly references, so
// indices a previous call assigned stay valid. nativeIndex is shared and
// mutated across calls; Result.NativeNames reports only the names this call
// newly interned, in first-use order, matching the wire format's per-blob
// "new symbols" count.
func CompileIncremental(main *ast.FunctionNode, table *symbol.Table, pool *symbol.Pool, nativeIndex map[string]int32) (*Result, error) {
	c := &Compiler{
		table:       table,
		pool:        pool,
		nativeIndex: nativeIndex,
		nativeBase:  len(nativeIndex),
	}
	code := c.compileFunction(main)
	if c.err != nil {
		return nil, c.err
	}
	return &Result{Code: code, Pool: c.pool, NativeNames: c.nativeOrder}, nil
}

type loopCtx struct {
	continueTarget int
	breakJumps     []int
}

// funcState is the compile-time state for one function body; compiling a
// nested FunctionLit pushes a fresh funcState and restores the outer one
// afterward, mirroring the call-stack shape of what it's compiling.
type funcState struct {
	instr    []bytecode.Instruction
	lines    []bytecode.SourceLine
	lastLine int32
	loops    []*loopCtx
}

type Compiler struct {
	table *symbol.Table
	pool  *symbol.Pool
	fn    *funcState

	nativeIndex map[string]int32
	nativeOrder []string
	nativeBase  int

	err error
}

func (c *Compiler) fail(p ast.Pos, format string, args ...any) {
	if c.err == nil {
		c.err = fmt.Errorf("%d:%d: "+format, append([]any{p.Line, p.Column}, args...)...)
	}
}

func (c *Compiler) nativeIdx(name string) int32 {
	if idx, ok := c.nativeIndex[name]; ok {
		return idx
	}
	idx := int32(c.nativeBase + len(c.nativeOrder))
	c.nativeIndex[name] = idx
	c.nativeOrder = append(c.nativeOrder, name)
	return idx
}

func (c *Compiler) setPos(p ast.Pos) {
	if int32(p.Line) != c.fn.lastLine {
		c.fn.lines = append(c.fn.lines, bytecode.SourceLine{Line: int32(p.Line), InstructionIdx: int32(len(c.fn.instr))})
		c.fn.lastLine = int32(p.Line)
	}
}

func (c *Compiler) emit(op bytecode.Opcode, a int32) int {
	idx := len(c.fn.instr)
	c.fn.instr = append(c.fn.instr, bytecode.Instruction{Op: op, A: a})
	return idx
}

// emitJump reserves a jump instruction to patch later, operand 0 meanwhile.
func (c *Compiler) emitJump(op bytecode.Opcode) int { return c.emit(op, 0) }

func (c *Compiler) patchJumpHere(idx int) { c.fn.instr[idx].A = int32(len(c.fn.instr)) }

func (c *Compiler) pushLoop() *loopCtx {
	lc := &loopCtx{continueTarget: len(c.fn.instr)}
	c.fn.loops = append(c.fn.loops, lc)
	return lc
}

func (c *Compiler) popLoop() { c.fn.loops = c.fn.loops[:len(c.fn.loops)-1] }

func (c *Compiler) currentLoop() *loopCtx {
	if len(c.fn.loops) == 0 {
		return nil
	}
	return c.fn.loops[len(c.fn.loops)-1]
}

func hashOperand(h uint32) int32 { return int32(h) }

// --- function compilation ---

func (c *Compiler) compileFunction(node *ast.FunctionNode) *value.CodeObject {
	outer := c.fn
	c.fn = &funcState{lastLine: -1}

	// Parameters a nested closure captures arrive as plain values in their
	// local slots; wrap each in place before the body runs so every
	// reference inside (boxed or not) can assume the box already exists.
	for _, idx := range node.ParametersToBox {
		c.emit(bytecode.OpMakeBox, int32(idx))
	}

	c.compileBlockStatements(node.Body.Statements, true)
	c.emit(bytecode.OpEndFunction, 0)

	co := &value.CodeObject{
		Instructions:         c.fn.instr,
		Lines:                c.fn.lines,
		LocalVariablesCount:  node.LocalVariablesCount,
		NamedParametersCount: len(node.Params),
		ClosureMapping:       node.ClosureMapping,
		ParametersToBox:      append([]int(nil), node.ParametersToBox...),
		Variadic:             node.Variadic,
		Name:                 node.Name,
	}
	c.fn = outer
	return co
}

// compileBlockStatements compiles stmts in order; only the final statement
// is compiled with keep, every earlier one always discards its value.
func (c *Compiler) compileBlockStatements(stmts []ast.Node, keep bool) {
	if len(stmts) == 0 {
		if keep {
			c.emit(bytecode.OpLoadConstant, symbol.NilSlot)
		}
		return
	}
	for i, stmt := range stmts {
		last := i == len(stmts)-1
		c.compileStmt(stmt, keep && last)
	}
}

func (c *Compiler) compileStmt(stmt ast.Node, keep bool) {
	c.setPos(stmt.At())
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		c.compileExpr(s.Expr, keep)
	case *ast.IfStmt:
		c.compileIf(s, keep)
	case *ast.WhileStmt:
		c.compileWhile(s, keep)
	case *ast.ForStmt:
		c.compileFor(s, keep)
	case *ast.BreakStmt:
		c.compileBreak(s)
	case *ast.ContinueStmt:
		c.compileContinue(s)
	case *ast.ReturnStmt:
		c.compileReturn(s)
	default:
		c.fail(stmt.At(), "unsupported statement")
	}
}

func (c *Compiler) compileIf(s *ast.IfStmt, keep bool) {
	c.compileExpr(s.Cond, true)
	jfalse := c.emitJump(bytecode.OpPopJumpIfFalse)
	c.compileBlockStatements(s.Then.Statements, keep)
	jend := c.emitJump(bytecode.OpJump)
	c.patchJumpHere(jfalse)
	switch e := s.Else.(type) {
	case nil:
		if keep {
			c.emit(bytecode.OpLoadConstant, symbol.NilSlot)
		}
	case *ast.Block:
		c.compileBlockStatements(e.Statements, keep)
	case *ast.IfStmt:
		c.compileIf(e, keep)
	default:
		c.fail(s.At(), "invalid else clause")
	}
	c.patchJumpHere(jend)
}

// compileWhile lowers a while loop. When keep is true, a Nil accumulator is
// pushed before the loop starts and each iteration's body value replaces it
// (Rotate2 brings the stale accumulator to TOS, Pop discards it), so the
// loop as a whole leaves the latest iteration's value on TOS — or the
// initial Nil, untouched, if the body never ran (spec §4.3/§8).
func (c *Compiler) compileWhile(s *ast.WhileStmt, keep bool) {
	if keep {
		c.emit(bytecode.OpLoadConstant, symbol.NilSlot)
	}

	loopStart := len(c.fn.instr)
	c.compileExpr(s.Cond, true)
	exitJump := c.emitJump(bytecode.OpPopJumpIfFalse)

	lc := c.pushLoop()
	lc.continueTarget = loopStart
	c.compileBlockStatements(s.Body.Statements, keep)
	if keep {
		c.emit(bytecode.OpRotate2, 0)
		c.emit(bytecode.OpPop, 0)
	}
	c.emit(bytecode.OpJump, int32(loopStart))

	loopEnd := len(c.fn.instr)
	c.patchJumpHere(exitJump)
	for _, bj := range lc.breakJumps {
		c.fn.instr[bj].A = int32(loopEnd)
	}
	c.popLoop()
}

// compileFor lowers a for loop. The iterator itself must stay on TOS for the
// existing Duplicate-based has_next/get_next protocol, so a keep=true
// accumulator lives just beneath it: [accumulator, iterator] before each
// iteration's body runs, and [accumulator, iterator, V] after (V the body's
// value). MoveToTOS2 rotates that trio to [V, accumulator, iterator]
// (iterator back on TOS), Rotate2 surfaces the now-stale accumulator onto
// TOS, and Pop discards it — leaving [V, iterator], i.e. V as the new
// accumulator, ready for the next iteration (or for the final trailing Pop
// that drops the iterator once the loop ends).
func (c *Compiler) compileFor(s *ast.ForStmt, keep bool) {
	if keep {
		c.emit(bytecode.OpLoadConstant, symbol.NilSlot)
	}
	c.compileExpr(s.Iterable, true)
	c.emit(bytecode.OpMakeIterator, 0)

	loopVar := s.VarIndex

	loopStart := len(c.fn.instr)
	c.emit(bytecode.OpDuplicate, 0)
	c.emit(bytecode.OpIteratorHasNext, 0)
	exitJump := c.emitJump(bytecode.OpPopJumpIfFalse)

	c.emit(bytecode.OpDuplicate, 0)
	c.emit(bytecode.OpIteratorGetNext, 0)
	c.emit(bytecode.OpPopStoreLocal, int32(loopVar))
	if s.VarBoxed {
		// Re-wrap every iteration (rather than once before the loop) so
		// closures created in different iterations (spec's
		// `for (i in ...) { makers << :: i }` idiom) capture distinct Boxes
		// instead of all sharing one mutated cell.
		c.emit(bytecode.OpMakeBox, int32(loopVar))
	}

	lc := c.pushLoop()
	lc.continueTarget = loopStart
	c.compileBlockStatements(s.Body.Statements, keep)
	if keep {
		c.emit(bytecode.OpMoveToTOS2, 0)
		c.emit(bytecode.OpRotate2, 0)
		c.emit(bytecode.OpPop, 0)
	}
	c.emit(bytecode.OpJump, int32(loopStart))

	loopEnd := len(c.fn.instr)
	c.patchJumpHere(exitJump)
	for _, bj := range lc.breakJumps {
		c.fn.instr[bj].A = int32(loopEnd)
	}
	c.popLoop()

	// Drops the iterator (always TOS here, whether we arrived via a false
	// has_next or a break): when keep is true this uncovers the
	// accumulator, otherwise it empties the loop's stack contribution.
	c.emit(bytecode.OpPop, 0)
}

func (c *Compiler) compileBreak(s *ast.BreakStmt) {
	lc := c.currentLoop()
	if lc == nil {
		c.fail(s.At(), "break outside loop")
		return
	}
	if s.Value != nil {
		c.compileExpr(s.Value, true)
		c.emit(bytecode.OpPop, 0)
	}
	lc.breakJumps = append(lc.breakJumps, c.emitJump(bytecode.OpJump))
}

func (c *Compiler) compileContinue(s *ast.ContinueStmt) {
	lc := c.currentLoop()
	if lc == nil {
		c.fail(s.At(), "continue outside loop")
		return
	}
	c.emit(bytecode.OpJump, int32(lc.continueTarget))
}

func (c *Compiler) compileReturn(s *ast.ReturnStmt) {
	if s.Value != nil {
		c.compileExpr(s.Value, true)
	} else {
		c.emit(bytecode.OpLoadConstant, symbol.NilSlot)
	}
	c.emit(bytecode.OpEndFunction, 0)
}

func (c *Compiler) compileYield(e *ast.YieldExpr) {
	if e.Value != nil {
		c.compileExpr(e.Value, true)
	} else {
		c.emit(bytecode.OpLoadConstant, symbol.NilSlot)
	}
	c.emit(bytecode.OpYield, 0)
}

// --- expressions ---

func (c *Compiler) popIfUnkept(keep bool) {
	if !keep {
		c.emit(bytecode.OpPop, 0)
	}
}

func (c *Compiler) compileExpr(node ast.Node, keep bool) {
	c.setPos(node.At())
	switch e := node.(type) {
	case *ast.NilLit:
		c.emit(bytecode.OpLoadConstant, symbol.NilSlot)
		c.popIfUnkept(keep)
	case *ast.BoolLit:
		slot := int32(symbol.FalseSlot)
		if e.Value {
			slot = symbol.TrueSlot
		}
		c.emit(bytecode.OpLoadConstant, slot)
		c.popIfUnkept(keep)
	case *ast.IntLit:
		c.emit(bytecode.OpLoadConstant, int32(c.pool.AddInt(e.Value)))
		c.popIfUnkept(keep)
	case *ast.FloatLit:
		c.emit(bytecode.OpLoadConstant, int32(c.pool.AddFloat(e.Value)))
		c.popIfUnkept(keep)
	case *ast.StringLit:
		c.emit(bytecode.OpLoadConstant, int32(c.pool.AddString(e.Value)))
		c.popIfUnkept(keep)
	case *ast.VariableNode:
		c.compileRead(e)
		c.popIfUnkept(keep)
	case *ast.ArrayLit:
		for _, el := range e.Elements {
			c.compileExpr(el, true)
		}
		c.emit(bytecode.OpMakeArray, int32(len(e.Elements)))
		c.popIfUnkept(keep)
	case *ast.ObjectLit:
		for _, pair := range e.Pairs {
			c.emit(bytecode.OpLoadHash, hashOperand(c.table.Intern(pair.Key.Name)))
			c.compileExpr(pair.Value, true)
		}
		c.emit(bytecode.OpMakeObject, int32(len(e.Pairs)))
		c.popIfUnkept(keep)
	case *ast.FunctionLit:
		code := c.compileFunction(e.Fn)
		idx := c.pool.AddCode(code)
		c.emit(bytecode.OpLoadConstant, int32(idx))
		c.emit(bytecode.OpMakeClosure, 0)
		c.popIfUnkept(keep)
	case *ast.UnaryExpr:
		c.compileExpr(e.Operand, true)
		c.emit(unaryOpcode(e.Op), 0)
		c.popIfUnkept(keep)
	case *ast.PushExpr:
		c.compileExpr(e.Array, true)
		c.compileExpr(e.Value, true)
		c.emit(bytecode.OpArrayPushBack, 0)
		c.popIfUnkept(keep)
	case *ast.CallExpr:
		c.compileExpr(e.Callee, true)
		for _, a := range e.Args {
			c.compileExpr(a, true)
		}
		c.emit(bytecode.OpFunctionCall, int32(len(e.Args)))
		c.popIfUnkept(keep)
	case *ast.BinaryExpr:
		c.compileBinary(e, keep)
	case *ast.AssignExpr:
		c.compileAssign(e, keep)
	case *ast.YieldExpr:
		c.compileYield(e)
		c.popIfUnkept(keep)
	case *ast.ReturnStmt:
		c.compileReturn(e)
	case *ast.BreakStmt:
		c.compileBreak(e)
	case *ast.ContinueStmt:
		c.compileContinue(e)
	default:
		c.fail(node.At(), "unsupported expression")
	}
}

func (c *Compiler) compileBinary(e *ast.BinaryExpr, keep bool) {
	switch e.Op {
	case ast.OpAnd:
		c.compileExpr(e.Left, true)
		j := c.emitJump(bytecode.OpJumpIfFalseOrPop)
		c.compileExpr(e.Right, true)
		c.patchJumpHere(j)
	case ast.OpOr:
		c.compileExpr(e.Left, true)
		j := c.emitJump(bytecode.OpJumpIfTrueOrPop)
		c.compileExpr(e.Right, true)
		c.patchJumpHere(j)
	case ast.OpIndex:
		c.compileExpr(e.Left, true)
		c.compileExpr(e.Right, true)
		c.emit(bytecode.OpLoadElement, 0)
	case ast.OpMember:
		c.compileExpr(e.Left, true)
		name := e.Right.(*ast.VariableNode).Name
		c.emit(bytecode.OpLoadHash, hashOperand(c.table.Intern(name)))
		c.emit(bytecode.OpLoadMember, 0)
	case ast.OpThreadArrow:
		c.compileExpr(e.Right, true) // callee
		c.compileExpr(e.Left, true)  // sole argument
		c.emit(bytecode.OpFunctionCall, 1)
	default:
		c.compileExpr(e.Left, true)
		c.compileExpr(e.Right, true)
		c.emit(binaryOpcode(e.Op), 0)
	}
	c.popIfUnkept(keep)
}

func binaryOpcode(op ast.BinaryOp) bytecode.Opcode {
	switch op {
	case ast.OpAdd:
		return bytecode.OpAdd
	case ast.OpSub:
		return bytecode.OpSubtract
	case ast.OpMul:
		return bytecode.OpMultiply
	case ast.OpDiv:
		return bytecode.OpDivide
	case ast.OpPow:
		return bytecode.OpPower
	case ast.OpMod:
		return bytecode.OpModulo
	case ast.OpConcat:
		return bytecode.OpConcatenate
	case ast.OpXor:
		return bytecode.OpXor
	case ast.OpEq:
		return bytecode.OpEqual
	case ast.OpNeq:
		return bytecode.OpNotEqual
	case ast.OpLt:
		return bytecode.OpLess
	case ast.OpGt:
		return bytecode.OpGreater
	case ast.OpLe:
		return bytecode.OpLessEqual
	case ast.OpGe:
		return bytecode.OpGreaterEqual
	}
	return bytecode.OpAdd
}

func unaryOpcode(op ast.UnaryOp) bytecode.Opcode {
	switch op {
	case ast.OpUnaryPlus:
		return bytecode.OpUnaryPlus
	case ast.OpUnaryMinus:
		return bytecode.OpUnaryMinus
	case ast.OpUnaryNot:
		return bytecode.OpUnaryNot
	case ast.OpUnaryConcat:
		return bytecode.OpUnaryConcatenate
	case ast.OpUnarySizeOf:
		return bytecode.OpUnarySizeOf
	}
	return bytecode.OpUnaryNot
}

func (c *Compiler) compileRead(v *ast.VariableNode) {
	switch v.VariableType {
	case ast.VarThis:
		c.emit(bytecode.OpLoadThis, 0)
	case ast.VarDollarDollar:
		c.emit(bytecode.OpLoadArgsArray, 0)
	case ast.VarPositional:
		c.emit(bytecode.OpLoadArgument, int32(v.Positional))
	case ast.VarUnderscore:
		c.emit(bytecode.OpLoadConstant, symbol.NilSlot)
	case ast.VarNamed:
		switch v.Semantic {
		case ast.SemLocal:
			c.emit(bytecode.OpLoadLocal, int32(v.Index))
		case ast.SemLocalBoxed:
			c.emit(bytecode.OpLoadFromBox, int32(v.Index))
		case ast.SemFreeVariable:
			c.emit(bytecode.OpLoadFromClosure, int32(v.Index))
		case ast.SemGlobal:
			c.emit(bytecode.OpLoadGlobal, int32(v.Index))
		case ast.SemNative:
			c.emit(bytecode.OpLoadNative, c.nativeIdx(v.Name))
		default:
			c.fail(v.At(), "unresolved variable %q", v.Name)
		}
	}
}

func (c *Compiler) emitStoreVar(v *ast.VariableNode, keep bool) {
	switch v.Semantic {
	case ast.SemLocal:
		op := bytecode.OpPopStoreLocal
		if keep {
			op = bytecode.OpStoreLocal
		}
		c.emit(op, int32(v.Index))
	case ast.SemLocalBoxed:
		c.emitStoreBoxed(v, keep)
	case ast.SemFreeVariable:
		op := bytecode.OpPopStoreToClosure
		if keep {
			op = bytecode.OpStoreToClosure
		}
		c.emit(op, int32(v.Index))
	case ast.SemGlobal:
		op := bytecode.OpPopStoreGlobal
		if keep {
			op = bytecode.OpStoreGlobal
		}
		c.emit(op, int32(v.Index))
	default:
		c.fail(v.At(), "unresolved assignment target %q", v.Name)
	}
}

// emitStoreBoxed stores the value already on top of the stack into a boxed
// local. Parameters a closure captures are already boxed by compileFunction's
// prologue. An ordinary local is boxed lazily: its first occurrence (always
// its declaring assignment, since a local is created at first write) wraps
// the slot in a fresh Box immediately before the store.
func (c *Compiler) emitStoreBoxed(v *ast.VariableNode, keep bool) {
	if v.FirstOccurrence {
		c.emit(bytecode.OpMakeBox, int32(v.Index))
	}
	op := bytecode.OpPopStoreToBox
	if keep {
		op = bytecode.OpStoreToBox
	}
	c.emit(op, int32(v.Index))
}

func (c *Compiler) compileAssign(assign *ast.AssignExpr, keep bool) {
	switch target := assign.Target.(type) {
	case *ast.VariableNode:
		if target.VariableType == ast.VarUnderscore {
			c.compileExpr(assign.Value, true)
			c.popIfUnkept(keep)
			return
		}
		if assign.Compound == "" {
			c.compileExpr(assign.Value, true)
		} else {
			c.compileRead(target)
			c.compileExpr(assign.Value, true)
			c.emit(binaryOpcode(assign.Compound), 0)
		}
		c.emitStoreVar(target, keep)
	case *ast.BinaryExpr:
		c.compileIndexOrMemberAssign(target, assign.Value, assign.Compound, keep)
	case *ast.ArrayLit:
		c.compileExpr(assign.Value, true)
		if keep {
			c.emit(bytecode.OpDuplicate, 0)
		}
		c.emit(bytecode.OpUnpack, int32(len(target.Elements)))
		for _, el := range target.Elements {
			c.compileDestructureTarget(el)
		}
	default:
		c.fail(assign.At(), "invalid assignment target")
	}
}

func (c *Compiler) compileDestructureTarget(el ast.Node) {
	switch t := el.(type) {
	case *ast.VariableNode:
		if t.VariableType == ast.VarUnderscore {
			c.emit(bytecode.OpPop, 0)
			return
		}
		c.emitStoreVar(t, false)
	case *ast.ArrayLit:
		c.emit(bytecode.OpUnpack, int32(len(t.Elements)))
		for _, nested := range t.Elements {
			c.compileDestructureTarget(nested)
		}
	default:
		c.fail(el.At(), "destructuring target must be a name or nested array pattern")
	}
}

func (c *Compiler) compileIndexOrMemberAssign(target *ast.BinaryExpr, valueExpr ast.Node, compound ast.BinaryOp, keep bool) {
	isMember := target.Op == ast.OpMember
	var hash uint32
	if isMember {
		hash = c.table.Intern(target.Right.(*ast.VariableNode).Name)
	}
	pushRef := func() {
		c.compileExpr(target.Left, true)
		if isMember {
			c.emit(bytecode.OpLoadHash, hashOperand(hash))
		} else {
			c.compileExpr(target.Right, true)
		}
	}
	storeOp := func() bytecode.Opcode {
		if isMember {
			if keep {
				return bytecode.OpStoreMember
			}
			return bytecode.OpPopStoreMember
		}
		if keep {
			return bytecode.OpStoreElement
		}
		return bytecode.OpPopStoreElement
	}

	if compound == "" {
		c.compileExpr(valueExpr, true)
		pushRef()
		c.emit(storeOp(), 0)
		return
	}

	pushRef()
	if isMember {
		c.emit(bytecode.OpLoadMember, 0)
	} else {
		c.emit(bytecode.OpLoadElement, 0)
	}
	c.compileExpr(valueExpr, true)
	c.emit(binaryOpcode(compound), 0)
	pushRef()
	c.emit(storeOp(), 0)
}
