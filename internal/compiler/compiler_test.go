package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/element-run/element/internal/bytecode"
	"github.com/element-run/element/internal/parser"
	"github.com/element-run/element/internal/semantic"
	"github.com/element-run/element/internal/symbol"
	"github.com/element-run/element/internal/value"
)

func compileSrc(t *testing.T, src string, natives ...string) *Result {
	t.Helper()
	fn, err := parser.Parse(src)
	require.NoError(t, err)
	require.NoError(t, semantic.New(natives).Analyze(fn))
	res, err := Compile(fn, symbol.NewTable())
	require.NoError(t, err)
	return res
}

func ops(instr []bytecode.Instruction) []bytecode.Opcode {
	out := make([]bytecode.Opcode, len(instr))
	for i, in := range instr {
		out[i] = in.Op
	}
	return out
}

func TestFunctionBodyEndsWithEndFunction(t *testing.T) {
	res := compileSrc(t, `1 + 2`)
	instr := res.Code.Instructions
	require.Equal(t, bytecode.OpEndFunction, instr[len(instr)-1].Op)
}

func TestTopLevelStatementDiscardsUnlessLast(t *testing.T) {
	res := compileSrc(t, `x = 1; x = 2`)
	o := ops(res.Code.Instructions)
	// first assignment is not the block's tail: PopStoreGlobal, no trailing Pop
	require.Contains(t, o, bytecode.OpPopStoreGlobal)
	// the last statement is the tail of main's body, so it keeps its value:
	// the final store before EndFunction must be the keeping variant.
	require.Equal(t, bytecode.OpStoreGlobal, o[len(o)-2])
}

func TestIfElseBalancesStackWithNilOnMissingBranch(t *testing.T) {
	res := compileSrc(t, `if (1 < 2) { 10 }`)
	o := ops(res.Code.Instructions)
	require.Contains(t, o, bytecode.OpPopJumpIfFalse)
	require.Contains(t, o, bytecode.OpJump)
	// the synthesized else branch loads Nil
	require.Contains(t, o, bytecode.OpLoadConstant)
}

func TestShortCircuitOrUsesJumpIfTrueOrPop(t *testing.T) {
	res := compileSrc(t, `f = :(x) { x > 0 or return -1; x * 2 }`)
	lit := onlyNestedCode(t, res)
	o := ops(lit.Instructions)
	require.Contains(t, o, bytecode.OpJumpIfTrueOrPop)
	require.Contains(t, o, bytecode.OpEndFunction)
}

func TestForLoopUsesIteratorProtocol(t *testing.T) {
	res := compileSrc(t, `makers = []; for (i in range(3)) { makers << :: i }`, "range")
	o := ops(res.Code.Instructions)
	require.Contains(t, o, bytecode.OpMakeIterator)
	require.Contains(t, o, bytecode.OpIteratorHasNext)
	require.Contains(t, o, bytecode.OpIteratorGetNext)
	require.Contains(t, o, bytecode.OpArrayPushBack)
}

func TestClosureOverLoopVariableEmitsMakeClosureAndBoxedLoad(t *testing.T) {
	res := compileSrc(t, `makers = []; for (i in range(3)) { makers << :: i }`, "range")
	o := ops(res.Code.Instructions)
	require.Contains(t, o, bytecode.OpMakeClosure)

	// the nested CodeObject (the closure body) loads its captured variable
	// straight from the closure slot, never through a box re-read, since it
	// is a free variable rather than a local of that function.
	nested := onlyNestedCode(t, res)
	require.Contains(t, ops(nested.Instructions), bytecode.OpLoadFromClosure)
}

func TestCompoundAssignReadsThenCombinesThenStores(t *testing.T) {
	res := compileSrc(t, `x = 1; x += 2`)
	o := ops(res.Code.Instructions)
	require.Contains(t, o, bytecode.OpAdd)
}

func TestMemberAssignmentUsesLoadHashAndStoreMember(t *testing.T) {
	res := compileSrc(t, `obj = [= n = 1 ]; obj.n = 2`)
	o := ops(res.Code.Instructions)
	require.Contains(t, o, bytecode.OpLoadHash)
	require.Contains(t, o, bytecode.OpStoreMember)
}

func TestIndexCompoundAssignmentReEvaluatesReceiverForReadAndWrite(t *testing.T) {
	res := compileSrc(t, `a = [1, 2]; a[0] += 1`)
	o := ops(res.Code.Instructions)
	loadCount, storeCount := 0, 0
	for _, op := range o {
		if op == bytecode.OpLoadElement {
			loadCount++
		}
		if op == bytecode.OpStoreElement || op == bytecode.OpPopStoreElement {
			storeCount++
		}
	}
	require.Equal(t, 1, loadCount)
	require.Equal(t, 1, storeCount)
}

func TestDestructuringAssignmentEmitsUnpack(t *testing.T) {
	res := compileSrc(t, `[a, b] = [1, 2]`)
	o := ops(res.Code.Instructions)
	require.Contains(t, o, bytecode.OpUnpack)
}

func TestThreadArrowDesugarsToCallWithSwappedOperands(t *testing.T) {
	res := compileSrc(t, `double = :(x) { x * 2 }; 5 -> double`)
	o := ops(res.Code.Instructions)
	require.Contains(t, o, bytecode.OpFunctionCall)
}

func TestNativeReadEmitsLoadNative(t *testing.T) {
	res := compileSrc(t, `typeof(1)`, "typeof")
	o := ops(res.Code.Instructions)
	require.Contains(t, o, bytecode.OpLoadNative)
	require.Equal(t, []string{"typeof"}, res.NativeNames)
}

// onlyNestedCode returns the sole nested CodeObject found in res's constant
// pool (the compiled body of a function literal), asserting there is
// exactly one.
func onlyNestedCode(t *testing.T, res *Result) *value.CodeObject {
	t.Helper()
	var found []*value.CodeObject
	for i := range res.Pool.Constants {
		if res.Pool.Constants[i].Kind == symbol.ConstCode {
			found = append(found, res.Pool.Constants[i].Code)
		}
	}
	require.Len(t, found, 1)
	return found[0]
}
