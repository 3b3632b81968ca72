package semantic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/element-run/element/internal/ast"
	"github.com/element-run/element/internal/parser"
)

func analyze(t *testing.T, src string, natives ...string) *ast.FunctionNode {
	t.Helper()
	fn, err := parser.Parse(src)
	require.NoError(t, err)
	require.NoError(t, New(natives).Analyze(fn))
	return fn
}

func TestRecursiveSelfReferenceResolvesAsGlobal(t *testing.T) {
	fn := analyze(t, `fib = :(n) { if (n < 2) { n } else { fib(n-1) + fib(n-2) } }; fib(10)`)
	assign := fn.Body.Statements[0].(*ast.ExprStmt).Expr.(*ast.AssignExpr)
	lit := assign.Value.(*ast.FunctionLit)

	elseBlock := lit.Fn.Body.Statements[0].(*ast.IfStmt).Else.(*ast.Block)
	addExpr := elseBlock.Statements[0].(*ast.ExprStmt).Expr.(*ast.BinaryExpr)
	leftCall := addExpr.Left.(*ast.CallExpr)
	callee := leftCall.Callee.(*ast.VariableNode)
	require.Equal(t, ast.SemGlobal, callee.Semantic)
}

func TestClosureCapturesLoopVariableAsBoxed(t *testing.T) {
	fn := analyze(t, `makers = []; for (i in range(3)) { makers << :(){ i } }`, "range")

	forStmt := fn.Body.Statements[1].(*ast.ForStmt)
	pushExpr := forStmt.Body.Statements[0].(*ast.ExprStmt).Expr.(*ast.PushExpr)
	lit := pushExpr.Value.(*ast.FunctionLit)

	require.Len(t, lit.Fn.FreeVariables, 1)
	require.Equal(t, "i", lit.Fn.FreeVariables[0])
	require.GreaterOrEqual(t, lit.Fn.ClosureMapping[0], int32(0))

	ref := lit.Fn.Body.Statements[0].(*ast.ExprStmt).Expr.(*ast.VariableNode)
	require.Equal(t, ast.SemFreeVariable, ref.Semantic)
}

func TestBreakOutsideLoopIsError(t *testing.T) {
	_, err := parser.Parse(`break`)
	require.NoError(t, err)
	fn, _ := parser.Parse(`break`)
	err = New(nil).Analyze(fn)
	require.Error(t, err)
}

func TestCompoundAssignCannotDestructure(t *testing.T) {
	fn, err := parser.Parse(`[a, b] += 1`)
	require.NoError(t, err)
	err = New(nil).Analyze(fn)
	require.Error(t, err)
}

func TestNativeNameResolvesAsNative(t *testing.T) {
	fn := analyze(t, `typeof(1)`, "typeof")
	call := fn.Body.Statements[0].(*ast.ExprStmt).Expr.(*ast.CallExpr)
	callee := call.Callee.(*ast.VariableNode)
	require.Equal(t, ast.SemNative, callee.Semantic)
}

func TestGlobalNamesInFirstUseOrder(t *testing.T) {
	a := New(nil)
	fn, err := parser.Parse(`x = 1; y = 2; z = x + y`)
	require.NoError(t, err)
	require.NoError(t, a.Analyze(fn))
	require.Equal(t, []string{"x", "y", "z"}, a.GlobalNames())
}
