package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/element-run/element/internal/ast"
)

func TestParseFibonacciShape(t *testing.T) {
	fn, err := Parse(`fib = :(n) { if (n < 2) { n } else { fib(n-1) + fib(n-2) } }; fib(10)`)
	require.NoError(t, err)
	require.True(t, fn.IsMain)
	require.Len(t, fn.Body.Statements, 2)

	assign, ok := fn.Body.Statements[0].(*ast.ExprStmt).Expr.(*ast.AssignExpr)
	require.True(t, ok)
	require.Equal(t, ast.BinaryOp(""), assign.Compound)

	lit, ok := assign.Value.(*ast.FunctionLit)
	require.True(t, ok)
	require.Equal(t, []string{"n"}, lit.Fn.Params)
}

func TestParseForAndPush(t *testing.T) {
	fn, err := Parse(`makers = []; for (i in range(3)) { makers << :: i }`)
	require.NoError(t, err)
	require.Len(t, fn.Body.Statements, 2)

	forStmt, ok := fn.Body.Statements[1].(*ast.ForStmt)
	require.True(t, ok)
	require.Equal(t, "i", forStmt.VarName)

	push, ok := forStmt.Body.Statements[0].(*ast.ExprStmt).Expr.(*ast.PushExpr)
	require.True(t, ok)
	_, isShortFn := push.Value.(*ast.FunctionLit)
	require.True(t, isShortFn)
}

func TestParseObjectLitAndMemberAccess(t *testing.T) {
	fn, err := Parse(`base = [= greet = :() "hi" ]; child = [= proto = base ]; child.greet()`)
	require.NoError(t, err)
	require.Len(t, fn.Body.Statements, 3)

	call, ok := fn.Body.Statements[2].(*ast.ExprStmt).Expr.(*ast.CallExpr)
	require.True(t, ok)
	member, ok := call.Callee.(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, ast.OpMember, member.Op)
}

func TestParseShortCircuitReturn(t *testing.T) {
	fn, err := Parse(`f = :(x) { x > 0 or return -1; x * 2 }`)
	require.NoError(t, err)
	assign := fn.Body.Statements[0].(*ast.ExprStmt).Expr.(*ast.AssignExpr)
	lit := assign.Value.(*ast.FunctionLit)
	or, ok := lit.Fn.Body.Statements[0].(*ast.ExprStmt).Expr.(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, ast.OpOr, or.Op)
	_, isReturn := or.Right.(*ast.ReturnStmt)
	require.True(t, isReturn)
}

func TestPowerIsRightAssociative(t *testing.T) {
	fn, err := Parse(`2 ^ 3 ^ 2`)
	require.NoError(t, err)
	expr := fn.Body.Statements[0].(*ast.ExprStmt).Expr.(*ast.BinaryExpr)
	require.Equal(t, ast.OpPow, expr.Op)
	_, leftIsLit := expr.Left.(*ast.IntLit)
	require.True(t, leftIsLit)
	right, ok := expr.Right.(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, ast.OpPow, right.Op)
}
