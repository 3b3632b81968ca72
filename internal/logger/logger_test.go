package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiagnosticRendersLineColumn(t *testing.T) {
	l := New(nil)
	l.Diagnostic("main.element", 3, 7, "unexpected token")
	require.False(t, l.Empty())
	require.Contains(t, l.Render(), "main.element:3:7: unexpected token")
}

func TestResetClears(t *testing.T) {
	l := New(nil)
	l.Runtime("boom")
	require.False(t, l.Empty())
	l.Reset()
	require.True(t, l.Empty())
	require.Equal(t, "", l.Render())
}

func TestStackFrameFormat(t *testing.T) {
	l := New(nil)
	l.StackFrame("", 10, "fib")
	require.Contains(t, l.Render(), "fib")
	require.Contains(t, l.Render(), "(repl):10")
}
