// Package logger implements the structured diagnostic/stack-trace sink
// described in spec §7: lex/parse/semantic/compile diagnostics and runtime
// stack traces are logged here, then rendered into the text that gets
// attached to the Error values callers see.
package logger

import (
	"bytes"
	"fmt"

	"github.com/rs/zerolog"
)

// Logger accumulates diagnostics for a single evaluation (one REPL line or
// one file run) and can render them back out as the Logger-attached text
// spec §7 requires on an Error value.
type Logger struct {
	buf  bytes.Buffer
	zl   zerolog.Logger
	rows []string
}

// New creates a Logger that also writes structured events to dest (when
// non-nil), in addition to buffering human-readable lines for attachment to
// Error values.
func New(dest *bytes.Buffer) *Logger {
	l := &Logger{}
	if dest != nil {
		l.zl = zerolog.New(zerolog.MultiLevelWriter(&l.buf, dest)).With().Timestamp().Logger()
	} else {
		l.zl = zerolog.New(&l.buf).With().Timestamp().Logger()
	}
	return l
}

// Diagnostic records a source-level diagnostic (lexer/parser/semantic/compiler).
func (l *Logger) Diagnostic(module string, line, column int, message string) {
	l.zl.Error().Str("module", module).Int("line", line).Int("column", column).Msg(message)
	l.rows = append(l.rows, fmt.Sprintf("%s:%d:%d: %s", moduleName(module), line, column, message))
}

// StackFrame records one line of a runtime-error stack trace (spec §4.5:
// "log a stack trace across every frame of every live context").
func (l *Logger) StackFrame(module string, line int, funcName string) {
	l.zl.Error().Str("module", module).Int("line", line).Str("func", funcName).Msg("stack frame")
	l.rows = append(l.rows, fmt.Sprintf("  at %s (%s:%d)", funcName, moduleName(module), line))
}

// Runtime records the top-level runtime error message itself.
func (l *Logger) Runtime(message string) {
	l.zl.Error().Msg(message)
	l.rows = append(l.rows, message)
}

// Rows returns every recorded line in order, oldest first.
func (l *Logger) Rows() []string { return l.rows }

// Render concatenates every recorded row into one multi-line string, the
// text attached to `runtime-error`/diagnostic Error values.
func (l *Logger) Render() string {
	var out bytes.Buffer
	for i, r := range l.rows {
		if i > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(r)
	}
	return out.String()
}

// Empty reports whether anything was logged this evaluation.
func (l *Logger) Empty() bool { return len(l.rows) == 0 }

// Reset clears accumulated rows so a Logger can be reused across REPL lines.
func (l *Logger) Reset() {
	l.rows = l.rows[:0]
	l.buf.Reset()
}

func moduleName(m string) string {
	if m == "" {
		return "(repl)"
	}
	return m
}
