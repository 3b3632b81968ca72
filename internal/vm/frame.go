package vm

import "github.com/element-run/element/internal/value"

// Frame is one activation record on a Context's frame stack: the function
// being run, its instruction pointer, and the storage private to this call
// (locals, excess positional arguments, this). The operand stack itself is
// NOT part of a Frame — it belongs to the owning Context and is shared
// across every frame pushed onto it (spec §3 "StackFrame").
type Frame struct {
	fn     *value.FunctionObj
	code   *value.CodeObject
	module *value.Module
	ip     int

	locals   []value.Value
	anonArgs []value.Value
	this     value.Value

	// base is the context operand-stack height at the moment this frame was
	// pushed. EndFunction truncates the stack back to base before pushing
	// the return value, which is what discards a for-loop iterator (or any
	// other value) left behind by a return out of a loop body: the compiler
	// never emits an explicit cleanup pop for that case, relying entirely on
	// this truncation instead.
	base int
}

func newFrame(fn *value.FunctionObj, code *value.CodeObject, module *value.Module, args []value.Value, this value.Value, base int) *Frame {
	f := &Frame{fn: fn, code: code, module: module, this: this, base: base}
	f.locals = make([]value.Value, code.LocalVariablesCount)
	for i := range f.locals {
		f.locals[i] = value.Nil
	}

	named := code.NamedParametersCount
	if len(args) > named {
		excess := len(args) - named
		f.anonArgs = append([]value.Value(nil), args[:excess]...)
		args = args[excess:]
	}
	for i, a := range args {
		if i >= len(f.locals) {
			break
		}
		f.locals[i] = a
	}
	return f
}

func (f *Frame) markRoots(mark func(value.Managed)) {
	for _, v := range f.locals {
		markValue(v, mark)
	}
	for _, v := range f.anonArgs {
		markValue(v, mark)
	}
	markValue(f.this, mark)
}

func markValue(v value.Value, mark func(value.Managed)) {
	if m := v.Managed(); m != nil {
		mark(m)
	}
}
