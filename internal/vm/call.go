package vm

import (
	"fmt"

	"github.com/element-run/element/internal/value"
)

// execFunctionCall implements the bytecode OpFunctionCall: the operand stack
// holds the callee, then argc positional arguments pushed left-to-right
// (callee deepest, per the compiler's CallExpr/ThreadArrow emission), and
// ctx.lastObject carries the `this` a preceding LoadMember stashed (spec
// §4.5).
//
// Coroutine scheduling never recurses at the Go level: starting, resuming or
// finishing a coroutine just repoints vm.current at a different Context.
// The same flat dispatch loop in step() then simply continues against
// whichever Context is current.
func (vm *VM) execFunctionCall(ctx *Context, frame *Frame, argc int) error {
	args := make([]value.Value, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i] = ctx.pop()
	}
	calleeV := ctx.pop()
	this := ctx.lastObject
	ctx.lastObject = value.Nil

	switch calleeV.Kind() {
	case value.KindNative:
		nf := calleeV.AsNative()
		saved := vm.nativeThis
		vm.nativeThis = this
		result, err := nf(vm, args)
		vm.nativeThis = saved
		if err != nil {
			return err
		}
		ctx.push(result)
		return nil

	case value.KindFunction:
		fn := calleeV.AsFunction()
		if fn.Context == nil {
			f := newFrame(fn, fn.Code, fn.Code.Module, args, this, len(ctx.stack))
			ctx.pushFrame(f)
			return nil
		}

		co := fn.Context.(*Context)
		switch co.state {
		case value.ContextNotStarted:
			co.parent = ctx
			co.pushFrame(newFrame(fn, fn.Code, fn.Code.Module, args, value.Nil, 0))
			co.state = value.ContextStarted
			vm.current = co
		case value.ContextStarted:
			co.parent = ctx
			co.push(vm.packArgs(args))
			vm.current = co
		case value.ContextFinished:
			ctx.push(vm.newError("dead-coroutine"))
		}
		return nil

	default:
		return fmt.Errorf("value of kind %s is not callable", calleeV.Kind())
	}
}

// execYield implements OpYield: the running coroutine hands a value back to
// whoever resumed it and suspends. ctx must have a parent (spec §4.5: a
// bare-context, non-coroutine call chain yielding is a runtime fault).
func (vm *VM) execYield(ctx *Context) error {
	if ctx.parent == nil {
		return fmt.Errorf("yield used outside of a coroutine")
	}
	val := ctx.pop()
	parent := ctx.parent
	ctx.parent = nil
	parent.push(val)
	vm.current = parent
	return nil
}

// execEndFunction implements OpEndFunction: pop the return value, pop the
// completing frame, then truncate ctx's operand stack back to that frame's
// entry floor before restoring the return value. The truncation is what
// discards any value a return left stranded on the stack when it unwound out
// of an active for-loop body (an abandoned loop iterator, most commonly) —
// the compiler never emits an explicit cleanup pop for that case, so this is
// the only place such values are ever reclaimed.
//
// If this was the last frame on ctx, ctx itself has finished: either control
// returns to whoever resumed/called it (ctx.parent, coroutine or
// synchronous waiter alike) or, if ctx has no parent, ctx is a true root and
// done.
func (vm *VM) execEndFunction(ctx *Context) {
	result := ctx.pop()
	frame := ctx.popFrame()

	if len(ctx.frames) == 0 {
		ctx.stack = ctx.stack[:frame.base]
		ctx.state = value.ContextFinished
		if ctx.parent != nil {
			parent := ctx.parent
			ctx.parent = nil
			parent.push(result)
			vm.current = parent
		} else {
			ctx.done = true
			ctx.result = result
		}
		return
	}

	ctx.stack = ctx.stack[:frame.base]
	ctx.push(result)
}
