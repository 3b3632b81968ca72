package vm

import "github.com/element-run/element/internal/value"

// Context is one execution context (spec §3): either the ephemeral root
// context driving a single top-level evaluation, or a coroutine's
// persistent context, reachable for as long as its owning Function is
// reachable. It owns the double-ended frame stack and the operand stack
// shared by every frame pushed onto it.
type Context struct {
	state  int
	parent *Context

	// lastObject is the `this`-propagation scratch slot: LoadMember sets it
	// to the object it just resolved a member against, and the next
	// FunctionCall's frame-creation step consumes it as the callee's this
	// (spec §3/§4.5). It is a known, faithfully-reproduced quirk that a
	// nested call appearing as an argument can clobber it before the outer
	// call consumes it — see DESIGN.md.
	lastObject value.Value

	frames []*Frame
	stack  []value.Value

	// done/result are set once by EndFunction when this Context's own last
	// frame completes with no parent to return to (a true root, not a
	// coroutine mid-chain). run()/runUntil() poll done to know when to stop
	// driving the shared dispatch loop.
	done   bool
	result value.Value
}

func newContext() *Context {
	return &Context{state: value.ContextNotStarted}
}

func (ctx *Context) State() int { return ctx.state }

func (ctx *Context) push(v value.Value) { ctx.stack = append(ctx.stack, v) }

func (ctx *Context) pop() value.Value {
	n := len(ctx.stack) - 1
	v := ctx.stack[n]
	ctx.stack = ctx.stack[:n]
	return v
}

func (ctx *Context) top() value.Value { return ctx.stack[len(ctx.stack)-1] }

func (ctx *Context) pushFrame(f *Frame) { ctx.frames = append(ctx.frames, f) }

func (ctx *Context) popFrame() *Frame {
	n := len(ctx.frames) - 1
	f := ctx.frames[n]
	ctx.frames = ctx.frames[:n]
	return f
}

func (ctx *Context) currentFrame() *Frame { return ctx.frames[len(ctx.frames)-1] }

// MarkRoots implements value.ExecutionContext: every local, excess
// positional argument, `this`, and operand-stack value across every live
// frame of this context is a GC root (spec §4.4 "Roots").
func (ctx *Context) MarkRoots(mark func(value.Managed)) {
	for _, f := range ctx.frames {
		f.markRoots(mark)
	}
	for _, v := range ctx.stack {
		markValue(v, mark)
	}
	markValue(ctx.lastObject, mark)
}
