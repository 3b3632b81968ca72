// Package vm implements the stack-based virtual machine: the instruction
// dispatch loop, execution-context/coroutine scheduling, calling
// conventions, and the few bytecode-facing pieces of the iterator protocol
// and arithmetic semantics that aren't delegated to the value package.
//
// A single VM drives at most one running execution context at a time
// (current); FunctionCall/Yield/EndFunction only ever move that pointer
// around a tree of Contexts linked by parent — there is no goroutine or
// Go-level recursion backing coroutine suspension, matching the interpreter
// loop's iterative, frame-stack-driven shape.
package vm

import (
	"fmt"

	"github.com/element-run/element/internal/bytecode"
	"github.com/element-run/element/internal/compiler"
	"github.com/element-run/element/internal/gc"
	"github.com/element-run/element/internal/logger"
	"github.com/element-run/element/internal/symbol"
	"github.com/element-run/element/internal/value"
)

// VM is the virtual machine: constant pool, symbol table, collector, and
// native-function registry, plus the one Context currently driving
// execution. It implements value.NativeContext so native functions can
// reach GC, coroutine and module-loading services without the natives
// package importing vm.
type VM struct {
	pool    *symbol.Pool
	table   *symbol.Table
	gc      *gc.Collector
	log     *logger.Logger
	natives []value.NativeFunc

	modules []*value.Module

	current *Context

	// nativeThis is set immediately before invoking a native and read back
	// by This(); natives have no frame of their own to carry it.
	nativeThis value.Value

	searchPaths []string
	loader      func(path string) (value.Value, error)
}

func New(pool *symbol.Pool, table *symbol.Table, natives []value.NativeFunc, log *logger.Logger) *VM {
	return &VM{
		pool:    pool,
		table:   table,
		natives: natives,
		log:     log,
		gc:      gc.New(),
	}
}

// NewFromResult builds a VM ready to run a single compiler.Result: it
// resolves res.NativeNames against catalog (in the index order the compiler
// assigned them, so OpLoadNative's operand lines up), binds module into
// every ConstCode constant the result produced, and registers module as a
// GC root source. It is the one entry point every Eval path (embedding API,
// tests, the loader's nested evaluator) goes through so that wiring a
// compiled unit to a running VM happens exactly one way.
func NewFromResult(res *compiler.Result, table *symbol.Table, catalog map[string]value.NativeFunc, module *value.Module, log *logger.Logger) (*VM, error) {
	natives := make([]value.NativeFunc, len(res.NativeNames))
	for i, name := range res.NativeNames {
		fn, ok := catalog[name]
		if !ok {
			return nil, fmt.Errorf("unknown native function %q", name)
		}
		natives[i] = fn
	}
	machine := New(res.Pool, table, natives, log)
	BindModule(res.Pool, module)
	machine.RegisterModule(module)
	return machine, nil
}

// BindModule stamps every CodeObject a compile produced with the Module its
// globals live in. A single compilation unit's functions all close over one
// Module's globals regardless of nesting depth, but the Module itself isn't
// known until the host decides to run (or cache) the compiled result, so
// this is a separate step from Compile (spec §4.1/§6).
func BindModule(pool *symbol.Pool, module *value.Module) {
	for i := 0; i < pool.Len(); i++ {
		c := pool.Get(i)
		if c.Kind == symbol.ConstCode && c.Code != nil {
			c.Code.Module = module
		}
	}
}

// GrowNatives appends the resolved funcs for names (in order) to the VM's
// native table. Used when a VM outlives a single compile (e.g. a REPL):
// CompileIncremental only ever reports the names newly interned by one
// call, so each call's new names are appended once, never renumbered,
// keeping every previously compiled OpLoadNative operand valid.
func (vm *VM) GrowNatives(names []string, catalog map[string]value.NativeFunc) error {
	for _, name := range names {
		fn, ok := catalog[name]
		if !ok {
			return fmt.Errorf("unknown native function %q", name)
		}
		vm.natives = append(vm.natives, fn)
	}
	return nil
}

// RegisterModule adds module to the set the collector treats as a GC root
// source (spec §4.4 "globals in the default module and every cached
// module"), independent of whether that module is currently executing.
func (vm *VM) RegisterModule(m *value.Module) { vm.modules = append(vm.modules, m) }

// SetLoader wires the module-search/compile/run pipeline (internal/loader)
// into LoadModule without this package importing loader (which itself needs
// a VM to run the module it finds).
func (vm *VM) SetLoader(fn func(path string) (value.Value, error)) { vm.loader = fn }

func (vm *VM) Collector() *gc.Collector { return vm.gc }

// --- value.NativeContext ---

func (vm *VM) This() value.Value { return vm.nativeThis }

func (vm *VM) CollectGarbage(steps int) { vm.gc.Collect(steps, vm) }

func (vm *VM) MemoryStats() map[string]int64 { return vm.gc.Stats() }

func (vm *VM) NewCoroutine(fn value.Value) (value.Value, error) {
	f := fn.AsFunction()
	if f == nil {
		return value.Nil, fmt.Errorf("make_coroutine requires a function value")
	}
	co := &value.FunctionObj{Code: f.Code, FreeVariables: f.FreeVariables, Context: newContext()}
	vm.gc.Allocate(co)
	return value.FromManaged(value.KindFunction, co), nil
}

func (vm *VM) Allocate(obj value.Managed) { vm.gc.Allocate(obj) }

func (vm *VM) InternHash(name string) uint32 { return vm.table.Intern(name) }

func (vm *VM) AddSearchPath(path string) { vm.searchPaths = append(vm.searchPaths, path) }

func (vm *VM) SearchPaths() []string { return vm.searchPaths }

func (vm *VM) LoadModule(path string) (value.Value, error) {
	if vm.loader == nil {
		return value.Nil, fmt.Errorf("module loading is not configured")
	}
	return vm.loader(path)
}

// --- gc.RootProvider ---

// GCRoots marks every module's globals (reachable regardless of whether
// that module is on the active call chain) plus every frame of the
// currently active Context chain. Any other live coroutine Context is
// reachable transitively through the FunctionObj that owns it, which is
// marked normally as a child of whatever holds it live on the heap (spec
// §4.4 "Roots").
func (vm *VM) GCRoots(mark func(value.Managed)) {
	for _, m := range vm.modules {
		for _, g := range m.Globals {
			markValue(g, mark)
		}
	}
	for c := vm.current; c != nil; c = c.parent {
		c.MarkRoots(mark)
	}
}

func (vm *VM) newError(msg string) value.Value {
	e := value.NewError(msg)
	vm.gc.Allocate(e)
	return value.FromManaged(value.KindError, e)
}

// --- running ---

// RunMain drives code (the implicit top-level function of one source unit)
// to completion on a fresh root Context and returns its result. A runtime
// fault surfaces as an Error value, never a Go error (spec §7: "interpreted
// runtime errors do NOT set a non-zero exit").
func (vm *VM) RunMain(module *value.Module, code *value.CodeObject) value.Value {
	root := newContext()
	root.state = value.ContextStarted
	f := newFrame(nil, code, module, nil, value.Nil, 0)
	root.pushFrame(f)
	return vm.run(root)
}

// run drives the dispatch loop until entry itself finishes (its own last
// frame pops with no parent), returning its result. entry.parent must stay
// nil for its whole lifetime: a stray `yield` at this level is a runtime
// fault ("yield outside coroutine"), not a suspension.
func (vm *VM) run(entry *Context) value.Value {
	vm.current = entry
	for !entry.done {
		if err := vm.step(); err != nil {
			errVal := vm.fault(vm.current, err.Error())
			entry.done = true
			entry.result = errVal
			return errVal
		}
	}
	return entry.result
}

// invoke synchronously calls fn and returns its result, used where a single
// opcode (not the main bytecode stream) needs to call into a user function
// and get one value back: the Object/Coroutine iterator protocol. fn runs
// under a throwaway waiter Context that simply catches whatever value
// Yield or EndFunction ultimately transfers to it.
func (vm *VM) invoke(fn *value.FunctionObj, args []value.Value, this value.Value) value.Value {
	waiter := newContext()
	// The Context whose opcode called invoke resumes once fn hands its
	// value to waiter.
	prev := vm.current
	defer func() { vm.current = prev }()
	if fn.Context == nil {
		ctx := newContext()
		ctx.state = value.ContextStarted
		ctx.parent = waiter
		ctx.pushFrame(newFrame(fn, fn.Code, fn.Code.Module, args, this, 0))
		vm.current = ctx
	} else {
		co := fn.Context.(*Context)
		switch co.state {
		case value.ContextNotStarted:
			co.parent = waiter
			co.pushFrame(newFrame(fn, fn.Code, fn.Code.Module, args, value.Nil, 0))
			co.state = value.ContextStarted
		case value.ContextStarted:
			co.parent = waiter
			co.push(vm.packArgs(args))
		case value.ContextFinished:
			return vm.newError("dead-coroutine")
		}
		vm.current = co
	}
	return vm.runUntil(waiter)
}

// runUntil drives the dispatch loop until control transfers to waiter
// (Yield or EndFunction pushing onto it), then consumes and returns that
// one value.
func (vm *VM) runUntil(waiter *Context) value.Value {
	for vm.current != waiter {
		if err := vm.step(); err != nil {
			errVal := vm.fault(vm.current, err.Error())
			waiter.push(errVal)
			break
		}
	}
	return waiter.pop()
}

func (vm *VM) step() error {
	ctx := vm.current
	frame := ctx.currentFrame()
	instr := frame.code.Instructions[frame.ip]
	frame.ip++
	return vm.exec(ctx, frame, instr)
}

// fault logs a stack trace across every frame of ctx and every one of its
// ancestors (spec §4.5: "across every frame of every live context"), clears
// them (the current call chain unwinds), and returns the runtime-error
// Value callers see.
func (vm *VM) fault(ctx *Context, msg string) value.Value {
	vm.log.Runtime(msg)
	for c := ctx; c != nil; c = c.parent {
		for i := len(c.frames) - 1; i >= 0; i-- {
			f := c.frames[i]
			name := f.code.Name
			if name == "" {
				name = "(anonymous)"
			}
			modName := ""
			if f.module != nil {
				modName = f.module.Filename
			}
			line := bytecode.LineForInstruction(f.code.Lines, f.ip-1)
			vm.log.StackFrame(modName, int(line), name)
		}
		c.frames = nil
		c.done = true
	}
	return vm.newError("runtime-error")
}

func (vm *VM) packArgs(args []value.Value) value.Value {
	switch len(args) {
	case 0:
		return value.Nil
	case 1:
		return args[0]
	default:
		arr := value.NewArray(append([]value.Value(nil), args...))
		vm.gc.Allocate(arr)
		return value.FromManaged(value.KindArray, arr)
	}
}
