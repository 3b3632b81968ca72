package value

import "github.com/element-run/element/internal/bytecode"

// CodeObject is owned by the constant pool and never garbage collected
// (spec §3: "owned by the constant pool, never GC'd"). It is the compiled
// form of one function body.
type CodeObject struct {
	Instructions         []bytecode.Instruction
	Lines                []bytecode.SourceLine
	LocalVariablesCount  int
	NamedParametersCount int
	// ClosureMapping gives, for each captured free variable in declaration
	// order, the capture source: non-negative entries index the enclosing
	// frame's locals (boxed); entries encoded as -i-1 index the enclosing
	// frame's own free variables (spec §4.2 step 4).
	ClosureMapping []int32
	// ParametersToBox lists the parameter-slot indices a nested closure
	// captures; the call prologue wraps the incoming argument for each of
	// these in a fresh BoxObj before the body runs.
	ParametersToBox []int
	Variadic        bool
	Module          *Module
	Name            string
}

// ExecutionContext is implemented by the VM's coroutine/root execution
// context. It is declared here (not in vm) so Function can hold one without
// this package depending on the execution engine, mirroring wasm.Engine's
// placement next to wasm.Module in the teacher codebase.
type ExecutionContext interface {
	// MarkRoots marks every managed value reachable from this context's
	// frames and operand stack, per spec §4.4 "Roots".
	MarkRoots(mark func(Managed))
	// State reports NotStarted(0)/Started(1)/Finished(2).
	State() int
}

const (
	ContextNotStarted = iota
	ContextStarted
	ContextFinished
)

// FunctionObj is a reference-typed callable: code plus captured free
// variables plus, for coroutines, a persistent execution context. Two
// Functions sharing a CodeObject but differing in FreeVariables or Context
// are distinct values (spec §3).
type FunctionObj struct {
	GCHeader
	Code          *CodeObject
	FreeVariables []*BoxObj
	Context       ExecutionContext
}

func (f *FunctionObj) Header() *GCHeader { return &f.GCHeader }

func (f *FunctionObj) MarkChildren(mark func(Managed)) {
	for _, b := range f.FreeVariables {
		mark(b)
	}
	if f.Context != nil {
		f.Context.MarkRoots(mark)
	}
}

// IsCoroutine reports whether f carries a persistent execution context
// (spec §3 invariant I4).
func (f *FunctionObj) IsCoroutine() bool { return f.Context != nil }

func NewFunction(code *CodeObject, freeVars []*BoxObj) *FunctionObj {
	return &FunctionObj{Code: code, FreeVariables: freeVars}
}

// Module is the unit of global scope: one compiled source file (or the REPL's
// default, unnamed module). It owns the raw bytecode blob for the lifetime of
// its CodeObjects, since those hold slices into blob-derived constants.
type Module struct {
	Filename string
	Globals  []Value
	// Result caches the once-per-file evaluation result (spec §6: "load_element
	// returns the cached Module.result on subsequent calls").
	Result    Value
	HasResult bool
	Blob      []byte
}

// Global reads globals[idx], auto-extending with Nil reads past the end
// rather than panicking (spec §4.3: "reads nil if A>=globals.len").
func (m *Module) Global(idx int) Value {
	if idx < 0 || idx >= len(m.Globals) {
		return Nil
	}
	return m.Globals[idx]
}

// SetGlobal auto-grows the globals vector (spec §4.3: "Store autogrows").
func (m *Module) SetGlobal(idx int, v Value) {
	for idx >= len(m.Globals) {
		m.Globals = append(m.Globals, Nil)
	}
	m.Globals[idx] = v
}
