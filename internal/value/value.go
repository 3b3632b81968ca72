// Package value implements the data model of the language: the tagged-union
// Value, the heap objects it can reference, and the handful of interfaces
// (NativeFunc, NativeContext, ExecutionContext) that let the garbage
// collector and the native-function catalog interoperate with the virtual
// machine without this package importing it.
package value

import "fmt"

// Kind is the tag of a Value's active variant.
type Kind uint8

const (
	KindNil Kind = iota
	KindInt
	KindFloat
	KindBool
	KindHash
	KindNative
	KindString
	KindArray
	KindObject
	KindFunction
	KindBox
	KindIterator
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindHash:
		return "hash"
	case KindNative:
		return "native"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindFunction:
		return "function"
	case KindBox:
		return "box"
	case KindIterator:
		return "iterator"
	case KindError:
		return "error"
	default:
		return "invalid"
	}
}

// NativeFunc is the signature every native (builtin) function implements.
// ctx gives access to VM services (coroutine scheduling, GC, module
// loading) without the native catalog importing the vm package.
type NativeFunc func(ctx NativeContext, args []Value) (Value, error)

// NativeContext is the subset of VM/runtime services a native function may
// need. It is implemented by *vm.VM; defining it here (rather than in vm)
// keeps this package dependency-free of the execution engine, mirroring how
// wasm.Engine is declared next to the data it operates on rather than next to
// its implementation.
type NativeContext interface {
	// This returns the `this` value the calling frame was invoked with.
	This() Value
	// CollectGarbage runs up to steps increments of the collector.
	CollectGarbage(steps int)
	// MemoryStats reports live/freed counters per heap kind.
	MemoryStats() map[string]int64
	// NewCoroutine wraps fn (which must be KindFunction) in a fresh
	// execution context, producing a coroutine-instance Function value.
	NewCoroutine(fn Value) (Value, error)
	// AddSearchPath registers an additional module search directory.
	AddSearchPath(path string)
	// LoadModule resolves, compiles (once) and evaluates path, returning its result.
	LoadModule(path string) (Value, error)
	// Allocate links obj into the heap the collector walks, painting it
	// next-white. Every native that constructs a String/Array/Object/Error
	// must route it through here before returning it (spec §4.4): a value
	// never registered this way is invisible to MemoryStats and never swept.
	Allocate(obj Managed)
	// InternHash resolves name to the same member hash the compiler assigned
	// it in the running script's symbol table, so a native-built Object's
	// member hashes agree with `.name` access compiled against that table.
	InternHash(name string) uint32
}

// Value is a 13-variant tagged union. Unmanaged variants store their payload
// directly; managed variants carry a pointer to a heap object via Obj.
type Value struct {
	kind   Kind
	i      int32
	f      float32
	b      bool
	hash   uint32
	native NativeFunc
	obj    Managed
}

// Nil is the zero Value.
var Nil = Value{kind: KindNil}

var (
	True  = Value{kind: KindBool, b: true}
	False = Value{kind: KindBool, b: false}
)

func Int(i int32) Value   { return Value{kind: KindInt, i: i} }
func Float(f float32) Value { return Value{kind: KindFloat, f: f} }
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}
func Hash(h uint32) Value       { return Value{kind: KindHash, hash: h} }
func Native(fn NativeFunc) Value { return Value{kind: KindNative, native: fn} }

// FromManaged wraps a heap object allocated by the gc package into a Value.
func FromManaged(kind Kind, obj Managed) Value {
	return Value{kind: kind, obj: obj}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNil() bool { return v.kind == KindNil }

func (v Value) AsInt() int32     { return v.i }
func (v Value) AsFloat() float32 { return v.f }
func (v Value) AsBool() bool     { return v.b }
func (v Value) AsHash() uint32   { return v.hash }
func (v Value) AsNative() NativeFunc { return v.native }
func (v Value) Managed() Managed { return v.obj }

func (v Value) AsString() *StringObj { o, _ := v.obj.(*StringObj); return o }
func (v Value) AsArray() *ArrayObj   { o, _ := v.obj.(*ArrayObj); return o }
func (v Value) AsObject() *ObjectObj { o, _ := v.obj.(*ObjectObj); return o }
func (v Value) AsFunction() *FunctionObj { o, _ := v.obj.(*FunctionObj); return o }
func (v Value) AsBox() *BoxObj       { o, _ := v.obj.(*BoxObj); return o }
func (v Value) AsIterator() *IteratorObj { o, _ := v.obj.(*IteratorObj); return o }
func (v Value) AsError() *ErrorObj   { o, _ := v.obj.(*ErrorObj); return o }

// Truthy implements the language's notion of a condition's truth: nil and
// false are falsy, everything else (including 0 and "") is truthy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNil:
		return false
	case KindBool:
		return v.b
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindHash:
		return fmt.Sprintf("#%08x", v.hash)
	case KindNative:
		return "<native fn>"
	case KindString:
		return v.AsString().Data
	case KindArray:
		return v.AsArray().describe()
	case KindObject:
		return v.AsObject().describe()
	case KindFunction:
		return "<function>"
	case KindBox:
		return "<box>"
	case KindIterator:
		return "<iterator>"
	case KindError:
		return v.AsError().Message
	default:
		return "<invalid>"
	}
}
