package vm

import (
	"fmt"

	"github.com/element-run/element/internal/bytecode"
	"github.com/element-run/element/internal/symbol"
	"github.com/element-run/element/internal/value"
)

// exec dispatches one instruction against ctx/frame. A non-nil error is a
// language-level runtime fault; it is turned into a logged stack trace and
// an Error value by fault(), never surfaced to the Go caller directly.
func (vm *VM) exec(ctx *Context, frame *Frame, instr bytecode.Instruction) error {
	switch instr.Op {

	// --- stack ---
	case bytecode.OpPop:
		ctx.pop()
	case bytecode.OpPopN:
		for i := int32(0); i < instr.A; i++ {
			ctx.pop()
		}
	case bytecode.OpDuplicate:
		ctx.push(ctx.top())
	case bytecode.OpRotate2:
		b := ctx.pop()
		a := ctx.pop()
		ctx.push(b)
		ctx.push(a)
	case bytecode.OpMoveToTOS2:
		c := ctx.pop()
		b := ctx.pop()
		a := ctx.pop()
		ctx.push(c)
		ctx.push(a)
		ctx.push(b)
	case bytecode.OpUnpack:
		return vm.execUnpack(ctx, int(instr.A))

	// --- load ---
	case bytecode.OpLoadConstant:
		ctx.push(vm.loadConstant(instr.A))
	case bytecode.OpLoadLocal:
		ctx.push(frame.locals[instr.A])
	case bytecode.OpLoadGlobal:
		ctx.push(frame.module.Global(int(instr.A)))
	case bytecode.OpLoadNative:
		ctx.push(value.Native(vm.natives[instr.A]))
	case bytecode.OpLoadArgument:
		idx := int(instr.A)
		if idx < len(frame.anonArgs) {
			ctx.push(frame.anonArgs[idx])
		} else {
			ctx.push(value.Nil)
		}
	case bytecode.OpLoadArgsArray:
		arr := value.NewArray(append([]value.Value(nil), frame.anonArgs...))
		vm.gc.Allocate(arr)
		ctx.push(value.FromManaged(value.KindArray, arr))
	case bytecode.OpLoadThis:
		ctx.push(frame.this)
	case bytecode.OpLoadHash:
		ctx.push(value.Hash(instr.Hash()))

	// --- store ---
	case bytecode.OpStoreLocal:
		frame.locals[instr.A] = ctx.top()
	case bytecode.OpPopStoreLocal:
		frame.locals[instr.A] = ctx.pop()
	case bytecode.OpStoreGlobal:
		frame.module.SetGlobal(int(instr.A), ctx.top())
	case bytecode.OpPopStoreGlobal:
		frame.module.SetGlobal(int(instr.A), ctx.pop())

	// --- boxes & closures ---
	case bytecode.OpMakeBox:
		box := value.NewBox(frame.locals[instr.A])
		vm.gc.Allocate(box)
		frame.locals[instr.A] = value.FromManaged(value.KindBox, box)
	case bytecode.OpLoadFromBox:
		ctx.push(frame.locals[instr.A].AsBox().Val)
	case bytecode.OpStoreToBox:
		box := frame.locals[instr.A].AsBox()
		v := ctx.top()
		box.Val = v
		vm.gc.WriteBarrier(box, v.Managed())
	case bytecode.OpPopStoreToBox:
		box := frame.locals[instr.A].AsBox()
		v := ctx.pop()
		box.Val = v
		vm.gc.WriteBarrier(box, v.Managed())
	case bytecode.OpLoadFromClosure:
		ctx.push(frame.fn.FreeVariables[instr.A].Val)
	case bytecode.OpStoreToClosure:
		box := frame.fn.FreeVariables[instr.A]
		v := ctx.top()
		box.Val = v
		vm.gc.WriteBarrier(box, v.Managed())
	case bytecode.OpPopStoreToClosure:
		box := frame.fn.FreeVariables[instr.A]
		v := ctx.pop()
		box.Val = v
		vm.gc.WriteBarrier(box, v.Managed())
	case bytecode.OpMakeClosure:
		return vm.execMakeClosure(ctx, frame)

	// --- collections ---
	case bytecode.OpMakeArray:
		return vm.execMakeArray(ctx, int(instr.A))
	case bytecode.OpMakeEmptyObject:
		obj := value.NewObject(nil)
		vm.gc.Allocate(obj)
		ctx.push(value.FromManaged(value.KindObject, obj))
	case bytecode.OpMakeObject:
		return vm.execMakeObject(ctx, int(instr.A))
	case bytecode.OpLoadElement:
		return vm.execLoadElement(ctx)
	case bytecode.OpStoreElement:
		return vm.execStoreElement(ctx, true)
	case bytecode.OpPopStoreElement:
		return vm.execStoreElement(ctx, false)
	case bytecode.OpLoadMember:
		return vm.execLoadMember(ctx)
	case bytecode.OpStoreMember:
		return vm.execStoreMember(ctx, true)
	case bytecode.OpPopStoreMember:
		return vm.execStoreMember(ctx, false)
	case bytecode.OpArrayPushBack:
		return vm.execArrayPushBack(ctx)
	case bytecode.OpArrayPopBack:
		return vm.execArrayPopBack(ctx)

	// --- iteration ---
	case bytecode.OpMakeIterator:
		return vm.execMakeIterator(ctx)
	case bytecode.OpIteratorHasNext:
		return vm.execIteratorHasNext(ctx)
	case bytecode.OpIteratorGetNext:
		return vm.execIteratorGetNext(ctx)

	// --- control flow ---
	case bytecode.OpJump:
		frame.ip = int(instr.A)
	case bytecode.OpJumpIfFalse:
		if !ctx.top().Truthy() {
			frame.ip = int(instr.A)
		}
	case bytecode.OpPopJumpIfFalse:
		if !ctx.pop().Truthy() {
			frame.ip = int(instr.A)
		}
	case bytecode.OpJumpIfFalseOrPop:
		if !ctx.top().Truthy() {
			frame.ip = int(instr.A)
		} else {
			ctx.pop()
		}
	case bytecode.OpJumpIfTrueOrPop:
		if ctx.top().Truthy() {
			frame.ip = int(instr.A)
		} else {
			ctx.pop()
		}
	case bytecode.OpFunctionCall:
		return vm.execFunctionCall(ctx, frame, int(instr.A))
	case bytecode.OpYield:
		return vm.execYield(ctx)
	case bytecode.OpEndFunction:
		vm.execEndFunction(ctx)

	// --- arithmetic / comparison / unary ---
	default:
		if isBinaryOp(instr.Op) {
			return vm.execBinary(ctx, instr.Op)
		}
		if isUnaryOp(instr.Op) {
			return vm.execUnary(ctx, instr.Op)
		}
		return fmt.Errorf("unimplemented opcode %s", instr.Op)
	}
	return nil
}

func (vm *VM) loadConstant(idx int32) value.Value {
	c := vm.pool.Get(int(idx))
	switch c.Kind {
	case symbol.ConstNil:
		return value.Nil
	case symbol.ConstBool:
		return value.Bool(c.B)
	case symbol.ConstInt:
		return value.Int(c.I)
	case symbol.ConstFloat:
		return value.Float(c.F)
	case symbol.ConstString:
		s := value.NewString(c.S)
		vm.gc.Allocate(s)
		return value.FromManaged(value.KindString, s)
	case symbol.ConstCode:
		fn := &value.FunctionObj{Code: c.Code}
		vm.gc.Allocate(fn)
		return value.FromManaged(value.KindFunction, fn)
	}
	return value.Nil
}

func (vm *VM) execMakeClosure(ctx *Context, frame *Frame) error {
	v := ctx.pop()
	fn := v.AsFunction()
	if fn == nil {
		return fmt.Errorf("make-closure target is not a function template")
	}
	mapping := fn.Code.ClosureMapping
	free := make([]*value.BoxObj, len(mapping))
	for i, m := range mapping {
		if m >= 0 {
			free[i] = frame.locals[m].AsBox()
		} else {
			free[i] = frame.fn.FreeVariables[-m-1]
		}
	}
	fn.FreeVariables = free
	ctx.push(v)
	return nil
}

func (vm *VM) execUnpack(ctx *Context, n int) error {
	v := ctx.pop()
	elems := make([]value.Value, n)
	if arr := v.AsArray(); arr != nil {
		for i := 0; i < n; i++ {
			if i < len(arr.Elements) {
				elems[i] = arr.Elements[i]
			} else {
				elems[i] = value.Nil
			}
		}
	} else {
		for i := 0; i < n-1; i++ {
			elems[i] = value.Nil
		}
		if n > 0 {
			elems[n-1] = v
		}
	}
	for i := n - 1; i >= 0; i-- {
		ctx.push(elems[i])
	}
	return nil
}

func (vm *VM) execMakeArray(ctx *Context, n int) error {
	elems := make([]value.Value, n)
	for i := n - 1; i >= 0; i-- {
		elems[i] = ctx.pop()
	}
	arr := value.NewArray(elems)
	vm.gc.Allocate(arr)
	ctx.push(value.FromManaged(value.KindArray, arr))
	return nil
}

func (vm *VM) execMakeObject(ctx *Context, n int) error {
	members := make([]value.Member, n)
	for i := n - 1; i >= 0; i-- {
		v := ctx.pop()
		h := ctx.pop().AsHash()
		members[i] = value.Member{Hash: h, Value: v}
	}
	obj := value.NewObject(members)
	vm.gc.Allocate(obj)
	ctx.push(value.FromManaged(value.KindObject, obj))
	return nil
}

func (vm *VM) execArrayPushBack(ctx *Context) error {
	val := ctx.pop()
	arrV := ctx.pop()
	arr := arrV.AsArray()
	if arr == nil {
		return fmt.Errorf("cannot push onto a non-array value")
	}
	arr.Elements = append(arr.Elements, val)
	vm.gc.WriteBarrier(arr, val.Managed())
	ctx.push(arrV)
	return nil
}

func (vm *VM) execArrayPopBack(ctx *Context) error {
	arrV := ctx.pop()
	arr := arrV.AsArray()
	if arr == nil || len(arr.Elements) == 0 {
		return fmt.Errorf("cannot pop from an empty or non-array value")
	}
	n := len(arr.Elements) - 1
	val := arr.Elements[n]
	arr.Elements = arr.Elements[:n]
	ctx.push(val)
	return nil
}

func (vm *VM) execLoadElement(ctx *Context) error {
	idxV := ctx.pop()
	objV := ctx.pop()
	switch objV.Kind() {
	case value.KindArray:
		arr := objV.AsArray()
		i, ok := arr.Index(idxV.AsInt())
		if !ok {
			return fmt.Errorf("array index out of range")
		}
		ctx.push(arr.Elements[i])
	case value.KindString:
		s := objV.AsString()
		n := len(s.Data)
		i := int(idxV.AsInt())
		if i < 0 {
			i += n
		}
		if i < 0 || i >= n {
			return fmt.Errorf("string index out of range")
		}
		ss := value.NewString(string(s.Data[i]))
		vm.gc.Allocate(ss)
		ctx.push(value.FromManaged(value.KindString, ss))
	default:
		return fmt.Errorf("value is not indexable")
	}
	return nil
}

func (vm *VM) execStoreElement(ctx *Context, keep bool) error {
	idxV := ctx.pop()
	objV := ctx.pop()
	var val value.Value
	if keep {
		val = ctx.top()
	} else {
		val = ctx.pop()
	}
	arr := objV.AsArray()
	if arr == nil {
		return fmt.Errorf("cannot index-assign into a non-array value")
	}
	i, ok := arr.Index(idxV.AsInt())
	if !ok {
		return fmt.Errorf("array index out of range")
	}
	arr.Elements[i] = val
	vm.gc.WriteBarrier(arr, val.Managed())
	return nil
}
