package vm

import (
	"fmt"

	"github.com/element-run/element/internal/value"
)

// execMakeIterator wraps the popped value in the IteratorObj variant that
// matches its kind (spec §4.6). Object values must expose both has_next and
// get_next member functions to qualify; anything else not covered below is
// not iterable.
func (vm *VM) execMakeIterator(ctx *Context) error {
	v := ctx.pop()
	if v.Kind() == value.KindIterator {
		// range() and similar natives return an already-allocated,
		// already-live IteratorObj directly; re-running makeIterator/
		// Allocate on it would double-register the same heap object.
		ctx.push(v)
		return nil
	}
	it, err := vm.makeIterator(v)
	if err != nil {
		return err
	}
	vm.gc.Allocate(it)
	ctx.push(value.FromManaged(value.KindIterator, it))
	return nil
}

func (vm *VM) makeIterator(v value.Value) (*value.IteratorObj, error) {
	switch v.Kind() {
	case value.KindArray:
		return value.NewArrayIterator(v), nil
	case value.KindString:
		return value.NewStringIterator(v), nil
	case value.KindObject:
		obj := v.AsObject()
		hasNext, ok1 := obj.Get(vm.table.HasNextHash())
		getNext, ok2 := obj.Get(vm.table.GetNextHash())
		if !ok1 || !ok2 || hasNext.Kind() != value.KindFunction || getNext.Kind() != value.KindFunction {
			return nil, fmt.Errorf("value is not iterable")
		}
		return value.NewObjectIterator(v, hasNext, getNext), nil
	case value.KindFunction:
		fn := v.AsFunction()
		if !fn.IsCoroutine() {
			return nil, fmt.Errorf("value is not iterable")
		}
		return value.NewCoroutineIterator(v), nil
	default:
		return nil, fmt.Errorf("value is not iterable")
	}
}

func (vm *VM) execIteratorHasNext(ctx *Context) error {
	v := ctx.top()
	it := v.AsIterator()
	if it == nil {
		return fmt.Errorf("iterator-next on a non-iterator value")
	}
	ctx.pop()
	ok, err := vm.iteratorHasNext(it)
	if err != nil {
		return err
	}
	ctx.push(value.Bool(ok))
	return nil
}

func (vm *VM) execIteratorGetNext(ctx *Context) error {
	v := ctx.top()
	it := v.AsIterator()
	if it == nil {
		return fmt.Errorf("iterator-next on a non-iterator value")
	}
	ctx.pop()
	val, err := vm.iteratorGetNext(it)
	if err != nil {
		return err
	}
	ctx.push(val)
	return nil
}

func (vm *VM) iteratorHasNext(it *value.IteratorObj) (bool, error) {
	switch it.Kind {
	case value.IterArray:
		arr := it.Backing.AsArray()
		return it.Index < len(arr.Elements), nil
	case value.IterString:
		s := it.Backing.AsString()
		return it.Index < len(s.Data), nil
	case value.IterRange:
		switch {
		case it.Step > 0:
			return it.Cur < it.To, nil
		case it.Step < 0:
			return it.Cur > it.To, nil
		default:
			return false, nil
		}
	case value.IterObject:
		result := vm.invoke(it.HasNextFn.AsFunction(), nil, it.This)
		if result.Kind() == value.KindError {
			return false, fmt.Errorf("%s", result.AsError().Message)
		}
		return result.Truthy(), nil
	case value.IterCoroutine:
		if it.IsDone() {
			return false, nil
		}
		if v, ok := it.TakeCached(); ok {
			it.SetCached(v)
			return true, nil
		}
		fn := it.Coroutine.AsFunction()
		result := vm.invoke(fn, nil, value.Nil)
		if fn.Context.(*Context).State() == value.ContextFinished {
			it.SetDone()
			return false, nil
		}
		it.SetCached(result)
		return true, nil
	default:
		return false, fmt.Errorf("unknown iterator kind")
	}
}

func (vm *VM) iteratorGetNext(it *value.IteratorObj) (value.Value, error) {
	switch it.Kind {
	case value.IterArray:
		arr := it.Backing.AsArray()
		if it.Index >= len(arr.Elements) {
			return value.Nil, fmt.Errorf("get_next called past the end of an array iterator")
		}
		v := arr.Elements[it.Index]
		it.Index++
		return v, nil
	case value.IterString:
		s := it.Backing.AsString()
		if it.Index >= len(s.Data) {
			return value.Nil, fmt.Errorf("get_next called past the end of a string iterator")
		}
		ch := value.NewString(string(s.Data[it.Index]))
		vm.gc.Allocate(ch)
		it.Index++
		return value.FromManaged(value.KindString, ch), nil
	case value.IterRange:
		v := value.Int(it.Cur)
		it.Cur += it.Step
		return v, nil
	case value.IterObject:
		result := vm.invoke(it.GetNextFn.AsFunction(), nil, it.This)
		return result, nil
	case value.IterCoroutine:
		v, ok := it.TakeCached()
		if !ok {
			return value.Nil, fmt.Errorf("get_next called without a preceding has_next")
		}
		return v, nil
	default:
		return value.Nil, fmt.Errorf("unknown iterator kind")
	}
}
