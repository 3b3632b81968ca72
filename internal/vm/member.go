package vm

import (
	"fmt"

	"github.com/element-run/element/internal/value"
)

// execLoadMember resolves hash on obj's prototype chain, starting at obj
// itself and walking Proto() links until found, nil, or a cycle back to the
// object the walk started from. Missing members read as nil rather than
// faulting (spec §4.6).
//
// Unconditionally, regardless of hit or miss, the resolved-through object is
// stashed as ctx.lastObject for the next FunctionCall to pick up as `this` —
// the language's implicit method-binding mechanism, faithfully including its
// clobber-by-an-intervening-call quirk (see DESIGN.md).
func (vm *VM) execLoadMember(ctx *Context) error {
	hashV := ctx.pop()
	objV := ctx.pop()
	ctx.push(vm.lookupMember(objV, hashV.AsHash()))
	ctx.lastObject = objV
	return nil
}

func (vm *VM) lookupMember(objV value.Value, hash uint32) value.Value {
	obj := objV.AsObject()
	if obj == nil {
		return value.Nil
	}
	start := obj
	cur := obj
	for {
		if v, ok := cur.Get(hash); ok {
			return v
		}
		next := cur.Proto().AsObject()
		if next == nil || next == start || next == cur {
			return value.Nil
		}
		cur = next
	}
}

func (vm *VM) execStoreMember(ctx *Context, keep bool) error {
	hashV := ctx.pop()
	objV := ctx.pop()
	var val value.Value
	if keep {
		val = ctx.top()
	} else {
		val = ctx.pop()
	}
	return vm.storeMember(objV, hashV.AsHash(), val)
}

// storeMember overwrites hash wherever it already exists on the prototype
// chain; if no ancestor owns it, it is inserted fresh on the originating
// object (spec §4.6 "assignment through a prototype chain").
func (vm *VM) storeMember(objV value.Value, hash uint32, val value.Value) error {
	origin := objV.AsObject()
	if origin == nil {
		return fmt.Errorf("cannot assign a member on a non-object value")
	}
	cur := origin
	for {
		if _, ok := cur.Get(hash); ok {
			cur.Set(hash, val)
			vm.gc.WriteBarrier(cur, val.Managed())
			return nil
		}
		next := cur.Proto().AsObject()
		if next == nil || next == origin || next == cur {
			break
		}
		cur = next
	}
	origin.Set(hash, val)
	vm.gc.WriteBarrier(origin, val.Managed())
	return nil
}
