package vm

import (
	"fmt"
	"math"

	"github.com/element-run/element/internal/bytecode"
	"github.com/element-run/element/internal/value"
)

func isBinaryOp(op bytecode.Opcode) bool {
	switch op {
	case bytecode.OpAdd, bytecode.OpSubtract, bytecode.OpMultiply, bytecode.OpDivide,
		bytecode.OpPower, bytecode.OpModulo, bytecode.OpConcatenate, bytecode.OpXor,
		bytecode.OpEqual, bytecode.OpNotEqual, bytecode.OpLess, bytecode.OpGreater,
		bytecode.OpLessEqual, bytecode.OpGreaterEqual:
		return true
	}
	return false
}

func isUnaryOp(op bytecode.Opcode) bool {
	switch op {
	case bytecode.OpUnaryPlus, bytecode.OpUnaryMinus, bytecode.OpUnaryNot,
		bytecode.OpUnaryConcatenate, bytecode.OpUnarySizeOf:
		return true
	}
	return false
}

func isNumber(v value.Value) bool {
	return v.Kind() == value.KindInt || v.Kind() == value.KindFloat
}

func asFloat(v value.Value) float64 {
	if v.Kind() == value.KindInt {
		return float64(v.AsInt())
	}
	return float64(v.AsFloat())
}

func (vm *VM) execBinary(ctx *Context, op bytecode.Opcode) error {
	b := ctx.pop()
	a := ctx.pop()

	switch op {
	case bytecode.OpEqual:
		ctx.push(value.Bool(vm.valuesEqual(a, b)))
		return nil
	case bytecode.OpNotEqual:
		ctx.push(value.Bool(!vm.valuesEqual(a, b)))
		return nil
	case bytecode.OpXor:
		ctx.push(value.Bool(a.Truthy() != b.Truthy()))
		return nil
	case bytecode.OpConcatenate:
		ctx.push(vm.concatenate(a, b))
		return nil
	}

	if op == bytecode.OpLess || op == bytecode.OpGreater || op == bytecode.OpLessEqual || op == bytecode.OpGreaterEqual {
		result, err := vm.compare(op, a, b)
		if err != nil {
			return err
		}
		ctx.push(result)
		return nil
	}

	result, err := vm.arithmetic(op, a, b)
	if err != nil {
		return err
	}
	ctx.push(result)
	return nil
}

func (vm *VM) arithmetic(op bytecode.Opcode, a, b value.Value) (value.Value, error) {
	if op == bytecode.OpAdd {
		return vm.add(a, b)
	}
	if !isNumber(a) || !isNumber(b) {
		return value.Nil, fmt.Errorf("type mismatch: %s is not a number", notNumberKind(a, b))
	}
	bothInt := a.Kind() == value.KindInt && b.Kind() == value.KindInt
	switch op {
	case bytecode.OpSubtract:
		if bothInt {
			return value.Int(a.AsInt() - b.AsInt()), nil
		}
		return value.Float(float32(asFloat(a) - asFloat(b))), nil
	case bytecode.OpMultiply:
		if bothInt {
			return value.Int(a.AsInt() * b.AsInt()), nil
		}
		return value.Float(float32(asFloat(a) * asFloat(b))), nil
	case bytecode.OpDivide:
		if bothInt {
			if b.AsInt() == 0 {
				return value.Nil, fmt.Errorf("division by zero")
			}
			return value.Int(a.AsInt() / b.AsInt()), nil
		}
		return value.Float(float32(asFloat(a) / asFloat(b))), nil
	case bytecode.OpModulo:
		if bothInt {
			if b.AsInt() == 0 {
				return value.Nil, fmt.Errorf("division by zero")
			}
			return value.Int(a.AsInt() % b.AsInt()), nil
		}
		return value.Float(float32(math.Mod(asFloat(a), asFloat(b)))), nil
	case bytecode.OpPower:
		res := math.Pow(asFloat(a), asFloat(b))
		// `^` returns int whenever the LHS is int, regardless of the RHS
		// (spec §4.5 quirk, replicated verbatim): 2 ^ 0.5 is Int(1), not
		// Float(1.414...).
		if a.Kind() == value.KindInt {
			return value.Int(int32(res)), nil
		}
		return value.Float(float32(res)), nil
	}
	return value.Nil, fmt.Errorf("unsupported arithmetic opcode %s", op)
}

func notNumberKind(a, b value.Value) string {
	if !isNumber(a) {
		return a.Kind().String()
	}
	return b.Kind().String()
}

// add implements `+`: numeric addition, array concatenation, object merge
// (right-hand member wins on collision), and an explicit rejection of
// string `+` in favor of `~` (spec §4.3 "+ on strings is a type error").
func (vm *VM) add(a, b value.Value) (value.Value, error) {
	if isNumber(a) && isNumber(b) {
		if a.Kind() == value.KindFloat || b.Kind() == value.KindFloat {
			return value.Float(float32(asFloat(a) + asFloat(b))), nil
		}
		return value.Int(a.AsInt() + b.AsInt()), nil
	}
	if a.Kind() == value.KindArray && b.Kind() == value.KindArray {
		elems := append(append([]value.Value(nil), a.AsArray().Elements...), b.AsArray().Elements...)
		arr := value.NewArray(elems)
		vm.gc.Allocate(arr)
		return value.FromManaged(value.KindArray, arr), nil
	}
	if a.Kind() == value.KindObject && b.Kind() == value.KindObject {
		merged := value.Merge(a.AsObject(), b.AsObject())
		vm.gc.Allocate(merged)
		return value.FromManaged(value.KindObject, merged), nil
	}
	if a.Kind() == value.KindString && b.Kind() == value.KindString {
		return value.Nil, fmt.Errorf("cannot add strings; use ~ to concatenate")
	}
	return value.Nil, fmt.Errorf("type mismatch: cannot add %s and %s", a.Kind(), b.Kind())
}

func (vm *VM) compare(op bytecode.Opcode, a, b value.Value) (value.Value, error) {
	if isNumber(a) && isNumber(b) {
		af, bf := asFloat(a), asFloat(b)
		return value.Bool(compareOrdered(op, af < bf, af > bf)), nil
	}
	if a.Kind() == value.KindString && b.Kind() == value.KindString {
		sa, sb := a.AsString().Data, b.AsString().Data
		return value.Bool(compareOrdered(op, sa < sb, sa > sb)), nil
	}
	return value.Nil, fmt.Errorf("type mismatch: cannot compare %s and %s", a.Kind(), b.Kind())
}

func compareOrdered(op bytecode.Opcode, less, greater bool) bool {
	switch op {
	case bytecode.OpLess:
		return less
	case bytecode.OpGreater:
		return greater
	case bytecode.OpLessEqual:
		return less || !greater
	case bytecode.OpGreaterEqual:
		return greater || !less
	}
	return false
}

// valuesEqual implements `==`: numeric kinds compare by value across
// int/float, every other kind requires matching Kind, and managed kinds
// other than string/error compare by heap identity (spec §4.3).
func (vm *VM) valuesEqual(a, b value.Value) bool {
	if a.Kind() == value.KindNil || b.Kind() == value.KindNil {
		return a.Kind() == b.Kind()
	}
	if isNumber(a) && isNumber(b) {
		return asFloat(a) == asFloat(b)
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case value.KindBool:
		return a.AsBool() == b.AsBool()
	case value.KindHash:
		return a.AsHash() == b.AsHash()
	case value.KindString:
		return a.AsString().Data == b.AsString().Data
	case value.KindError:
		return a.AsError().Message == b.AsError().Message
	default:
		return a.Managed() == b.Managed()
	}
}

func stringify(v value.Value) string {
	if v.Kind() == value.KindString {
		return v.AsString().Data
	}
	return v.String()
}

func (vm *VM) concatenate(a, b value.Value) value.Value {
	s := value.NewString(stringify(a) + stringify(b))
	vm.gc.Allocate(s)
	return value.FromManaged(value.KindString, s)
}

func (vm *VM) execUnary(ctx *Context, op bytecode.Opcode) error {
	v := ctx.pop()
	switch op {
	case bytecode.OpUnaryPlus:
		if !isNumber(v) {
			return fmt.Errorf("type mismatch: unary + requires a number, got %s", v.Kind())
		}
		ctx.push(v)
	case bytecode.OpUnaryMinus:
		switch v.Kind() {
		case value.KindInt:
			ctx.push(value.Int(-v.AsInt()))
		case value.KindFloat:
			ctx.push(value.Float(-v.AsFloat()))
		default:
			return fmt.Errorf("type mismatch: unary - requires a number, got %s", v.Kind())
		}
	case bytecode.OpUnaryNot:
		ctx.push(value.Bool(!v.Truthy()))
	case bytecode.OpUnaryConcatenate:
		s := value.NewString(stringify(v))
		vm.gc.Allocate(s)
		ctx.push(value.FromManaged(value.KindString, s))
	case bytecode.OpUnarySizeOf:
		n, err := sizeOf(v)
		if err != nil {
			return err
		}
		ctx.push(value.Int(int32(n)))
	default:
		return fmt.Errorf("unsupported unary opcode %s", op)
	}
	return nil
}

func sizeOf(v value.Value) (int, error) {
	switch v.Kind() {
	case value.KindArray:
		return len(v.AsArray().Elements), nil
	case value.KindString:
		return len(v.AsString().Data), nil
	case value.KindObject:
		n := len(v.AsObject().Members) - 1 // exclude the always-present proto slot
		if n < 0 {
			n = 0
		}
		return n, nil
	default:
		return 0, fmt.Errorf("type mismatch: # requires an array, string or object, got %s", v.Kind())
	}
}
