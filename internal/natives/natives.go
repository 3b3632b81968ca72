// Package natives implements the element standard native-function catalog
// (spec.md §6, SPEC_FULL.md §4): the small set of NativeFunc values the host
// registers with the Analyzer/VM before running a script. Each entry here is
// an idiomatic Go reimplementation of the corresponding wrapper in
// original_source/native.cpp, not a transliteration of it.
package natives

import (
	"fmt"
	"strconv"

	"github.com/element-run/element/internal/value"
)

// Catalog returns the full native-function table, keyed by the name scripts
// call them under. Pass this (or a subset) to semantic.New and vm.NewFromResult.
func Catalog() map[string]value.NativeFunc {
	return map[string]value.NativeFunc{
		"range":            rangeFn,
		"make_coroutine":   makeCoroutine,
		"make_error":       makeError,
		"is_error":         isError,
		"typeof":           typeOf,
		"to_string":        toString,
		"to_number":        toNumber,
		"size":             size,
		"print":            print_,
		"println":          println_,
		"garbage_collect":  garbageCollect,
		"memory_stats":     memoryStats,
		"add_search_path":  addSearchPath,
		"load_element":     loadElement,
	}
}

func argError(name, want string) error {
	return fmt.Errorf("function '%s' takes %s", name, want)
}

// range(to) / range(from, to) / range(from, to, step) builds a lazy Range
// iterator (value.IterRange), not a materialized array, so `for (i in
// range(n))` stays O(1) in memory regardless of n.
func rangeFn(ctx value.NativeContext, args []value.Value) (value.Value, error) {
	var from, to, step int32 = 0, 0, 1
	switch len(args) {
	case 1:
		if args[0].Kind() != value.KindInt {
			return value.Nil, argError("range(to)", "an integer argument")
		}
		to = args[0].AsInt()
	case 2:
		if args[0].Kind() != value.KindInt || args[1].Kind() != value.KindInt {
			return value.Nil, argError("range(from, to)", "integer arguments")
		}
		from, to = args[0].AsInt(), args[1].AsInt()
		if to < from {
			step = -1
		}
	case 3:
		if args[0].Kind() != value.KindInt || args[1].Kind() != value.KindInt || args[2].Kind() != value.KindInt {
			return value.Nil, argError("range(from, to, step)", "integer arguments")
		}
		from, to, step = args[0].AsInt(), args[1].AsInt(), args[2].AsInt()
		if step == 0 {
			return value.Nil, fmt.Errorf("function 'range(from, to, step)' requires a non-zero step")
		}
	default:
		return value.Nil, argError("range", "one, two or three arguments")
	}
	it := value.NewRangeIterator(from, to, step)
	ctx.Allocate(it)
	return value.FromManaged(value.KindIterator, it), nil
}

func makeCoroutine(ctx value.NativeContext, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil, argError("make_coroutine(fn)", "exactly one argument")
	}
	if args[0].Kind() != value.KindFunction {
		return value.Nil, argError("make_coroutine(fn)", "a function argument")
	}
	return ctx.NewCoroutine(args[0])
}

func makeError(ctx value.NativeContext, args []value.Value) (value.Value, error) {
	if len(args) != 1 || args[0].Kind() != value.KindString {
		return value.Nil, argError("make_error(message)", "exactly one string argument")
	}
	e := value.NewError(args[0].AsString().Data)
	ctx.Allocate(e)
	return value.FromManaged(value.KindError, e), nil
}

func isError(ctx value.NativeContext, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil, argError("is_error(value)", "exactly one argument")
	}
	return value.Bool(args[0].Kind() == value.KindError), nil
}

func typeOf(ctx value.NativeContext, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil, argError("typeof(value)", "exactly one argument")
	}
	s := value.NewString(args[0].Kind().String())
	ctx.Allocate(s)
	return value.FromManaged(value.KindString, s), nil
}

func toString(ctx value.NativeContext, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil, argError("to_string(value)", "exactly one argument")
	}
	var text string
	if args[0].Kind() == value.KindString {
		text = args[0].AsString().Data
	} else {
		text = args[0].String()
	}
	s := value.NewString(text)
	ctx.Allocate(s)
	return value.FromManaged(value.KindString, s), nil
}

// to_number(value) parses a string into int or float, passes numbers through
// unchanged, and errors on anything else.
func toNumber(ctx value.NativeContext, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil, argError("to_number(value)", "exactly one argument")
	}
	switch args[0].Kind() {
	case value.KindInt, value.KindFloat:
		return args[0], nil
	case value.KindString:
		s := args[0].AsString().Data
		if i, err := strconv.ParseInt(s, 10, 32); err == nil {
			return value.Int(int32(i)), nil
		}
		if f, err := strconv.ParseFloat(s, 32); err == nil {
			return value.Float(float32(f)), nil
		}
		return value.Nil, fmt.Errorf("to_number: %q is not a valid number", s)
	default:
		return value.Nil, fmt.Errorf("to_number: cannot convert %s to a number", args[0].Kind())
	}
}

// size(value) mirrors the `#` unary operator for arrays/strings/objects.
func size(ctx value.NativeContext, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil, argError("size(value)", "exactly one argument")
	}
	switch args[0].Kind() {
	case value.KindArray:
		return value.Int(int32(len(args[0].AsArray().Elements))), nil
	case value.KindString:
		return value.Int(int32(len(args[0].AsString().Data))), nil
	case value.KindObject:
		n := len(args[0].AsObject().Members) - 1
		if n < 0 {
			n = 0
		}
		return value.Int(int32(n)), nil
	default:
		return value.Nil, fmt.Errorf("size: %s has no size", args[0].Kind())
	}
}

func print_(ctx value.NativeContext, args []value.Value) (value.Value, error) {
	for _, a := range args {
		fmt.Print(stringOf(a))
	}
	return value.Int(int32(len(args))), nil
}

func println_(ctx value.NativeContext, args []value.Value) (value.Value, error) {
	for _, a := range args {
		fmt.Print(stringOf(a))
	}
	fmt.Println()
	return value.Int(int32(len(args))), nil
}

func stringOf(v value.Value) string {
	if v.Kind() == value.KindString {
		return v.AsString().Data
	}
	return v.String()
}

// garbage_collect([steps]) runs the collector; with no argument it drives a
// full cycle (spec §4.4's "steps" budget capped generously), matching
// natfn_garbagecollect's empty-args-means-full-collection behavior.
func garbageCollect(ctx value.NativeContext, args []value.Value) (value.Value, error) {
	switch len(args) {
	case 0:
		ctx.CollectGarbage(1 << 30)
	case 1:
		if args[0].Kind() != value.KindInt {
			return value.Nil, argError("garbage_collect(steps)", "a single integer argument")
		}
		ctx.CollectGarbage(int(args[0].AsInt()))
	default:
		return value.Nil, argError("garbage_collect", "zero or one arguments")
	}
	return value.Nil, nil
}

func memoryStats(ctx value.NativeContext, args []value.Value) (value.Value, error) {
	if len(args) != 0 {
		return value.Nil, argError("memory_stats()", "no arguments")
	}
	stats := ctx.MemoryStats()
	members := make([]value.Member, 0, len(stats))
	for name, n := range stats {
		members = append(members, value.Member{Hash: ctx.InternHash(name), Value: value.Int(int32(n))})
	}
	obj := value.NewObject(members)
	ctx.Allocate(obj)
	return value.FromManaged(value.KindObject, obj), nil
}

func addSearchPath(ctx value.NativeContext, args []value.Value) (value.Value, error) {
	if len(args) != 1 || args[0].Kind() != value.KindString {
		return value.Nil, argError("add_search_path(path)", "exactly one string argument")
	}
	ctx.AddSearchPath(args[0].AsString().Data)
	return value.Nil, nil
}

// load_element(path) resolves path against the loading file's directory,
// then any configured search paths, then <exe>/../stdlib, evaluating
// it once and caching the result: a second load_element of the same
// resolved path returns the cached Module.result without re-running it
// (spec §6).
func loadElement(ctx value.NativeContext, args []value.Value) (value.Value, error) {
	if len(args) != 1 || args[0].Kind() != value.KindString {
		return value.Nil, argError("load_element(path)", "exactly one string argument")
	}
	return ctx.LoadModule(args[0].AsString().Data)
}
