package vm_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/element-run/element/internal/compiler"
	"github.com/element-run/element/internal/logger"
	"github.com/element-run/element/internal/parser"
	"github.com/element-run/element/internal/semantic"
	"github.com/element-run/element/internal/symbol"
	"github.com/element-run/element/internal/value"
	"github.com/element-run/element/internal/vm"
)

// run compiles and executes src against an empty native catalog, failing the
// test immediately if any stage errors.
func run(t *testing.T, src string, catalog map[string]value.NativeFunc) value.Value {
	t.Helper()
	main, err := parser.Parse(src)
	require.NoError(t, err)

	nativeNames := make([]string, 0, len(catalog))
	for name := range catalog {
		nativeNames = append(nativeNames, name)
	}
	an := semantic.New(nativeNames)
	require.NoError(t, an.Analyze(main))

	table := symbol.NewTable()
	res, err := compiler.Compile(main, table)
	require.NoError(t, err)

	module := &value.Module{Filename: "test", Globals: make([]value.Value, len(an.GlobalNames()))}
	log := logger.New(&bytes.Buffer{})
	machine, err := vm.NewFromResult(res, table, catalog, module, log)
	require.NoError(t, err)

	return machine.RunMain(module, res.Code)
}

func TestFibonacciRecursion(t *testing.T) {
	src := `
		fib = :(n) {
			if (n < 2) { return n }
			return fib(n - 1) + fib(n - 2)
		};
		fib(10)
	`
	result := run(t, src, nil)
	require.Equal(t, value.KindInt, result.Kind())
	require.EqualValues(t, 55, result.AsInt())
}

func TestClosureOverLoopVariable(t *testing.T) {
	src := `
		fns = [];
		for (i in [0, 1, 2]) {
			fns << :() { i }
		};
		out = [];
		for (f in fns) {
			out << f()
		};
		out
	`
	result := run(t, src, nil)
	require.Equal(t, value.KindArray, result.Kind())
	arr := result.AsArray()
	require.Len(t, arr.Elements, 3)
	for i, v := range arr.Elements {
		require.EqualValues(t, i, v.AsInt())
	}
}

func TestCoroutineSequence(t *testing.T) {
	src := `
		gen = make_coroutine(:() {
			yield 1;
			yield 2;
			yield 3
		});
		out = [];
		for (v in gen) {
			out << v
		};
		out
	`
	catalog := map[string]value.NativeFunc{
		"make_coroutine": func(ctx value.NativeContext, args []value.Value) (value.Value, error) {
			return ctx.NewCoroutine(args[0])
		},
	}
	result := run(t, src, catalog)
	require.Equal(t, value.KindArray, result.Kind())
	arr := result.AsArray()
	require.Len(t, arr.Elements, 3)
	require.EqualValues(t, 1, arr.Elements[0].AsInt())
	require.EqualValues(t, 2, arr.Elements[1].AsInt())
	require.EqualValues(t, 3, arr.Elements[2].AsInt())
}

func TestPrototypeMemberResolution(t *testing.T) {
	src := `
		base = [= greeting = "hi" ];
		child = [= proto = base ];
		child.greeting
	`
	result := run(t, src, nil)
	require.Equal(t, value.KindString, result.Kind())
	require.Equal(t, "hi", result.AsString().Data)
}

func TestShortCircuitWithControlFlow(t *testing.T) {
	src := `
		f = :(x) {
			x > 0 or return -1;
			x + 5
		};
		[f(1), f(-1)]
	`
	result := run(t, src, nil)
	require.Equal(t, value.KindArray, result.Kind())
	arr := result.AsArray()
	require.Len(t, arr.Elements, 2)
	require.EqualValues(t, 6, arr.Elements[0].AsInt())
	require.EqualValues(t, -1, arr.Elements[1].AsInt())
}

func TestRuntimeFaultProducesErrorValue(t *testing.T) {
	src := `1 / 0`
	result := run(t, src, nil)
	require.Equal(t, value.KindError, result.Kind())
	require.Equal(t, "runtime-error", result.AsError().Message)
}
