package natives_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/element-run/element/internal/compiler"
	"github.com/element-run/element/internal/logger"
	"github.com/element-run/element/internal/natives"
	"github.com/element-run/element/internal/parser"
	"github.com/element-run/element/internal/semantic"
	"github.com/element-run/element/internal/symbol"
	"github.com/element-run/element/internal/value"
	"github.com/element-run/element/internal/vm"
)

func run(t *testing.T, src string) value.Value {
	t.Helper()
	catalog := natives.Catalog()
	nativeNames := make([]string, 0, len(catalog))
	for name := range catalog {
		nativeNames = append(nativeNames, name)
	}

	main, err := parser.Parse(src)
	require.NoError(t, err)

	an := semantic.New(nativeNames)
	require.NoError(t, an.Analyze(main))

	table := symbol.NewTable()
	res, err := compiler.Compile(main, table)
	require.NoError(t, err)

	module := &value.Module{Filename: "test", Globals: make([]value.Value, len(an.GlobalNames()))}
	machine, err := vm.NewFromResult(res, table, catalog, module, logger.New(&bytes.Buffer{}))
	require.NoError(t, err)

	return machine.RunMain(module, res.Code)
}

func TestRangeDrivesForLoop(t *testing.T) {
	src := `
		out = [];
		for (i in range(3)) { out << i };
		out
	`
	result := run(t, src)
	arr := result.AsArray()
	require.Len(t, arr.Elements, 3)
	require.EqualValues(t, 0, arr.Elements[0].AsInt())
	require.EqualValues(t, 2, arr.Elements[2].AsInt())
}

func TestRangeWithFromAndStep(t *testing.T) {
	src := `
		out = [];
		for (i in range(10, 0, -2)) { out << i };
		out
	`
	result := run(t, src)
	arr := result.AsArray()
	require.Len(t, arr.Elements, 5)
	require.EqualValues(t, 10, arr.Elements[0].AsInt())
	require.EqualValues(t, 2, arr.Elements[4].AsInt())
}

func TestMakeErrorAndIsError(t *testing.T) {
	src := `
		e = make_error("boom");
		[is_error(e), is_error(1), typeof(e)]
	`
	result := run(t, src)
	arr := result.AsArray()
	require.True(t, arr.Elements[0].AsBool())
	require.False(t, arr.Elements[1].AsBool())
	require.Equal(t, "error", arr.Elements[2].AsString().Data)
}

func TestToStringAndToNumber(t *testing.T) {
	src := `[to_string(42), to_number("42") + 1, to_number("3.5")]`
	result := run(t, src)
	arr := result.AsArray()
	require.Equal(t, "42", arr.Elements[0].AsString().Data)
	require.EqualValues(t, 43, arr.Elements[1].AsInt())
	require.EqualValues(t, 3.5, arr.Elements[2].AsFloat())
}

func TestSizeMatchesSizeOfOperator(t *testing.T) {
	src := `[size([1, 2, 3]), size("hello"), #[1, 2, 3]]`
	result := run(t, src)
	arr := result.AsArray()
	require.EqualValues(t, 3, arr.Elements[0].AsInt())
	require.EqualValues(t, 5, arr.Elements[1].AsInt())
	require.EqualValues(t, 3, arr.Elements[2].AsInt())
}

func TestMemoryStatsExposesHeapCounters(t *testing.T) {
	src := `
		x = "allocated";
		stats = memory_stats();
		stats.strings_live
	`
	result := run(t, src)
	require.Equal(t, value.KindInt, result.Kind())
	require.GreaterOrEqual(t, result.AsInt(), int32(1))
}

func TestGarbageCollectIsCallable(t *testing.T) {
	src := `garbage_collect(); garbage_collect(4); 1`
	result := run(t, src)
	require.EqualValues(t, 1, result.AsInt())
}
