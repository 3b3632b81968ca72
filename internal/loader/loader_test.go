package loader_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/element-run/element/internal/loader"
	"github.com/element-run/element/internal/value"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadResolvesRelativeToEntryDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "helper.element", "42")

	l := loader.New(dir, t.TempDir(), nil)
	calls := 0
	eval := func(filename string, src []byte) (*value.Module, value.Value, error) {
		calls++
		require.Equal(t, "42", string(src))
		return &value.Module{Filename: filename}, value.Int(42), nil
	}

	result, err := l.Load("helper", eval)
	require.NoError(t, err)
	require.EqualValues(t, 42, result.AsInt())
	require.Equal(t, 1, calls)
}

func TestLoadMemoizesPerAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "once.element", "1")

	l := loader.New(dir, t.TempDir(), nil)
	calls := 0
	eval := func(filename string, src []byte) (*value.Module, value.Value, error) {
		calls++
		return &value.Module{Filename: filename}, value.Int(int32(calls)), nil
	}

	first, err := l.Load("once.element", eval)
	require.NoError(t, err)
	second, err := l.Load("once.element", eval)
	require.NoError(t, err)

	require.Equal(t, 1, calls)
	require.Equal(t, first.AsInt(), second.AsInt())
}

func TestLoadFallsBackToUserSearchPath(t *testing.T) {
	entryDir := t.TempDir()
	extra := t.TempDir()
	writeFile(t, extra, "lib.element", "lib")

	l := loader.New(entryDir, t.TempDir(), func() []string { return []string{extra} })
	eval := func(filename string, src []byte) (*value.Module, value.Value, error) {
		s := value.NewString(string(src))
		return &value.Module{Filename: filename}, value.FromManaged(value.KindString, s), nil
	}

	result, err := l.Load("lib", eval)
	require.NoError(t, err)
	require.Equal(t, "lib", result.AsString().Data)
}

func TestLoadReturnsFileNotFound(t *testing.T) {
	l := loader.New(t.TempDir(), t.TempDir(), nil)
	_, err := l.Load("does-not-exist", func(string, []byte) (*value.Module, value.Value, error) {
		t.Fatal("eval should not be called for a missing file")
		return nil, value.Nil, nil
	})
	require.EqualError(t, err, "file-not-found")
}
