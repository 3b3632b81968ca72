// Package loader implements the `load_element` module resolution and
// once-per-file caching pipeline (spec.md §6 "Search paths"), grounded on
// original_source/element.h's Context::resolveFile/Context::doString. It
// knows how to find and read a file; it delegates actually compiling and
// running the bytes it finds to an Evaluator supplied by the host, since
// that needs the VM/symbol table/constant pool this package must stay
// independent of.
package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/element-run/element/internal/value"
)

// DefaultExtension is appended to a requested path with no extension of its
// own (spec.md §6: "Missing extension defaults to `.element`").
const DefaultExtension = ".element"

// Evaluator compiles and runs the bytes read from a resolved path, returning
// the Module it built (so the Loader can cache Module.Result) and that
// module's evaluation result.
type Evaluator func(filename string, src []byte) (*value.Module, value.Value, error)

// Loader resolves relative `load_element` requests against the three-tier
// search path and memoizes results per absolute path so a file already
// loaded is evaluated exactly once (spec.md §6 "once-per-file semantics").
type Loader struct {
	// stack holds the directory of every file currently mid-evaluation,
	// innermost last; Load pushes on entry and pops on exit so a nested
	// load_element resolves relative to the file issuing it, not the
	// original entry script (spec.md §6 tier 1).
	stack []string

	// searchPaths reads the live, possibly still-growing list of
	// user-registered paths (native add_search_path) — a func rather than a
	// snapshot so paths added mid-run are visible to later loads.
	searchPaths func() []string

	stdlibDir string

	byPath map[string]*value.Module
}

// New builds a Loader. entryDir is the directory of the program's initial
// file (pushed as the bottom of the stack so even the first load_element
// call has a tier-1 base), exeDir is the running executable's directory
// (stdlibDir = exeDir/../stdlib, spec.md §6 tier 3), and searchPaths reads
// the VM's live user search-path list (tier 2).
func New(entryDir, exeDir string, searchPaths func() []string) *Loader {
	l := &Loader{
		searchPaths: searchPaths,
		stdlibDir:   filepath.Join(exeDir, "..", "stdlib"),
		byPath:      make(map[string]*value.Module),
	}
	if entryDir != "" {
		l.stack = append(l.stack, entryDir)
	}
	return l
}

// Load resolves requested against the search tiers, then either returns the
// cached result of a prior load of the same absolute path or reads the file
// and runs eval against its bytes, caching the result for next time.
func (l *Loader) Load(requested string, eval Evaluator) (value.Value, error) {
	abs, err := l.resolve(requested)
	if err != nil {
		return value.Nil, err
	}
	if m, ok := l.byPath[abs]; ok && m.HasResult {
		return m.Result, nil
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		return value.Nil, fmt.Errorf("file-not-found")
	}

	l.stack = append(l.stack, filepath.Dir(abs))
	module, result, err := eval(abs, src)
	l.stack = l.stack[:len(l.stack)-1]
	if err != nil {
		return value.Nil, err
	}

	module.Result, module.HasResult = result, true
	l.byPath[abs] = module
	return result, nil
}

// resolve applies the default extension, then tries each tier in order:
// the current file's directory, every user search path, and the stdlib
// directory, returning the first candidate that exists on disk.
func (l *Loader) resolve(requested string) (string, error) {
	name := requested
	if filepath.Ext(name) == "" {
		name += DefaultExtension
	}
	if filepath.IsAbs(name) {
		if fileExists(name) {
			return name, nil
		}
		return "", fmt.Errorf("file-not-found")
	}

	var candidates []string
	if len(l.stack) > 0 {
		candidates = append(candidates, l.stack[len(l.stack)-1])
	}
	if l.searchPaths != nil {
		candidates = append(candidates, l.searchPaths()...)
	}
	candidates = append(candidates, l.stdlibDir)

	for _, dir := range candidates {
		cand := filepath.Join(dir, name)
		if fileExists(cand) {
			return filepath.Abs(cand)
		}
	}
	return "", fmt.Errorf("file-not-found")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
