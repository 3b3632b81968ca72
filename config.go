// Package element is the embedding API: a RuntimeConfig builds a Runtime,
// which owns one VM, one symbol table, one constant pool, and one module
// cache for a whole program (spec.md §6), mirroring how wazero.RuntimeConfig
// builds a wazero.Runtime owning one wasm.Store.
package element

// RuntimeConfig controls the behavior of a Runtime built from it: GC
// pacing, module search paths, and debug dump flags. The native-function
// catalog is not configurable here. The zero-value-safe NewRuntimeConfig applies the defaults a
// CLI invocation with no flags would want.
type RuntimeConfig struct {
	// gcStepsPerCollect is the steps budget passed to Collector.Collect on
	// each automatic collection point (spec §4.4's "steps" parameter); a
	// native garbage_collect() call can still request its own budget.
	gcStepsPerCollect int

	// searchPaths seeds the user-search-path tier (spec §6 tier 2) before
	// any script calls add_search_path.
	searchPaths []string

	// debugDumpAST/Symbols/Constants mirror the `-da`/`-ds`/`-dc` CLI flags
	// (spec §6). Runtime does not read them: Eval and EvalFile print no
	// dumps, and cmd/element renders its dumps itself.
	debugDumpAST       bool
	debugDumpSymbols   bool
	debugDumpConstants bool
}

// engineLessConfig avoids copy/pasting the wrong defaults across every
// constructor, same role as wazero's package-level default.
var engineLessConfig = &RuntimeConfig{
	gcStepsPerCollect: 256,
}

// NewRuntimeConfig returns a RuntimeConfig with sensible defaults: a modest
// per-cycle GC step budget and no search paths or debug dumps.
func NewRuntimeConfig() *RuntimeConfig {
	return engineLessConfig.clone()
}

func (c *RuntimeConfig) clone() *RuntimeConfig {
	ret := *c
	ret.searchPaths = append([]string(nil), c.searchPaths...)
	return &ret
}

// WithGCStepsPerCollect overrides how many increments of the incremental
// collector one automatic collection point advances (spec §4.4).
func (c *RuntimeConfig) WithGCStepsPerCollect(steps int) *RuntimeConfig {
	ret := c.clone()
	ret.gcStepsPerCollect = steps
	return ret
}

// WithSearchPath appends a directory to the module search path (spec §6
// tier 2), in addition to whatever a running script adds at runtime via
// add_search_path.
func (c *RuntimeConfig) WithSearchPath(dir string) *RuntimeConfig {
	ret := c.clone()
	ret.searchPaths = append(ret.searchPaths, dir)
	return ret
}

// WithDebugDumpAST/Symbols/Constants set the `-da`/`-ds`/`-dc` flags
// (spec §6) on the returned config; Eval and EvalFile do not act on them.
func (c *RuntimeConfig) WithDebugDumpAST(enabled bool) *RuntimeConfig {
	ret := c.clone()
	ret.debugDumpAST = enabled
	return ret
}

func (c *RuntimeConfig) WithDebugDumpSymbols(enabled bool) *RuntimeConfig {
	ret := c.clone()
	ret.debugDumpSymbols = enabled
	return ret
}

func (c *RuntimeConfig) WithDebugDumpConstants(enabled bool) *RuntimeConfig {
	ret := c.clone()
	ret.debugDumpConstants = enabled
	return ret
}
