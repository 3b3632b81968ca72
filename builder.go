package element

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/element-run/element/internal/ast"
	"github.com/element-run/element/internal/compiler"
	"github.com/element-run/element/internal/loader"
	"github.com/element-run/element/internal/logger"
	"github.com/element-run/element/internal/natives"
	"github.com/element-run/element/internal/parser"
	"github.com/element-run/element/internal/semantic"
	"github.com/element-run/element/internal/symbol"
	"github.com/element-run/element/internal/value"
	"github.com/element-run/element/internal/vm"
)

// Runtime is one program's execution environment: a single VM, symbol
// table and constant pool shared by every Eval/EvalFile call it serves
// (spec.md §5 "Shared resources ... are process-wide within the VM"), a
// native-function catalog, and a module loader, wired together per the
// RuntimeConfig that built it. Each Eval call compiles its source
// incrementally against the Runtime's running pool/native table (spec.md §6
// bytecode blob layout: "new symbols this blob"), so a REPL line can define
// a closure and a later line can still call it against live globals.
type Runtime struct {
	cfg     *RuntimeConfig
	table   *symbol.Table
	pool    *symbol.Pool
	catalog map[string]value.NativeFunc
	natIdx  map[string]int32
	globals map[string]int32
	machine *vm.VM
	loader  *loader.Loader
	log     *logger.Logger
	module  *value.Module
}

// NewRuntime builds a Runtime: an empty symbol table and constant pool, a VM
// bound to them with no natives yet resolved, one default Module whose
// globals persist across every Eval call, and a loader wired to the VM's
// LoadModule hook for nested load_element calls.
func NewRuntime(cfg *RuntimeConfig) *Runtime {
	if cfg == nil {
		cfg = NewRuntimeConfig()
	}
	table := symbol.NewTable()
	pool := symbol.NewPool()
	log := logger.New(&bytes.Buffer{})
	machine := vm.New(pool, table, nil, log)

	module := &value.Module{Filename: ""}
	machine.RegisterModule(module)

	rt := &Runtime{
		cfg:     cfg,
		table:   table,
		pool:    pool,
		catalog: natives.Catalog(),
		natIdx:  make(map[string]int32),
		globals: make(map[string]int32),
		machine: machine,
		log:     log,
		module:  module,
	}
	for _, dir := range cfg.searchPaths {
		machine.AddSearchPath(dir)
	}
	rt.loader = loader.New("", executableDir(), machine.SearchPaths)
	machine.SetLoader(rt.loadModule)
	return rt
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		wd, _ := os.Getwd()
		return wd
	}
	return filepath.Dir(exe)
}

// CompiledUnit is one source unit carried through parse/analyze/compile but
// not yet bound to a Module or run, so a caller (the CLI's `-d{a,s,c}` debug
// dumps, spec §6) can inspect the AST/constant pool before deciding whether
// to execute it at all.
type CompiledUnit struct {
	AST         *ast.FunctionNode
	Result      *compiler.Result
	GlobalNames []string
}

// Compile parses, analyzes and incrementally compiles src against the
// Runtime's shared symbol table/constant pool/native index, without running
// it or touching any Module's globals.
func (r *Runtime) Compile(src string) (*CompiledUnit, error) {
	main, err := parser.Parse(src)
	if err != nil {
		return nil, err
	}

	nativeNames := make([]string, 0, len(r.catalog))
	for name := range r.catalog {
		nativeNames = append(nativeNames, name)
	}
	// Global slot numbering is shared across every compile this Runtime ever
	// runs (like the pool and native index), so a name already assigned a
	// slot by an earlier REPL line keeps it; a Module's Globals slice is
	// grown to fit whatever slot indices Run later touches for it.
	an := semantic.NewIncremental(nativeNames, r.globals)
	if err := an.Analyze(main); err != nil {
		return nil, err
	}

	res, err := compiler.CompileIncremental(main, r.table, r.pool, r.natIdx)
	if err != nil {
		return nil, err
	}
	return &CompiledUnit{AST: main, Result: res, GlobalNames: an.GlobalNames()}, nil
}

// Run grows the VM's native table with whatever names unit newly
// referenced, binds unit's constant pool to module, grows module's globals
// to cover every slot index declared so far, and runs unit's code to
// completion against module.
func (r *Runtime) Run(module *value.Module, unit *CompiledUnit) (value.Value, error) {
	if err := r.machine.GrowNatives(unit.Result.NativeNames, r.catalog); err != nil {
		return value.Nil, err
	}
	vm.BindModule(unit.Result.Pool, module)
	for len(module.Globals) < len(r.globals) {
		module.Globals = append(module.Globals, value.Nil)
	}
	return r.machine.RunMain(module, unit.Result.Code), nil
}

// EvalFile reads path and evaluates it as the Runtime's default module
// (spec §6: a FILE argument interprets that path to completion and exits).
func (r *Runtime) EvalFile(path string) (value.Value, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return value.Nil, fmt.Errorf("file-not-found")
	}
	r.module.Filename = path
	return r.evalAgainst(r.module, src)
}

// Eval compiles and runs src as one more statement against the Runtime's
// running default module and VM (spec §6 REPL: "each accepted line is
// evaluated standalone" but globals, the heap and the symbol table persist
// across lines).
func (r *Runtime) Eval(src string) (value.Value, error) {
	return r.evalAgainst(r.module, []byte(src))
}

// evalAgainst compiles src and immediately runs it against module; Eval,
// EvalFile and the loader's nested evaluator all go through this.
func (r *Runtime) evalAgainst(module *value.Module, src []byte) (value.Value, error) {
	unit, err := r.Compile(string(src))
	if err != nil {
		return value.Nil, err
	}
	return r.Run(module, unit)
}

// newModuleEvaluator builds the Evaluator the Loader uses for a freshly
// resolved file: each loaded module gets its own Module (its own globals),
// but shares this Runtime's VM, table, pool and native index, so a function
// it exports can still be called after the load_element call returns.
func (r *Runtime) newModuleEvaluator() loader.Evaluator {
	return func(filename string, src []byte) (*value.Module, value.Value, error) {
		module := &value.Module{Filename: filename}
		r.machine.RegisterModule(module)
		result, err := r.evalAgainst(module, src)
		return module, result, err
	}
}

// loadModule backs the VM's LoadModule hook (native load_element): it asks
// the Loader to resolve path against the search tiers and, on a cache miss,
// evaluate it as a fresh module sharing this Runtime's VM.
func (r *Runtime) loadModule(path string) (value.Value, error) {
	return r.loader.Load(path, r.newModuleEvaluator())
}

// SymbolTable exposes the Runtime's shared symbol table, used by the CLI's
// `-ds` debug dump.
func (r *Runtime) SymbolTable() *symbol.Table { return r.table }

// DefaultModule returns the Module every Eval/EvalFile call runs against
// (spec §6: "filename empty for the REPL's default module").
func (r *Runtime) DefaultModule() *value.Module { return r.module }

// AddSearchPath registers an additional module search directory up front,
// equivalent to a script calling add_search_path before anything else runs.
func (r *Runtime) AddSearchPath(path string) { r.machine.AddSearchPath(path) }

// Logger exposes the Runtime's diagnostic/stack-trace log (spec §7). The
// cmd/element CLI does not render it: after a failing call it prints only
// the error, or the Error value's message.
func (r *Runtime) Logger() *logger.Logger { return r.log }

// CollectGarbage runs one garbage-collection pass over the Runtime's heap,
// budgeted per the RuntimeConfig's GC step count (spec §4.4); the CLI calls
// this after each REPL line and after file evaluation (spec §6).
func (r *Runtime) CollectGarbage() { r.machine.CollectGarbage(r.cfg.gcStepsPerCollect) }
