package vm

import (
	"fmt"

	"github.com/element-run/element/internal/compiler"
	"github.com/element-run/element/internal/logger"
	"github.com/element-run/element/internal/symbol"
	"github.com/element-run/element/internal/value"
)

// NewFromResult builds a VM ready to run res: it resolves res.NativeNames
// against catalog (by name) into the index-addressed slice OpLoadNative
// expects, then binds every CodeObject in res.Pool to module so OpLoadGlobal
// and its siblings see the right globals (spec §4.1 "NativeNames ... the
// index a Loader/VM needs").
func NewFromResult(res *compiler.Result, table *symbol.Table, catalog map[string]value.NativeFunc, module *value.Module, log *logger.Logger) (*VM, error) {
	natives := make([]value.NativeFunc, len(res.NativeNames))
	for i, name := range res.NativeNames {
		fn, ok := catalog[name]
		if !ok {
			return nil, fmt.Errorf("unknown native function %q", name)
		}
		natives[i] = fn
	}
	BindModule(res.Pool, module)
	vm := New(res.Pool, table, natives, log)
	vm.RegisterModule(module)
	return vm, nil
}
