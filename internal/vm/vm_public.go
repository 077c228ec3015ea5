package vm

import (
	"github.com/funvibe/funscript/internal/value"
)

// Define binds a global, interning its name if it is new.
func (vm *VM) Define(name string, v value.Value) {
	vm.setGlobal(vm.table.Intern(name), v)
}

// DefineFunc binds a Go function as a global.
func (vm *VM) DefineFunc(name string, arity int, fn value.NativeFunc) {
	vm.Define(name, value.FromNative(value.NewNative(name, arity, fn)))
}

// Global reads a global by name. The second result is false when the global
// was never assigned.
func (vm *VM) Global(name string) (value.Value, bool) {
	idx, ok := vm.table.Lookup(name)
	if !ok {
		return value.Undefined(), false
	}
	return vm.getGlobal(idx)
}
