package vm

import (
	"fmt"
	"math"
	"strings"

	"github.com/funvibe/funscript/internal/config"
	"github.com/funvibe/funscript/internal/scope"
	"github.com/funvibe/funscript/internal/value"
)

// builtinNames fixes the global indices of the built-ins. Every program a VM
// runs must be compiled against a table seeded in this order.
var builtinNames = []string{
	config.PrintFuncName,
	config.EvalFuncName,
	config.QueueMicrotaskFuncName,
	config.NaNName,
	config.InfinityName,
}

// NewGlobalTable returns a global table with the built-in names interned.
func NewGlobalTable() *scope.GlobalTable {
	t := scope.NewGlobalTable()
	for _, name := range builtinNames {
		t.Intern(name)
	}
	return t
}

func (vm *VM) installBuiltins() {
	vm.evalFn = value.NewNative(config.EvalFuncName, 1, vm.indirectEval)
	builtins := map[string]value.Value{
		config.PrintFuncName:          value.FromNative(value.NewNative(config.PrintFuncName, 0, vm.print)),
		config.EvalFuncName:           value.FromNative(vm.evalFn),
		config.QueueMicrotaskFuncName: value.FromNative(value.NewNative(config.QueueMicrotaskFuncName, 1, vm.queueMicrotask)),
		config.NaNName:                value.Number(math.NaN()),
		config.InfinityName:           value.Number(math.Inf(1)),
	}
	for _, name := range builtinNames {
		vm.Define(name, builtins[name])
	}
}

// print writes its arguments separated by spaces. Strings print as-is,
// everything else as Inspect renders it.
func (vm *VM) print(_ value.CallContext, _ value.Value, args []value.Value) (value.Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		if a.IsString() {
			parts[i] = a.AsString()
		} else {
			parts[i] = a.Inspect()
		}
	}
	if _, err := fmt.Fprintln(vm.out, strings.Join(parts, " ")); err != nil {
		return value.Undefined(), err
	}
	return value.Undefined(), nil
}

func (vm *VM) queueMicrotask(_ value.CallContext, _ value.Value, args []value.Value) (value.Value, error) {
	if len(args) == 0 || !args[0].IsCallable() {
		return value.Undefined(), value.Errorf(value.TypeError, "The callback provided as parameter 1 is not a function.")
	}
	vm.Enqueue(args[0], nil)
	return value.Undefined(), nil
}

// Enqueue appends a call of fn to the job queue.
func (vm *VM) Enqueue(fn value.Value, args []value.Value) {
	vm.jobs = append(vm.jobs, job{fn: fn, args: args})
}

// PendingJobs is the number of queued jobs.
func (vm *VM) PendingJobs() int { return len(vm.jobs) }

// RunJobs drains the job queue in FIFO order, including jobs queued while
// it runs. The first job that throws stops the drain; later jobs stay queued.
// The whole drain runs under one step budget, and the context is checked
// before every job.
func (vm *VM) RunJobs() error {
	if !vm.draining {
		if len(vm.frames) == 0 {
			vm.steps = 0
		}
		vm.draining = true
		defer func() { vm.draining = false }()
	}
	for len(vm.jobs) > 0 {
		if vm.Context != nil {
			if err := vm.Context.Err(); err != nil {
				return err
			}
		}
		j := vm.jobs[0]
		vm.jobs[0] = job{}
		vm.jobs = vm.jobs[1:]
		if _, err := vm.Call(j.fn, value.Undefined(), j.args); err != nil {
			return err
		}
	}
	return nil
}
