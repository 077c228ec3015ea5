// Package vm executes compiled programs. The interpreter keeps an operand
// stack, a stack of call frames, and a chain of runtime scope frames per
// call; thrown values unwind to the innermost active try handler.
package vm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/funvibe/funscript/internal/bytecode"
	"github.com/funvibe/funscript/internal/compiler"
	"github.com/funvibe/funscript/internal/config"
	"github.com/funvibe/funscript/internal/pool"
	"github.com/funvibe/funscript/internal/scope"
	"github.com/funvibe/funscript/internal/value"
)

var log = commonlog.GetLogger("funscript.vm")

var (
	errStackOverflow  = errors.New("stack overflow")
	errStackUnderflow = errors.New("stack underflow")

	// ErrGlobalLayout reports a program compiled against a different global table.
	ErrGlobalLayout = errors.New("program globals do not match the VM")
	// ErrPoolLayout reports a program whose constant tables conflict with the VM's pool.
	ErrPoolLayout = errors.New("program constants do not match the VM")
)

// Initial sizes for stack and frames
const InitialStackSize = 2048
const InitialFrameCount = 256

// Maximum call stack depth unless SetMaxDepth overrides it
const MaxFrameCount = config.DefaultMaxDepth

// Maximum operand stack size to prevent OOM
const MaxStackSize = 1024 * 1024

// Dispatches between cancellation checks
const checkInterval = 1000

// Recycled scope frames kept for reuse
const maxFreeFrames = 256

// CallFrame is one active function call.
type CallFrame struct {
	fn      *bytecode.CompiledFunction
	ip      int
	scope   *value.Frame // innermost entered scope frame
	fnFrame *value.Frame // activation frame of the call
	base    int          // operand stack height at entry

	handlers   int // handler stack height at entry
	completion value.Value

	// entry marks a frame started by a host or native call; returning from
	// it ends the run loop that started it.
	entry bool
}

type handler struct {
	target int
	sp     int
	frame  int // index of the owning call frame
	scope  *value.Frame
}

type job struct {
	fn   value.Value
	args []value.Value
}

// VM is the virtual machine that executes bytecode
type VM struct {
	stack []value.Value
	sp    int // Stack pointer (points to next free slot)

	frames   []CallFrame
	handlers []handler
	free     []*value.Frame

	table   *scope.GlobalTable
	globals []value.Value
	defined []bool
	pool    *pool.Pool

	evalFn   *value.Native
	jobs     []job
	draining bool

	// Output writer (defaults to os.Stdout)
	out io.Writer

	steps     int64
	stepLimit int64
	maxDepth  int
	runID     string

	// Context for cancellation
	Context context.Context
}

// New creates a VM with the built-in globals installed.
func New() *VM {
	vm := &VM{
		stack:    make([]value.Value, InitialStackSize),
		frames:   make([]CallFrame, 0, InitialFrameCount),
		table:    NewGlobalTable(),
		pool:     pool.New(pool.DefaultBufferSize),
		out:      os.Stdout,
		maxDepth: MaxFrameCount,
	}
	vm.installBuiltins()
	return vm
}

// SetOutput sets the writer print goes to.
func (vm *VM) SetOutput(w io.Writer) {
	vm.out = w
}

// SetContext sets the context for cancellation
func (vm *VM) SetContext(ctx context.Context) {
	vm.Context = ctx
}

// SetStepLimit bounds the instructions one top-level run may dispatch.
// Zero means no limit.
func (vm *VM) SetStepLimit(n int64) {
	vm.stepLimit = n
}

// SetMaxDepth bounds the call stack.
func (vm *VM) SetMaxDepth(n int) {
	if n <= 0 {
		n = MaxFrameCount
	}
	vm.maxDepth = n
}

// Globals is the name table programs for this VM must be compiled against.
func (vm *VM) Globals() *scope.GlobalTable { return vm.table }

// Pool is the constant pool programs for this VM should be compiled with.
func (vm *VM) Pool() *pool.Pool { return vm.pool }

// RunID identifies the latest top-level run in logs.
func (vm *VM) RunID() string { return vm.runID }

// Load checks that prog can run on this VM: its globals must occupy the same
// indices and its constant tables must agree with the pool. Programs loaded
// from an image get their scope trees back when they use direct eval.
func (vm *VM) Load(prog *bytecode.Program) error {
	for i, name := range prog.Globals {
		if idx := vm.table.Intern(name); idx != i {
			return fmt.Errorf("%w: %q is global %d, program expects %d", ErrGlobalLayout, name, idx, i)
		}
	}
	have := vm.pool.Strings()
	for i, s := range prog.Strings {
		if i < len(have) {
			if have[i] != s {
				return fmt.Errorf("%w: string %d", ErrPoolLayout, i)
			}
		} else if int(vm.pool.InternString(s)) != i {
			return fmt.Errorf("%w: string %d", ErrPoolLayout, i)
		}
	}
	doubles := vm.pool.Doubles()
	for i, d := range prog.Doubles {
		if i < len(doubles) {
			if math.Float64bits(doubles[i]) != math.Float64bits(d) {
				return fmt.Errorf("%w: double %d", ErrPoolLayout, i)
			}
		} else if int(vm.pool.InternDouble(d)) != i {
			return fmt.Errorf("%w: double %d", ErrPoolLayout, i)
		}
	}
	if prog.Root.Tree == nil && usesEval(prog.Root) {
		if err := compiler.RebuildUnits(prog, vm.table); err != nil {
			return err
		}
	}
	vm.growGlobals()
	return nil
}

func usesEval(fn *bytecode.CompiledFunction) bool {
	found := false
	fn.Walk(func(f *bytecode.CompiledFunction) {
		if f.Has(bytecode.FnDirectEval) {
			found = true
		}
	})
	return found
}

// Run loads prog and runs its root, returning the completion value (or the
// expression's value for expression programs).
func (vm *VM) Run(prog *bytecode.Program) (value.Value, error) {
	if err := vm.Load(prog); err != nil {
		return value.Undefined(), err
	}
	vm.runID = uuid.NewString()
	log.Debugf("run %s: start (%d bytes of root code)", vm.runID, len(prog.Root.Code))
	result, err := vm.Invoke(prog.Root, nil, value.Undefined(), nil)
	if err != nil {
		log.Debugf("run %s: %s", vm.runID, err)
	} else {
		log.Debugf("run %s: done after %d steps", vm.runID, vm.steps)
	}
	return result, err
}

// Invoke calls a compiled function whose defining scope chain is chain
// (nil for a unit root) and returns its result.
func (vm *VM) Invoke(fn *bytecode.CompiledFunction, chain *value.Frame, this value.Value, args []value.Value) (value.Value, error) {
	vm.enter()
	depth := len(vm.frames)
	if err := vm.pushCall(fn, chain, this, value.Undefined(), args); err != nil {
		return value.Undefined(), vm.surface(vm.scriptError(err))
	}
	vm.frames[depth].entry = true
	result, err := vm.run(depth)
	return result, vm.surface(err)
}

// Call calls any callable value. It is also how natives call back into the
// interpreter.
func (vm *VM) Call(fn value.Value, this value.Value, args []value.Value) (value.Value, error) {
	vm.enter()
	depth := len(vm.frames)
	sp := vm.sp
	if err := vm.callValue(fn, this, args); err != nil {
		vm.sp = sp
		return value.Undefined(), vm.surface(vm.scriptError(err))
	}
	if len(vm.frames) == depth {
		// a native already pushed its result
		return vm.pop(), nil
	}
	vm.frames[depth].entry = true
	result, err := vm.run(depth)
	return result, vm.surface(err)
}

// enter resets the per-run state when called from the host. Jobs run by
// RunJobs share the budget of the drain.
func (vm *VM) enter() {
	if len(vm.frames) == 0 {
		vm.sp = 0
		if !vm.draining {
			vm.steps = 0
		}
	}
}

// surface prepares an error for the caller. Aborts stay wrapped while
// natives are still on the stack, so no script handler can catch them.
func (vm *VM) surface(err error) error {
	if err == nil || len(vm.frames) > 0 {
		return err
	}
	var ab *abortError
	if errors.As(err, &ab) {
		return ab.err
	}
	return err
}

// Stack operations

func (vm *VM) push(v value.Value) {
	if vm.sp >= len(vm.stack) {
		if vm.sp >= MaxStackSize {
			panic(errStackOverflow)
		}
		grown := make([]value.Value, 2*len(vm.stack))
		copy(grown, vm.stack[:vm.sp])
		vm.stack = grown
	}
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() value.Value {
	if vm.sp <= 0 {
		panic(errStackUnderflow)
	}
	vm.sp--
	v := vm.stack[vm.sp]
	vm.stack[vm.sp] = value.Value{}
	return v
}

func (vm *VM) peek(distance int) value.Value {
	idx := vm.sp - 1 - distance
	if idx < 0 {
		panic(errStackUnderflow)
	}
	return vm.stack[idx]
}

// popN removes the top n values and returns them in push order.
func (vm *VM) popN(n int) []value.Value {
	if vm.sp < n {
		panic(errStackUnderflow)
	}
	out := make([]value.Value, n)
	copy(out, vm.stack[vm.sp-n:vm.sp])
	clear(vm.stack[vm.sp-n : vm.sp])
	vm.sp -= n
	return out
}

// Globals storage

func (vm *VM) growGlobals() {
	if n := vm.table.Len(); n > len(vm.globals) {
		vm.globals = append(vm.globals, make([]value.Value, n-len(vm.globals))...)
		vm.defined = append(vm.defined, make([]bool, n-len(vm.defined))...)
	}
}

func (vm *VM) getGlobal(idx int) (value.Value, bool) {
	if idx >= len(vm.globals) {
		vm.growGlobals()
		if idx >= len(vm.globals) {
			return value.Undefined(), false
		}
	}
	return vm.globals[idx], vm.defined[idx]
}

func (vm *VM) setGlobal(idx int, v value.Value) {
	if idx >= len(vm.globals) {
		vm.growGlobals()
	}
	vm.globals[idx] = v
	vm.defined[idx] = true
}
