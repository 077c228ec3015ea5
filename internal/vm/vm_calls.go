package vm

import (
	"errors"

	"github.com/funvibe/funscript/internal/bytecode"
	"github.com/funvibe/funscript/internal/compiler"
	"github.com/funvibe/funscript/internal/diagnostics"
	"github.com/funvibe/funscript/internal/scope"
	"github.com/funvibe/funscript/internal/value"
)

// callValue starts a call of callee. Compiled functions get a new call
// frame that the run loop picks up; natives run to completion and push
// their result.
func (vm *VM) callValue(callee value.Value, this value.Value, args []value.Value) error {
	switch callee.Type {
	case value.ValClosure:
		c := callee.AsClosure()
		if c.Fn.Has(bytecode.FnArrow) {
			this = c.This
		}
		return vm.pushCall(c.Fn, c.Env, this, callee, args)
	case value.ValNative:
		res, err := callee.AsNative().Fn(vm, this, args)
		if err != nil {
			return err
		}
		vm.push(res)
		return nil
	case value.ValBound:
		b := callee.AsBound()
		all := make([]value.Value, 0, len(b.Args)+len(args))
		all = append(all, b.Args...)
		all = append(all, args...)
		return vm.callValue(b.Target, b.This, all)
	}
	return value.Errorf(value.TypeError, "%s is not a function", value.Describe(callee))
}

// pushCall creates the activation frame of fn under chain and makes it the
// running call.
func (vm *VM) pushCall(fn *bytecode.CompiledFunction, chain *value.Frame, this, callee value.Value, args []value.Value) error {
	if len(vm.frames) >= vm.maxDepth {
		return value.Errorf(value.RangeError, "Maximum call stack size exceeded")
	}
	fr := vm.acquire(fn.SlotCount)
	fr.Parent = chain
	fr.Fn = fn
	fr.Function = true
	fr.This = this
	fr.Callee = callee
	fr.Actual = len(args)

	n := max(len(args), fn.ParamCount)
	if cap(fr.Args) < n {
		fr.Args = make([]value.Value, n)
	}
	fr.Args = fr.Args[:n]
	copy(fr.Args, args)
	for i := len(args); i < n; i++ {
		fr.Args[i] = value.Missing()
	}
	fr.FuncLocals = sized(fr.FuncLocals, fn.FuncLocalCount)

	vm.frames = append(vm.frames, CallFrame{
		fn:       fn,
		scope:    fr,
		fnFrame:  fr,
		base:     vm.sp,
		handlers: len(vm.handlers),
	})
	return nil
}

// popFrame discards the running call, releasing its scope frames.
func (vm *VM) popFrame() {
	f := &vm.frames[len(vm.frames)-1]
	vm.releaseTo(f.scope, f.fnFrame.Parent)
	if len(vm.handlers) > f.handlers {
		vm.handlers = vm.handlers[:f.handlers]
	}
	clear(vm.stack[f.base:vm.sp])
	vm.sp = f.base
	vm.frames = vm.frames[:len(vm.frames)-1]
}

// ret returns result from the running call. It reports whether the call was
// an entry frame, in which case the result is handed to the host instead of
// being pushed.
func (vm *VM) ret(result value.Value) bool {
	entry := vm.frames[len(vm.frames)-1].entry
	vm.popFrame()
	if !entry {
		vm.push(result)
	}
	return entry
}

func (vm *VM) unwindTo(depth int) {
	for len(vm.frames) > depth {
		vm.popFrame()
	}
}

// directEval runs an eval call site. Only the built-in eval with a string
// argument compiles code; it then runs in the caller's scope chain.
func (vm *VM) directEval(f *CallFrame, site scope.ScopeID, callee value.Value, args []value.Value) error {
	if callee.Type != value.ValNative || callee.AsNative() != vm.evalFn {
		return vm.callValue(callee, value.Undefined(), args)
	}
	if len(args) == 0 {
		vm.push(value.Undefined())
		return nil
	}
	if !args[0].IsString() {
		vm.push(args[0])
		return nil
	}
	if f.fn.Tree == nil {
		return value.Errorf(value.SyntaxError, "eval is unavailable in a program loaded without its source")
	}
	prog, err := compiler.Compile(args[0].AsString(), compiler.Options{
		Name:           "<eval>",
		Enclosing:      f.fn.Tree,
		EnclosingScope: site,
		Globals:        vm.table,
		Pool:           vm.pool,
	})
	if err != nil {
		return compileError(err)
	}
	vm.growGlobals()
	vm.capture(f.scope)
	caller := f.fnFrame
	return vm.pushCall(prog.Root, f.scope, caller.This, caller.Callee, nil)
}

// indirectEval is the eval global called as an ordinary function: the code
// runs as a new global unit.
func (vm *VM) indirectEval(_ value.CallContext, _ value.Value, args []value.Value) (value.Value, error) {
	if len(args) == 0 || !args[0].IsString() {
		if len(args) == 0 {
			return value.Undefined(), nil
		}
		return args[0], nil
	}
	prog, err := compiler.Compile(args[0].AsString(), compiler.Options{
		Name:       "<eval>",
		Persistent: true,
		Globals:    vm.table,
		Pool:       vm.pool,
	})
	if err != nil {
		return value.Undefined(), compileError(err)
	}
	vm.growGlobals()
	return vm.Invoke(prog.Root, nil, value.Undefined(), nil)
}

func compileError(err error) error {
	var de *diagnostics.DiagnosticError
	if errors.As(err, &de) {
		return value.Errorf(value.ErrorKind(de.Kind), "%s", de.Message)
	}
	return value.Errorf(value.SyntaxError, "%s", err)
}

// Scope frames

func (vm *VM) acquire(slots int) *value.Frame {
	var fr *value.Frame
	if n := len(vm.free); n > 0 {
		fr = vm.free[n-1]
		vm.free = vm.free[:n-1]
	} else {
		fr = &value.Frame{}
	}
	fr.Slots = sized(fr.Slots, slots)
	return fr
}

// release recycles fr unless a closure or eval unit still holds it.
func (vm *VM) release(fr *value.Frame) {
	if fr.Captured || len(vm.free) >= maxFreeFrames {
		return
	}
	clear(fr.Slots)
	clear(fr.Args)
	clear(fr.FuncLocals)
	*fr = value.Frame{Slots: fr.Slots[:0], Args: fr.Args[:0], FuncLocals: fr.FuncLocals[:0]}
	vm.free = append(vm.free, fr)
}

// releaseTo releases the frames from fr up to, not including, stop.
func (vm *VM) releaseTo(fr, stop *value.Frame) {
	for fr != nil && fr != stop {
		next := fr.Parent
		vm.release(fr)
		fr = next
	}
}

// capture pins fr and its whole parent chain. Ancestors of a captured frame
// are always captured, so the walk stops at the first one.
func (vm *VM) capture(fr *value.Frame) {
	for ; fr != nil && !fr.Captured; fr = fr.Parent {
		fr.Captured = true
	}
}

func sized(buf []value.Value, n int) []value.Value {
	if cap(buf) < n {
		return make([]value.Value, n)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}
