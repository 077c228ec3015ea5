package vm

import (
	"fmt"

	"github.com/funvibe/funscript/internal/bytecode"
	"github.com/funvibe/funscript/internal/scope"
	"github.com/funvibe/funscript/internal/value"
)

// Operand readers

func (f *CallFrame) u8() int {
	v := int(f.fn.Code[f.ip])
	f.ip++
	return v
}

func (f *CallFrame) u16() int {
	v := bytecode.ReadU16(f.fn.Code, f.ip)
	f.ip += 2
	return v
}

func (f *CallFrame) u32() int {
	v := bytecode.ReadU32(f.fn.Code, f.ip)
	f.ip += 4
	return int(v)
}

func (f *CallFrame) i32() int {
	v := bytecode.ReadI32(f.fn.Code, f.ip)
	f.ip += 4
	return int(v)
}

func (f *CallFrame) varRef() (byte, int) {
	class, depth := bytecode.ReadVarRef(f.fn.Code, f.ip)
	f.ip += 2
	return class, depth
}

// tick counts a dispatch against the step budget and polls for cancellation.
func (vm *VM) tick() error {
	vm.steps++
	if vm.stepLimit > 0 && vm.steps > vm.stepLimit {
		return &abortError{err: &ScriptError{
			Kind:    value.RangeError,
			Message: fmt.Sprintf("step budget of %d instructions exhausted", vm.stepLimit),
			Value:   value.NewErrorObject(value.RangeError, "step budget exhausted"),
			Trace:   vm.trace(),
		}}
	}
	if vm.steps%checkInterval == 0 && vm.Context != nil {
		select {
		case <-vm.Context.Done():
			return &abortError{err: vm.Context.Err()}
		default:
		}
	}
	return nil
}

// run executes until call frame entry returns. Thrown values are caught by
// handlers of frames at or above entry; anything else unwinds those frames
// and is returned.
func (vm *VM) run(entry int) (result value.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if r != errStackOverflow && r != errStackUnderflow {
				panic(r)
			}
			msg := r.(error).Error()
			se := &ScriptError{Kind: value.RangeError, Message: msg, Value: value.NewErrorObject(value.RangeError, msg), Trace: vm.trace()}
			vm.unwindTo(entry)
			result = value.Undefined()
			err = &abortError{err: se}
		}
	}()

	for {
		if err := vm.tick(); err != nil {
			vm.unwindTo(entry)
			return value.Undefined(), err
		}
		f := &vm.frames[len(vm.frames)-1]
		op := bytecode.Opcode(f.fn.Code[f.ip])
		f.ip++

		var err error
		switch op {
		case bytecode.OP_RETURN:
			if res := vm.pop(); vm.ret(res) {
				return res, nil
			}
			continue
		case bytecode.OP_RETURN_UNDEFINED:
			if vm.ret(value.Undefined()) {
				return value.Undefined(), nil
			}
			continue
		default:
			err = vm.execute(f, op)
		}
		if err == nil {
			continue
		}

		err = vm.scriptError(err)
		if isAbort(err) {
			vm.unwindTo(entry)
			return value.Undefined(), err
		}
		se := err.(*ScriptError)
		if vm.catch(se.Value, entry) {
			continue
		}
		vm.unwindTo(entry)
		return value.Undefined(), se
	}
}

// execute runs one instruction other than a return. Instructions that start
// a call push the new frame; f must not be used after they return.
func (vm *VM) execute(f *CallFrame, op bytecode.Opcode) error {
	switch op {
	case bytecode.OP_NOP:

	// Constants
	case bytecode.OP_UNDEFINED:
		vm.push(value.Undefined())
	case bytecode.OP_NULL:
		vm.push(value.Null())
	case bytecode.OP_TRUE:
		vm.push(value.Bool(true))
	case bytecode.OP_FALSE:
		vm.push(value.Bool(false))
	case bytecode.OP_HOLE:
		vm.push(value.Hole())
	case bytecode.OP_PUSH_INT:
		vm.push(value.Int(f.i32()))
	case bytecode.OP_PUSH_DOUBLE:
		vm.push(value.Number(vm.pool.Double(uint32(f.u32()))))
	case bytecode.OP_PUSH_STRING:
		vm.push(value.String(vm.pool.String(uint32(f.u32()))))

	// Stack
	case bytecode.OP_POP:
		vm.pop()
	case bytecode.OP_DUP:
		vm.push(vm.peek(0))
	case bytecode.OP_DUP2:
		a, b := vm.peek(1), vm.peek(0)
		vm.push(a)
		vm.push(b)

	// Variables
	case bytecode.OP_GET_VAR:
		class, depth := f.varRef()
		idx := f.u16()
		fr := f.scope.Ancestor(depth)
		switch class {
		case bytecode.RefArgument:
			vm.push(fr.Args[idx].Normalize())
		case bytecode.RefFunctionLocal:
			vm.push(fr.FuncLocals[idx])
		default:
			vm.push(fr.Slots[idx])
		}
	case bytecode.OP_SET_VAR:
		class, depth := f.varRef()
		idx := f.u16()
		fr := f.scope.Ancestor(depth)
		v := vm.peek(0)
		switch class {
		case bytecode.RefArgument:
			fr.Args[idx] = v
		case bytecode.RefFunctionLocal:
			fr.FuncLocals[idx] = v
		default:
			fr.Slots[idx] = v
		}
	case bytecode.OP_GET_GLOBAL:
		idx := f.u32()
		v, ok := vm.getGlobal(idx)
		if !ok {
			return value.Errorf(value.ReferenceError, "%s is not defined", vm.table.Name(idx))
		}
		vm.push(v)
	case bytecode.OP_SET_GLOBAL:
		vm.setGlobal(f.u32(), vm.peek(0))
	case bytecode.OP_TYPEOF_GLOBAL:
		v, _ := vm.getGlobal(f.u32())
		vm.push(v)
	case bytecode.OP_CALLEE:
		vm.push(f.fnFrame.Callee)
	case bytecode.OP_ARGUMENTS:
		ff := f.fnFrame
		elems := make([]value.Value, ff.Actual)
		for i := range elems {
			elems[i] = ff.Args[i].Normalize()
		}
		vm.push(value.FromArray(value.NewArray(elems)))
	case bytecode.OP_THIS:
		vm.push(f.fnFrame.This)

	// Scopes
	case bytecode.OP_ENTER_SCOPE:
		fr := vm.acquire(f.u16())
		fr.Parent = f.scope
		fr.Fn = f.fn
		f.scope = fr
	case bytecode.OP_LEAVE_SCOPE:
		for n := f.u8(); n > 0; n-- {
			parent := f.scope.Parent
			vm.release(f.scope)
			f.scope = parent
		}
	case bytecode.OP_RENEW_SCOPE:
		old := f.scope
		fr := vm.acquire(len(old.Slots))
		copy(fr.Slots, old.Slots)
		fr.Parent = old.Parent
		fr.Fn = old.Fn
		vm.release(old)
		f.scope = fr

	// Control flow
	case bytecode.OP_JUMP:
		f.ip = f.u32()
	case bytecode.OP_JUMP_IF_FALSE:
		target := f.u32()
		if !value.ToBoolean(vm.pop()) {
			f.ip = target
		}
	case bytecode.OP_JUMP_IF_TRUE:
		target := f.u32()
		if value.ToBoolean(vm.pop()) {
			f.ip = target
		}
	case bytecode.OP_JUMP_IF_FALSE_KEEP:
		target := f.u32()
		if !value.ToBoolean(vm.peek(0)) {
			f.ip = target
		} else {
			vm.pop()
		}
	case bytecode.OP_JUMP_IF_TRUE_KEEP:
		target := f.u32()
		if value.ToBoolean(vm.peek(0)) {
			f.ip = target
		} else {
			vm.pop()
		}
	case bytecode.OP_JUMP_IF_NOT_NULLISH:
		target := f.u32()
		if !vm.peek(0).IsNullish() {
			f.ip = target
		} else {
			vm.pop()
		}
	case bytecode.OP_JUMP_IF_ARG_PRESENT:
		idx := f.u16()
		target := f.u32()
		if !f.fnFrame.Args[idx].IsUndefined() {
			f.ip = target
		}

	// Functions
	case bytecode.OP_CLOSURE:
		child := f.fn.Children[f.u16()]
		vm.capture(f.scope)
		c := &value.Closure{Fn: child, Env: f.scope}
		if child.Has(bytecode.FnArrow) {
			c.This = f.fnFrame.This
		}
		vm.push(value.FromClosure(c))
	case bytecode.OP_CALL:
		args := vm.popN(f.u8())
		callee := vm.pop()
		return vm.callValue(callee, value.Undefined(), args)
	case bytecode.OP_CALL_METHOD:
		args := vm.popN(f.u8())
		callee := vm.pop()
		this := vm.pop()
		return vm.callValue(callee, this, args)
	case bytecode.OP_CALL_DIRECT:
		depth := f.u8()
		child := f.u16()
		args := vm.popN(f.u8())
		def := f.scope.Ancestor(depth)
		return vm.pushCall(def.Fn.Children[child], def, value.Undefined(), value.Undefined(), args)
	case bytecode.OP_EVAL:
		site := scope.ScopeID(f.u16())
		args := vm.popN(f.u8())
		callee := vm.pop()
		return vm.directEval(f, site, callee, args)

	// Exceptions
	case bytecode.OP_THROW:
		se := NewScriptError(vm.pop())
		se.Trace = vm.trace()
		return se
	case bytecode.OP_THROW_ERROR:
		kind := errorKind(byte(f.u8()))
		return value.Errorf(kind, "%s", vm.pool.String(uint32(f.u32())))
	case bytecode.OP_TRY_BEGIN:
		vm.handlers = append(vm.handlers, handler{
			target: f.u32(),
			sp:     vm.sp,
			frame:  len(vm.frames) - 1,
			scope:  f.scope,
		})
	case bytecode.OP_TRY_END:
		vm.handlers = vm.handlers[:len(vm.handlers)-1]

	// Objects
	case bytecode.OP_OBJECT:
		vm.push(value.FromObject(value.NewObject()))
	case bytecode.OP_ARRAY:
		vm.push(value.FromArray(value.NewArray(vm.popN(f.u16()))))
	case bytecode.OP_DEFINE_PROP:
		name := vm.pool.String(uint32(f.u32()))
		v := vm.pop()
		vm.peek(0).Model().Define(name, v)
	case bytecode.OP_DEFINE_INDEX:
		v := vm.pop()
		k := vm.pop()
		vm.peek(0).Model().Define(value.ToPropertyKey(k), v)
	case bytecode.OP_GET_PROP:
		name := vm.pool.String(uint32(f.u32()))
		v, err := value.GetMember(vm.pop(), name)
		if err != nil {
			return err
		}
		vm.push(v)
	case bytecode.OP_SET_PROP:
		name := vm.pool.String(uint32(f.u32()))
		v := vm.pop()
		obj := vm.pop()
		if err := value.SetMember(obj, name, v); err != nil {
			return err
		}
		vm.push(v)
	case bytecode.OP_GET_INDEX:
		k := vm.pop()
		v, err := value.GetElement(vm.pop(), k)
		if err != nil {
			return err
		}
		vm.push(v)
	case bytecode.OP_SET_INDEX:
		v := vm.pop()
		k := vm.pop()
		obj := vm.pop()
		if err := value.SetElement(obj, k, v); err != nil {
			return err
		}
		vm.push(v)
	case bytecode.OP_UPDATE_PROP:
		name := vm.pool.String(uint32(f.u32()))
		mode := byte(f.u8())
		obj := vm.pop()
		old, err := value.GetMember(obj, name)
		if err != nil {
			return err
		}
		before, after := updated(old, mode)
		if err := value.SetMember(obj, name, after); err != nil {
			return err
		}
		vm.push(pickUpdate(before, after, mode))
	case bytecode.OP_UPDATE_INDEX:
		mode := byte(f.u8())
		k := vm.pop()
		obj := vm.pop()
		old, err := value.GetElement(obj, k)
		if err != nil {
			return err
		}
		before, after := updated(old, mode)
		if err := value.SetElement(obj, k, after); err != nil {
			return err
		}
		vm.push(pickUpdate(before, after, mode))
	case bytecode.OP_GET_ITERATOR:
		it, err := value.GetIterator(vm.pop())
		if err != nil {
			return err
		}
		vm.push(value.FromIterator(it))
	case bytecode.OP_ITER_NEXT:
		target := f.u32()
		v, ok := vm.peek(0).AsIterator().Next()
		if !ok {
			f.ip = target
		} else {
			vm.push(v)
		}

	// Operators
	case bytecode.OP_ADD:
		b := vm.pop()
		vm.push(value.Add(vm.pop(), b))
	case bytecode.OP_SUB, bytecode.OP_MUL, bytecode.OP_DIV, bytecode.OP_MOD:
		b := value.ToNumber(vm.pop())
		a := value.ToNumber(vm.pop())
		vm.push(value.Number(arith(op, a, b)))
	case bytecode.OP_NEG:
		vm.push(value.Number(-value.ToNumber(vm.pop())))
	case bytecode.OP_TO_NUMBER:
		vm.push(value.Number(value.ToNumber(vm.pop())))
	case bytecode.OP_INC:
		vm.push(value.Number(value.ToNumber(vm.pop()) + 1))
	case bytecode.OP_DEC:
		vm.push(value.Number(value.ToNumber(vm.pop()) - 1))
	case bytecode.OP_NOT:
		vm.push(value.Bool(!value.ToBoolean(vm.pop())))
	case bytecode.OP_TYPEOF:
		vm.push(value.String(value.TypeOf(vm.pop())))
	case bytecode.OP_LT, bytecode.OP_LE, bytecode.OP_GT, bytecode.OP_GE:
		b := vm.pop()
		a := vm.pop()
		vm.push(value.Bool(compare(op, a, b)))
	case bytecode.OP_EQ:
		b := vm.pop()
		vm.push(value.Bool(value.LooseEquals(vm.pop(), b)))
	case bytecode.OP_NE:
		b := vm.pop()
		vm.push(value.Bool(!value.LooseEquals(vm.pop(), b)))
	case bytecode.OP_STRICT_EQ:
		b := vm.pop()
		vm.push(value.Bool(value.StrictEquals(vm.pop(), b)))
	case bytecode.OP_STRICT_NE:
		b := vm.pop()
		vm.push(value.Bool(!value.StrictEquals(vm.pop(), b)))

	// Completion value
	case bytecode.OP_SET_COMPLETION:
		f.completion = vm.pop()
	case bytecode.OP_COMPLETION:
		vm.push(f.completion)

	default:
		return fmt.Errorf("unknown opcode %s at %d in %s", op, f.ip-1, displayName(f.fn))
	}
	return nil
}

func arith(op bytecode.Opcode, a, b float64) float64 {
	switch op {
	case bytecode.OP_SUB:
		return a - b
	case bytecode.OP_MUL:
		return a * b
	case bytecode.OP_DIV:
		return a / b
	}
	return value.Mod(a, b)
}

// compare is false whenever either side converts to NaN.
func compare(op bytecode.Opcode, a, b value.Value) bool {
	cmp, ok := value.Compare(a, b)
	if !ok {
		return false
	}
	switch op {
	case bytecode.OP_LT:
		return cmp < 0
	case bytecode.OP_LE:
		return cmp <= 0
	case bytecode.OP_GT:
		return cmp > 0
	}
	return cmp >= 0
}

func updated(old value.Value, mode byte) (before, after value.Value) {
	n := value.ToNumber(old)
	if mode&bytecode.UpdateDecrement != 0 {
		return value.Number(n), value.Number(n - 1)
	}
	return value.Number(n), value.Number(n + 1)
}

func pickUpdate(before, after value.Value, mode byte) value.Value {
	if mode&bytecode.UpdatePrefix != 0 {
		return after
	}
	return before
}
