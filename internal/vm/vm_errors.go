package vm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/funvibe/funscript/internal/bytecode"
	"github.com/funvibe/funscript/internal/value"
)

// ScriptError is a value thrown by a script and not caught. Kind and Message
// are filled in for error objects; other thrown values leave Kind empty.
type ScriptError struct {
	Kind    value.ErrorKind
	Message string
	Value   value.Value
	// Trace lists the active calls at the throw, innermost first.
	Trace []string
}

func (e *ScriptError) Error() string {
	if e.Kind == "" {
		return "Uncaught " + e.Value.Inspect()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// StackTrace renders Trace one call per line.
func (e *ScriptError) StackTrace() string {
	var sb strings.Builder
	for _, line := range e.Trace {
		sb.WriteString("  ")
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// abortError wraps failures no script handler may catch: cancellation, an
// exhausted step budget, operand stack overflow.
type abortError struct {
	err error
}

func (e *abortError) Error() string { return e.err.Error() }
func (e *abortError) Unwrap() error { return e.err }

func isAbort(err error) bool {
	var ab *abortError
	return errors.As(err, &ab)
}

// NewScriptError wraps a thrown value.
func NewScriptError(v value.Value) *ScriptError {
	se := &ScriptError{Value: v}
	if kind := value.ErrorKindOf(v); kind != "" {
		se.Kind = kind
		se.Message = value.ToString(v.AsObject().GetOwn("message"))
	}
	return se
}

// scriptError turns any failure raised while running into the ScriptError
// that scripts observe, recording the call stack when it is new.
func (vm *VM) scriptError(err error) error {
	if err == nil || isAbort(err) {
		return err
	}
	var se *ScriptError
	if errors.As(err, &se) {
		return se
	}
	var ve *value.Error
	if errors.As(err, &ve) {
		se = &ScriptError{Kind: ve.Kind, Message: ve.Message, Value: value.NewErrorObject(ve.Kind, ve.Message)}
	} else {
		se = &ScriptError{Kind: value.PlainError, Message: err.Error(), Value: value.NewErrorObject(value.PlainError, err.Error())}
	}
	se.Trace = vm.trace()
	return se
}

// trace describes every active call, innermost first.
func (vm *VM) trace() []string {
	out := make([]string, 0, len(vm.frames))
	for i := len(vm.frames) - 1; i >= 0; i-- {
		f := &vm.frames[i]
		out = append(out, fmt.Sprintf("at %s (line %d)", displayName(f.fn), f.fn.LineAt(max(f.ip-1, 0))))
	}
	return out
}

func displayName(fn *bytecode.CompiledFunction) string {
	if fn.Has(bytecode.FnRoot) {
		return "<main>"
	}
	if fn.Name == "" {
		return "<anonymous>"
	}
	return fn.Name
}

// catch transfers control to the innermost handler installed at or above
// call frame entry, with thrown on the operand stack.
func (vm *VM) catch(thrown value.Value, entry int) bool {
	n := len(vm.handlers)
	if n == 0 || vm.handlers[n-1].frame < entry {
		return false
	}
	h := vm.handlers[n-1]
	vm.handlers = vm.handlers[:n-1]
	for len(vm.frames)-1 > h.frame {
		vm.popFrame()
	}
	f := &vm.frames[h.frame]
	vm.releaseTo(f.scope, h.scope)
	f.scope = h.scope
	clear(vm.stack[h.sp:vm.sp])
	vm.sp = h.sp
	vm.push(thrown)
	f.ip = h.target
	return true
}

func errorKind(b byte) value.ErrorKind {
	switch b {
	case bytecode.KindTypeError:
		return value.TypeError
	case bytecode.KindRangeError:
		return value.RangeError
	case bytecode.KindReferenceError:
		return value.ReferenceError
	case bytecode.KindSyntaxError:
		return value.SyntaxError
	}
	return value.PlainError
}
