package bytecode_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/nalgeon/be"

	"github.com/funvibe/funscript/internal/bytecode"
	"github.com/funvibe/funscript/internal/pool"
)

func mustPanic(t *testing.T, contains string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic containing %q", contains)
		}
		be.True(t, strings.Contains(fmt.Sprint(r), contains))
	}()
	fn()
}

func TestForwardJump(t *testing.T) {
	e := bytecode.NewEmitter(pool.New(0))
	end := e.NewLabel()
	e.EmitJump(bytecode.OP_JUMP, end)
	e.Emit(bytecode.OP_NOP)
	e.Bind(end)
	e.Emit(bytecode.OP_RETURN_UNDEFINED)

	code, _ := e.Finalize()
	be.Equal(t, len(code), 7)
	be.Equal(t, bytecode.Opcode(code[0]), bytecode.OP_JUMP)
	be.Equal(t, bytecode.ReadU32(code, 1), uint32(6))
	be.Equal(t, bytecode.Opcode(code[6]), bytecode.OP_RETURN_UNDEFINED)
}

func TestBackwardJumpAndLeadingOperand(t *testing.T) {
	e := bytecode.NewEmitter(pool.New(0))
	e.Emit(bytecode.OP_NOP)
	head := e.PlaceLabel()
	e.EmitJump(bytecode.OP_JUMP_IF_ARG_PRESENT, head, 3)

	code, _ := e.Finalize()
	be.Equal(t, bytecode.ReadU16(code, 2), 3)
	be.Equal(t, bytecode.ReadU32(code, 4), uint32(1))
}

func TestSpliceShiftsLabelsAndRelocations(t *testing.T) {
	e := bytecode.NewEmitter(pool.New(0))
	child := e.Detach()
	child.Emit(bytecode.OP_NOP)
	inner := child.PlaceLabel()
	back := e.NewLabel()
	child.EmitJump(bytecode.OP_JUMP, back)

	e.Emit(bytecode.OP_NOP)
	e.Bind(back)
	e.EmitJump(bytecode.OP_JUMP, inner)
	e.Splice(child)
	e.Emit(bytecode.OP_RETURN_UNDEFINED)

	code, _ := e.Finalize()
	// NOP | JUMP inner | NOP | JUMP back | RETURN_UNDEFINED
	be.Equal(t, len(code), 13)
	be.Equal(t, bytecode.ReadU32(code, 2), uint32(7))
	be.Equal(t, bytecode.ReadU32(code, 8), uint32(1))
	be.Equal(t, bytecode.Opcode(code[12]), bytecode.OP_RETURN_UNDEFINED)

	mustPanic(t, "used after", func() { child.Emit(bytecode.OP_NOP) })
}

func TestUnboundLabelPanics(t *testing.T) {
	e := bytecode.NewEmitter(pool.New(0))
	e.EmitJump(bytecode.OP_JUMP, e.NewLabel())
	mustPanic(t, "unresolved label", func() { e.Finalize() })
}

func TestEmitterMisuse(t *testing.T) {
	e := bytecode.NewEmitter(pool.New(0))
	mustPanic(t, "out of range", func() { e.Emit(bytecode.OP_ARRAY, 0x10000) })
	mustPanic(t, "takes 1 operands", func() { e.Emit(bytecode.OP_CLOSURE) })
	mustPanic(t, "is not a jump", func() { e.EmitJump(bytecode.OP_ADD, e.NewLabel()) })

	l := e.PlaceLabel()
	mustPanic(t, "bound twice", func() { e.Bind(l) })
}

func TestBuffersReturnToPool(t *testing.T) {
	p := pool.New(8)
	e := bytecode.NewEmitter(p)
	child := e.Detach()
	for i := 0; i < 20; i++ {
		e.Emit(bytecode.OP_PUSH_INT, i)
		child.Emit(bytecode.OP_POP)
	}
	be.True(t, p.Outstanding() > 2)
	e.Splice(child)

	code, _ := e.Finalize()
	be.Equal(t, len(code), 20*5+20)
	be.Equal(t, p.Outstanding(), 0)

	// released buffers are reused by the next emitter
	e = bytecode.NewEmitter(p)
	e.Emit(bytecode.OP_NOP)
	_, _ = e.Finalize()
	be.Equal(t, p.Outstanding(), 0)
}

func TestLineTable(t *testing.T) {
	e := bytecode.NewEmitter(pool.New(0))
	e.SetLine(1)
	e.Emit(bytecode.OP_NOP)
	e.SetLine(3)
	e.Emit(bytecode.OP_NOP)
	e.SetLine(0) // unknown lines keep the current one
	e.Emit(bytecode.OP_NOP)
	e.SetLine(4)
	e.Emit(bytecode.OP_RETURN_UNDEFINED)

	code, lines := e.Finalize()
	f := &bytecode.CompiledFunction{Code: code, Lines: lines}
	be.Equal(t, len(lines), 3)
	be.Equal(t, f.LineAt(0), 1)
	be.Equal(t, f.LineAt(1), 3)
	be.Equal(t, f.LineAt(2), 3)
	be.Equal(t, f.LineAt(3), 4)
}

func TestOpcodeTable(t *testing.T) {
	seen := map[string]bool{}
	for op := bytecode.OP_NOP; ; op++ {
		info, ok := bytecode.Lookup(op)
		if !ok {
			break
		}
		be.True(t, info.Name != "")
		be.Equal(t, seen[info.Name], false)
		seen[info.Name] = true
		be.Equal(t, op.String(), info.Name)
	}
	be.True(t, len(seen) > 60)
	be.Equal(t, bytecode.Opcodes[bytecode.OP_CALL_DIRECT].Size(), 5)
}
