package bytecode

import (
	"fmt"

	"github.com/funvibe/funscript/internal/pool"
)

// Label names a jump target. Labels are either placed (their offset is known
// before the jump, as for loop heads) or bound later once the emitter reaches
// the target. Every jump goes through the relocation table, which is linked
// in one pass by Finalize.
type Label int32

type labelState struct {
	offset int
	bound  bool
}

type relocation struct {
	offset int // position of the 4-byte placeholder
	label  Label
}

// LineEntry maps the instruction starting at Offset, and those after it up
// to the next entry, to a source line.
type LineEntry struct {
	Offset uint32 `cbor:"1,keyasint"`
	Line   int32  `cbor:"2,keyasint"`
}

// Emitter writes one function's instruction stream into a chain of
// fixed-size buffers drawn from a pool.
type Emitter struct {
	pool   *pool.Pool
	chunks [][]byte
	length int

	labels *[]labelState // shared with detached sub-streams
	bound  []Label       // labels bound in this stream, shifted on splice
	relocs []relocation

	lines    []LineEntry
	line     int
	lastLine int

	finished bool
}

// NewEmitter creates an emitter drawing buffers from p.
func NewEmitter(p *pool.Pool) *Emitter {
	labels := make([]labelState, 0, 16)
	return &Emitter{pool: p, labels: &labels, lastLine: -1}
}

// Len is the logical offset of the next byte.
func (e *Emitter) Len() int { return e.length }

// SetLine sets the source line attributed to following instructions.
func (e *Emitter) SetLine(line int) {
	if line > 0 {
		e.line = line
	}
}

func (e *Emitter) checkOpen() {
	if e.finished {
		panic("bytecode: emitter used after Finalize or Splice")
	}
}

func (e *Emitter) writeByte(b byte) {
	n := len(e.chunks)
	if n == 0 || len(e.chunks[n-1]) == cap(e.chunks[n-1]) {
		e.chunks = append(e.chunks, e.pool.AcquireBuffer())
		n++
	}
	e.chunks[n-1] = append(e.chunks[n-1], b)
	e.length++
}

func (e *Emitter) writeBytes(bs []byte) {
	for _, b := range bs {
		e.writeByte(b)
	}
}

func (e *Emitter) markLine() {
	if e.line != e.lastLine {
		e.lines = append(e.lines, LineEntry{Offset: uint32(e.length), Line: int32(e.line)})
		e.lastLine = e.line
	}
}

// Emit writes op and its operands as laid out in the opcode table.
// A VarRef operand is passed as class<<8 | depth.
func (e *Emitter) Emit(op Opcode, operands ...int) {
	e.checkOpen()
	info, ok := Lookup(op)
	if !ok {
		panic(fmt.Sprintf("bytecode: unknown opcode %d", op))
	}
	if len(operands) != len(info.Operands) {
		panic(fmt.Sprintf("bytecode: %s takes %d operands, got %d", info.Name, len(info.Operands), len(operands)))
	}
	e.markLine()
	e.writeByte(byte(op))
	for i, k := range info.Operands {
		e.writeOperand(info.Name, k, operands[i])
	}
}

func (e *Emitter) writeOperand(name string, k OperandKind, v int) {
	var tmp [8]byte
	switch k {
	case U8:
		checkRange(name, v, 0, 0xFF)
		e.writeByte(byte(v))
	case U16:
		checkRange(name, v, 0, 0xFFFF)
		putU16(tmp[:], uint16(v))
		e.writeBytes(tmp[:2])
	case U32:
		checkRange(name, v, 0, 0xFFFFFFFF)
		putU32(tmp[:], uint32(v))
		e.writeBytes(tmp[:4])
	case I32:
		checkRange(name, v, -1<<31, 1<<31-1)
		putU32(tmp[:], uint32(int32(v)))
		e.writeBytes(tmp[:4])
	case U64:
		putU32(tmp[:], uint32(uint64(v)>>32))
		putU32(tmp[4:], uint32(v))
		e.writeBytes(tmp[:8])
	case VarRef:
		checkRange(name, v, 0, 0xFFFF)
		putU16(tmp[:], uint16(v))
		e.writeBytes(tmp[:2])
	}
}

func checkRange(name string, v, lo, hi int) {
	if v < lo || v > hi {
		panic(fmt.Sprintf("bytecode: operand %d out of range for %s", v, name))
	}
}

// NewLabel reserves a label whose target is not yet known.
func (e *Emitter) NewLabel() Label {
	*e.labels = append(*e.labels, labelState{})
	return Label(len(*e.labels) - 1)
}

// PlaceLabel creates a label already bound to the current offset.
func (e *Emitter) PlaceLabel() Label {
	l := e.NewLabel()
	e.Bind(l)
	return l
}

// Bind sets l's target to the current offset.
func (e *Emitter) Bind(l Label) {
	e.checkOpen()
	st := &(*e.labels)[l]
	if st.bound {
		panic(fmt.Sprintf("bytecode: label %d bound twice", l))
	}
	st.offset = e.length
	st.bound = true
	e.bound = append(e.bound, l)
}

// Bound reports whether l already has a target.
func (e *Emitter) Bound(l Label) bool { return (*e.labels)[l].bound }

// EmitJump writes a jump-style op whose last operand targets l. Operands
// before the target are passed in pre. A 4-byte placeholder is written and
// a relocation recorded.
func (e *Emitter) EmitJump(op Opcode, l Label, pre ...int) {
	e.checkOpen()
	info, ok := Lookup(op)
	if !ok || info.Jump < 0 {
		panic(fmt.Sprintf("bytecode: %s is not a jump", op))
	}
	if len(pre) != info.Jump {
		panic(fmt.Sprintf("bytecode: %s takes %d leading operands, got %d", info.Name, info.Jump, len(pre)))
	}
	e.markLine()
	e.writeByte(byte(op))
	for i := 0; i < info.Jump; i++ {
		e.writeOperand(info.Name, info.Operands[i], pre[i])
	}
	e.relocs = append(e.relocs, relocation{offset: e.length, label: l})
	e.writeBytes([]byte{0, 0, 0, 0})
}

// Detach returns a standalone sub-stream that shares this emitter's pool
// and label namespace. Its code is placed with Splice.
func (e *Emitter) Detach() *Emitter {
	return &Emitter{pool: e.pool, labels: e.labels, line: e.line, lastLine: -1}
}

// Splice appends child's code at the current offset. Child relocations,
// labels bound in child and line entries shift by the parent length.
func (e *Emitter) Splice(child *Emitter) {
	e.checkOpen()
	child.checkOpen()
	if child.labels != e.labels {
		panic("bytecode: splicing a stream from another emitter")
	}
	base := e.length
	for _, c := range child.chunks {
		e.writeBytes(c)
		e.pool.ReleaseBuffer(c)
	}
	for _, r := range child.relocs {
		e.relocs = append(e.relocs, relocation{offset: r.offset + base, label: r.label})
	}
	for _, l := range child.bound {
		(*e.labels)[l].offset += base
		e.bound = append(e.bound, l)
	}
	for _, ln := range child.lines {
		e.lines = append(e.lines, LineEntry{Offset: ln.Offset + uint32(base), Line: ln.Line})
	}
	e.lastLine = -1
	child.chunks = nil
	child.finished = true
}

// Finalize links every relocation, concatenates the buffer chain into one
// contiguous program and returns the buffers to the pool. An unbound label
// is an internal error and panics.
func (e *Emitter) Finalize() ([]byte, []LineEntry) {
	e.checkOpen()
	code := make([]byte, e.length)
	pos := 0
	for _, c := range e.chunks {
		pos += copy(code[pos:], c)
		e.pool.ReleaseBuffer(c)
	}
	e.chunks = nil
	for _, r := range e.relocs {
		st := (*e.labels)[r.label]
		if !st.bound {
			panic(fmt.Sprintf("bytecode: unresolved label %d at offset %d", r.label, r.offset))
		}
		putU32(code[r.offset:], uint32(st.offset))
	}
	e.finished = true
	return code, compactLines(e.lines)
}

// compactLines drops entries superseded by a later one at the same offset.
func compactLines(lines []LineEntry) []LineEntry {
	out := lines[:0:0]
	for _, ln := range lines {
		if n := len(out); n > 0 && out[n-1].Offset == ln.Offset {
			out[n-1] = ln
			continue
		}
		if n := len(out); n > 0 && out[n-1].Line == ln.Line {
			continue
		}
		out = append(out, ln)
	}
	return out
}
