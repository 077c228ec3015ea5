package bytecode

// Operands are big-endian.

func ReadU8(code []byte, off int) int { return int(code[off]) }

func ReadU16(code []byte, off int) int {
	return int(code[off])<<8 | int(code[off+1])
}

func ReadU32(code []byte, off int) uint32 {
	return uint32(code[off])<<24 | uint32(code[off+1])<<16 | uint32(code[off+2])<<8 | uint32(code[off+3])
}

func ReadI32(code []byte, off int) int32 { return int32(ReadU32(code, off)) }

func ReadU64(code []byte, off int) uint64 {
	return uint64(ReadU32(code, off))<<32 | uint64(ReadU32(code, off+4))
}

// ReadVarRef decodes a (storage class, depth) pair.
func ReadVarRef(code []byte, off int) (class byte, depth int) {
	return code[off], int(code[off+1])
}

func putU16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

// Operand is one decoded operand value.
type Operand struct {
	Kind  OperandKind
	Value uint64
	// Class and Depth are set for VarRef operands.
	Class byte
	Depth int
}

// DecodeOperands reads the operands of the instruction at off.
func DecodeOperands(code []byte, off int, info OpInfo) []Operand {
	pos := off + 1
	out := make([]Operand, 0, len(info.Operands))
	for _, k := range info.Operands {
		o := Operand{Kind: k}
		switch k {
		case U8:
			o.Value = uint64(code[pos])
		case U16:
			o.Value = uint64(ReadU16(code, pos))
		case U32:
			o.Value = uint64(ReadU32(code, pos))
		case U64:
			o.Value = ReadU64(code, pos)
		case I32:
			o.Value = uint64(int64(ReadI32(code, pos)))
		case VarRef:
			o.Class, o.Depth = ReadVarRef(code, pos)
		}
		out = append(out, o)
		pos += k.Width()
	}
	return out
}
