// Package bytecode defines the compiled-program format: the closed opcode
// table, operand encodings, the instruction Emitter, compiled functions,
// program images and the disassembler.
package bytecode

import "fmt"

// TableVersion changes whenever an opcode is added, removed or re-encoded.
const TableVersion = 3

// Opcode represents a single VM instruction
type Opcode byte

const (
	OP_NOP Opcode = iota

	// Constants
	OP_UNDEFINED
	OP_NULL
	OP_TRUE
	OP_FALSE
	OP_HOLE        // array elision marker, only valid before OP_ARRAY
	OP_PUSH_INT    // i32 immediate
	OP_PUSH_DOUBLE // u32 pool handle
	OP_PUSH_STRING // u32 pool handle

	// Stack manipulation
	OP_POP
	OP_DUP
	OP_DUP2 // [a, b] -> [a, b, a, b]

	// Variables
	OP_GET_VAR       // varref, u16 index
	OP_SET_VAR       // varref, u16 index; keeps the value
	OP_GET_GLOBAL    // u32 global index; ReferenceError when unset
	OP_SET_GLOBAL    // u32 global index; keeps the value
	OP_TYPEOF_GLOBAL // u32 global index; never throws
	OP_CALLEE        // the running function value
	OP_ARGUMENTS     // array of the actual arguments
	OP_THIS

	// Scopes
	OP_ENTER_SCOPE // u16 slot count
	OP_LEAVE_SCOPE // u8 frame count
	OP_RENEW_SCOPE // replace the current frame with a copy

	// Control flow; targets are absolute offsets
	OP_JUMP
	OP_JUMP_IF_FALSE
	OP_JUMP_IF_TRUE
	OP_JUMP_IF_FALSE_KEEP  // && : keep and jump when falsy, else pop
	OP_JUMP_IF_TRUE_KEEP   // || : keep and jump when truthy, else pop
	OP_JUMP_IF_NOT_NULLISH // ?? : keep and jump unless null/undefined, else pop
	OP_JUMP_IF_ARG_PRESENT // u16 argument index, u32 target

	// Functions
	OP_CLOSURE     // u16 child index
	OP_CALL        // u8 argc; [callee, args...]
	OP_CALL_METHOD // u8 argc; [this, callee, args...]
	OP_CALL_DIRECT // u8 depth, u16 child index, u8 argc; [args...]
	OP_EVAL        // u16 scope id, u8 argc; [callee, args...]
	OP_RETURN
	OP_RETURN_UNDEFINED

	// Exceptions
	OP_THROW
	OP_THROW_ERROR // u8 error kind, u32 message handle
	OP_TRY_BEGIN   // u32 handler target
	OP_TRY_END

	// Objects
	OP_OBJECT
	OP_ARRAY        // u16 element count
	OP_DEFINE_PROP  // u32 name handle; [obj, v] -> [obj]
	OP_DEFINE_INDEX // [obj, k, v] -> [obj]
	OP_GET_PROP     // u32 name handle
	OP_SET_PROP     // u32 name handle; [obj, v] -> [v]
	OP_GET_INDEX
	OP_SET_INDEX    // [obj, k, v] -> [v]
	OP_UPDATE_PROP  // u32 name handle, u8 update mode
	OP_UPDATE_INDEX // u8 update mode
	OP_GET_ITERATOR
	OP_ITER_NEXT // u32 exit target

	// Operators
	OP_ADD
	OP_SUB
	OP_MUL
	OP_DIV
	OP_MOD
	OP_NEG
	OP_TO_NUMBER
	OP_INC
	OP_DEC
	OP_NOT
	OP_TYPEOF
	OP_LT
	OP_LE
	OP_GT
	OP_GE
	OP_EQ
	OP_NE
	OP_STRICT_EQ
	OP_STRICT_NE

	// Completion value of the unit root
	OP_SET_COMPLETION
	OP_COMPLETION

	opcodeCount
)

// Update modes for OP_UPDATE_PROP and OP_UPDATE_INDEX.
const (
	UpdateDecrement byte = 1 << iota
	UpdatePrefix
)

// OperandKind is one of the primitive operand encodings.
type OperandKind uint8

const (
	U8 OperandKind = iota
	U16
	U32
	U64
	I32
	// VarRef is the 2-byte (storage class, ancestor depth) pair.
	VarRef
)

var operandWidths = [...]int{U8: 1, U16: 2, U32: 4, U64: 8, I32: 4, VarRef: 2}

// Width is the encoded size of an operand in bytes.
func (k OperandKind) Width() int { return operandWidths[k] }

// OpInfo describes an opcode's mnemonic and operand layout.
type OpInfo struct {
	Name     string
	Operands []OperandKind
	// Jump marks the operand index holding an absolute jump target, or -1.
	Jump int
}

// Size is the total encoded size including the opcode byte.
func (i OpInfo) Size() int {
	n := 1
	for _, k := range i.Operands {
		n += k.Width()
	}
	return n
}

func op(name string, operands ...OperandKind) OpInfo {
	return OpInfo{Name: name, Operands: operands, Jump: -1}
}

func jump(name string, operands ...OperandKind) OpInfo {
	return OpInfo{Name: name, Operands: operands, Jump: len(operands) - 1}
}

// Opcodes is the closed opcode table. The disassembler and the image
// validator decode programs from it alone.
var Opcodes = [opcodeCount]OpInfo{
	OP_NOP:         op("NOP"),
	OP_UNDEFINED:   op("UNDEFINED"),
	OP_NULL:        op("NULL"),
	OP_TRUE:        op("TRUE"),
	OP_FALSE:       op("FALSE"),
	OP_HOLE:        op("HOLE"),
	OP_PUSH_INT:    op("PUSH_INT", I32),
	OP_PUSH_DOUBLE: op("PUSH_DOUBLE", U32),
	OP_PUSH_STRING: op("PUSH_STRING", U32),

	OP_POP:  op("POP"),
	OP_DUP:  op("DUP"),
	OP_DUP2: op("DUP2"),

	OP_GET_VAR:       op("GET_VAR", VarRef, U16),
	OP_SET_VAR:       op("SET_VAR", VarRef, U16),
	OP_GET_GLOBAL:    op("GET_GLOBAL", U32),
	OP_SET_GLOBAL:    op("SET_GLOBAL", U32),
	OP_TYPEOF_GLOBAL: op("TYPEOF_GLOBAL", U32),
	OP_CALLEE:        op("CALLEE"),
	OP_ARGUMENTS:     op("ARGUMENTS"),
	OP_THIS:          op("THIS"),

	OP_ENTER_SCOPE: op("ENTER_SCOPE", U16),
	OP_LEAVE_SCOPE: op("LEAVE_SCOPE", U8),
	OP_RENEW_SCOPE: op("RENEW_SCOPE"),

	OP_JUMP:                jump("JUMP", U32),
	OP_JUMP_IF_FALSE:       jump("JUMP_IF_FALSE", U32),
	OP_JUMP_IF_TRUE:        jump("JUMP_IF_TRUE", U32),
	OP_JUMP_IF_FALSE_KEEP:  jump("JUMP_IF_FALSE_KEEP", U32),
	OP_JUMP_IF_TRUE_KEEP:   jump("JUMP_IF_TRUE_KEEP", U32),
	OP_JUMP_IF_NOT_NULLISH: jump("JUMP_IF_NOT_NULLISH", U32),
	OP_JUMP_IF_ARG_PRESENT: jump("JUMP_IF_ARG_PRESENT", U16, U32),

	OP_CLOSURE:          op("CLOSURE", U16),
	OP_CALL:             op("CALL", U8),
	OP_CALL_METHOD:      op("CALL_METHOD", U8),
	OP_CALL_DIRECT:      op("CALL_DIRECT", U8, U16, U8),
	OP_EVAL:             op("EVAL", U16, U8),
	OP_RETURN:           op("RETURN"),
	OP_RETURN_UNDEFINED: op("RETURN_UNDEFINED"),

	OP_THROW:       op("THROW"),
	OP_THROW_ERROR: op("THROW_ERROR", U8, U32),
	OP_TRY_BEGIN:   jump("TRY_BEGIN", U32),
	OP_TRY_END:     op("TRY_END"),

	OP_OBJECT:       op("OBJECT"),
	OP_ARRAY:        op("ARRAY", U16),
	OP_DEFINE_PROP:  op("DEFINE_PROP", U32),
	OP_DEFINE_INDEX: op("DEFINE_INDEX"),
	OP_GET_PROP:     op("GET_PROP", U32),
	OP_SET_PROP:     op("SET_PROP", U32),
	OP_GET_INDEX:    op("GET_INDEX"),
	OP_SET_INDEX:    op("SET_INDEX"),
	OP_UPDATE_PROP:  op("UPDATE_PROP", U32, U8),
	OP_UPDATE_INDEX: op("UPDATE_INDEX", U8),
	OP_GET_ITERATOR: op("GET_ITERATOR"),
	OP_ITER_NEXT:    jump("ITER_NEXT", U32),

	OP_ADD:       op("ADD"),
	OP_SUB:       op("SUB"),
	OP_MUL:       op("MUL"),
	OP_DIV:       op("DIV"),
	OP_MOD:       op("MOD"),
	OP_NEG:       op("NEG"),
	OP_TO_NUMBER: op("TO_NUMBER"),
	OP_INC:       op("INC"),
	OP_DEC:       op("DEC"),
	OP_NOT:       op("NOT"),
	OP_TYPEOF:    op("TYPEOF"),
	OP_LT:        op("LT"),
	OP_LE:        op("LE"),
	OP_GT:        op("GT"),
	OP_GE:        op("GE"),
	OP_EQ:        op("EQ"),
	OP_NE:        op("NE"),
	OP_STRICT_EQ: op("STRICT_EQ"),
	OP_STRICT_NE: op("STRICT_NE"),

	OP_SET_COMPLETION: op("SET_COMPLETION"),
	OP_COMPLETION:     op("COMPLETION"),
}

// Lookup returns the table entry for op.
func Lookup(op Opcode) (OpInfo, bool) {
	if int(op) >= len(Opcodes) {
		return OpInfo{}, false
	}
	return Opcodes[op], true
}

func (op Opcode) String() string {
	if info, ok := Lookup(op); ok {
		return info.Name
	}
	return fmt.Sprintf("OP_%d", byte(op))
}

// Storage classes as encoded in the first byte of a VarRef operand. The
// values mirror scope.StorageClass.
const (
	RefGlobal        byte = 1
	RefFunctionLocal byte = 2
	RefBlockLocal    byte = 3
	RefArgument      byte = 4
	RefRegister      byte = 5
)

// Error kinds for OP_THROW_ERROR.
const (
	KindError byte = iota
	KindTypeError
	KindRangeError
	KindReferenceError
	KindSyntaxError
)
