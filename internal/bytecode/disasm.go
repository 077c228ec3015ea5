package bytecode

import (
	"fmt"
	"strings"
)

var refClassNames = map[byte]string{
	RefGlobal:        "global",
	RefFunctionLocal: "function",
	RefBlockLocal:    "block",
	RefArgument:      "arg",
	RefRegister:      "register",
}

// StringTable resolves string handles for annotation; it may be nil.
type StringTable interface {
	String(h uint32) string
}

// StringList adapts a Program's string table to StringTable.
type StringList []string

func (s StringList) String(h uint32) string {
	if int(h) < len(s) {
		return s[h]
	}
	return ""
}

// Disassemble lists every function of the program.
func (p *Program) Disassemble() string {
	return Disassemble(p.Root, StringList(p.Strings))
}

// Disassemble returns a human-readable listing of f and its nested
// functions, decoded from the opcode table alone.
func Disassemble(f *CompiledFunction, strs StringTable) string {
	var sb strings.Builder
	disassembleFunction(&sb, f, strs, "")
	return sb.String()
}

func disassembleFunction(sb *strings.Builder, f *CompiledFunction, strs StringTable, path string) {
	name := f.Name
	if name == "" {
		name = "<anonymous>"
	}
	fmt.Fprintf(sb, "== %s%s (params=%d funclocals=%d slots=%d) ==\n", path, name, f.ParamCount, f.FuncLocalCount, f.SlotCount)

	prevLine := -1
	for off := 0; off < len(f.Code); {
		line := f.LineAt(off)
		if line == prevLine {
			fmt.Fprintf(sb, "%04d    | ", off)
		} else {
			fmt.Fprintf(sb, "%04d %4d ", off, line)
			prevLine = line
		}
		off = disassembleInstruction(sb, f, strs, off)
	}
	for i, c := range f.Children {
		sb.WriteString("\n")
		disassembleFunction(sb, c, strs, fmt.Sprintf("%s%s/%d:", path, name, i))
	}
}

// DisassembleInstruction writes one instruction and returns the next offset.
func DisassembleInstruction(sb *strings.Builder, f *CompiledFunction, strs StringTable, off int) int {
	return disassembleInstruction(sb, f, strs, off)
}

func disassembleInstruction(sb *strings.Builder, f *CompiledFunction, strs StringTable, off int) int {
	op := Opcode(f.Code[off])
	info, ok := Lookup(op)
	if !ok {
		fmt.Fprintf(sb, "<bad opcode %d>\n", f.Code[off])
		return off + 1
	}
	if off+info.Size() > len(f.Code) {
		fmt.Fprintf(sb, "%s <truncated>\n", info.Name)
		return len(f.Code)
	}
	sb.WriteString(info.Name)
	for i, o := range DecodeOperands(f.Code, off, info) {
		sb.WriteString(" ")
		switch {
		case o.Kind == VarRef:
			fmt.Fprintf(sb, "%s@%d", refClassNames[o.Class], o.Depth)
		case i == info.Jump:
			fmt.Fprintf(sb, "->%04d", o.Value)
		case o.Kind == I32:
			fmt.Fprintf(sb, "%d", int64(o.Value))
		default:
			fmt.Fprintf(sb, "%d", o.Value)
		}
	}
	if strs != nil {
		if h, ok := stringOperand(op, f.Code, off); ok {
			fmt.Fprintf(sb, " ; %q", strs.String(h))
		}
	}
	sb.WriteString("\n")
	return off + info.Size()
}

func stringOperand(op Opcode, code []byte, off int) (uint32, bool) {
	switch op {
	case OP_PUSH_STRING, OP_GET_PROP, OP_SET_PROP, OP_DEFINE_PROP, OP_UPDATE_PROP:
		return ReadU32(code, off+1), true
	case OP_THROW_ERROR:
		return ReadU32(code, off+2), true
	}
	return 0, false
}
