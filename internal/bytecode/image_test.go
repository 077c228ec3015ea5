package bytecode_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nalgeon/be"

	"github.com/funvibe/funscript/internal/bytecode"
	"github.com/funvibe/funscript/internal/compiler"
	"github.com/funvibe/funscript/internal/scope"
)

const imageSource = `
function add(a, b) { return a + b; }
let s = "hi";
var xs = [1.5, 2, s];
add(1, 2) + s;`

func compileSource(t *testing.T, src string) *bytecode.Program {
	t.Helper()
	prog, err := compiler.Compile(src, compiler.Options{Globals: scope.NewGlobalTable()})
	be.Err(t, err, nil)
	return prog
}

func TestImageRoundTrip(t *testing.T) {
	prog := compileSource(t, imageSource)
	data, err := prog.Marshal()
	be.Err(t, err, nil)
	be.True(t, bytecode.IsImage(data))

	loaded, err := bytecode.Unmarshal(data)
	be.Err(t, err, nil)
	be.Equal(t, loaded.Root.Code, prog.Root.Code)
	be.Equal(t, loaded.Strings, prog.Strings)
	be.Equal(t, loaded.Doubles, prog.Doubles)
	be.Equal(t, len(loaded.Globals), len(prog.Globals))
	be.Equal(t, loaded.Source, prog.Source)
	be.Equal(t, len(loaded.Root.Children), 1)
	be.Equal(t, loaded.Root.Children[0].Name, "add")
	be.Equal(t, loaded.Root.Children[0].ParamCount, 2)
	be.True(t, loaded.Root.Tree == nil)

	again, err := loaded.Marshal()
	be.Err(t, err, nil)
	be.True(t, bytes.Equal(again, data))
}

func TestImageIsDeterministic(t *testing.T) {
	a, err := compileSource(t, imageSource).Marshal()
	be.Err(t, err, nil)
	b, err := compileSource(t, imageSource).Marshal()
	be.Err(t, err, nil)
	be.True(t, bytes.Equal(a, b))
}

func TestImageHeaderErrors(t *testing.T) {
	_, err := bytecode.Unmarshal([]byte("print(1)"))
	be.Err(t, err, bytecode.ErrNotImage)

	data, err := compileSource(t, "1").Marshal()
	be.Err(t, err, nil)
	data[4]++
	_, err = bytecode.Unmarshal(data)
	be.Err(t, err, bytecode.ErrVersionSkew)

	_, err = bytecode.Unmarshal(append([]byte("FSBC"), bytecode.TableVersion, 0xff))
	be.Err(t, err, "unmarshal image")
}

func TestValidateRejectsCorruptCode(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		want string
	}{
		{"unknown opcode", []byte{0xfe}, "unknown opcode"},
		{"truncated", []byte{byte(bytecode.OP_PUSH_INT), 0, 0}, "truncated"},
		{"jump into operand", []byte{byte(bytecode.OP_JUMP), 0, 0, 0, 2, byte(bytecode.OP_NOP)}, "not an instruction"},
		{"child out of range", []byte{byte(bytecode.OP_CLOSURE), 0, 0}, "child 0 out of range"},
		{"string out of range", []byte{byte(bytecode.OP_PUSH_STRING), 0, 0, 0, 9}, "string handle 9"},
		{"double out of range", []byte{byte(bytecode.OP_PUSH_DOUBLE), 0, 0, 0, 0}, "double handle 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := &bytecode.Program{
				Root:    &bytecode.CompiledFunction{Name: "<main>", Code: tt.code},
				Strings: []string{"a"},
			}
			err := prog.Validate()
			be.Err(t, err, bytecode.ErrCorruptProgram)
			be.Err(t, err, tt.want)
		})
	}

	// a jump to the end of the code is allowed
	ok := &bytecode.Program{Root: &bytecode.CompiledFunction{
		Code: []byte{byte(bytecode.OP_JUMP), 0, 0, 0, 5},
	}}
	be.Err(t, ok.Validate(), nil)
}

func TestDisassemble(t *testing.T) {
	out := compileSource(t, imageSource).Disassemble()
	be.True(t, strings.HasPrefix(out, "== <main> (params=0"))
	be.True(t, strings.Contains(out, "== <main>/0:add (params=2"))
	be.True(t, strings.Contains(out, `; "hi"`))
	be.True(t, strings.Contains(out, "CALL_DIRECT 0 0 2"))
	be.True(t, strings.Contains(out, "ADD"))
	be.True(t, strings.Contains(out, "RETURN"))

	bad := &bytecode.CompiledFunction{Code: []byte{0xfe, byte(bytecode.OP_PUSH_INT), 0}}
	listing := bytecode.Disassemble(bad, nil)
	be.True(t, strings.Contains(listing, "<bad opcode 254>"))
	be.True(t, strings.Contains(listing, "PUSH_INT <truncated>"))
}
