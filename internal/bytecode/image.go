package bytecode

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Image layout: the 4-byte magic "FSBC", one byte of TableVersion, then the
// canonical CBOR encoding of imagePayload. Canonical mode makes identical
// programs encode to identical bytes.
var imageMagic = []byte{'F', 'S', 'B', 'C'}

var (
	ErrNotImage       = errors.New("not a funscript image")
	ErrVersionSkew    = errors.New("image opcode table version mismatch")
	ErrCorruptProgram = errors.New("corrupt program")
)

type imagePayload struct {
	Root    *CompiledFunction `cbor:"1,keyasint"`
	Strings []string          `cbor:"2,keyasint"`
	Doubles []float64         `cbor:"3,keyasint"`
	Globals []string          `cbor:"4,keyasint"`
	Source  string            `cbor:"5,keyasint"`
	Mode    Mode              `cbor:"6,keyasint"`
}

var imageEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	imageEncMode = em
}

// IsImage reports whether data starts with the image magic.
func IsImage(data []byte) bool {
	return len(data) >= len(imageMagic) && bytes.Equal(data[:len(imageMagic)], imageMagic)
}

// Marshal encodes a Program as an image.
func (p *Program) Marshal() ([]byte, error) {
	payload, err := imageEncMode.Marshal(&imagePayload{
		Root:    p.Root,
		Strings: p.Strings,
		Doubles: p.Doubles,
		Globals: p.Globals,
		Source:  p.Source,
		Mode:    p.Mode,
	})
	if err != nil {
		return nil, fmt.Errorf("bytecode: marshal image: %w", err)
	}
	out := make([]byte, 0, len(imageMagic)+1+len(payload))
	out = append(out, imageMagic...)
	out = append(out, TableVersion)
	return append(out, payload...), nil
}

// Unmarshal decodes and validates an image.
func Unmarshal(data []byte) (*Program, error) {
	if !IsImage(data) || len(data) < len(imageMagic)+1 {
		return nil, ErrNotImage
	}
	if v := data[len(imageMagic)]; v != TableVersion {
		return nil, fmt.Errorf("%w: image has %d, engine has %d", ErrVersionSkew, v, TableVersion)
	}
	var payload imagePayload
	if err := cbor.Unmarshal(data[len(imageMagic)+1:], &payload); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal image: %w", err)
	}
	if payload.Root == nil {
		return nil, fmt.Errorf("%w: missing root function", ErrCorruptProgram)
	}
	prog := &Program{
		Root:    payload.Root,
		Strings: payload.Strings,
		Doubles: payload.Doubles,
		Globals: payload.Globals,
		Source:  payload.Source,
		Mode:    payload.Mode,
	}
	if err := prog.Validate(); err != nil {
		return nil, err
	}
	return prog, nil
}

// Validate checks every function decodes cleanly against the opcode table:
// known opcodes, operands within the code, jump targets on instruction
// boundaries, and child and pool indices in range.
func (p *Program) Validate() error {
	var err error
	p.Root.Walk(func(f *CompiledFunction) {
		if err == nil {
			err = p.validateFunction(f)
		}
	})
	return err
}

func (p *Program) validateFunction(f *CompiledFunction) error {
	starts := make(map[int]bool)
	var jumps []int
	for off := 0; off < len(f.Code); {
		info, ok := Lookup(Opcode(f.Code[off]))
		if !ok {
			return fmt.Errorf("%w: %s: unknown opcode %d at %d", ErrCorruptProgram, f.Name, f.Code[off], off)
		}
		if off+info.Size() > len(f.Code) {
			return fmt.Errorf("%w: %s: truncated %s at %d", ErrCorruptProgram, f.Name, info.Name, off)
		}
		starts[off] = true
		ops := DecodeOperands(f.Code, off, info)
		if info.Jump >= 0 {
			jumps = append(jumps, int(ops[info.Jump].Value))
		}
		switch Opcode(f.Code[off]) {
		case OP_CLOSURE:
			if int(ops[0].Value) >= len(f.Children) {
				return fmt.Errorf("%w: %s: child %d out of range", ErrCorruptProgram, f.Name, ops[0].Value)
			}
		case OP_PUSH_STRING, OP_GET_PROP, OP_SET_PROP, OP_DEFINE_PROP, OP_UPDATE_PROP:
			if int(ops[0].Value) >= len(p.Strings) {
				return fmt.Errorf("%w: %s: string handle %d out of range", ErrCorruptProgram, f.Name, ops[0].Value)
			}
		case OP_THROW_ERROR:
			if int(ops[1].Value) >= len(p.Strings) {
				return fmt.Errorf("%w: %s: string handle %d out of range", ErrCorruptProgram, f.Name, ops[1].Value)
			}
		case OP_PUSH_DOUBLE:
			if int(ops[0].Value) >= len(p.Doubles) {
				return fmt.Errorf("%w: %s: double handle %d out of range", ErrCorruptProgram, f.Name, ops[0].Value)
			}
		}
		off += info.Size()
	}
	for _, target := range jumps {
		if target != len(f.Code) && !starts[target] {
			return fmt.Errorf("%w: %s: jump target %d is not an instruction", ErrCorruptProgram, f.Name, target)
		}
	}
	return nil
}
