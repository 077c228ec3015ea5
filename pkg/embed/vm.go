// Package funscript embeds the script engine in Go programs.
package funscript

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/funvibe/funscript/internal/bytecode"
	"github.com/funvibe/funscript/internal/compiler"
	"github.com/funvibe/funscript/internal/value"
	"github.com/funvibe/funscript/internal/vm"
)

// VM wraps the interpreter and provides a high-level embedding API. Every
// unit it compiles shares one global namespace, so functions and vars
// declared by one Eval are visible to the next.
type VM struct {
	machine    *vm.VM
	marshaller *Marshaller
}

// Program is a compiled unit bound to the VM that compiled it.
type Program struct {
	prog *bytecode.Program
}

// Marshal encodes the program as an image that LoadImage accepts.
func (p *Program) Marshal() ([]byte, error) { return p.prog.Marshal() }

// Disassemble lists the program's instructions, nested functions included.
func (p *Program) Disassemble() string {
	return p.prog.Disassemble()
}

// New creates a new VM instance.
func New() *VM {
	return &VM{
		machine:    vm.New(),
		marshaller: NewMarshaller(),
	}
}

// SetOutput redirects print.
func (v *VM) SetOutput(w io.Writer) { v.machine.SetOutput(w) }

// SetContext makes running scripts stop when ctx is done.
func (v *VM) SetContext(ctx context.Context) { v.machine.SetContext(ctx) }

// SetStepLimit bounds the instructions one call into the VM may run.
func (v *VM) SetStepLimit(n int64) { v.machine.SetStepLimit(n) }

// Bind registers a Go function or value as a global. Functions are called
// with their arguments converted by the Marshaller.
func (v *VM) Bind(name string, val interface{}) error {
	obj, err := v.marshaller.toValueNamed(val, name)
	if err != nil {
		return fmt.Errorf("bind %s: %w", name, err)
	}
	v.machine.Define(name, obj)
	return nil
}

// Set sets a global variable in the VM.
func (v *VM) Set(name string, val interface{}) error {
	return v.Bind(name, val)
}

// Get retrieves a global variable from the VM.
func (v *VM) Get(name string) (interface{}, error) {
	obj, ok := v.machine.Global(name)
	if !ok {
		return nil, fmt.Errorf("variable '%s' not found", name)
	}
	return v.marshaller.FromValue(obj, nil)
}

// Call calls a global function by name.
func (v *VM) Call(funcName string, args ...interface{}) (interface{}, error) {
	fnObj, ok := v.machine.Global(funcName)
	if !ok {
		return nil, fmt.Errorf("function '%s' not found", funcName)
	}
	return v.CallValue(fnObj, args...)
}

// CallValue calls a function value, for instance one a script returned.
func (v *VM) CallValue(fn interface{}, args ...interface{}) (interface{}, error) {
	fnObj, err := v.marshaller.ToValue(fn)
	if err != nil {
		return nil, err
	}
	scriptArgs := make([]value.Value, len(args))
	for i, arg := range args {
		obj, err := v.marshaller.ToValue(arg)
		if err != nil {
			return nil, err
		}
		scriptArgs[i] = obj
	}
	result, err := v.machine.Call(fnObj, value.Undefined(), scriptArgs)
	if err != nil {
		return nil, err
	}
	return v.marshaller.FromValue(result, nil)
}

// Compile compiles code as a unit of this VM's global namespace.
func (v *VM) Compile(name, code string) (*Program, error) {
	prog, err := compiler.Compile(code, compiler.Options{
		Name:       name,
		Persistent: true,
		Globals:    v.machine.Globals(),
		Pool:       v.machine.Pool(),
	})
	if err != nil {
		return nil, err
	}
	return &Program{prog: prog}, nil
}

// LoadImage decodes an image produced by Program.Marshal.
func (v *VM) LoadImage(data []byte) (*Program, error) {
	prog, err := bytecode.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	if err := v.machine.Load(prog); err != nil {
		return nil, err
	}
	return &Program{prog: prog}, nil
}

// Run runs a program and then its queued jobs, returning the program's
// completion value.
func (v *VM) Run(p *Program) (interface{}, error) {
	result, err := v.machine.Run(p.prog)
	if err != nil {
		return nil, err
	}
	if err := v.machine.RunJobs(); err != nil {
		return nil, err
	}
	return v.marshaller.FromValue(result, nil)
}

// Eval compiles and runs code.
func (v *VM) Eval(code string) (interface{}, error) {
	p, err := v.Compile("<eval>", code)
	if err != nil {
		return nil, err
	}
	return v.Run(p)
}

// LoadFile compiles and runs a source file.
func (v *VM) LoadFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	p, err := v.Compile(path, string(content))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	_, err = v.Run(p)
	return err
}
