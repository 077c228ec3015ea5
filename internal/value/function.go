package value

import (
	"github.com/funvibe/funscript/internal/bytecode"
)

// Frame is one runtime scope: a function activation or an entered block.
// Function frames carry the arguments and function-local variables; every
// frame carries the slots of its block-locals and registers. Parent is the
// lexically enclosing frame that variable depth operands walk.
type Frame struct {
	Parent     *Frame
	Fn         *bytecode.CompiledFunction
	Function   bool
	Slots      []Value
	Args       []Value // padded with Missing up to the parameter count
	Actual     int     // number of arguments the caller passed
	FuncLocals []Value
	Callee     Value
	This       Value

	// Captured is set once a closure or eval unit holds the frame, so the
	// interpreter never recycles it.
	Captured bool
}

// Ancestor walks depth Parent links.
func (f *Frame) Ancestor(depth int) *Frame {
	for ; depth > 0 && f != nil; depth-- {
		f = f.Parent
	}
	return f
}

// FunctionFrame returns the nearest function frame at or above f.
func (f *Frame) FunctionFrame() *Frame {
	for f != nil && !f.Function {
		f = f.Parent
	}
	return f
}

// CallContext lets natives call back into the interpreter.
type CallContext interface {
	Call(fn Value, this Value, args []Value) (Value, error)
}

// NativeFunc is the Go signature of a built-in function.
type NativeFunc func(ctx CallContext, this Value, args []Value) (Value, error)

// Closure is a compiled function paired with the frame it was created in.
type Closure struct {
	Fn  *bytecode.CompiledFunction
	Env *Frame
	// This is the receiver an arrow function closed over.
	This  Value
	props *Object
}

// Native is a Go-implemented function.
type Native struct {
	Name  string
	Arity int
	Fn    NativeFunc
	props *Object
}

func NewNative(name string, arity int, fn NativeFunc) *Native {
	return &Native{Name: name, Arity: arity, Fn: fn}
}

// Bound is the result of bind: a target with a fixed receiver and leading
// arguments.
type Bound struct {
	Target Value
	This   Value
	Args   []Value
	props  *Object
}

// FunctionName is the name property of a callable.
func FunctionName(v Value) string {
	switch v.Type {
	case ValClosure:
		return v.AsClosure().Fn.Name
	case ValNative:
		return v.AsNative().Name
	case ValBound:
		return "bound " + FunctionName(v.AsBound().Target)
	}
	return ""
}

// FunctionLength is the length property of a callable.
func FunctionLength(v Value) int {
	switch v.Type {
	case ValClosure:
		return v.AsClosure().Fn.ParamCount
	case ValNative:
		return v.AsNative().Arity
	case ValBound:
		b := v.AsBound()
		if n := FunctionLength(b.Target) - len(b.Args); n > 0 {
			return n
		}
	}
	return 0
}

func functionGet(self Value, props *Object, name string) (Value, bool) {
	if props != nil {
		if v, ok := props.Get(name); ok {
			return v, true
		}
	}
	switch name {
	case "name":
		return String(FunctionName(self)), true
	case "length":
		return Int(FunctionLength(self)), true
	}
	if m, ok := functionMethods[name]; ok {
		return FromNative(m), true
	}
	return Undefined(), false
}

func (c *Closure) Get(name string) (Value, bool) { return functionGet(FromClosure(c), c.props, name) }
func (c *Closure) Set(name string, v Value) error {
	c.Define(name, v)
	return nil
}
func (c *Closure) Define(name string, v Value) {
	if c.props == nil {
		c.props = NewObject()
	}
	c.props.Define(name, v)
}
func (c *Closure) GetIndex(key Value) (Value, bool)  { return c.Get(ToPropertyKey(key)) }
func (c *Closure) SetIndex(key Value, v Value) error { return c.Set(ToPropertyKey(key), v) }
func (c *Closure) Keys() []string                    { return propKeys(c.props) }

func (n *Native) Get(name string) (Value, bool) { return functionGet(FromNative(n), n.props, name) }
func (n *Native) Set(name string, v Value) error {
	n.Define(name, v)
	return nil
}
func (n *Native) Define(name string, v Value) {
	if n.props == nil {
		n.props = NewObject()
	}
	n.props.Define(name, v)
}
func (n *Native) GetIndex(key Value) (Value, bool)  { return n.Get(ToPropertyKey(key)) }
func (n *Native) SetIndex(key Value, v Value) error { return n.Set(ToPropertyKey(key), v) }
func (n *Native) Keys() []string                    { return propKeys(n.props) }

func (b *Bound) Get(name string) (Value, bool) { return functionGet(FromBound(b), b.props, name) }
func (b *Bound) Set(name string, v Value) error {
	b.Define(name, v)
	return nil
}
func (b *Bound) Define(name string, v Value) {
	if b.props == nil {
		b.props = NewObject()
	}
	b.props.Define(name, v)
}
func (b *Bound) GetIndex(key Value) (Value, bool)  { return b.Get(ToPropertyKey(key)) }
func (b *Bound) SetIndex(key Value, v Value) error { return b.Set(ToPropertyKey(key), v) }
func (b *Bound) Keys() []string                    { return propKeys(b.props) }

func propKeys(o *Object) []string {
	if o == nil {
		return nil
	}
	return o.Keys()
}
