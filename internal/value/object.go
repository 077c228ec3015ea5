package value

import (
	"strings"
)

// ObjectModel is the property protocol the member-access opcodes use. Objects,
// arrays and functions implement it; primitives are handled by GetMember.
type ObjectModel interface {
	Get(name string) (Value, bool)
	Set(name string, v Value) error
	GetIndex(key Value) (Value, bool)
	SetIndex(key Value, v Value) error
	Define(name string, v Value)
	Keys() []string
}

// ObjectClass distinguishes plain objects from the built-in kinds that print
// differently.
type ObjectClass uint8

const (
	ClassPlain ObjectClass = iota
	ClassError
	ClassArguments
)

// Object is an insertion-ordered property map.
type Object struct {
	Class ObjectClass
	props map[string]Value
	keys  []string
}

func NewObject() *Object {
	return &Object{props: make(map[string]Value)}
}

func (o *Object) Get(name string) (Value, bool) {
	v, ok := o.props[name]
	return v, ok
}

// GetOwn returns the property or undefined.
func (o *Object) GetOwn(name string) Value {
	if v, ok := o.props[name]; ok {
		return v
	}
	return Undefined()
}

func (o *Object) Set(name string, v Value) error {
	o.Define(name, v)
	return nil
}

func (o *Object) Define(name string, v Value) {
	if o.props == nil {
		o.props = make(map[string]Value)
	}
	if _, ok := o.props[name]; !ok {
		o.keys = append(o.keys, name)
	}
	o.props[name] = v.Normalize()
}

func (o *Object) GetIndex(key Value) (Value, bool) {
	return o.Get(ToPropertyKey(key))
}

func (o *Object) SetIndex(key Value, v Value) error {
	return o.Set(ToPropertyKey(key), v)
}

func (o *Object) Keys() []string { return o.keys }

func (o *Object) Len() int { return len(o.keys) }

// Array is a dense element list. Elisions hold Hole values.
type Array struct {
	Elements []Value
	props    *Object
}

func NewArray(elems []Value) *Array {
	return &Array{Elements: elems}
}

func (a *Array) Get(name string) (Value, bool) {
	if name == "length" {
		return Int(len(a.Elements)), true
	}
	if i, ok := ArrayIndex(String(name)); ok {
		return a.element(i)
	}
	if a.props != nil {
		if v, ok := a.props.Get(name); ok {
			return v, true
		}
	}
	if m, ok := arrayMethods[name]; ok {
		return FromNative(m), true
	}
	return Undefined(), false
}

func (a *Array) element(i int) (Value, bool) {
	if i < len(a.Elements) && a.Elements[i].Type != ValHole {
		return a.Elements[i], true
	}
	return Undefined(), false
}

func (a *Array) Set(name string, v Value) error {
	if name == "length" {
		return a.setLength(v)
	}
	if i, ok := ArrayIndex(String(name)); ok {
		a.setElement(i, v)
		return nil
	}
	a.Define(name, v)
	return nil
}

func (a *Array) setLength(v Value) error {
	n := ToNumber(v)
	if n < 0 || n != float64(int(n)) {
		return &Error{Kind: RangeError, Message: "Invalid array length"}
	}
	l := int(n)
	switch {
	case l < len(a.Elements):
		a.Elements = a.Elements[:l]
	case l > len(a.Elements):
		for len(a.Elements) < l {
			a.Elements = append(a.Elements, Hole())
		}
	}
	return nil
}

func (a *Array) setElement(i int, v Value) {
	for len(a.Elements) <= i {
		a.Elements = append(a.Elements, Hole())
	}
	a.Elements[i] = v.Normalize()
}

func (a *Array) Define(name string, v Value) {
	if i, ok := ArrayIndex(String(name)); ok {
		a.setElement(i, v)
		return
	}
	if a.props == nil {
		a.props = NewObject()
	}
	a.props.Define(name, v)
}

func (a *Array) GetIndex(key Value) (Value, bool) {
	if i, ok := ArrayIndex(key); ok {
		return a.element(i)
	}
	return a.Get(ToPropertyKey(key))
}

func (a *Array) SetIndex(key Value, v Value) error {
	if i, ok := ArrayIndex(key); ok {
		a.setElement(i, v)
		return nil
	}
	return a.Set(ToPropertyKey(key), v)
}

func (a *Array) Keys() []string {
	keys := make([]string, 0, len(a.Elements))
	for i, e := range a.Elements {
		if e.Type != ValHole {
			keys = append(keys, NumberToString(float64(i)))
		}
	}
	if a.props != nil {
		keys = append(keys, a.props.Keys()...)
	}
	return keys
}

// Join concatenates the elements' string forms; undefined, null and holes
// contribute the empty string.
func (a *Array) Join(sep string) string {
	parts := make([]string, len(a.Elements))
	for i, e := range a.Elements {
		if !e.IsNullish() {
			parts[i] = ToString(e)
		}
	}
	return strings.Join(parts, sep)
}
