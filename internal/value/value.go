// Package value is the runtime value representation: a tagged Value with one
// variant per kind, the object model consumed by the member-access opcodes,
// and the function and frame types the interpreter passes around.
package value

import (
	"fmt"
	"math"
)

// ValueType identifies the variant stored in a Value.
type ValueType uint8

const (
	ValUndefined ValueType = iota
	ValNull
	ValBool
	ValNumber
	ValString
	ValObject
	ValArray
	ValClosure
	ValNative
	ValBound
	ValIterator
	// ValMissing fills parameters the caller did not pass. It reads as undefined.
	ValMissing
	// ValHole marks an array elision.
	ValHole
)

var valueTypeNames = [...]string{
	ValUndefined: "undefined",
	ValNull:      "null",
	ValBool:      "boolean",
	ValNumber:    "number",
	ValString:    "string",
	ValObject:    "object",
	ValArray:     "array",
	ValClosure:   "closure",
	ValNative:    "native",
	ValBound:     "bound",
	ValIterator:  "iterator",
	ValMissing:   "missing",
	ValHole:      "hole",
}

func (t ValueType) String() string {
	if int(t) < len(valueTypeNames) {
		return valueTypeNames[t]
	}
	return fmt.Sprintf("ValueType(%d)", t)
}

// Value is a small tagged datum. Numbers and booleans live in Data; strings
// and heap objects are referenced through Obj.
type Value struct {
	Type ValueType
	Data uint64
	Obj  interface{}
}

// Constructors

func Undefined() Value { return Value{Type: ValUndefined} }
func Null() Value      { return Value{Type: ValNull} }
func Missing() Value   { return Value{Type: ValMissing} }
func Hole() Value      { return Value{Type: ValHole} }

func Bool(b bool) Value {
	var data uint64
	if b {
		data = 1
	}
	return Value{Type: ValBool, Data: data}
}

func Number(f float64) Value { return Value{Type: ValNumber, Data: math.Float64bits(f)} }

func Int(i int) Value { return Number(float64(i)) }

func String(s string) Value { return Value{Type: ValString, Obj: s} }

func FromObject(o *Object) Value { return Value{Type: ValObject, Obj: o} }

func FromArray(a *Array) Value { return Value{Type: ValArray, Obj: a} }

func FromClosure(c *Closure) Value { return Value{Type: ValClosure, Obj: c} }

func FromNative(n *Native) Value { return Value{Type: ValNative, Obj: n} }

func FromBound(b *Bound) Value { return Value{Type: ValBound, Obj: b} }

func FromIterator(it Iterator) Value { return Value{Type: ValIterator, Obj: it} }

// Accessors

func (v Value) AsBool() bool        { return v.Data == 1 }
func (v Value) AsNumber() float64   { return math.Float64frombits(v.Data) }
func (v Value) AsString() string    { s, _ := v.Obj.(string); return s }
func (v Value) AsObject() *Object   { o, _ := v.Obj.(*Object); return o }
func (v Value) AsArray() *Array     { a, _ := v.Obj.(*Array); return a }
func (v Value) AsClosure() *Closure { c, _ := v.Obj.(*Closure); return c }
func (v Value) AsNative() *Native   { n, _ := v.Obj.(*Native); return n }
func (v Value) AsBound() *Bound     { b, _ := v.Obj.(*Bound); return b }
func (v Value) AsIterator() Iterator {
	it, _ := v.Obj.(Iterator)
	return it
}

// Type checking helpers

func (v Value) IsUndefined() bool { return v.Type == ValUndefined || v.Type == ValMissing || v.Type == ValHole }
func (v Value) IsNull() bool      { return v.Type == ValNull }
func (v Value) IsNullish() bool   { return v.IsUndefined() || v.Type == ValNull }
func (v Value) IsNumber() bool    { return v.Type == ValNumber }
func (v Value) IsString() bool    { return v.Type == ValString }
func (v Value) IsMissing() bool   { return v.Type == ValMissing }

// IsCallable reports whether v can be the target of a call.
func (v Value) IsCallable() bool {
	switch v.Type {
	case ValClosure, ValNative, ValBound:
		return true
	}
	return false
}

// Model returns the object model behind v, or nil for primitives.
func (v Value) Model() ObjectModel {
	if m, ok := v.Obj.(ObjectModel); ok {
		return m
	}
	return nil
}

// Normalize turns the internal Missing and Hole markers into undefined.
func (v Value) Normalize() Value {
	if v.Type == ValMissing || v.Type == ValHole {
		return Undefined()
	}
	return v
}

// TypeOf implements the typeof operator.
func TypeOf(v Value) string {
	switch v.Type {
	case ValUndefined, ValMissing, ValHole:
		return "undefined"
	case ValNull:
		return "object"
	case ValBool:
		return "boolean"
	case ValNumber:
		return "number"
	case ValString:
		return "string"
	case ValClosure, ValNative, ValBound:
		return "function"
	default:
		return "object"
	}
}

// Inspect returns a debugging representation: strings are quoted and
// containers are expanded.
func (v Value) Inspect() string {
	return inspect(v, 0)
}

func inspect(v Value, depth int) string {
	switch v.Type {
	case ValString:
		return fmt.Sprintf("%q", v.AsString())
	case ValArray:
		if depth > 2 {
			return "[Array]"
		}
		a := v.AsArray()
		s := "["
		for i, e := range a.Elements {
			if i > 0 {
				s += ", "
			}
			if e.Type == ValHole {
				s += "<empty>"
				continue
			}
			s += inspect(e, depth+1)
		}
		return s + "]"
	case ValObject:
		o := v.AsObject()
		if o.Class == ClassError {
			return ToString(v)
		}
		if depth > 2 {
			return "[Object]"
		}
		s := "{"
		for i, k := range o.Keys() {
			if i > 0 {
				s += ","
			}
			pv, _ := o.Get(k)
			s += fmt.Sprintf(" %s: %s", k, inspect(pv, depth+1))
		}
		if len(o.Keys()) > 0 {
			s += " "
		}
		return s + "}"
	case ValClosure, ValNative, ValBound:
		return fmt.Sprintf("[Function: %s]", FunctionName(v))
	}
	return ToString(v)
}
