package value

import (
	"math"
	"strings"
	"unicode/utf16"
)

var (
	arrayMethods    map[string]*Native
	stringMethods   map[string]*Native
	functionMethods map[string]*Native
)

func init() {
	arrayMethods = map[string]*Native{
		"push":    NewNative("push", 1, arrayPush),
		"pop":     NewNative("pop", 0, arrayPop),
		"join":    NewNative("join", 1, arrayJoin),
		"indexOf": NewNative("indexOf", 1, arrayIndexOf),
		"slice":   NewNative("slice", 2, arraySlice),
		"forEach": NewNative("forEach", 1, arrayForEach),
		"map":     NewNative("map", 1, arrayMap),
	}
	stringMethods = map[string]*Native{
		"charAt":      NewNative("charAt", 1, stringCharAt),
		"indexOf":     NewNative("indexOf", 1, stringIndexOf),
		"slice":       NewNative("slice", 2, stringSlice),
		"toUpperCase": NewNative("toUpperCase", 0, stringToUpper),
		"toLowerCase": NewNative("toLowerCase", 0, stringToLower),
		"split":       NewNative("split", 1, stringSplit),
	}
	functionMethods = map[string]*Native{
		"call":  NewNative("call", 1, functionCall),
		"apply": NewNative("apply", 2, functionApply),
		"bind":  NewNative("bind", 1, functionBind),
	}
}

// GetMember reads a named property of any value. Reading from null or
// undefined is a TypeError.
func GetMember(v Value, name string) (Value, error) {
	switch v.Type {
	case ValUndefined, ValNull, ValMissing, ValHole:
		return Undefined(), Errorf(TypeError, "Cannot read properties of %s (reading '%s')", ToString(v.Normalize()), name)
	case ValString:
		s := v.AsString()
		if name == "length" {
			return Int(StringLength(s)), nil
		}
		if i, ok := ArrayIndex(String(name)); ok {
			if c, ok := CharAt(s, i); ok {
				return String(c), nil
			}
			return Undefined(), nil
		}
		if m, ok := stringMethods[name]; ok {
			return FromNative(m), nil
		}
		return Undefined(), nil
	}
	if m := v.Model(); m != nil {
		r, _ := m.Get(name)
		return r, nil
	}
	return Undefined(), nil
}

// GetElement reads obj[key].
func GetElement(v Value, key Value) (Value, error) {
	if m := v.Model(); m != nil {
		r, _ := m.GetIndex(key)
		return r, nil
	}
	return GetMember(v, ToPropertyKey(key))
}

// SetMember writes a named property. Writes to primitives other than null
// and undefined are silently dropped.
func SetMember(v Value, name string, val Value) error {
	switch v.Type {
	case ValUndefined, ValNull, ValMissing, ValHole:
		return Errorf(TypeError, "Cannot set properties of %s (setting '%s')", ToString(v.Normalize()), name)
	}
	if m := v.Model(); m != nil {
		return m.Set(name, val)
	}
	return nil
}

// SetElement writes obj[key].
func SetElement(v Value, key Value, val Value) error {
	if m := v.Model(); m != nil {
		return m.SetIndex(key, val)
	}
	return SetMember(v, ToPropertyKey(key), val)
}

func thisArray(this Value, method string) (*Array, error) {
	a := this.AsArray()
	if a == nil {
		return nil, Errorf(TypeError, "Array.prototype.%s called on non-array", method)
	}
	return a, nil
}

func arg(args []Value, i int) Value {
	if i < len(args) {
		return args[i].Normalize()
	}
	return Undefined()
}

func relativeIndex(v Value, length int, def int) int {
	if v.IsUndefined() {
		return def
	}
	n := ToNumber(v)
	if math.IsNaN(n) {
		return 0
	}
	i := int(math.Trunc(n))
	if i < 0 {
		i += length
		if i < 0 {
			i = 0
		}
	}
	if i > length {
		i = length
	}
	return i
}

func arrayPush(_ CallContext, this Value, args []Value) (Value, error) {
	a, err := thisArray(this, "push")
	if err != nil {
		return Undefined(), err
	}
	for _, v := range args {
		a.Elements = append(a.Elements, v.Normalize())
	}
	return Int(len(a.Elements)), nil
}

func arrayPop(_ CallContext, this Value, _ []Value) (Value, error) {
	a, err := thisArray(this, "pop")
	if err != nil {
		return Undefined(), err
	}
	if len(a.Elements) == 0 {
		return Undefined(), nil
	}
	last := a.Elements[len(a.Elements)-1]
	a.Elements = a.Elements[:len(a.Elements)-1]
	return last.Normalize(), nil
}

func arrayJoin(_ CallContext, this Value, args []Value) (Value, error) {
	a, err := thisArray(this, "join")
	if err != nil {
		return Undefined(), err
	}
	sep := ","
	if s := arg(args, 0); !s.IsUndefined() {
		sep = ToString(s)
	}
	return String(a.Join(sep)), nil
}

func arrayIndexOf(_ CallContext, this Value, args []Value) (Value, error) {
	a, err := thisArray(this, "indexOf")
	if err != nil {
		return Undefined(), err
	}
	needle := arg(args, 0)
	for i, e := range a.Elements {
		if e.Type != ValHole && StrictEquals(e, needle) {
			return Int(i), nil
		}
	}
	return Int(-1), nil
}

func arraySlice(_ CallContext, this Value, args []Value) (Value, error) {
	a, err := thisArray(this, "slice")
	if err != nil {
		return Undefined(), err
	}
	start := relativeIndex(arg(args, 0), len(a.Elements), 0)
	end := relativeIndex(arg(args, 1), len(a.Elements), len(a.Elements))
	if end < start {
		end = start
	}
	out := make([]Value, end-start)
	copy(out, a.Elements[start:end])
	return FromArray(NewArray(out)), nil
}

func arrayForEach(ctx CallContext, this Value, args []Value) (Value, error) {
	a, err := thisArray(this, "forEach")
	if err != nil {
		return Undefined(), err
	}
	fn := arg(args, 0)
	if !fn.IsCallable() {
		return Undefined(), Errorf(TypeError, "%s is not a function", ToString(fn))
	}
	for i := 0; i < len(a.Elements); i++ {
		if a.Elements[i].Type == ValHole {
			continue
		}
		if _, err := ctx.Call(fn, Undefined(), []Value{a.Elements[i], Int(i), this}); err != nil {
			return Undefined(), err
		}
	}
	return Undefined(), nil
}

func arrayMap(ctx CallContext, this Value, args []Value) (Value, error) {
	a, err := thisArray(this, "map")
	if err != nil {
		return Undefined(), err
	}
	fn := arg(args, 0)
	if !fn.IsCallable() {
		return Undefined(), Errorf(TypeError, "%s is not a function", ToString(fn))
	}
	out := make([]Value, len(a.Elements))
	for i := range out {
		if i >= len(a.Elements) || a.Elements[i].Type == ValHole {
			out[i] = Hole()
			continue
		}
		r, err := ctx.Call(fn, Undefined(), []Value{a.Elements[i], Int(i), this})
		if err != nil {
			return Undefined(), err
		}
		out[i] = r
	}
	return FromArray(NewArray(out)), nil
}

func stringUnits(this Value) []uint16 {
	return utf16.Encode([]rune(ToString(this)))
}

func stringCharAt(_ CallContext, this Value, args []Value) (Value, error) {
	n := ToNumber(arg(args, 0))
	if math.IsNaN(n) {
		n = 0
	}
	c, _ := CharAt(ToString(this), int(n))
	return String(c), nil
}

func stringIndexOf(_ CallContext, this Value, args []Value) (Value, error) {
	hay := stringUnits(this)
	needle := utf16.Encode([]rune(ToString(arg(args, 0))))
	for i := 0; i+len(needle) <= len(hay); i++ {
		match := true
		for j := range needle {
			if hay[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return Int(i), nil
		}
	}
	return Int(-1), nil
}

func stringSlice(_ CallContext, this Value, args []Value) (Value, error) {
	units := stringUnits(this)
	start := relativeIndex(arg(args, 0), len(units), 0)
	end := relativeIndex(arg(args, 1), len(units), len(units))
	if end < start {
		end = start
	}
	return String(string(utf16.Decode(units[start:end]))), nil
}

func stringToUpper(_ CallContext, this Value, _ []Value) (Value, error) {
	return String(strings.ToUpper(ToString(this))), nil
}

func stringToLower(_ CallContext, this Value, _ []Value) (Value, error) {
	return String(strings.ToLower(ToString(this))), nil
}

func stringSplit(_ CallContext, this Value, args []Value) (Value, error) {
	s := ToString(this)
	sep := arg(args, 0)
	if sep.IsUndefined() {
		return FromArray(NewArray([]Value{String(s)})), nil
	}
	var parts []string
	if sepStr := ToString(sep); sepStr == "" {
		for _, u := range utf16.Encode([]rune(s)) {
			parts = append(parts, string(utf16.Decode([]uint16{u})))
		}
	} else {
		parts = strings.Split(s, sepStr)
	}
	out := make([]Value, len(parts))
	for i, p := range parts {
		out[i] = String(p)
	}
	return FromArray(NewArray(out)), nil
}

func functionCall(ctx CallContext, this Value, args []Value) (Value, error) {
	if !this.IsCallable() {
		return Undefined(), Errorf(TypeError, "Function.prototype.call called on non-function")
	}
	var rest []Value
	if len(args) > 1 {
		rest = args[1:]
	}
	return ctx.Call(this, arg(args, 0), rest)
}

func functionApply(ctx CallContext, this Value, args []Value) (Value, error) {
	if !this.IsCallable() {
		return Undefined(), Errorf(TypeError, "Function.prototype.apply called on non-function")
	}
	var list []Value
	switch a := arg(args, 1); a.Type {
	case ValUndefined, ValNull:
	case ValArray:
		for _, e := range a.AsArray().Elements {
			list = append(list, e.Normalize())
		}
	default:
		return Undefined(), Errorf(TypeError, "CreateListFromArrayLike called on non-object")
	}
	return ctx.Call(this, arg(args, 0), list)
}

func functionBind(_ CallContext, this Value, args []Value) (Value, error) {
	if !this.IsCallable() {
		return Undefined(), Errorf(TypeError, "Bind must be called on a function")
	}
	var rest []Value
	if len(args) > 1 {
		rest = append(rest, args[1:]...)
	}
	return FromBound(&Bound{Target: this, This: arg(args, 0), Args: rest}), nil
}
