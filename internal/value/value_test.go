package value

import (
	"math"
	"testing"

	"github.com/nalgeon/be"
)

func TestNumberToString(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{math.Copysign(0, -1), "0"},
		{42, "42"},
		{-1.5, "-1.5"},
		{0.1, "0.1"},
		{1e21, "1e+21"},
		{1e-7, "1e-7"},
		{123456789012, "123456789012"},
		{math.NaN(), "NaN"},
		{math.Inf(-1), "-Infinity"},
	}
	for _, tt := range tests {
		be.Equal(t, NumberToString(tt.in), tt.want)
	}
}

func TestStringToNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"", 0},
		{"  12 ", 12},
		{"0x1A", 26},
		{"0b101", 5},
		{"1e3", 1000},
		{"-Infinity", math.Inf(-1)},
	}
	for _, tt := range tests {
		be.Equal(t, StringToNumber(tt.in), tt.want)
	}
	for _, bad := range []string{"abc", "inf", "0x", "1px", "0x1p3"} {
		be.True(t, math.IsNaN(StringToNumber(bad)))
	}
}

func TestToBooleanAndTypeOf(t *testing.T) {
	falsy := []Value{Undefined(), Null(), Missing(), Bool(false), Number(0), Number(math.NaN()), String("")}
	for _, v := range falsy {
		be.Equal(t, ToBoolean(v), false)
	}
	be.True(t, ToBoolean(String("0")))
	be.True(t, ToBoolean(FromArray(NewArray(nil))))

	be.Equal(t, TypeOf(Null()), "object")
	be.Equal(t, TypeOf(Missing()), "undefined")
	be.Equal(t, TypeOf(FromNative(NewNative("f", 0, nil))), "function")
}

func TestAddAndCompare(t *testing.T) {
	be.Equal(t, Add(Number(1), Number(2)).AsNumber(), 3.0)
	be.Equal(t, Add(String("a"), Number(1)).AsString(), "a1")
	be.Equal(t, Add(Bool(true), Null()).AsNumber(), 1.0)
	arr := FromArray(NewArray([]Value{Int(1), Int(2)}))
	be.Equal(t, Add(arr, Int(3)).AsString(), "1,23")

	cmp, ok := Compare(String("a"), String("b"))
	be.True(t, ok)
	be.Equal(t, cmp, -1)
	cmp, ok = Compare(String("10"), Int(9))
	be.True(t, ok)
	be.Equal(t, cmp, 1)
	_, ok = Compare(Undefined(), Int(1))
	be.Equal(t, ok, false)
}

func TestEquality(t *testing.T) {
	be.True(t, LooseEquals(Null(), Undefined()))
	be.Equal(t, LooseEquals(Null(), Int(0)), false)
	be.True(t, LooseEquals(String("1"), Int(1)))
	be.True(t, LooseEquals(Bool(true), Int(1)))
	be.True(t, StrictEquals(Missing(), Undefined()))
	be.Equal(t, StrictEquals(String("1"), Int(1)), false)
	be.Equal(t, StrictEquals(Number(math.NaN()), Number(math.NaN())), false)

	o := FromObject(NewObject())
	be.True(t, StrictEquals(o, o))
	be.Equal(t, StrictEquals(o, FromObject(NewObject())), false)
}

func TestArrayModel(t *testing.T) {
	a := NewArray([]Value{Int(1)})
	v := FromArray(a)

	be.Err(t, SetElement(v, Int(3), String("x")), nil)
	be.Equal(t, len(a.Elements), 4)
	be.Equal(t, a.Keys(), []string{"0", "3"})
	got, err := GetElement(v, String("2"))
	be.Err(t, err, nil)
	be.True(t, got.IsUndefined())

	be.Err(t, SetMember(v, "length", Int(1)), nil)
	be.Equal(t, len(a.Elements), 1)
	be.Err(t, SetMember(v, "length", Number(-1)), "Invalid array length")

	_, ok := ArrayIndex(String("01"))
	be.Equal(t, ok, false)
	i, ok := ArrayIndex(Number(7))
	be.True(t, ok)
	be.Equal(t, i, 7)
}

func TestStringMembers(t *testing.T) {
	s := String("a😀")
	n, err := GetMember(s, "length")
	be.Err(t, err, nil)
	be.Equal(t, n.AsNumber(), 3.0)
	c, err := GetElement(s, Int(0))
	be.Err(t, err, nil)
	be.Equal(t, c.AsString(), "a")
	m, err := GetMember(s, "toUpperCase")
	be.Err(t, err, nil)
	be.True(t, m.IsCallable())

	_, err = GetMember(Null(), "x")
	be.Err(t, err, "Cannot read properties of null (reading 'x')")
	be.Err(t, SetMember(Undefined(), "x", Int(1)), "Cannot set properties of undefined")
}

func TestInspectAndErrors(t *testing.T) {
	a := FromArray(NewArray([]Value{Int(1), String("a"), Hole()}))
	be.Equal(t, a.Inspect(), `[1, "a", <empty>]`)
	be.Equal(t, ToString(a), "1,a,")

	e := NewErrorObject(TypeError, "boom")
	be.Equal(t, ToString(e), "TypeError: boom")
	be.Equal(t, e.Inspect(), "TypeError: boom")
	be.Equal(t, ErrorKindOf(e), TypeError)
	be.Equal(t, ErrorKindOf(Int(1)), ErrorKind(""))
	be.Equal(t, Errorf(RangeError, "n=%d", 3).Error(), "RangeError: n=3")
}
