package value

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
)

// ToBoolean implements truthiness.
func ToBoolean(v Value) bool {
	switch v.Type {
	case ValUndefined, ValNull, ValMissing, ValHole:
		return false
	case ValBool:
		return v.AsBool()
	case ValNumber:
		f := v.AsNumber()
		return f != 0 && !math.IsNaN(f)
	case ValString:
		return v.AsString() != ""
	}
	return true
}

// ToNumber converts v to a number. Objects convert through their string form.
func ToNumber(v Value) float64 {
	switch v.Type {
	case ValUndefined, ValMissing, ValHole:
		return math.NaN()
	case ValNull:
		return 0
	case ValBool:
		if v.AsBool() {
			return 1
		}
		return 0
	case ValNumber:
		return v.AsNumber()
	case ValString:
		return StringToNumber(v.AsString())
	case ValArray:
		return StringToNumber(ToString(v))
	}
	return math.NaN()
}

// StringToNumber parses numeric text: surrounding whitespace is ignored, the
// empty string is 0, and 0x/0o/0b prefixes are honored.
func StringToNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return math.NaN()
			}
			return float64(n)
		}
	}
	// ParseFloat accepts forms the language does not, such as "inf" or "0x1p3".
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-') {
			return math.NaN()
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return f
		}
		return math.NaN()
	}
	return f
}

// NumberToString formats a number the way the language prints it: integers
// without a fraction, shortest round-trip digits otherwise, and exponent form
// outside [1e-6, 1e21).
func NumberToString(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		// Go writes e+06 style exponents; the language writes e+6.
		mant, exp, _ := strings.Cut(s, "e")
		sign := exp[0]
		exp = strings.TrimLeft(exp[1:], "0")
		return mant + "e" + string(sign) + exp
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ToString converts v to its string form.
func ToString(v Value) string {
	switch v.Type {
	case ValUndefined, ValMissing, ValHole:
		return "undefined"
	case ValNull:
		return "null"
	case ValBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case ValNumber:
		return NumberToString(v.AsNumber())
	case ValString:
		return v.AsString()
	case ValArray:
		return v.AsArray().Join(",")
	case ValObject:
		o := v.AsObject()
		if o.Class == ClassError {
			name := ToString(o.GetOwn("name"))
			msg := ToString(o.GetOwn("message"))
			if msg == "" {
				return name
			}
			return name + ": " + msg
		}
		return "[object Object]"
	case ValClosure, ValNative, ValBound:
		return "function " + FunctionName(v) + "() { [code] }"
	case ValIterator:
		return "[object Iterator]"
	}
	return ""
}

// ToPropertyKey converts a computed key to the property name it addresses.
func ToPropertyKey(v Value) string {
	return ToString(v)
}

// ArrayIndex reports whether v addresses an array element and returns its
// index. Numbers must be non-negative integers; strings must be canonical
// decimal forms of such integers.
func ArrayIndex(v Value) (int, bool) {
	switch v.Type {
	case ValNumber:
		f := v.AsNumber()
		if f >= 0 && f == math.Trunc(f) && f < math.MaxInt32 {
			return int(f), true
		}
	case ValString:
		s := v.AsString()
		if s == "" || (len(s) > 1 && s[0] == '0') {
			return 0, false
		}
		n, err := strconv.Atoi(s)
		if err == nil && n >= 0 {
			return n, true
		}
	}
	return 0, false
}

// StringLength is the length in UTF-16 code units.
func StringLength(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// CharAt returns the UTF-16 code unit at i as a one-unit string.
func CharAt(s string, i int) (string, bool) {
	units := utf16.Encode([]rune(s))
	if i < 0 || i >= len(units) {
		return "", false
	}
	return string(utf16.Decode(units[i : i+1])), true
}

func isPrimitive(v Value) bool {
	switch v.Type {
	case ValObject, ValArray, ValClosure, ValNative, ValBound, ValIterator:
		return false
	}
	return true
}

// Add implements the + operator: string concatenation when either side is a
// string after primitive conversion, numeric addition otherwise.
func Add(a, b Value) Value {
	if a.Type == ValNumber && b.Type == ValNumber {
		return Number(a.AsNumber() + b.AsNumber())
	}
	if !isPrimitive(a) {
		a = String(ToString(a))
	}
	if !isPrimitive(b) {
		b = String(ToString(b))
	}
	if a.Type == ValString || b.Type == ValString {
		return String(ToString(a) + ToString(b))
	}
	return Number(ToNumber(a) + ToNumber(b))
}

// Mod is the floating remainder with the sign of the dividend.
func Mod(a, b float64) float64 {
	return math.Mod(a, b)
}

// Compare implements the relational operators. ok is false when either side
// converts to NaN, in which case every relation is false.
func Compare(a, b Value) (cmp int, ok bool) {
	if !isPrimitive(a) {
		a = String(ToString(a))
	}
	if !isPrimitive(b) {
		b = String(ToString(b))
	}
	if a.Type == ValString && b.Type == ValString {
		return compareUTF16(a.AsString(), b.AsString()), true
	}
	x, y := ToNumber(a), ToNumber(b)
	if math.IsNaN(x) || math.IsNaN(y) {
		return 0, false
	}
	switch {
	case x < y:
		return -1, true
	case x > y:
		return 1, true
	}
	return 0, true
}

func compareUTF16(a, b string) int {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			if ua[i] < ub[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(ua) < len(ub):
		return -1
	case len(ua) > len(ub):
		return 1
	}
	return 0
}

// StrictEquals implements ===.
func StrictEquals(a, b Value) bool {
	a, b = a.Normalize(), b.Normalize()
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case ValUndefined, ValNull:
		return true
	case ValBool:
		return a.AsBool() == b.AsBool()
	case ValNumber:
		return a.AsNumber() == b.AsNumber()
	case ValString:
		return a.AsString() == b.AsString()
	}
	return a.Obj == b.Obj
}

// LooseEquals implements == with the usual coercions: null and undefined are
// equal to each other only, booleans and strings compare numerically against
// numbers, and objects compare by their string form against primitives.
func LooseEquals(a, b Value) bool {
	a, b = a.Normalize(), b.Normalize()
	if a.Type == b.Type {
		return StrictEquals(a, b)
	}
	if a.IsNullish() || b.IsNullish() {
		return a.IsNullish() && b.IsNullish()
	}
	if a.Type == ValBool {
		return LooseEquals(Number(ToNumber(a)), b)
	}
	if b.Type == ValBool {
		return LooseEquals(a, Number(ToNumber(b)))
	}
	if a.Type == ValNumber && b.Type == ValString {
		return a.AsNumber() == StringToNumber(b.AsString())
	}
	if a.Type == ValString && b.Type == ValNumber {
		return StringToNumber(a.AsString()) == b.AsNumber()
	}
	if !isPrimitive(a) && isPrimitive(b) {
		return LooseEquals(String(ToString(a)), b)
	}
	if isPrimitive(a) && !isPrimitive(b) {
		return LooseEquals(a, String(ToString(b)))
	}
	return false
}
