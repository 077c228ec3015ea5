package value

// Iterator yields the values a for-of loop visits.
type Iterator interface {
	Next() (Value, bool)
}

type arrayIterator struct {
	arr *Array
	pos int
}

// Next reads the live array, so elements pushed during the loop are visited.
func (it *arrayIterator) Next() (Value, bool) {
	if it.pos >= len(it.arr.Elements) {
		return Undefined(), false
	}
	v := it.arr.Elements[it.pos].Normalize()
	it.pos++
	return v, true
}

type stringIterator struct {
	runes []rune
	pos   int
}

func (it *stringIterator) Next() (Value, bool) {
	if it.pos >= len(it.runes) {
		return Undefined(), false
	}
	r := it.runes[it.pos]
	it.pos++
	return String(string(r)), true
}

// GetIterator returns an iterator over v: arrays by index and strings by
// code point. Anything else is a TypeError.
func GetIterator(v Value) (Iterator, error) {
	switch v.Type {
	case ValArray:
		return &arrayIterator{arr: v.AsArray()}, nil
	case ValString:
		return &stringIterator{runes: []rune(v.AsString())}, nil
	case ValIterator:
		return v.AsIterator(), nil
	}
	return nil, Errorf(TypeError, "%s is not iterable", Describe(v))
}

// Describe renders v the way error messages quote an operand.
func Describe(v Value) string {
	switch v.Type {
	case ValObject:
		return "object"
	case ValString:
		return `"` + v.AsString() + `"`
	}
	return ToString(v.Normalize())
}
