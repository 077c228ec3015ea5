package value

import "fmt"

// ErrorKind names a built-in error constructor.
type ErrorKind string

const (
	PlainError     ErrorKind = "Error"
	TypeError      ErrorKind = "TypeError"
	RangeError     ErrorKind = "RangeError"
	ReferenceError ErrorKind = "ReferenceError"
	SyntaxError    ErrorKind = "SyntaxError"
)

// Error is raised by value operations that fail; the interpreter turns it
// into a thrown error object.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Errorf builds an *Error of the given kind.
func Errorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewErrorObject creates a thrown error value with name and message
// properties.
func NewErrorObject(kind ErrorKind, message string) Value {
	o := NewObject()
	o.Class = ClassError
	o.Define("name", String(string(kind)))
	o.Define("message", String(message))
	return FromObject(o)
}

// ErrorKindOf returns the kind of an error object, or "" for other values.
func ErrorKindOf(v Value) ErrorKind {
	o := v.AsObject()
	if o == nil || o.Class != ClassError {
		return ""
	}
	return ErrorKind(ToString(o.GetOwn("name")))
}
