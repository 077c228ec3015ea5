package diagnostics

import (
	"fmt"

	"github.com/funvibe/funscript/internal/token"
)

// ErrorCode identifies a class of compile-time failure.
type ErrorCode string

const (
	// Lexer
	ErrL001 ErrorCode = "L001" // illegal character or malformed literal

	// Parser
	ErrP001 ErrorCode = "P001" // unexpected token
	ErrP002 ErrorCode = "P002" // expected token missing
	ErrP003 ErrorCode = "P003" // unsupported language feature
	ErrP004 ErrorCode = "P004" // invalid assignment target
	ErrP005 ErrorCode = "P005" // illegal redeclaration
	ErrP006 ErrorCode = "P006" // statement not allowed here
	ErrP007 ErrorCode = "P007" // nesting too deep

	// Code generation
	ErrC001 ErrorCode = "C001" // program exceeds an encoding limit
)

// Kind is the script-visible error constructor a failure maps to.
type Kind string

const (
	SyntaxError    Kind = "SyntaxError"
	TypeError      Kind = "TypeError"
	RangeError     Kind = "RangeError"
	ReferenceError Kind = "ReferenceError"
)

var codeKinds = map[ErrorCode]Kind{
	ErrC001: RangeError,
}

// DiagnosticError is a compile-time failure with its source position.
type DiagnosticError struct {
	Code    ErrorCode
	Kind    Kind
	Message string
	Line    int
	Column  int
}

// NewError builds a DiagnosticError positioned at tok.
func NewError(code ErrorCode, tok token.Token, format string, args ...interface{}) *DiagnosticError {
	return NewErrorAt(code, tok.Line, tok.Column, format, args...)
}

// NewErrorAt builds a DiagnosticError at an explicit position.
func NewErrorAt(code ErrorCode, line, column int, format string, args ...interface{}) *DiagnosticError {
	kind, ok := codeKinds[code]
	if !ok {
		kind = SyntaxError
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &DiagnosticError{Code: code, Kind: kind, Message: msg, Line: line, Column: column}
}

func (e *DiagnosticError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s (line %d, column %d)", e.Kind, e.Message, e.Line, e.Column)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}
