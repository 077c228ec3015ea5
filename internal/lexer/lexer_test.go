package lexer

import (
	"errors"
	"testing"

	"github.com/nalgeon/be"

	"github.com/funvibe/funscript/internal/token"
)

func types(toks []token.Token) []token.TokenType {
	out := make([]token.TokenType, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

func TestOperators(t *testing.T) {
	toks, err := Tokenize("= == === => != !== ++ += -- -= *= /= %= <= >= && || ?? ? : .")
	be.Err(t, err, nil)
	be.Equal(t, types(toks), []token.TokenType{
		token.ASSIGN, token.EQ, token.STRICT_EQ, token.ARROW, token.NOT_EQ, token.STRICT_NOT_EQ,
		token.INCREMENT, token.PLUS_ASSIGN, token.DECREMENT, token.MINUS_ASSIGN,
		token.ASTERISK_ASSIGN, token.SLASH_ASSIGN, token.PERCENT_ASSIGN,
		token.LTE, token.GTE, token.AND, token.OR, token.NULLISH, token.QUESTION, token.COLON, token.DOT,
		token.EOF,
	})
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	toks, err := Tokenize("let $x = _y; typeof of undefined")
	be.Err(t, err, nil)
	be.Equal(t, types(toks), []token.TokenType{
		token.LET, token.IDENT, token.ASSIGN, token.IDENT, token.SEMICOLON,
		token.TYPEOF, token.IDENT, token.UNDEFINED, token.EOF,
	})
	be.Equal(t, toks[1].Literal, interface{}("$x"))
	be.Equal(t, toks[6].Lexeme, "of")
}

func TestNumbers(t *testing.T) {
	tests := []struct {
		src  string
		want float64
	}{
		{"42", 42},
		{"3.25", 3.25},
		{".5", 0.5},
		{"1e3", 1000},
		{"2E-2", 0.02},
		{"0xff", 255},
		{"0X10", 16},
	}
	for _, tt := range tests {
		toks, err := Tokenize(tt.src)
		be.Err(t, err, nil)
		be.Equal(t, toks[0].Type, token.NUMBER)
		be.Equal(t, toks[0].Literal, interface{}(tt.want))
		be.Equal(t, toks[0].Lexeme, tt.src)
	}
}

func TestStrings(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`"plain"`, "plain"},
		{`'single "quoted"'`, `single "quoted"`},
		{`"a\nb\tc"`, "a\nb\tc"},
		{`"\x41B"`, "AB"},
		{`'it\'s'`, "it's"},
		{"\"line\\\ncontinued\"", "linecontinued"},
	}
	for _, tt := range tests {
		toks, err := Tokenize(tt.src)
		be.Err(t, err, nil)
		be.Equal(t, toks[0].Type, token.STRING)
		be.Equal(t, toks[0].Literal, interface{}(tt.want))
	}
}

func TestPositionsSkipComments(t *testing.T) {
	toks, err := Tokenize("// header\nlet a /* inline */ = 1;\n  b")
	be.Err(t, err, nil)
	be.Equal(t, toks[0].Line, 2)
	be.Equal(t, toks[0].Column, 1)
	be.Equal(t, toks[2].Type, token.ASSIGN)
	be.Equal(t, toks[2].Column, 20)
	be.Equal(t, toks[5].Lexeme, "b")
	be.Equal(t, toks[5].Line, 3)
	be.Equal(t, toks[5].Column, 3)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		src  string
		msg  string
		line int
		col  int
	}{
		{`"open`, "unterminated string literal", 1, 1},
		{"x /* never closed", "unterminated block comment", 1, 18},
		{"a & b", "bitwise operators are not supported", 1, 3},
		{"`tpl`", "template literals are not supported", 1, 1},
		{"1e+", "missing exponent digits", 1, 1},
		{"\n  3px", "identifier starts immediately after numeric literal", 2, 3},
		{`"\x4g"`, "invalid hexadecimal escape sequence", 1, 1},
		{"#", `unexpected character "#"`, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			_, err := Tokenize(tt.src)
			var le *Error
			be.True(t, errors.As(err, &le))
			be.Equal(t, le.Message, tt.msg)
			be.Equal(t, le.Line, tt.line)
			be.Equal(t, le.Column, tt.col)
		})
	}
}
