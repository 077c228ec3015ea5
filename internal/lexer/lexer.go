package lexer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/funvibe/funscript/internal/token"
)

type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           rune // current char under examination
	line         int  // current line number
	column       int  // current column number
}

func New(input string) *Lexer {
	l := &Lexer{input: input, line: 1, column: 0}
	l.readChar()
	return l
}

// Error is a tokenizer failure with its source position.
type Error struct {
	Message string
	Line    int
	Column  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Message)
}

// Tokenize scans the whole input into a flat token stream terminated by EOF.
func Tokenize(input string) ([]token.Token, error) {
	l := New(input)
	tokens := make([]token.Token, 0, len(input)/3+1)
	for {
		tok := l.NextToken()
		if tok.Type == token.ILLEGAL {
			msg, _ := tok.Literal.(string)
			if msg == "" {
				msg = fmt.Sprintf("unexpected character %q", tok.Lexeme)
			}
			return nil, &Error{Message: msg, Line: tok.Line, Column: tok.Column}
		}
		tokens = append(tokens, tok)
		if tok.Type == token.EOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}

	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = l.readPosition
		l.readPosition++
		l.column++
		return
	}

	r, w := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.position = l.readPosition
	l.readPosition += w
	l.column++
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

func (l *Lexer) atEnd() bool {
	return l.position >= len(l.input)
}

func (l *Lexer) NextToken() token.Token {
	var tok token.Token

	if msg := l.skipWhitespaceAndComments(); msg != "" {
		return token.Token{Type: token.ILLEGAL, Lexeme: "/*", Literal: msg, Line: l.line, Column: l.column}
	}

	if l.atEnd() {
		return token.Token{Type: token.EOF, Line: l.line, Column: l.column}
	}

	line, col := l.line, l.column

	switch l.ch {
	case '=':
		// =, ==, ===, =>
		if l.peekChar() == '=' {
			l.readChar()
			if l.peekChar() == '=' {
				l.readChar()
				tok = l.makeToken(token.STRICT_EQ, "===", line, col)
			} else {
				tok = l.makeToken(token.EQ, "==", line, col)
			}
		} else if l.peekChar() == '>' {
			l.readChar()
			tok = l.makeToken(token.ARROW, "=>", line, col)
		} else {
			tok = newToken(token.ASSIGN, l.ch, line, col)
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			if l.peekChar() == '=' {
				l.readChar()
				tok = l.makeToken(token.STRICT_NOT_EQ, "!==", line, col)
			} else {
				tok = l.makeToken(token.NOT_EQ, "!=", line, col)
			}
		} else {
			tok = newToken(token.BANG, l.ch, line, col)
		}
	case '+':
		if l.peekChar() == '+' {
			l.readChar()
			tok = l.makeToken(token.INCREMENT, "++", line, col)
		} else if l.peekChar() == '=' {
			l.readChar()
			tok = l.makeToken(token.PLUS_ASSIGN, "+=", line, col)
		} else {
			tok = newToken(token.PLUS, l.ch, line, col)
		}
	case '-':
		if l.peekChar() == '-' {
			l.readChar()
			tok = l.makeToken(token.DECREMENT, "--", line, col)
		} else if l.peekChar() == '=' {
			l.readChar()
			tok = l.makeToken(token.MINUS_ASSIGN, "-=", line, col)
		} else {
			tok = newToken(token.MINUS, l.ch, line, col)
		}
	case '*':
		if l.peekChar() == '=' {
			l.readChar()
			tok = l.makeToken(token.ASTERISK_ASSIGN, "*=", line, col)
		} else {
			tok = newToken(token.ASTERISK, l.ch, line, col)
		}
	case '/':
		if l.peekChar() == '=' {
			l.readChar()
			tok = l.makeToken(token.SLASH_ASSIGN, "/=", line, col)
		} else {
			tok = newToken(token.SLASH, l.ch, line, col)
		}
	case '%':
		if l.peekChar() == '=' {
			l.readChar()
			tok = l.makeToken(token.PERCENT_ASSIGN, "%=", line, col)
		} else {
			tok = newToken(token.PERCENT, l.ch, line, col)
		}
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			tok = l.makeToken(token.LTE, "<=", line, col)
		} else {
			tok = newToken(token.LT, l.ch, line, col)
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = l.makeToken(token.GTE, ">=", line, col)
		} else {
			tok = newToken(token.GT, l.ch, line, col)
		}
	case '&':
		if l.peekChar() != '&' {
			return token.Token{Type: token.ILLEGAL, Lexeme: "&", Literal: "bitwise operators are not supported", Line: line, Column: col}
		}
		l.readChar()
		tok = l.makeToken(token.AND, "&&", line, col)
	case '|':
		if l.peekChar() != '|' {
			return token.Token{Type: token.ILLEGAL, Lexeme: "|", Literal: "bitwise operators are not supported", Line: line, Column: col}
		}
		l.readChar()
		tok = l.makeToken(token.OR, "||", line, col)
	case '?':
		if l.peekChar() == '?' {
			l.readChar()
			tok = l.makeToken(token.NULLISH, "??", line, col)
		} else {
			tok = newToken(token.QUESTION, l.ch, line, col)
		}
	case '.':
		if isDigit(l.peekChar()) {
			return l.readNumber(line, col)
		}
		tok = newToken(token.DOT, l.ch, line, col)
	case ',':
		tok = newToken(token.COMMA, l.ch, line, col)
	case ';':
		tok = newToken(token.SEMICOLON, l.ch, line, col)
	case ':':
		tok = newToken(token.COLON, l.ch, line, col)
	case '(':
		tok = newToken(token.LPAREN, l.ch, line, col)
	case ')':
		tok = newToken(token.RPAREN, l.ch, line, col)
	case '{':
		tok = newToken(token.LBRACE, l.ch, line, col)
	case '}':
		tok = newToken(token.RBRACE, l.ch, line, col)
	case '[':
		tok = newToken(token.LBRACKET, l.ch, line, col)
	case ']':
		tok = newToken(token.RBRACKET, l.ch, line, col)
	case '"', '\'':
		return l.readString(line, col)
	default:
		if isLetter(l.ch) {
			ident := l.readIdentifier()
			return token.Token{Type: token.LookupIdent(ident), Lexeme: ident, Literal: ident, Line: line, Column: col}
		}
		if isDigit(l.ch) {
			return l.readNumber(line, col)
		}
		if l.ch == '`' {
			return token.Token{Type: token.ILLEGAL, Lexeme: "`", Literal: "template literals are not supported", Line: line, Column: col}
		}
		tok = token.Token{Type: token.ILLEGAL, Lexeme: string(l.ch), Line: line, Column: col}
	}

	l.readChar()
	return tok
}

func newToken(tokenType token.TokenType, ch rune, line, col int) token.Token {
	return token.Token{Type: tokenType, Lexeme: string(ch), Literal: string(ch), Line: line, Column: col}
}

func (l *Lexer) makeToken(tokenType token.TokenType, lexeme string, line, col int) token.Token {
	return token.Token{Type: tokenType, Lexeme: lexeme, Literal: lexeme, Line: line, Column: col}
}

// skipWhitespaceAndComments returns a non-empty message for an unterminated block comment.
func (l *Lexer) skipWhitespaceAndComments() string {
	for !l.atEnd() {
		switch {
		case unicode.IsSpace(l.ch):
			l.readChar()
		case l.ch == '/' && l.peekChar() == '/':
			for !l.atEnd() && l.ch != '\n' {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			l.readChar()
			l.readChar()
			for {
				if l.atEnd() {
					return "unterminated block comment"
				}
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar()
					l.readChar()
					break
				}
				l.readChar()
			}
		default:
			return ""
		}
	}
	return ""
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for !l.atEnd() && (isLetter(l.ch) || isDigit(l.ch)) {
		l.readChar()
	}
	return l.input[start:l.position]
}

func (l *Lexer) readNumber(line, col int) token.Token {
	start := l.position

	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar()
		l.readChar()
		digits := l.position
		for !l.atEnd() && isHexDigit(l.ch) {
			l.readChar()
		}
		lexeme := l.input[start:l.position]
		v, err := strconv.ParseUint(l.input[digits:l.position], 16, 64)
		if err != nil {
			return token.Token{Type: token.ILLEGAL, Lexeme: lexeme, Literal: "invalid hexadecimal literal", Line: line, Column: col}
		}
		return token.Token{Type: token.NUMBER, Lexeme: lexeme, Literal: float64(v), Line: line, Column: col}
	}

	for !l.atEnd() && isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' {
		l.readChar()
		for !l.atEnd() && isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		if !isDigit(l.ch) {
			return token.Token{Type: token.ILLEGAL, Lexeme: l.input[start:l.position], Literal: "missing exponent digits", Line: line, Column: col}
		}
		for !l.atEnd() && isDigit(l.ch) {
			l.readChar()
		}
	}
	if isLetter(l.ch) {
		return token.Token{Type: token.ILLEGAL, Lexeme: l.input[start:l.position], Literal: "identifier starts immediately after numeric literal", Line: line, Column: col}
	}

	lexeme := l.input[start:l.position]
	v, err := strconv.ParseFloat(lexeme, 64)
	if err != nil {
		return token.Token{Type: token.ILLEGAL, Lexeme: lexeme, Literal: "invalid numeric literal", Line: line, Column: col}
	}
	return token.Token{Type: token.NUMBER, Lexeme: lexeme, Literal: v, Line: line, Column: col}
}

func (l *Lexer) readString(line, col int) token.Token {
	quote := l.ch
	start := l.position
	var sb strings.Builder
	l.readChar()
	for {
		if l.atEnd() || l.ch == '\n' {
			return token.Token{Type: token.ILLEGAL, Lexeme: l.input[start:l.position], Literal: "unterminated string literal", Line: line, Column: col}
		}
		if l.ch == quote {
			break
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '0':
				sb.WriteByte(0)
			case 'b':
				sb.WriteByte('\b')
			case 'f':
				sb.WriteByte('\f')
			case 'v':
				sb.WriteByte('\v')
			case 'x':
				r, ok := l.readHexEscape(2)
				if !ok {
					return token.Token{Type: token.ILLEGAL, Lexeme: l.input[start:l.position], Literal: "invalid hexadecimal escape sequence", Line: line, Column: col}
				}
				sb.WriteRune(r)
				continue
			case 'u':
				r, ok := l.readHexEscape(4)
				if !ok {
					return token.Token{Type: token.ILLEGAL, Lexeme: l.input[start:l.position], Literal: "invalid Unicode escape sequence", Line: line, Column: col}
				}
				sb.WriteRune(r)
				continue
			case '\n':
				// line continuation
			default:
				sb.WriteRune(l.ch)
			}
			l.readChar()
			continue
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}
	l.readChar() // closing quote
	return token.Token{Type: token.STRING, Lexeme: l.input[start:l.position], Literal: sb.String(), Line: line, Column: col}
}

// readHexEscape consumes n hex digits following \x or \u. On return the
// lexer sits on the first character after the escape.
func (l *Lexer) readHexEscape(n int) (rune, bool) {
	var r rune
	for i := 0; i < n; i++ {
		l.readChar()
		if !isHexDigit(l.ch) {
			return 0, false
		}
		d, _ := strconv.ParseUint(string(l.ch), 16, 8)
		r = r<<4 | rune(d)
	}
	l.readChar()
	return r, true
}

func isLetter(ch rune) bool {
	return ch == '_' || ch == '$' || unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

func isHexDigit(ch rune) bool {
	return isDigit(ch) || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
}
