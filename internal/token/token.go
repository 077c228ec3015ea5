package token

import "fmt"

type TokenType string

const (
	ILLEGAL TokenType = "ILLEGAL"
	EOF     TokenType = "EOF"

	// Identifiers and literals
	IDENT  TokenType = "IDENT"
	NUMBER TokenType = "NUMBER"
	STRING TokenType = "STRING"

	// Operators
	ASSIGN          TokenType = "="
	PLUS_ASSIGN     TokenType = "+="
	MINUS_ASSIGN    TokenType = "-="
	ASTERISK_ASSIGN TokenType = "*="
	SLASH_ASSIGN    TokenType = "/="
	PERCENT_ASSIGN  TokenType = "%="
	PLUS            TokenType = "+"
	MINUS           TokenType = "-"
	ASTERISK        TokenType = "*"
	SLASH           TokenType = "/"
	PERCENT         TokenType = "%"
	INCREMENT       TokenType = "++"
	DECREMENT       TokenType = "--"
	BANG            TokenType = "!"
	LT              TokenType = "<"
	GT              TokenType = ">"
	LTE             TokenType = "<="
	GTE             TokenType = ">="
	EQ              TokenType = "=="
	NOT_EQ          TokenType = "!="
	STRICT_EQ       TokenType = "==="
	STRICT_NOT_EQ   TokenType = "!=="
	AND             TokenType = "&&"
	OR              TokenType = "||"
	NULLISH         TokenType = "??"
	QUESTION        TokenType = "?"
	ARROW           TokenType = "=>"

	// Delimiters
	COMMA     TokenType = ","
	SEMICOLON TokenType = ";"
	COLON     TokenType = ":"
	DOT       TokenType = "."
	LPAREN    TokenType = "("
	RPAREN    TokenType = ")"
	LBRACE    TokenType = "{"
	RBRACE    TokenType = "}"
	LBRACKET  TokenType = "["
	RBRACKET  TokenType = "]"

	// Keywords
	VAR       TokenType = "VAR"
	LET       TokenType = "LET"
	CONST     TokenType = "CONST"
	FUNCTION  TokenType = "FUNCTION"
	RETURN    TokenType = "RETURN"
	IF        TokenType = "IF"
	ELSE      TokenType = "ELSE"
	WHILE     TokenType = "WHILE"
	DO        TokenType = "DO"
	FOR       TokenType = "FOR"
	BREAK     TokenType = "BREAK"
	CONTINUE  TokenType = "CONTINUE"
	THROW     TokenType = "THROW"
	TRY       TokenType = "TRY"
	CATCH     TokenType = "CATCH"
	FINALLY   TokenType = "FINALLY"
	TRUE      TokenType = "TRUE"
	FALSE     TokenType = "FALSE"
	NULL      TokenType = "NULL"
	UNDEFINED TokenType = "UNDEFINED"
	THIS      TokenType = "THIS"
	TYPEOF    TokenType = "TYPEOF"

	// Reserved words the parser rejects with a dedicated message
	WITH  TokenType = "WITH"
	NEW   TokenType = "NEW"
	CLASS TokenType = "CLASS"
)

var keywords = map[string]TokenType{
	"var":       VAR,
	"let":       LET,
	"const":     CONST,
	"function":  FUNCTION,
	"return":    RETURN,
	"if":        IF,
	"else":      ELSE,
	"while":     WHILE,
	"do":        DO,
	"for":       FOR,
	"break":     BREAK,
	"continue":  CONTINUE,
	"throw":     THROW,
	"try":       TRY,
	"catch":     CATCH,
	"finally":   FINALLY,
	"true":      TRUE,
	"false":     FALSE,
	"null":      NULL,
	"undefined": UNDEFINED,
	"this":      THIS,
	"typeof":    TYPEOF,
	"with":      WITH,
	"new":       NEW,
	"class":     CLASS,
}

// LookupIdent returns the keyword type for ident, or IDENT.
// "of" stays an identifier; the parser recognizes it contextually.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// Token is a single lexical unit with its source position.
type Token struct {
	Type    TokenType
	Lexeme  string      // raw source text
	Literal interface{} // decoded value: float64 for NUMBER, string for STRING and IDENT
	Line    int
	Column  int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q) at %d:%d", t.Type, t.Lexeme, t.Line, t.Column)
}
