package parser

import (
	"strings"

	"github.com/funvibe/funscript/internal/ast"
	"github.com/funvibe/funscript/internal/diagnostics"
	"github.com/funvibe/funscript/internal/scope"
	"github.com/funvibe/funscript/internal/token"
)

// MaxRecursionDepth bounds expression and statement nesting.
const MaxRecursionDepth = 512

const (
	_ int = iota
	LOWEST
	ASSIGN      // = += -=
	CONDITIONAL // ?:
	NULLISH     // ??
	OR          // ||
	AND         // &&
	EQUALS      // == != === !==
	LESSGREATER // < > <= >=
	SUM         // + -
	PRODUCT     // * / %
	PREFIX      // -X !X typeof X ++X
	POSTFIX     // X++
	CALL        // f(x) a.b a[b]
)

var precedences = map[token.TokenType]int{
	token.ASSIGN:          ASSIGN,
	token.PLUS_ASSIGN:     ASSIGN,
	token.MINUS_ASSIGN:    ASSIGN,
	token.ASTERISK_ASSIGN: ASSIGN,
	token.SLASH_ASSIGN:    ASSIGN,
	token.PERCENT_ASSIGN:  ASSIGN,
	token.QUESTION:        CONDITIONAL,
	token.NULLISH:         NULLISH,
	token.OR:              OR,
	token.AND:             AND,
	token.EQ:              EQUALS,
	token.NOT_EQ:          EQUALS,
	token.STRICT_EQ:       EQUALS,
	token.STRICT_NOT_EQ:   EQUALS,
	token.LT:              LESSGREATER,
	token.GT:              LESSGREATER,
	token.LTE:             LESSGREATER,
	token.GTE:             LESSGREATER,
	token.PLUS:            SUM,
	token.MINUS:           SUM,
	token.ASTERISK:        PRODUCT,
	token.SLASH:           PRODUCT,
	token.PERCENT:         PRODUCT,
	token.INCREMENT:       POSTFIX,
	token.DECREMENT:       POSTFIX,
	token.LPAREN:          CALL,
	token.DOT:             CALL,
	token.LBRACKET:        CALL,
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// Parser is a recursive-descent (Pratt) parser that builds the AST and grows
// the unit's scope.Tree as it goes: every binding form declares into the
// current Scope and every name use is threaded as a Reference.
type Parser struct {
	tokens []token.Token
	pos    int

	curToken  token.Token
	peekToken token.Token
	prevToken token.Token

	tree  *scope.Tree
	scope scope.ScopeID

	prefixParseFns map[token.TokenType]prefixParseFn
	infixParseFns  map[token.TokenType]infixParseFn

	depth     int
	loopDepth int
	funcDepth int
}

// New creates a parser over a token stream terminated by EOF. Scopes,
// Declarations and References are created in tree, starting at its root.
func New(tokens []token.Token, tree *scope.Tree) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != token.EOF {
		tokens = append(tokens, token.Token{Type: token.EOF})
	}
	p := &Parser{
		tokens: tokens,
		tree:   tree,
		scope:  tree.Root().Scope,
	}

	p.prefixParseFns = map[token.TokenType]prefixParseFn{
		token.IDENT:     p.parseIdentifier,
		token.NUMBER:    p.parseNumberLiteral,
		token.STRING:    p.parseStringLiteral,
		token.TRUE:      p.parseBoolean,
		token.FALSE:     p.parseBoolean,
		token.NULL:      p.parseNull,
		token.UNDEFINED: p.parseUndefined,
		token.THIS:      p.parseThis,
		token.BANG:      p.parsePrefixExpression,
		token.MINUS:     p.parsePrefixExpression,
		token.PLUS:      p.parsePrefixExpression,
		token.TYPEOF:    p.parsePrefixExpression,
		token.INCREMENT: p.parsePrefixUpdate,
		token.DECREMENT: p.parsePrefixUpdate,
		token.LPAREN:    p.parseGroupedExpression,
		token.LBRACKET:  p.parseArrayLiteral,
		token.LBRACE:    p.parseObjectLiteral,
		token.FUNCTION:  p.parseFunctionExpression,
		token.NEW:       p.parseUnsupported,
		token.CLASS:     p.parseUnsupported,
		token.SLASH:     p.parseUnsupported,
		token.DOT:       p.parseUnsupported,
	}

	p.infixParseFns = map[token.TokenType]infixParseFn{
		token.PLUS:            p.parseInfixExpression,
		token.MINUS:           p.parseInfixExpression,
		token.ASTERISK:        p.parseInfixExpression,
		token.SLASH:           p.parseInfixExpression,
		token.PERCENT:         p.parseInfixExpression,
		token.EQ:              p.parseInfixExpression,
		token.NOT_EQ:          p.parseInfixExpression,
		token.STRICT_EQ:       p.parseInfixExpression,
		token.STRICT_NOT_EQ:   p.parseInfixExpression,
		token.LT:              p.parseInfixExpression,
		token.GT:              p.parseInfixExpression,
		token.LTE:             p.parseInfixExpression,
		token.GTE:             p.parseInfixExpression,
		token.AND:             p.parseLogicalExpression,
		token.OR:              p.parseLogicalExpression,
		token.NULLISH:         p.parseLogicalExpression,
		token.QUESTION:        p.parseConditionalExpression,
		token.ASSIGN:          p.parseAssignExpression,
		token.PLUS_ASSIGN:     p.parseAssignExpression,
		token.MINUS_ASSIGN:    p.parseAssignExpression,
		token.ASTERISK_ASSIGN: p.parseAssignExpression,
		token.SLASH_ASSIGN:    p.parseAssignExpression,
		token.PERCENT_ASSIGN:  p.parseAssignExpression,
		token.INCREMENT:       p.parsePostfixUpdate,
		token.DECREMENT:       p.parsePostfixUpdate,
		token.LPAREN:          p.parseCallExpression,
		token.DOT:             p.parseMemberExpression,
		token.LBRACKET:        p.parseIndexExpression,
	}

	p.pos = -1
	p.nextToken()
	return p
}

// Parse parses a whole unit. With isExpression set the input must be a
// single expression. Syntax errors unwind the descent and are returned as
// *diagnostics.DiagnosticError; any other panic is re-raised.
func Parse(tokens []token.Token, tree *scope.Tree, isExpression bool) (prog *ast.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			if de, ok := r.(*diagnostics.DiagnosticError); ok {
				prog, err = nil, de
				return
			}
			panic(r)
		}
	}()
	p := New(tokens, tree)
	if isExpression {
		return p.ParseExpressionUnit(), nil
	}
	return p.ParseProgram(), nil
}

// ParseProgram parses statements until EOF.
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{Scope: p.scope}
	for !p.curTokenIs(token.EOF) {
		program.Statements = append(program.Statements, p.parseStatement())
		p.nextToken()
	}
	p.tree.Root().EndLine = p.curToken.Line
	return program
}

// ParseExpressionUnit parses exactly one expression followed by EOF.
func (p *Parser) ParseExpressionUnit() *ast.Program {
	program := &ast.Program{Scope: p.scope}
	program.Expression = p.parseSequence()
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	if !p.peekTokenIs(token.EOF) {
		p.errorf(diagnostics.ErrP001, p.peekToken, "Unexpected token '%s'", p.peekToken.Lexeme)
	}
	p.nextToken()
	p.tree.Root().EndLine = p.curToken.Line
	return program
}

func (p *Parser) nextToken() {
	p.prevToken = p.curToken
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	p.curToken = p.tokens[p.pos]
	if p.pos+1 < len(p.tokens) {
		p.peekToken = p.tokens[p.pos+1]
	} else {
		p.peekToken = p.tokens[len(p.tokens)-1]
	}
}

// tokenAt looks n tokens past the current one.
func (p *Parser) tokenAt(n int) token.Token {
	i := p.pos + n
	if i >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[i]
}

func (p *Parser) curTokenIs(t token.TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t token.TokenType) bool { return p.peekToken.Type == t }

func (p *Parser) peekIsContextual(word string) bool {
	return p.peekToken.Type == token.IDENT && p.peekToken.Lexeme == word
}

func (p *Parser) expectPeek(t token.TokenType) {
	if !p.peekTokenIs(t) {
		p.peekError(t)
	}
	p.nextToken()
}

func (p *Parser) peekPrecedence() int {
	if pr, ok := precedences[p.peekToken.Type]; ok {
		return pr
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if pr, ok := precedences[p.curToken.Type]; ok {
		return pr
	}
	return LOWEST
}

// consumeSemicolon ends a statement: an explicit ';', or an inserted one
// before '}', EOF or a line break.
func (p *Parser) consumeSemicolon() {
	switch {
	case p.peekTokenIs(token.SEMICOLON):
		p.nextToken()
	case p.peekTokenIs(token.RBRACE), p.peekTokenIs(token.EOF):
	case p.peekToken.Line > p.curToken.Line:
	default:
		p.errorf(diagnostics.ErrP001, p.peekToken, "Unexpected token '%s'", p.peekToken.Lexeme)
	}
}

func (p *Parser) errorf(code diagnostics.ErrorCode, tok token.Token, format string, args ...interface{}) {
	panic(diagnostics.NewError(code, tok, format, args...))
}

func (p *Parser) peekError(t token.TokenType) {
	if p.peekTokenIs(token.EOF) {
		p.errorf(diagnostics.ErrP002, p.peekToken, "Unexpected end of input, expected '%s'", tokenText(t))
	}
	p.errorf(diagnostics.ErrP002, p.peekToken, "Unexpected token '%s', expected '%s'", p.peekToken.Lexeme, tokenText(t))
}

func tokenText(t token.TokenType) string {
	switch t {
	case token.IDENT:
		return "identifier"
	case token.EOF:
		return "end of input"
	}
	return strings.ToLower(string(t))
}

func (p *Parser) enter() {
	p.depth++
	if p.depth > MaxRecursionDepth {
		p.errorf(diagnostics.ErrP007, p.curToken, "expression too complex: recursion depth limit exceeded")
	}
}

func (p *Parser) leave() { p.depth-- }

// declare wraps scope declarations so collisions surface as syntax errors.
func (p *Parser) declare(tok token.Token, id scope.DeclID, err error) scope.DeclID {
	if err != nil {
		p.errorf(diagnostics.ErrP005, tok, "%s", err.Error())
	}
	return id
}

// withScope runs fn with s as the current Scope.
func (p *Parser) withScope(s scope.ScopeID, fn func()) {
	saved := p.scope
	p.scope = s
	defer func() { p.scope = saved }()
	fn()
}
