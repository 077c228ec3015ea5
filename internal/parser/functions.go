package parser

import (
	"math"
	"strconv"

	"github.com/funvibe/funscript/internal/ast"
	"github.com/funvibe/funscript/internal/diagnostics"
	"github.com/funvibe/funscript/internal/scope"
	"github.com/funvibe/funscript/internal/token"
)

// parseFunctionExpression parses `function [name](params) { body }`.
// A name binds only inside the function itself.
func (p *Parser) parseFunctionExpression() ast.Expression {
	tok := p.curToken
	if p.peekTokenIs(token.ASTERISK) {
		p.errorf(diagnostics.ErrP003, p.peekToken, "generator functions are not supported")
	}
	name := ""
	if p.peekTokenIs(token.IDENT) {
		p.nextToken()
		name = p.curToken.Lexeme
	}
	fn := p.tree.NewFunction(p.scope, name, false, tok.Line)
	self := scope.NoDecl
	if name != "" {
		self = p.tree.DeclareSelfName(fn, name)
	}
	lit := p.parseFunctionRest(tok, name, fn, false)
	lit.SelfDecl = self
	return lit
}

// parseFunctionRest parses the parameter list and body of fn. curToken is
// the token just before '('.
func (p *Parser) parseFunctionRest(tok token.Token, name string, fn scope.FuncID, arrow bool) *ast.FunctionLiteral {
	lit := &ast.FunctionLiteral{Token: tok, Name: name, Func: fn, IsArrow: arrow, SelfDecl: scope.NoDecl}
	p.expectPeek(token.LPAREN)
	lit.Parameters = p.parseParameters(fn)
	p.expectPeek(token.LBRACE)
	lit.Body = p.parseFunctionBody(fn)
	return lit
}

// parseParameters parses `(a, b = 1)` with curToken on '(' and leaves it on ')'.
// Defaults are parsed inside the function so they can see earlier parameters.
func (p *Parser) parseParameters(fn scope.FuncID) []*ast.Parameter {
	var params []*ast.Parameter
	fnScope := p.tree.Func(fn).Scope
	p.withScope(fnScope, func() {
		for !p.peekTokenIs(token.RPAREN) {
			switch p.peekToken.Type {
			case token.DOT:
				p.nextToken()
				p.parseUnsupported()
			case token.LBRACE, token.LBRACKET:
				p.errorf(diagnostics.ErrP003, p.peekToken, "destructuring parameters are not supported")
			}
			p.expectPeek(token.IDENT)
			param := &ast.Parameter{Token: p.curToken, Name: p.curToken.Lexeme}
			param.Decl = p.tree.DeclareArgument(fn, param.Name, len(params))
			if p.peekTokenIs(token.ASSIGN) {
				p.nextToken()
				p.nextToken()
				param.Default = p.parseExpression(LOWEST)
			}
			params = append(params, param)
			if !p.peekTokenIs(token.RPAREN) {
				p.expectPeek(token.COMMA)
			}
		}
	})
	p.nextToken()
	return params
}

// parseFunctionBody parses `{ ... }` directly into the function's outermost Scope.
func (p *Parser) parseFunctionBody(fn scope.FuncID) *ast.BlockStatement {
	savedLoop := p.loopDepth
	p.loopDepth = 0
	p.funcDepth++
	defer func() {
		p.loopDepth = savedLoop
		p.funcDepth--
	}()
	body := p.parseBlockStatement(p.tree.Func(fn).Scope)
	p.tree.Func(fn).EndLine = p.curToken.Line
	return body
}

// parseArrowFunction parses `x => e` or `(a, b) => { ... }` starting at the
// identifier or '('.
func (p *Parser) parseArrowFunction() ast.Expression {
	tok := p.curToken
	fn := p.tree.NewFunction(p.scope, "", true, tok.Line)
	lit := &ast.FunctionLiteral{Token: tok, Func: fn, IsArrow: true, SelfDecl: scope.NoDecl}

	if p.curTokenIs(token.IDENT) {
		param := &ast.Parameter{Token: tok, Name: tok.Lexeme}
		param.Decl = p.tree.DeclareArgument(fn, tok.Lexeme, 0)
		lit.Parameters = []*ast.Parameter{param}
	} else {
		lit.Parameters = p.parseParameters(fn)
	}
	p.expectPeek(token.ARROW)

	if p.peekTokenIs(token.LBRACE) {
		p.nextToken()
		lit.Body = p.parseFunctionBody(fn)
		return lit
	}
	savedLoop := p.loopDepth
	p.loopDepth = 0
	p.funcDepth++
	p.withScope(p.tree.Func(fn).Scope, func() {
		p.nextToken()
		lit.ExprBody = p.parseExpression(ASSIGN - 1)
	})
	p.loopDepth = savedLoop
	p.funcDepth--
	p.tree.Func(fn).EndLine = p.curToken.Line
	return lit
}

func formatNumberKey(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e21 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
