package parser

import (
	"github.com/funvibe/funscript/internal/ast"
	"github.com/funvibe/funscript/internal/diagnostics"
	"github.com/funvibe/funscript/internal/token"
)

// parseSequence parses a comma expression.
func (p *Parser) parseSequence() ast.Expression {
	first := p.parseExpression(LOWEST)
	if !p.peekTokenIs(token.COMMA) {
		return first
	}
	seq := &ast.SequenceExpression{Token: first.GetToken(), Expressions: []ast.Expression{first}}
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		seq.Expressions = append(seq.Expressions, p.parseExpression(LOWEST))
	}
	return seq
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	p.enter()
	defer p.leave()

	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.noPrefixParseFnError(p.curToken)
	}
	leftExp := prefix()

	for precedence < p.peekPrecedence() {
		// postfix ++/-- must sit on the operand's line
		if (p.peekTokenIs(token.INCREMENT) || p.peekTokenIs(token.DECREMENT)) && p.peekToken.Line > p.curToken.Line {
			break
		}
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}
		p.nextToken()
		leftExp = infix(leftExp)
	}
	return leftExp
}

func (p *Parser) noPrefixParseFnError(tok token.Token) {
	switch tok.Type {
	case token.EOF:
		p.errorf(diagnostics.ErrP001, tok, "Unexpected end of input")
	case token.ARROW:
		p.errorf(diagnostics.ErrP001, tok, "Malformed arrow function parameter list")
	}
	p.errorf(diagnostics.ErrP001, tok, "Unexpected token '%s'", tok.Lexeme)
}

func (p *Parser) parseUnsupported() ast.Expression {
	switch p.curToken.Type {
	case token.NEW:
		p.errorf(diagnostics.ErrP003, p.curToken, "'new' expressions are not supported")
	case token.CLASS:
		p.errorf(diagnostics.ErrP003, p.curToken, "classes are not supported")
	case token.SLASH:
		p.errorf(diagnostics.ErrP003, p.curToken, "regular expression literals are not supported")
	case token.DOT:
		if p.peekTokenIs(token.DOT) {
			p.errorf(diagnostics.ErrP003, p.curToken, "spread and rest syntax is not supported")
		}
	}
	p.errorf(diagnostics.ErrP001, p.curToken, "Unexpected token '%s'", p.curToken.Lexeme)
	return nil
}

// newIdentifier creates an Identifier and threads its Reference.
func (p *Parser) newIdentifier(tok token.Token) *ast.Identifier {
	return &ast.Identifier{
		Token: tok,
		Value: tok.Lexeme,
		Ref:   p.tree.AddReference(p.scope, tok.Lexeme, tok.Line),
	}
}

func (p *Parser) markWrite(id *ast.Identifier) { p.tree.Ref(id.Ref).Write = true }

func (p *Parser) parseIdentifier() ast.Expression {
	if p.peekTokenIs(token.ARROW) && p.peekToken.Line == p.curToken.Line {
		return p.parseArrowFunction()
	}
	return p.newIdentifier(p.curToken)
}

func (p *Parser) parseNumberLiteral() ast.Expression {
	v, _ := p.curToken.Literal.(float64)
	return &ast.NumberLiteral{Token: p.curToken, Value: v}
}

func (p *Parser) parseStringLiteral() ast.Expression {
	v, _ := p.curToken.Literal.(string)
	return &ast.StringLiteral{Token: p.curToken, Value: v}
}

func (p *Parser) parseBoolean() ast.Expression {
	return &ast.BooleanLiteral{Token: p.curToken, Value: p.curTokenIs(token.TRUE)}
}

func (p *Parser) parseNull() ast.Expression { return &ast.NullLiteral{Token: p.curToken} }

func (p *Parser) parseUndefined() ast.Expression { return &ast.UndefinedLiteral{Token: p.curToken} }

func (p *Parser) parseThis() ast.Expression {
	p.tree.MarkUsesThis(p.scope)
	return &ast.ThisExpression{Token: p.curToken}
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	expression := &ast.PrefixExpression{
		Token:    p.curToken,
		Operator: p.curToken.Lexeme,
	}
	p.nextToken()
	expression.Right = p.parseExpression(PREFIX)
	if expression.Operator == "typeof" {
		if id, ok := expression.Right.(*ast.Identifier); ok {
			p.tree.Ref(id.Ref).Typeof = true
		}
	}
	return expression
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expression := &ast.InfixExpression{
		Token:    p.curToken,
		Operator: p.curToken.Lexeme,
		Left:     left,
	}
	precedence := p.curPrecedence()
	p.nextToken()
	expression.Right = p.parseExpression(precedence)
	return expression
}

func (p *Parser) parseLogicalExpression(left ast.Expression) ast.Expression {
	expression := &ast.LogicalExpression{
		Token:    p.curToken,
		Operator: p.curToken.Lexeme,
		Left:     left,
	}
	precedence := p.curPrecedence()
	p.nextToken()
	expression.Right = p.parseExpression(precedence)
	return expression
}

func (p *Parser) parseConditionalExpression(cond ast.Expression) ast.Expression {
	expression := &ast.ConditionalExpression{Token: p.curToken, Condition: cond}
	p.nextToken()
	expression.Consequence = p.parseExpression(LOWEST)
	p.expectPeek(token.COLON)
	p.nextToken()
	expression.Alternative = p.parseExpression(LOWEST)
	return expression
}

// checkTarget validates an assignment or update target and marks a plain
// name as written.
func (p *Parser) checkTarget(target ast.Expression, tok token.Token, what string) {
	switch t := target.(type) {
	case *ast.Identifier:
		if t.Value == "eval" || t.Value == "arguments" {
			p.errorf(diagnostics.ErrP004, tok, "Unexpected eval or arguments in strict mode")
		}
		p.markWrite(t)
	case *ast.MemberExpression, *ast.IndexExpression:
	default:
		p.errorf(diagnostics.ErrP004, tok, "Invalid left-hand side in %s", what)
	}
}

func (p *Parser) parseAssignExpression(left ast.Expression) ast.Expression {
	expression := &ast.AssignExpression{
		Token:    p.curToken,
		Operator: p.curToken.Lexeme,
		Target:   left,
	}
	if _, ok := left.(*ast.ArrayLiteral); ok {
		p.errorf(diagnostics.ErrP003, p.curToken, "destructuring assignment is not supported")
	}
	if _, ok := left.(*ast.ObjectLiteral); ok {
		p.errorf(diagnostics.ErrP003, p.curToken, "destructuring assignment is not supported")
	}
	p.checkTarget(left, p.curToken, "assignment")
	p.nextToken()
	// right-associative: a = b = c
	expression.Value = p.parseExpression(ASSIGN - 1)
	return expression
}

func (p *Parser) parsePrefixUpdate() ast.Expression {
	expression := &ast.UpdateExpression{Token: p.curToken, Operator: p.curToken.Lexeme, Prefix: true}
	p.nextToken()
	expression.Target = p.parseExpression(PREFIX)
	p.checkTarget(expression.Target, expression.Token, "prefix operation")
	return expression
}

func (p *Parser) parsePostfixUpdate(left ast.Expression) ast.Expression {
	expression := &ast.UpdateExpression{Token: p.curToken, Operator: p.curToken.Lexeme, Target: left}
	p.checkTarget(left, p.curToken, "postfix operation")
	return expression
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	if p.isArrowHead() {
		return p.parseArrowFunction()
	}
	p.nextToken()
	exp := p.parseSequence()
	p.expectPeek(token.RPAREN)
	return exp
}

// isArrowHead reports whether the '(' at curToken opens an arrow parameter list.
func (p *Parser) isArrowHead() bool {
	depth := 0
	for i := 0; ; i++ {
		tok := p.tokenAt(i)
		switch tok.Type {
		case token.LPAREN, token.LBRACKET, token.LBRACE:
			depth++
		case token.RPAREN, token.RBRACKET, token.RBRACE:
			depth--
			if depth == 0 {
				return p.tokenAt(i+1).Type == token.ARROW
			}
		case token.EOF:
			return false
		}
	}
}

func (p *Parser) parseCallExpression(callee ast.Expression) ast.Expression {
	exp := &ast.CallExpression{Token: p.curToken, Callee: callee, Scope: p.scope}
	exp.Arguments = p.parseExpressionList(token.RPAREN)
	if id, ok := callee.(*ast.Identifier); ok {
		p.tree.Ref(id.Ref).Call = true
		if id.Value == "eval" {
			exp.DirectEval = true
			p.tree.MarkDirectEval(p.scope)
		}
	}
	return exp
}

// parseExpressionList parses comma-separated expressions up to end, with
// curToken on the opening delimiter. It leaves curToken on end.
func (p *Parser) parseExpressionList(end token.TokenType) []ast.Expression {
	var list []ast.Expression
	if p.peekTokenIs(end) {
		p.nextToken()
		return list
	}
	p.nextToken()
	list = append(list, p.parseExpression(LOWEST))
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		if p.peekTokenIs(end) {
			break
		}
		p.nextToken()
		list = append(list, p.parseExpression(LOWEST))
	}
	p.expectPeek(end)
	return list
}

// isIdentifierName accepts keywords as property names.
func isIdentifierName(tok token.Token) bool {
	return tok.Type == token.IDENT || token.LookupIdent(tok.Lexeme) != token.IDENT
}

func (p *Parser) parseMemberExpression(object ast.Expression) ast.Expression {
	exp := &ast.MemberExpression{Token: p.curToken, Object: object}
	if !isIdentifierName(p.peekToken) {
		p.peekError(token.IDENT)
	}
	p.nextToken()
	exp.Name = p.curToken.Lexeme
	return exp
}

func (p *Parser) parseIndexExpression(object ast.Expression) ast.Expression {
	exp := &ast.IndexExpression{Token: p.curToken, Object: object}
	p.nextToken()
	exp.Index = p.parseSequence()
	p.expectPeek(token.RBRACKET)
	return exp
}

func (p *Parser) parseArrayLiteral() ast.Expression {
	array := &ast.ArrayLiteral{Token: p.curToken}
	for {
		if p.peekTokenIs(token.RBRACKET) {
			p.nextToken()
			return array
		}
		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
			array.Elements = append(array.Elements, nil)
			continue
		}
		p.nextToken()
		array.Elements = append(array.Elements, p.parseExpression(LOWEST))
		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
			continue
		}
		p.expectPeek(token.RBRACKET)
		return array
	}
}

func (p *Parser) parseObjectLiteral() ast.Expression {
	obj := &ast.ObjectLiteral{Token: p.curToken}
	for !p.peekTokenIs(token.RBRACE) {
		p.nextToken()
		prop := &ast.Property{}
		keyTok := p.curToken
		switch {
		case keyTok.Type == token.LBRACKET:
			p.nextToken()
			prop.Computed = p.parseExpression(LOWEST)
			p.expectPeek(token.RBRACKET)
		case keyTok.Type == token.STRING:
			prop.Key, _ = keyTok.Literal.(string)
		case keyTok.Type == token.NUMBER:
			prop.Key = numberKey(keyTok)
		case isIdentifierName(keyTok):
			prop.Key = keyTok.Lexeme
		case keyTok.Type == token.DOT:
			p.parseUnsupported()
		default:
			p.errorf(diagnostics.ErrP001, keyTok, "Unexpected token '%s'", keyTok.Lexeme)
		}

		switch {
		case p.peekTokenIs(token.COLON):
			p.nextToken()
			p.nextToken()
			prop.Value = p.parseExpression(LOWEST)
		case p.peekTokenIs(token.LPAREN):
			// method shorthand: name() { ... }
			fn := p.tree.NewFunction(p.scope, prop.Key, false, keyTok.Line)
			prop.Value = p.parseFunctionRest(keyTok, prop.Key, fn, false)
		case keyTok.Type == token.IDENT && prop.Computed == nil:
			prop.Value = p.newIdentifier(keyTok)
		default:
			p.peekError(token.COLON)
		}
		obj.Properties = append(obj.Properties, prop)

		if !p.peekTokenIs(token.RBRACE) {
			p.expectPeek(token.COMMA)
		}
	}
	p.nextToken()
	return obj
}

// numberKey canonicalizes a numeric property key the way number-to-string does.
func numberKey(tok token.Token) string {
	v, _ := tok.Literal.(float64)
	return formatNumberKey(v)
}
