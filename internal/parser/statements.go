package parser

import (
	"github.com/funvibe/funscript/internal/ast"
	"github.com/funvibe/funscript/internal/diagnostics"
	"github.com/funvibe/funscript/internal/scope"
	"github.com/funvibe/funscript/internal/token"
)

// parseStatement parses one statement starting at curToken and leaves
// curToken on the statement's last token.
func (p *Parser) parseStatement() ast.Statement {
	p.enter()
	defer p.leave()

	switch p.curToken.Type {
	case token.VAR:
		return p.parseVarDeclaration(scope.KindVar)
	case token.LET:
		return p.parseVarDeclaration(scope.KindLet)
	case token.CONST:
		return p.parseVarDeclaration(scope.KindConst)
	case token.FUNCTION:
		return p.parseFunctionStatement()
	case token.RETURN:
		return p.parseReturnStatement()
	case token.IF:
		return p.parseIfStatement()
	case token.WHILE:
		return p.parseWhileStatement()
	case token.DO:
		return p.parseDoWhileStatement()
	case token.FOR:
		return p.parseForStatement()
	case token.BREAK:
		return p.parseBreakStatement()
	case token.CONTINUE:
		return p.parseContinueStatement()
	case token.THROW:
		return p.parseThrowStatement()
	case token.TRY:
		return p.parseTryStatement()
	case token.LBRACE:
		return p.parseBlockStatement(p.tree.NewBlockScope(p.scope))
	case token.SEMICOLON:
		return &ast.EmptyStatement{Token: p.curToken}
	case token.WITH:
		p.errorf(diagnostics.ErrP003, p.curToken, "'with' statements are not supported")
	case token.CLASS:
		p.errorf(diagnostics.ErrP003, p.curToken, "classes are not supported")
	case token.IDENT:
		if p.peekTokenIs(token.COLON) {
			p.errorf(diagnostics.ErrP003, p.curToken, "labeled statements are not supported")
		}
	}
	return p.parseExpressionStatement()
}

func (p *Parser) parseExpressionStatement() *ast.ExpressionStatement {
	stmt := &ast.ExpressionStatement{Token: p.curToken}
	stmt.Expression = p.parseSequence()
	p.consumeSemicolon()
	return stmt
}

// parseBlockStatement parses `{ ... }` with s as the block's Scope.
func (p *Parser) parseBlockStatement(s scope.ScopeID) *ast.BlockStatement {
	block := &ast.BlockStatement{Token: p.curToken, Scope: s}
	p.withScope(s, func() {
		p.nextToken()
		for !p.curTokenIs(token.RBRACE) {
			if p.curTokenIs(token.EOF) {
				p.errorf(diagnostics.ErrP002, p.curToken, "Unexpected end of input, expected '}'")
			}
			block.Statements = append(block.Statements, p.parseStatement())
			p.nextToken()
		}
	})
	return block
}

func (p *Parser) parseVarDeclaration(kind scope.DeclKind) *ast.VarDeclaration {
	decl := p.parseDeclarators(kind, false)
	p.consumeSemicolon()
	return decl
}

// parseDeclarators parses `a = 1, b` after a var/let/const keyword.
// const requires an initializer except as a for-of loop variable.
func (p *Parser) parseDeclarators(kind scope.DeclKind, inForHeader bool) *ast.VarDeclaration {
	decl := &ast.VarDeclaration{Token: p.curToken, Kind: kind}
	for {
		if p.peekTokenIs(token.LBRACE) || p.peekTokenIs(token.LBRACKET) {
			p.errorf(diagnostics.ErrP003, p.peekToken, "destructuring declarations are not supported")
		}
		p.expectPeek(token.IDENT)
		nameTok := p.curToken
		d := &ast.Declarator{Token: nameTok, Name: nameTok.Lexeme, Scope: p.scope}
		id, err := p.tree.DeclareVariable(p.scope, nameTok.Lexeme, kind)
		d.Decl = p.declare(nameTok, id, err)
		if p.peekTokenIs(token.ASSIGN) {
			p.nextToken()
			p.nextToken()
			d.Init = p.parseExpression(ASSIGN - 1)
			// `var f = ...` over a function declaration rebinds it
			p.tree.Decl(d.Decl).Flags |= scope.DeclMutated
		} else if kind == scope.KindConst && !(inForHeader && p.peekIsContextual("of")) {
			p.errorf(diagnostics.ErrP002, p.peekToken, "Missing initializer in const declaration")
		}
		decl.Declarators = append(decl.Declarators, d)
		if !p.peekTokenIs(token.COMMA) {
			break
		}
		p.nextToken()
	}
	return decl
}

func (p *Parser) parseReturnStatement() *ast.ReturnStatement {
	stmt := &ast.ReturnStatement{Token: p.curToken}
	if p.funcDepth == 0 {
		p.errorf(diagnostics.ErrP006, p.curToken, "Illegal return statement")
	}
	// a line break after `return` ends the statement
	if p.peekTokenIs(token.SEMICOLON) || p.peekTokenIs(token.RBRACE) || p.peekTokenIs(token.EOF) ||
		p.peekToken.Line > p.curToken.Line {
		if p.peekTokenIs(token.SEMICOLON) {
			p.nextToken()
		}
		return stmt
	}
	p.nextToken()
	stmt.Value = p.parseSequence()
	p.consumeSemicolon()
	return stmt
}

func (p *Parser) parseIfStatement() *ast.IfStatement {
	stmt := &ast.IfStatement{Token: p.curToken}
	stmt.Condition = p.parseParenCondition()
	p.nextToken()
	stmt.Consequence = p.parseSubStatement()
	if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		p.nextToken()
		stmt.Alternative = p.parseSubStatement()
	}
	return stmt
}

// parseSubStatement parses the body of if/while/for, where lexical and
// function declarations are not allowed.
func (p *Parser) parseSubStatement() ast.Statement {
	switch p.curToken.Type {
	case token.LET, token.CONST:
		p.errorf(diagnostics.ErrP006, p.curToken, "Lexical declaration cannot appear in a single-statement context")
	case token.FUNCTION:
		p.errorf(diagnostics.ErrP006, p.curToken, "Function declarations are not allowed in a single-statement context")
	}
	return p.parseStatement()
}

func (p *Parser) parseParenCondition() ast.Expression {
	p.expectPeek(token.LPAREN)
	p.nextToken()
	cond := p.parseSequence()
	p.expectPeek(token.RPAREN)
	return cond
}

func (p *Parser) parseLoopBody() ast.Statement {
	p.loopDepth++
	defer func() { p.loopDepth-- }()
	return p.parseSubStatement()
}

func (p *Parser) parseWhileStatement() *ast.WhileStatement {
	stmt := &ast.WhileStatement{Token: p.curToken}
	stmt.Condition = p.parseParenCondition()
	p.nextToken()
	stmt.Body = p.parseLoopBody()
	return stmt
}

func (p *Parser) parseDoWhileStatement() *ast.DoWhileStatement {
	stmt := &ast.DoWhileStatement{Token: p.curToken}
	p.nextToken()
	stmt.Body = p.parseLoopBody()
	p.expectPeek(token.WHILE)
	stmt.Condition = p.parseParenCondition()
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

// parseForStatement handles both `for (init; cond; update)` and
// `for (x of iterable)`. The header gets its own Scope for let/const.
func (p *Parser) parseForStatement() ast.Statement {
	forTok := p.curToken
	p.expectPeek(token.LPAREN)
	header := p.tree.NewBlockScope(p.scope)

	var result ast.Statement
	p.withScope(header, func() {
		if p.isForOfHead() {
			result = p.parseForOf(forTok, header)
			return
		}
		result = p.parseForClassic(forTok, header)
	})
	return result
}

// isForOfHead looks past `(` for `[var|let|const] name of`.
func (p *Parser) isForOfHead() bool {
	i := 1
	switch p.tokenAt(i).Type {
	case token.VAR, token.LET, token.CONST:
		i++
	}
	if p.tokenAt(i).Type != token.IDENT {
		return false
	}
	next := p.tokenAt(i + 1)
	return next.Type == token.IDENT && next.Lexeme == "of"
}

func (p *Parser) parseForOf(forTok token.Token, header scope.ScopeID) *ast.ForOfStatement {
	stmt := &ast.ForOfStatement{Token: forTok, Scope: header, Decl: scope.NoDecl, Kind: scope.KindVar}
	p.nextToken()
	switch p.curToken.Type {
	case token.VAR, token.LET, token.CONST:
		kind := map[token.TokenType]scope.DeclKind{
			token.VAR: scope.KindVar, token.LET: scope.KindLet, token.CONST: scope.KindConst,
		}[p.curToken.Type]
		stmt.Kind = kind
		p.nextToken()
		id, err := p.tree.DeclareVariable(header, p.curToken.Lexeme, kind)
		stmt.Decl = p.declare(p.curToken, id, err)
		if kind == scope.KindVar {
			// a hoisted var is assigned through an ordinary reference
			stmt.Decl = scope.NoDecl
			stmt.Target = p.newIdentifier(p.curToken)
			p.markWrite(stmt.Target)
		}
	default:
		stmt.Target = p.newIdentifier(p.curToken)
		p.markWrite(stmt.Target)
	}
	p.nextToken() // 'of'
	p.nextToken()
	stmt.Iterable = p.parseExpression(ASSIGN - 1)
	p.expectPeek(token.RPAREN)
	p.nextToken()
	stmt.Body = p.parseLoopBody()
	return stmt
}

func (p *Parser) parseForClassic(forTok token.Token, header scope.ScopeID) *ast.ForStatement {
	stmt := &ast.ForStatement{Token: forTok, Scope: header}
	p.nextToken()
	switch p.curToken.Type {
	case token.SEMICOLON:
	case token.VAR, token.LET, token.CONST:
		kind := map[token.TokenType]scope.DeclKind{
			token.VAR: scope.KindVar, token.LET: scope.KindLet, token.CONST: scope.KindConst,
		}[p.curToken.Type]
		stmt.Init = p.parseDeclarators(kind, true)
		stmt.PerIteration = kind != scope.KindVar
		p.expectPeek(token.SEMICOLON)
	default:
		stmt.Init = &ast.ExpressionStatement{Token: p.curToken, Expression: p.parseSequence()}
		p.expectPeek(token.SEMICOLON)
	}

	if !p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
		stmt.Condition = p.parseSequence()
	}
	p.expectPeek(token.SEMICOLON)

	if !p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		stmt.Update = p.parseSequence()
	}
	p.expectPeek(token.RPAREN)
	p.nextToken()
	stmt.Body = p.parseLoopBody()
	return stmt
}

func (p *Parser) parseBreakStatement() *ast.BreakStatement {
	stmt := &ast.BreakStatement{Token: p.curToken}
	if p.loopDepth == 0 {
		p.errorf(diagnostics.ErrP006, p.curToken, "Illegal break statement")
	}
	if p.peekTokenIs(token.IDENT) && p.peekToken.Line == p.curToken.Line {
		p.errorf(diagnostics.ErrP003, p.peekToken, "labeled statements are not supported")
	}
	p.consumeSemicolon()
	return stmt
}

func (p *Parser) parseContinueStatement() *ast.ContinueStatement {
	stmt := &ast.ContinueStatement{Token: p.curToken}
	if p.loopDepth == 0 {
		p.errorf(diagnostics.ErrP006, p.curToken, "Illegal continue statement: no surrounding iteration statement")
	}
	if p.peekTokenIs(token.IDENT) && p.peekToken.Line == p.curToken.Line {
		p.errorf(diagnostics.ErrP003, p.peekToken, "labeled statements are not supported")
	}
	p.consumeSemicolon()
	return stmt
}

func (p *Parser) parseThrowStatement() *ast.ThrowStatement {
	stmt := &ast.ThrowStatement{Token: p.curToken}
	if p.peekToken.Line > p.curToken.Line {
		p.errorf(diagnostics.ErrP001, p.peekToken, "Illegal newline after throw")
	}
	p.nextToken()
	stmt.Value = p.parseSequence()
	p.consumeSemicolon()
	return stmt
}

func (p *Parser) parseTryStatement() *ast.TryStatement {
	stmt := &ast.TryStatement{Token: p.curToken, CatchScope: scope.NoScope, CatchParam: scope.NoDecl}
	p.expectPeek(token.LBRACE)
	stmt.Block = p.parseBlockStatement(p.tree.NewBlockScope(p.scope))

	if p.peekTokenIs(token.CATCH) {
		p.nextToken()
		stmt.CatchScope = p.tree.NewCatchScope(p.scope)
		if p.peekTokenIs(token.LPAREN) {
			p.nextToken()
			if p.peekTokenIs(token.LBRACE) || p.peekTokenIs(token.LBRACKET) {
				p.errorf(diagnostics.ErrP003, p.peekToken, "destructuring declarations are not supported")
			}
			p.expectPeek(token.IDENT)
			stmt.CatchParam = p.tree.DeclareCatchParam(stmt.CatchScope, p.curToken.Lexeme)
			p.expectPeek(token.RPAREN)
		}
		p.expectPeek(token.LBRACE)
		stmt.Catch = p.parseBlockStatement(stmt.CatchScope)
	}
	if p.peekTokenIs(token.FINALLY) {
		p.nextToken()
		p.expectPeek(token.LBRACE)
		stmt.Finally = p.parseBlockStatement(p.tree.NewBlockScope(p.scope))
	}
	if stmt.Catch == nil && stmt.Finally == nil {
		p.errorf(diagnostics.ErrP002, p.peekToken, "Missing catch or finally after try")
	}
	return stmt
}

func (p *Parser) parseFunctionStatement() *ast.FunctionStatement {
	stmt := &ast.FunctionStatement{Token: p.curToken, Scope: p.scope}
	if p.peekTokenIs(token.ASTERISK) {
		p.errorf(diagnostics.ErrP003, p.peekToken, "generator functions are not supported")
	}
	p.expectPeek(token.IDENT)
	nameTok := p.curToken
	fn := p.tree.NewFunction(p.scope, nameTok.Lexeme, false, stmt.Token.Line)
	id, err := p.tree.DeclareFunction(p.scope, nameTok.Lexeme, fn)
	stmt.Decl = p.declare(nameTok, id, err)
	stmt.Function = p.parseFunctionRest(stmt.Token, nameTok.Lexeme, fn, false)
	return stmt
}
