package ast

import (
	"github.com/funvibe/funscript/internal/scope"
	"github.com/funvibe/funscript/internal/token"
)

// BlockStatement represents a list of statements within curly braces.
// Scope is the block's own lexical region.
type BlockStatement struct {
	Token      token.Token // the '{' token
	Statements []Statement
	Scope      scope.ScopeID
}

func (bs *BlockStatement) statementNode()        {}
func (bs *BlockStatement) TokenLiteral() string  { return bs.Token.Lexeme }
func (bs *BlockStatement) GetToken() token.Token { return bs.Token }

// ExpressionStatement is a statement that consists of a single expression.
type ExpressionStatement struct {
	Token      token.Token // the first token of the expression
	Expression Expression
}

func (es *ExpressionStatement) statementNode()        {}
func (es *ExpressionStatement) TokenLiteral() string  { return es.Token.Lexeme }
func (es *ExpressionStatement) GetToken() token.Token { return es.Token }

// EmptyStatement is a lone ';'.
type EmptyStatement struct {
	Token token.Token
}

func (es *EmptyStatement) statementNode()        {}
func (es *EmptyStatement) TokenLiteral() string  { return es.Token.Lexeme }
func (es *EmptyStatement) GetToken() token.Token { return es.Token }

// Declarator is one `name = init` binding of a variable declaration.
type Declarator struct {
	Token token.Token // the name token
	Name  string
	Decl  scope.DeclID
	Scope scope.ScopeID // scope the declarator appears in
	Init  Expression    // nil when absent
}

// VarDeclaration represents var, let and const statements.
type VarDeclaration struct {
	Token       token.Token // the 'var', 'let' or 'const' token
	Kind        scope.DeclKind
	Declarators []*Declarator
}

func (vd *VarDeclaration) statementNode()        {}
func (vd *VarDeclaration) TokenLiteral() string  { return vd.Token.Lexeme }
func (vd *VarDeclaration) GetToken() token.Token { return vd.Token }

// FunctionStatement is a function declaration. Its initialization is
// hoisted to the entry of the enclosing block.
type FunctionStatement struct {
	Token    token.Token // the 'function' token
	Decl     scope.DeclID
	Scope    scope.ScopeID // scope the name is declared in
	Function *FunctionLiteral
}

func (fs *FunctionStatement) statementNode()        {}
func (fs *FunctionStatement) TokenLiteral() string  { return fs.Token.Lexeme }
func (fs *FunctionStatement) GetToken() token.Token { return fs.Token }

// ReturnStatement represents 'return' with an optional value.
type ReturnStatement struct {
	Token token.Token
	Value Expression
}

func (rs *ReturnStatement) statementNode()        {}
func (rs *ReturnStatement) TokenLiteral() string  { return rs.Token.Lexeme }
func (rs *ReturnStatement) GetToken() token.Token { return rs.Token }

// IfStatement
type IfStatement struct {
	Token       token.Token
	Condition   Expression
	Consequence Statement
	Alternative Statement // nil when there is no else branch
}

func (is *IfStatement) statementNode()        {}
func (is *IfStatement) TokenLiteral() string  { return is.Token.Lexeme }
func (is *IfStatement) GetToken() token.Token { return is.Token }

// WhileStatement
type WhileStatement struct {
	Token     token.Token
	Condition Expression
	Body      Statement
}

func (ws *WhileStatement) statementNode()        {}
func (ws *WhileStatement) TokenLiteral() string  { return ws.Token.Lexeme }
func (ws *WhileStatement) GetToken() token.Token { return ws.Token }

// DoWhileStatement
type DoWhileStatement struct {
	Token     token.Token
	Body      Statement
	Condition Expression
}

func (dw *DoWhileStatement) statementNode()        {}
func (dw *DoWhileStatement) TokenLiteral() string  { return dw.Token.Lexeme }
func (dw *DoWhileStatement) GetToken() token.Token { return dw.Token }

// ForStatement is the classic three-clause loop. Scope holds let/const
// bindings of the header; with PerIteration set, every iteration gets a
// fresh copy of that Scope's frame.
type ForStatement struct {
	Token        token.Token
	Scope        scope.ScopeID
	Init         Statement // VarDeclaration, ExpressionStatement or nil
	Condition    Expression
	Update       Expression
	Body         Statement
	PerIteration bool
}

func (fs *ForStatement) statementNode()        {}
func (fs *ForStatement) TokenLiteral() string  { return fs.Token.Lexeme }
func (fs *ForStatement) GetToken() token.Token { return fs.Token }

// ForOfStatement iterates `for (let x of iterable)`. The loop variable is
// either declared (Decl set, bound in Scope, fresh per iteration) or an
// existing binding assigned through Target.
type ForOfStatement struct {
	Token    token.Token
	Scope    scope.ScopeID
	Kind     scope.DeclKind
	Decl     scope.DeclID
	Target   *Identifier
	Iterable Expression
	Body     Statement
}

func (fo *ForOfStatement) statementNode()        {}
func (fo *ForOfStatement) TokenLiteral() string  { return fo.Token.Lexeme }
func (fo *ForOfStatement) GetToken() token.Token { return fo.Token }

// BreakStatement
type BreakStatement struct {
	Token token.Token
}

func (bs *BreakStatement) statementNode()        {}
func (bs *BreakStatement) TokenLiteral() string  { return bs.Token.Lexeme }
func (bs *BreakStatement) GetToken() token.Token { return bs.Token }

// ContinueStatement
type ContinueStatement struct {
	Token token.Token
}

func (cs *ContinueStatement) statementNode()        {}
func (cs *ContinueStatement) TokenLiteral() string  { return cs.Token.Lexeme }
func (cs *ContinueStatement) GetToken() token.Token { return cs.Token }

// ThrowStatement
type ThrowStatement struct {
	Token token.Token
	Value Expression
}

func (ts *ThrowStatement) statementNode()        {}
func (ts *ThrowStatement) TokenLiteral() string  { return ts.Token.Lexeme }
func (ts *ThrowStatement) GetToken() token.Token { return ts.Token }

// TryStatement represents try/catch/finally. CatchScope holds the catch
// parameter; Catch and Finally may each be nil but not both.
type TryStatement struct {
	Token      token.Token
	Block      *BlockStatement
	CatchScope scope.ScopeID
	CatchParam scope.DeclID // NoDecl for `catch {}`
	Catch      *BlockStatement
	Finally    *BlockStatement
}

func (ts *TryStatement) statementNode()        {}
func (ts *TryStatement) TokenLiteral() string  { return ts.Token.Lexeme }
func (ts *TryStatement) GetToken() token.Token { return ts.Token }
