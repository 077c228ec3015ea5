package ast

import (
	"github.com/funvibe/funscript/internal/scope"
	"github.com/funvibe/funscript/internal/token"
)

// Node is the base interface for all AST nodes.
// The node set is closed: code generation dispatches with a type switch.
type Node interface {
	TokenLiteral() string
	GetToken() token.Token
}

// Statement is a Node that represents a statement.
type Statement interface {
	Node
	statementNode()
}

// Expression is a Node that represents an expression.
type Expression interface {
	Node
	expressionNode()
}

// Program is the root node of every AST our parser produces.
// Statements run in the unit's root Scope.
type Program struct {
	Statements []Statement
	Scope      scope.ScopeID
	// Expression is set instead of Statements when a unit is parsed as a
	// single expression.
	Expression Expression
}

func (p *Program) TokenLiteral() string {
	if len(p.Statements) > 0 {
		return p.Statements[0].TokenLiteral()
	}
	return ""
}

func (p *Program) GetToken() token.Token {
	if len(p.Statements) > 0 {
		return p.Statements[0].GetToken()
	}
	if p.Expression != nil {
		return p.Expression.GetToken()
	}
	return token.Token{}
}

// Line returns the source line of a node's leading token.
func Line(n Node) int {
	if n == nil {
		return 0
	}
	return n.GetToken().Line
}
