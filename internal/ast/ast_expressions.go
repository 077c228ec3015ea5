package ast

import (
	"github.com/funvibe/funscript/internal/scope"
	"github.com/funvibe/funscript/internal/token"
)

// Identifier is a name use. Ref points at its Reference in the unit's Tree.
type Identifier struct {
	Token token.Token
	Value string
	Ref   scope.RefID
}

func (i *Identifier) expressionNode()       {}
func (i *Identifier) TokenLiteral() string  { return i.Token.Lexeme }
func (i *Identifier) GetToken() token.Token { return i.Token }

// NumberLiteral
type NumberLiteral struct {
	Token token.Token
	Value float64
}

func (nl *NumberLiteral) expressionNode()       {}
func (nl *NumberLiteral) TokenLiteral() string  { return nl.Token.Lexeme }
func (nl *NumberLiteral) GetToken() token.Token { return nl.Token }

// StringLiteral
type StringLiteral struct {
	Token token.Token
	Value string
}

func (sl *StringLiteral) expressionNode()       {}
func (sl *StringLiteral) TokenLiteral() string  { return sl.Token.Lexeme }
func (sl *StringLiteral) GetToken() token.Token { return sl.Token }

// BooleanLiteral
type BooleanLiteral struct {
	Token token.Token
	Value bool
}

func (bl *BooleanLiteral) expressionNode()       {}
func (bl *BooleanLiteral) TokenLiteral() string  { return bl.Token.Lexeme }
func (bl *BooleanLiteral) GetToken() token.Token { return bl.Token }

// NullLiteral
type NullLiteral struct {
	Token token.Token
}

func (nl *NullLiteral) expressionNode()       {}
func (nl *NullLiteral) TokenLiteral() string  { return nl.Token.Lexeme }
func (nl *NullLiteral) GetToken() token.Token { return nl.Token }

// UndefinedLiteral
type UndefinedLiteral struct {
	Token token.Token
}

func (ul *UndefinedLiteral) expressionNode()       {}
func (ul *UndefinedLiteral) TokenLiteral() string  { return ul.Token.Lexeme }
func (ul *UndefinedLiteral) GetToken() token.Token { return ul.Token }

// ThisExpression
type ThisExpression struct {
	Token token.Token
}

func (te *ThisExpression) expressionNode()       {}
func (te *ThisExpression) TokenLiteral() string  { return te.Token.Lexeme }
func (te *ThisExpression) GetToken() token.Token { return te.Token }

// ArrayLiteral represents [a, b, c]. A nil element is a hole.
type ArrayLiteral struct {
	Token    token.Token // the '[' token
	Elements []Expression
}

func (al *ArrayLiteral) expressionNode()       {}
func (al *ArrayLiteral) TokenLiteral() string  { return al.Token.Lexeme }
func (al *ArrayLiteral) GetToken() token.Token { return al.Token }

// Property is one `key: value` entry of an object literal.
type Property struct {
	Key      string
	Computed Expression // set for [expr]: value
	Value    Expression
}

// ObjectLiteral represents {a: 1, "b": 2, [k]: 3, c}.
type ObjectLiteral struct {
	Token      token.Token // the '{' token
	Properties []*Property
}

func (ol *ObjectLiteral) expressionNode()       {}
func (ol *ObjectLiteral) TokenLiteral() string  { return ol.Token.Lexeme }
func (ol *ObjectLiteral) GetToken() token.Token { return ol.Token }

// MemberExpression represents dot access, e.g. obj.field
type MemberExpression struct {
	Token  token.Token // the '.' token
	Object Expression
	Name   string
}

func (me *MemberExpression) expressionNode()       {}
func (me *MemberExpression) TokenLiteral() string  { return me.Token.Lexeme }
func (me *MemberExpression) GetToken() token.Token { return me.Token }

// IndexExpression represents indexing, e.g. arr[i]
type IndexExpression struct {
	Token  token.Token // the '[' token
	Object Expression
	Index  Expression
}

func (ie *IndexExpression) expressionNode()       {}
func (ie *IndexExpression) TokenLiteral() string  { return ie.Token.Lexeme }
func (ie *IndexExpression) GetToken() token.Token { return ie.Token }

// CallExpression represents f(args). DirectEval marks a call spelled
// `eval(...)` that resolves to the global eval; Scope is the call site.
type CallExpression struct {
	Token      token.Token // the '(' token
	Callee     Expression
	Arguments  []Expression
	Scope      scope.ScopeID
	DirectEval bool
}

func (ce *CallExpression) expressionNode()       {}
func (ce *CallExpression) TokenLiteral() string  { return ce.Token.Lexeme }
func (ce *CallExpression) GetToken() token.Token { return ce.Token }

// AssignExpression represents `target op= value` with Operator one of
// "=", "+=", "-=", "*=", "/=", "%=". Target is an Identifier,
// MemberExpression or IndexExpression.
type AssignExpression struct {
	Token    token.Token
	Operator string
	Target   Expression
	Value    Expression
}

func (ae *AssignExpression) expressionNode()       {}
func (ae *AssignExpression) TokenLiteral() string  { return ae.Token.Lexeme }
func (ae *AssignExpression) GetToken() token.Token { return ae.Token }

// UpdateExpression represents ++x, x++, --x, x--.
type UpdateExpression struct {
	Token    token.Token
	Operator string // "++" or "--"
	Prefix   bool
	Target   Expression
}

func (ue *UpdateExpression) expressionNode()       {}
func (ue *UpdateExpression) TokenLiteral() string  { return ue.Token.Lexeme }
func (ue *UpdateExpression) GetToken() token.Token { return ue.Token }

// PrefixExpression represents !x, -x, +x and typeof x.
type PrefixExpression struct {
	Token    token.Token
	Operator string
	Right    Expression
}

func (pe *PrefixExpression) expressionNode()       {}
func (pe *PrefixExpression) TokenLiteral() string  { return pe.Token.Lexeme }
func (pe *PrefixExpression) GetToken() token.Token { return pe.Token }

// InfixExpression represents arithmetic, comparison and equality operators.
type InfixExpression struct {
	Token    token.Token
	Left     Expression
	Operator string
	Right    Expression
}

func (ie *InfixExpression) expressionNode()       {}
func (ie *InfixExpression) TokenLiteral() string  { return ie.Token.Lexeme }
func (ie *InfixExpression) GetToken() token.Token { return ie.Token }

// LogicalExpression represents the short-circuiting &&, || and ??.
type LogicalExpression struct {
	Token    token.Token
	Left     Expression
	Operator string
	Right    Expression
}

func (le *LogicalExpression) expressionNode()       {}
func (le *LogicalExpression) TokenLiteral() string  { return le.Token.Lexeme }
func (le *LogicalExpression) GetToken() token.Token { return le.Token }

// ConditionalExpression represents cond ? a : b.
type ConditionalExpression struct {
	Token       token.Token // the '?' token
	Condition   Expression
	Consequence Expression
	Alternative Expression
}

func (ce *ConditionalExpression) expressionNode()       {}
func (ce *ConditionalExpression) TokenLiteral() string  { return ce.Token.Lexeme }
func (ce *ConditionalExpression) GetToken() token.Token { return ce.Token }

// SequenceExpression represents a, b, c.
type SequenceExpression struct {
	Token       token.Token
	Expressions []Expression
}

func (se *SequenceExpression) expressionNode()       {}
func (se *SequenceExpression) TokenLiteral() string  { return se.Token.Lexeme }
func (se *SequenceExpression) GetToken() token.Token { return se.Token }

// Parameter is one formal parameter with an optional default value.
type Parameter struct {
	Token   token.Token
	Name    string
	Decl    scope.DeclID
	Default Expression
}

// FunctionLiteral is a function expression, arrow function or the body of a
// function declaration. Func is its compile unit in the Tree.
type FunctionLiteral struct {
	Token      token.Token // the 'function' token, or the first token of an arrow
	Name       string
	Func       scope.FuncID
	Parameters []*Parameter
	Body       *BlockStatement // function body; Scope is the Function's outermost Scope
	ExprBody   Expression      // arrow function concise body
	IsArrow    bool
	SelfDecl   scope.DeclID // binding of a named function expression's own name
}

func (fl *FunctionLiteral) expressionNode()       {}
func (fl *FunctionLiteral) TokenLiteral() string  { return fl.Token.Lexeme }
func (fl *FunctionLiteral) GetToken() token.Token { return fl.Token }
