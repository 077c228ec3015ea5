package compiler

import (
	"fmt"
	"math"

	"github.com/funvibe/funscript/internal/ast"
	"github.com/funvibe/funscript/internal/bytecode"
	"github.com/funvibe/funscript/internal/scope"
)

var binaryOps = map[string]bytecode.Opcode{
	"+":   bytecode.OP_ADD,
	"-":   bytecode.OP_SUB,
	"*":   bytecode.OP_MUL,
	"/":   bytecode.OP_DIV,
	"%":   bytecode.OP_MOD,
	"<":   bytecode.OP_LT,
	"<=":  bytecode.OP_LE,
	">":   bytecode.OP_GT,
	">=":  bytecode.OP_GE,
	"==":  bytecode.OP_EQ,
	"!=":  bytecode.OP_NE,
	"===": bytecode.OP_STRICT_EQ,
	"!==": bytecode.OP_STRICT_NE,
}

// compoundOps maps compound assignment operators to their arithmetic op.
var compoundOps = map[string]bytecode.Opcode{
	"+=": bytecode.OP_ADD,
	"-=": bytecode.OP_SUB,
	"*=": bytecode.OP_MUL,
	"/=": bytecode.OP_DIV,
	"%=": bytecode.OP_MOD,
}

// expression emits code leaving exactly one value on the stack.
func (fc *funcCompiler) expression(x ast.Expression) {
	switch n := x.(type) {
	case *ast.NumberLiteral:
		fc.number(n.Value)
	case *ast.StringLiteral:
		fc.e.Emit(bytecode.OP_PUSH_STRING, fc.str(n.Value))
	case *ast.BooleanLiteral:
		if n.Value {
			fc.e.Emit(bytecode.OP_TRUE)
		} else {
			fc.e.Emit(bytecode.OP_FALSE)
		}
	case *ast.NullLiteral:
		fc.e.Emit(bytecode.OP_NULL)
	case *ast.UndefinedLiteral:
		fc.e.Emit(bytecode.OP_UNDEFINED)
	case *ast.ThisExpression:
		fc.e.Emit(bytecode.OP_THIS)
	case *ast.Identifier:
		fc.identifier(n)
	case *ast.ArrayLiteral:
		if len(n.Elements) > maxArray {
			fc.limit("array literal too large")
		}
		for _, el := range n.Elements {
			if el == nil {
				fc.e.Emit(bytecode.OP_HOLE)
				continue
			}
			fc.expression(el)
		}
		fc.e.Emit(bytecode.OP_ARRAY, len(n.Elements))
	case *ast.ObjectLiteral:
		fc.e.Emit(bytecode.OP_OBJECT)
		for _, p := range n.Properties {
			if p.Computed != nil {
				fc.expression(p.Computed)
				fc.expression(p.Value)
				fc.e.Emit(bytecode.OP_DEFINE_INDEX)
				continue
			}
			fc.expression(p.Value)
			fc.e.Emit(bytecode.OP_DEFINE_PROP, fc.str(p.Key))
		}
	case *ast.MemberExpression:
		fc.expression(n.Object)
		fc.e.SetLine(n.Token.Line)
		fc.e.Emit(bytecode.OP_GET_PROP, fc.str(n.Name))
	case *ast.IndexExpression:
		fc.expression(n.Object)
		fc.expression(n.Index)
		fc.e.SetLine(n.Token.Line)
		fc.e.Emit(bytecode.OP_GET_INDEX)
	case *ast.CallExpression:
		fc.call(n)
	case *ast.AssignExpression:
		fc.assign(n)
	case *ast.UpdateExpression:
		fc.update(n)
	case *ast.PrefixExpression:
		fc.prefix(n)
	case *ast.InfixExpression:
		fc.expression(n.Left)
		fc.expression(n.Right)
		op, ok := binaryOps[n.Operator]
		if !ok {
			panic(fmt.Sprintf("compiler: unknown operator %q", n.Operator))
		}
		fc.e.Emit(op)
	case *ast.LogicalExpression:
		fc.logical(n)
	case *ast.ConditionalExpression:
		fc.expression(n.Condition)
		elseLabel := fc.e.NewLabel()
		end := fc.e.NewLabel()
		fc.e.EmitJump(bytecode.OP_JUMP_IF_FALSE, elseLabel)
		fc.expression(n.Consequence)
		fc.e.EmitJump(bytecode.OP_JUMP, end)
		fc.e.Bind(elseLabel)
		fc.expression(n.Alternative)
		fc.e.Bind(end)
	case *ast.SequenceExpression:
		for i, el := range n.Expressions {
			if i > 0 {
				fc.e.Emit(bytecode.OP_POP)
			}
			fc.expression(el)
		}
	case *ast.FunctionLiteral:
		fc.recordLiteral(n)
		fc.e.Emit(bytecode.OP_CLOSURE, fc.tree.Func(n.Func).ChildIndex)
	default:
		panic(fmt.Sprintf("compiler: unhandled expression %T", x))
	}
}

// number pushes small integers inline and everything else from the pool.
func (fc *funcCompiler) number(v float64) {
	if v == math.Trunc(v) && v >= math.MinInt32 && v <= math.MaxInt32 && !(v == 0 && math.Signbit(v)) {
		fc.e.Emit(bytecode.OP_PUSH_INT, int(v))
		return
	}
	fc.e.Emit(bytecode.OP_PUSH_DOUBLE, int(fc.u.pool.InternDouble(v)))
}

func (fc *funcCompiler) identifier(id *ast.Identifier) {
	r := fc.tree.Ref(id.Ref)
	fc.e.SetLine(id.Token.Line)
	if r.Typeof && fc.binding(r).Class == scope.Global {
		fc.e.Emit(bytecode.OP_TYPEOF_GLOBAL, fc.binding(r).Index)
		return
	}
	fc.load(fc.tree.AccessRef(r))
}

// assignIdentifier stores the top of stack into the binding of id, leaving
// the value in place. Constants throw; a function expression's own name
// ignores the write.
func (fc *funcCompiler) assignIdentifier(id *ast.Identifier) {
	r := fc.tree.Ref(id.Ref)
	d := fc.binding(r)
	switch d.Kind {
	case scope.KindConst:
		fc.e.Emit(bytecode.OP_THROW_ERROR, int(bytecode.KindTypeError), fc.str("Assignment to constant variable."))
	case scope.KindSelfName:
	default:
		fc.store(fc.tree.AccessRef(r))
	}
}

func (fc *funcCompiler) assign(n *ast.AssignExpression) {
	fc.e.SetLine(n.Token.Line)
	op, compound := compoundOps[n.Operator]
	switch t := n.Target.(type) {
	case *ast.Identifier:
		if compound {
			fc.identifier(t)
			fc.expression(n.Value)
			fc.e.Emit(op)
		} else {
			fc.expression(n.Value)
		}
		fc.assignIdentifier(t)
	case *ast.MemberExpression:
		name := fc.str(t.Name)
		fc.expression(t.Object)
		if compound {
			fc.e.Emit(bytecode.OP_DUP)
			fc.e.Emit(bytecode.OP_GET_PROP, name)
			fc.expression(n.Value)
			fc.e.Emit(op)
		} else {
			fc.expression(n.Value)
		}
		fc.e.Emit(bytecode.OP_SET_PROP, name)
	case *ast.IndexExpression:
		fc.expression(t.Object)
		fc.expression(t.Index)
		if compound {
			fc.e.Emit(bytecode.OP_DUP2)
			fc.e.Emit(bytecode.OP_GET_INDEX)
			fc.expression(n.Value)
			fc.e.Emit(op)
		} else {
			fc.expression(n.Value)
		}
		fc.e.Emit(bytecode.OP_SET_INDEX)
	default:
		panic(fmt.Sprintf("compiler: invalid assignment target %T", n.Target))
	}
}

func (fc *funcCompiler) update(n *ast.UpdateExpression) {
	fc.e.SetLine(n.Token.Line)
	var mode int
	step := bytecode.OP_INC
	if n.Operator == "--" {
		mode |= int(bytecode.UpdateDecrement)
		step = bytecode.OP_DEC
	}
	if n.Prefix {
		mode |= int(bytecode.UpdatePrefix)
	}
	switch t := n.Target.(type) {
	case *ast.Identifier:
		fc.identifier(t)
		if n.Prefix {
			fc.e.Emit(step)
			fc.assignIdentifier(t)
			return
		}
		fc.e.Emit(bytecode.OP_TO_NUMBER)
		fc.e.Emit(bytecode.OP_DUP)
		fc.e.Emit(step)
		fc.assignIdentifier(t)
		fc.e.Emit(bytecode.OP_POP)
	case *ast.MemberExpression:
		fc.expression(t.Object)
		fc.e.Emit(bytecode.OP_UPDATE_PROP, fc.str(t.Name), mode)
	case *ast.IndexExpression:
		fc.expression(t.Object)
		fc.expression(t.Index)
		fc.e.Emit(bytecode.OP_UPDATE_INDEX, mode)
	default:
		panic(fmt.Sprintf("compiler: invalid update target %T", n.Target))
	}
}

func (fc *funcCompiler) prefix(n *ast.PrefixExpression) {
	fc.expression(n.Right)
	switch n.Operator {
	case "!":
		fc.e.Emit(bytecode.OP_NOT)
	case "-":
		fc.e.Emit(bytecode.OP_NEG)
	case "+":
		fc.e.Emit(bytecode.OP_TO_NUMBER)
	case "typeof":
		fc.e.Emit(bytecode.OP_TYPEOF)
	default:
		panic(fmt.Sprintf("compiler: unknown prefix operator %q", n.Operator))
	}
}

func (fc *funcCompiler) logical(n *ast.LogicalExpression) {
	fc.expression(n.Left)
	end := fc.e.NewLabel()
	switch n.Operator {
	case "&&":
		fc.e.EmitJump(bytecode.OP_JUMP_IF_FALSE_KEEP, end)
	case "||":
		fc.e.EmitJump(bytecode.OP_JUMP_IF_TRUE_KEEP, end)
	case "??":
		fc.e.EmitJump(bytecode.OP_JUMP_IF_NOT_NULLISH, end)
	default:
		panic(fmt.Sprintf("compiler: unknown logical operator %q", n.Operator))
	}
	fc.expression(n.Right)
	fc.e.Bind(end)
}

// call picks the calling form: a direct call for a function binding that
// needs no storage, EVAL for a direct eval site, CALL_METHOD when the
// callee is a member access, and a generic CALL otherwise.
func (fc *funcCompiler) call(n *ast.CallExpression) {
	argc := len(n.Arguments)
	if argc > maxArgs {
		fc.limit("too many arguments in call")
	}
	args := func() {
		for _, a := range n.Arguments {
			fc.expression(a)
		}
		fc.e.SetLine(n.Token.Line)
	}

	switch callee := n.Callee.(type) {
	case *ast.Identifier:
		r := fc.tree.Ref(callee.Ref)
		if target, ok := fc.tree.CallTarget(r); ok && !n.DirectEval {
			if target.Depth > maxDepth {
				fc.limit("scope nesting too deep")
			}
			args()
			fc.e.Emit(bytecode.OP_CALL_DIRECT, target.Depth, target.Child, argc)
			return
		}
		fc.identifier(callee)
		args()
		if n.DirectEval {
			if int(n.Scope) > 0xFFFF {
				fc.limit("too many scopes for eval")
			}
			fc.e.Emit(bytecode.OP_EVAL, int(n.Scope), argc)
			return
		}
		fc.e.Emit(bytecode.OP_CALL, argc)
	case *ast.MemberExpression:
		fc.expression(callee.Object)
		fc.e.Emit(bytecode.OP_DUP)
		fc.e.Emit(bytecode.OP_GET_PROP, fc.str(callee.Name))
		args()
		fc.e.Emit(bytecode.OP_CALL_METHOD, argc)
	case *ast.IndexExpression:
		fc.expression(callee.Object)
		fc.e.Emit(bytecode.OP_DUP)
		fc.expression(callee.Index)
		fc.e.Emit(bytecode.OP_GET_INDEX)
		args()
		fc.e.Emit(bytecode.OP_CALL_METHOD, argc)
	default:
		fc.expression(n.Callee)
		args()
		fc.e.Emit(bytecode.OP_CALL, argc)
	}
}
