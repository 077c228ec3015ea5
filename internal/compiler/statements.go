package compiler

import (
	"fmt"

	"github.com/funvibe/funscript/internal/ast"
	"github.com/funvibe/funscript/internal/bytecode"
	"github.com/funvibe/funscript/internal/scope"
)

func (fc *funcCompiler) statement(s ast.Statement) {
	fc.e.SetLine(ast.Line(s))
	switch n := s.(type) {
	case *ast.ExpressionStatement:
		fc.expression(n.Expression)
		if fc.root && fc.u.mode != bytecode.ModeExpression {
			fc.e.Emit(bytecode.OP_SET_COMPLETION)
		} else {
			fc.e.Emit(bytecode.OP_POP)
		}
	case *ast.EmptyStatement:
	case *ast.BlockStatement:
		fc.block(n)
	case *ast.VarDeclaration:
		fc.varDeclaration(n)
	case *ast.FunctionStatement:
		// initialized when its Scope was entered
	case *ast.ReturnStatement:
		if n.Value != nil {
			fc.expression(n.Value)
		} else {
			fc.e.Emit(bytecode.OP_UNDEFINED)
		}
		fc.unwind(-1, true)
		fc.e.Emit(bytecode.OP_RETURN)
	case *ast.IfStatement:
		fc.ifStatement(n)
	case *ast.WhileStatement:
		fc.whileStatement(n)
	case *ast.DoWhileStatement:
		fc.doWhileStatement(n)
	case *ast.ForStatement:
		fc.forStatement(n)
	case *ast.ForOfStatement:
		fc.forOfStatement(n)
	case *ast.BreakStatement:
		i := fc.innermostLoop()
		fc.unwind(i, false)
		fc.e.EmitJump(bytecode.OP_JUMP, fc.ctl[i].brk)
	case *ast.ContinueStatement:
		i := fc.innermostLoop()
		fc.unwind(i, false)
		fc.e.EmitJump(bytecode.OP_JUMP, fc.ctl[i].cont)
	case *ast.ThrowStatement:
		fc.expression(n.Value)
		fc.e.Emit(bytecode.OP_THROW)
	case *ast.TryStatement:
		fc.tryStatement(n)
	default:
		panic(fmt.Sprintf("compiler: unhandled statement %T", s))
	}
}

// block runs statements inside the block's own Scope.
func (fc *funcCompiler) block(b *ast.BlockStatement) {
	entered := fc.enterScope(b.Scope)
	fc.hoistFunctions(b.Scope, b.Statements)
	for _, s := range b.Statements {
		fc.statement(s)
	}
	fc.leaveScope(entered)
}

func (fc *funcCompiler) varDeclaration(v *ast.VarDeclaration) {
	for _, d := range v.Declarators {
		fc.e.SetLine(d.Token.Line)
		switch {
		case d.Init != nil:
			fc.expression(d.Init)
		case v.Kind == scope.KindVar:
			// a bare var keeps whatever value the binding already has
			continue
		default:
			fc.e.Emit(bytecode.OP_UNDEFINED)
		}
		fc.storeDecl(d.Scope, d.Decl)
		fc.e.Emit(bytecode.OP_POP)
	}
}

func (fc *funcCompiler) ifStatement(n *ast.IfStatement) {
	fc.expression(n.Condition)
	elseLabel := fc.e.NewLabel()
	fc.e.EmitJump(bytecode.OP_JUMP_IF_FALSE, elseLabel)
	fc.statement(n.Consequence)
	if n.Alternative == nil {
		fc.e.Bind(elseLabel)
		return
	}
	end := fc.e.NewLabel()
	fc.e.EmitJump(bytecode.OP_JUMP, end)
	fc.e.Bind(elseLabel)
	fc.statement(n.Alternative)
	fc.e.Bind(end)
}

func (fc *funcCompiler) loopBody(body ast.Statement, brk, cont bytecode.Label) {
	fc.push(control{kind: ctlLoop, brk: brk, cont: cont})
	fc.statement(body)
	fc.pop(ctlLoop)
}

func (fc *funcCompiler) whileStatement(n *ast.WhileStatement) {
	top := fc.e.PlaceLabel()
	exit := fc.e.NewLabel()
	fc.expression(n.Condition)
	fc.e.EmitJump(bytecode.OP_JUMP_IF_FALSE, exit)
	fc.loopBody(n.Body, exit, top)
	fc.e.EmitJump(bytecode.OP_JUMP, top)
	fc.e.Bind(exit)
}

func (fc *funcCompiler) doWhileStatement(n *ast.DoWhileStatement) {
	top := fc.e.PlaceLabel()
	cont := fc.e.NewLabel()
	exit := fc.e.NewLabel()
	fc.loopBody(n.Body, exit, cont)
	fc.e.Bind(cont)
	fc.e.SetLine(ast.Line(n.Condition))
	fc.expression(n.Condition)
	fc.e.EmitJump(bytecode.OP_JUMP_IF_TRUE, top)
	fc.e.Bind(exit)
}

// forStatement compiles `for (init; cond; update) body`. let and const
// loop variables get a fresh copy of the header frame before each update,
// so closures created in one iteration keep that iteration's values.
func (fc *funcCompiler) forStatement(n *ast.ForStatement) {
	entered := fc.enterScope(n.Scope)
	switch init := n.Init.(type) {
	case nil:
	case *ast.VarDeclaration:
		fc.varDeclaration(init)
	case *ast.ExpressionStatement:
		fc.expression(init.Expression)
		fc.e.Emit(bytecode.OP_POP)
	default:
		fc.statement(init)
	}

	// The update clause is generated before the body it follows, into a
	// detached stream that is spliced in after the body.
	var update *bytecode.Emitter
	if n.Update != nil {
		update = fc.e.Detach()
		saved := fc.e
		fc.e = update
		fc.e.SetLine(ast.Line(n.Update))
		fc.expression(n.Update)
		fc.e.Emit(bytecode.OP_POP)
		fc.e = saved
	}

	top := fc.e.PlaceLabel()
	cont := fc.e.NewLabel()
	exit := fc.e.NewLabel()
	if n.Condition != nil {
		fc.e.SetLine(ast.Line(n.Condition))
		fc.expression(n.Condition)
		fc.e.EmitJump(bytecode.OP_JUMP_IF_FALSE, exit)
	}
	fc.loopBody(n.Body, exit, cont)
	fc.e.Bind(cont)
	if n.PerIteration && entered {
		fc.e.Emit(bytecode.OP_RENEW_SCOPE)
	}
	if update != nil {
		fc.e.Splice(update)
	}
	fc.e.EmitJump(bytecode.OP_JUMP, top)
	fc.e.Bind(exit)
	fc.leaveScope(entered)
}

// forOfStatement keeps the iterator on the operand stack for the whole
// loop. A let or const loop variable lives in a header frame entered once
// per iteration.
func (fc *funcCompiler) forOfStatement(n *ast.ForOfStatement) {
	fc.expression(n.Iterable)
	fc.e.Emit(bytecode.OP_GET_ITERATOR)
	fc.push(control{kind: ctlStack, values: 1})

	top := fc.e.PlaceLabel()
	cont := fc.e.NewLabel()
	exit := fc.e.NewLabel()
	fc.e.EmitJump(bytecode.OP_ITER_NEXT, exit)

	fc.push(control{kind: ctlLoop, brk: exit, cont: cont})
	entered := false
	if n.Decl != scope.NoDecl {
		entered = fc.enterScope(n.Scope)
		fc.storeDecl(n.Scope, n.Decl)
		fc.e.Emit(bytecode.OP_POP)
	} else {
		fc.assignIdentifier(n.Target)
		fc.e.Emit(bytecode.OP_POP)
	}
	fc.statement(n.Body)
	fc.leaveScope(entered)
	fc.pop(ctlLoop)

	fc.e.Bind(cont)
	fc.e.EmitJump(bytecode.OP_JUMP, top)
	fc.e.Bind(exit)
	fc.pop(ctlStack)
	fc.e.Emit(bytecode.OP_POP)
}

// tryStatement lays out
//
//	TRY_BEGIN fin          (only with finally)
//	TRY_BEGIN catch        (only with catch)
//	  block
//	TRY_END
//	JUMP done
//	catch: store exception, catch block
//	done:
//	TRY_END                (finally: normal path)
//	finally block
//	JUMP end
//	fin: finally block, THROW
//	end:
//
// Exits out of the protected region inline the finally block.
func (fc *funcCompiler) tryStatement(n *ast.TryStatement) {
	var finLabel bytecode.Label
	if n.Finally != nil {
		finLabel = fc.e.NewLabel()
		fc.e.EmitJump(bytecode.OP_TRY_BEGIN, finLabel)
		fc.push(control{kind: ctlFinally, finally: n.Finally})
		fc.push(control{kind: ctlTry})
	}

	if n.Catch != nil {
		catchLabel := fc.e.NewLabel()
		done := fc.e.NewLabel()
		fc.e.EmitJump(bytecode.OP_TRY_BEGIN, catchLabel)
		fc.push(control{kind: ctlTry})
		fc.block(n.Block)
		fc.pop(ctlTry)
		fc.e.Emit(bytecode.OP_TRY_END)
		fc.e.EmitJump(bytecode.OP_JUMP, done)

		fc.e.Bind(catchLabel)
		fc.e.SetLine(ast.Line(n.Catch))
		entered := fc.enterScope(n.CatchScope)
		if n.CatchParam != scope.NoDecl {
			fc.storeDecl(n.CatchScope, n.CatchParam)
		}
		fc.e.Emit(bytecode.OP_POP)
		fc.hoistFunctions(n.CatchScope, n.Catch.Statements)
		for _, s := range n.Catch.Statements {
			fc.statement(s)
		}
		fc.leaveScope(entered)
		fc.e.Bind(done)
	} else {
		fc.block(n.Block)
	}

	if n.Finally == nil {
		return
	}
	fc.pop(ctlTry)
	fc.pop(ctlFinally)
	fc.e.Emit(bytecode.OP_TRY_END)
	fc.block(n.Finally)
	end := fc.e.NewLabel()
	fc.e.EmitJump(bytecode.OP_JUMP, end)

	fc.e.Bind(finLabel)
	fc.push(control{kind: ctlStack, values: 1})
	fc.block(n.Finally)
	fc.pop(ctlStack)
	fc.e.Emit(bytecode.OP_THROW)
	fc.e.Bind(end)
}
