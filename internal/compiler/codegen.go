package compiler

import (
	"fmt"

	"github.com/funvibe/funscript/internal/ast"
	"github.com/funvibe/funscript/internal/bytecode"
	"github.com/funvibe/funscript/internal/diagnostics"
	"github.com/funvibe/funscript/internal/pool"
	"github.com/funvibe/funscript/internal/scope"
)

// Encoding limits of the operand formats.
const (
	maxArgs     = 0xFF
	maxDepth    = 0xFF
	maxSlots    = 0xFFFF
	maxChildren = 0xFFFF
	maxArray    = 0xFFFF
)

// unit holds state shared by every Function of one compilation unit.
type unit struct {
	tree *scope.Tree
	pool *pool.Pool
	mode bytecode.Mode

	// literals maps each nested Function to its source, recorded when the
	// parent's code reaches it.
	literals map[scope.FuncID]*functionSource
}

type functionSource struct {
	lit  *ast.FunctionLiteral
	line int
}

// funcCompiler emits the code of one Function.
type funcCompiler struct {
	u    *unit
	tree *scope.Tree
	id   scope.FuncID
	fn   *scope.Function
	e    *bytecode.Emitter
	ctl  []control
	root bool
}

func (u *unit) newFuncCompiler(id scope.FuncID) *funcCompiler {
	return &funcCompiler{
		u:    u,
		tree: u.tree,
		id:   id,
		fn:   u.tree.Func(id),
		e:    bytecode.NewEmitter(u.pool),
		root: id == 0,
	}
}

func (u *unit) compileRoot(prog *ast.Program) *bytecode.CompiledFunction {
	fc := u.newFuncCompiler(0)
	fc.prologue()
	if prog.Expression != nil {
		fc.e.SetLine(ast.Line(prog.Expression))
		fc.expression(prog.Expression)
		fc.e.Emit(bytecode.OP_RETURN)
	} else {
		fc.hoistFunctions(prog.Scope, prog.Statements)
		for _, s := range prog.Statements {
			fc.statement(s)
		}
		fc.e.Emit(bytecode.OP_COMPLETION)
		fc.e.Emit(bytecode.OP_RETURN)
	}
	return fc.finish()
}

func (u *unit) compileFunction(id scope.FuncID) *bytecode.CompiledFunction {
	src, ok := u.literals[id]
	if !ok {
		panic(fmt.Sprintf("compiler: function %d was never reached by its parent", id))
	}
	lit := src.lit
	fc := u.newFuncCompiler(id)
	fc.e.SetLine(src.line)
	fc.prologue()
	fc.defaults(lit.Parameters)
	if lit.ExprBody != nil {
		fc.e.SetLine(ast.Line(lit.ExprBody))
		fc.expression(lit.ExprBody)
		fc.e.Emit(bytecode.OP_RETURN)
	} else {
		fc.hoistFunctions(lit.Body.Scope, lit.Body.Statements)
		for _, s := range lit.Body.Statements {
			fc.statement(s)
		}
		fc.e.Emit(bytecode.OP_RETURN_UNDEFINED)
	}
	return fc.finish()
}

// finish links the code and compiles the nested Functions in child order.
func (fc *funcCompiler) finish() *bytecode.CompiledFunction {
	code, lines := fc.e.Finalize()
	if len(fc.fn.Children) > maxChildren {
		fc.limit("too many nested functions in %s", fc.fn.Name)
	}
	outer := fc.tree.Scope(fc.fn.Scope)
	if outer.SlotCount() > maxSlots || fc.fn.FuncLocalCount > maxSlots {
		fc.limit("too many variables in %s", fc.fn.Name)
	}
	cf := &bytecode.CompiledFunction{
		Name:           fc.fn.Name,
		ParamCount:     len(fc.fn.Params),
		Code:           code,
		FuncLocalCount: fc.fn.FuncLocalCount,
		SlotCount:      outer.SlotCount(),
		Flags:          functionFlags(fc.fn, fc.root),
		Lines:          lines,
		StartLine:      fc.fn.StartLine,
		FuncID:         int32(fc.id),
		Tree:           fc.tree,
	}
	for _, child := range fc.fn.Children {
		cf.Children = append(cf.Children, fc.u.compileFunction(child))
	}
	return cf
}

func functionFlags(fn *scope.Function, root bool) bytecode.FunctionFlags {
	var fl bytecode.FunctionFlags
	pairs := []struct {
		from scope.FuncFlags
		to   bytecode.FunctionFlags
	}{
		{scope.FuncArrow, bytecode.FnArrow},
		{scope.FuncUsesThis, bytecode.FnUsesThis},
		{scope.FuncUsesArguments, bytecode.FnUsesArguments},
		{scope.FuncArgsCaptured, bytecode.FnArgsCaptured},
		{scope.FuncVarsCaptured, bytecode.FnVarsCaptured},
		{scope.FuncCapturesAncestor, bytecode.FnCapturesAncestor},
		{scope.FuncDirectEval, bytecode.FnDirectEval},
	}
	for _, p := range pairs {
		if fn.Has(p.from) {
			fl |= p.to
		}
	}
	if root {
		fl |= bytecode.FnRoot
	}
	return fl
}

func (fc *funcCompiler) limit(format string, args ...interface{}) {
	panic(diagnostics.NewErrorAt(diagnostics.ErrC001, fc.fn.StartLine, 0, format, args...))
}

// prologue initializes the implicit bindings of the Function's outermost
// Scope: its own name, `arguments`, and root globals declared with var.
func (fc *funcCompiler) prologue() {
	outer := fc.fn.Scope
	if fc.fn.SelfName != scope.NoDecl {
		fc.e.Emit(bytecode.OP_CALLEE)
		fc.storeDecl(outer, fc.fn.SelfName)
		fc.e.Emit(bytecode.OP_POP)
	}
	if fc.fn.Args != scope.NoDecl {
		fc.e.Emit(bytecode.OP_ARGUMENTS)
		fc.storeDecl(outer, fc.fn.Args)
		fc.e.Emit(bytecode.OP_POP)
	}
	if !fc.root {
		return
	}
	// A root var that became a global is defined as undefined unless an
	// earlier unit already gave it a value.
	for _, id := range fc.tree.Scope(outer).Decls {
		d := fc.tree.Decl(id)
		if d.Class != scope.Global || d.Kind != scope.KindVar {
			continue
		}
		skip := fc.e.NewLabel()
		fc.e.Emit(bytecode.OP_TYPEOF_GLOBAL, d.Index)
		fc.e.Emit(bytecode.OP_UNDEFINED)
		fc.e.Emit(bytecode.OP_STRICT_EQ)
		fc.e.EmitJump(bytecode.OP_JUMP_IF_FALSE, skip)
		fc.e.Emit(bytecode.OP_UNDEFINED)
		fc.e.Emit(bytecode.OP_SET_GLOBAL, d.Index)
		fc.e.Emit(bytecode.OP_POP)
		fc.e.Bind(skip)
	}
}

// defaults applies default parameter values. The code is built in a detached
// stream, so each default is emitted independently of the body, then spliced
// into the prologue.
func (fc *funcCompiler) defaults(params []*ast.Parameter) {
	var sub *bytecode.Emitter
	for _, p := range params {
		if p.Default == nil {
			continue
		}
		if sub == nil {
			sub = fc.e.Detach()
		}
		saved := fc.e
		fc.e = sub
		d := fc.tree.Decl(p.Decl)
		present := fc.e.NewLabel()
		fc.e.SetLine(p.Token.Line)
		fc.e.EmitJump(bytecode.OP_JUMP_IF_ARG_PRESENT, present, d.ArgIndex)
		fc.expression(p.Default)
		fc.storeDecl(fc.fn.Scope, p.Decl)
		fc.e.Emit(bytecode.OP_POP)
		fc.e.Bind(present)
		fc.e = saved
	}
	if sub != nil {
		fc.e.Splice(sub)
	}
}

// hoistFunctions emits the initializers of the function declarations made
// directly in a Scope, in source order, so the last one wins.
func (fc *funcCompiler) hoistFunctions(s scope.ScopeID, stmts []ast.Statement) {
	for _, st := range stmts {
		fs, ok := st.(*ast.FunctionStatement)
		if !ok {
			continue
		}
		fc.recordLiteral(fs.Function)
		d := fc.tree.Decl(fs.Decl)
		if d.Class == scope.NoStorage {
			continue
		}
		fc.e.SetLine(fs.Token.Line)
		fc.e.Emit(bytecode.OP_CLOSURE, fc.tree.Func(fs.Function.Func).ChildIndex)
		fc.storeDecl(s, fs.Decl)
		fc.e.Emit(bytecode.OP_POP)
	}
}

func (fc *funcCompiler) recordLiteral(lit *ast.FunctionLiteral) {
	if _, ok := fc.u.literals[lit.Func]; !ok {
		fc.u.literals[lit.Func] = &functionSource{lit: lit, line: lit.Token.Line}
	}
}

// Variable access

func varRef(acc scope.Access) int {
	return int(acc.Class)<<8 | acc.Depth
}

func (fc *funcCompiler) checkAccess(acc scope.Access) {
	if acc.Depth > maxDepth {
		fc.limit("scope nesting too deep")
	}
	if acc.Index > maxSlots {
		fc.limit("too many variables")
	}
}

func (fc *funcCompiler) load(acc scope.Access) {
	if acc.Class == scope.Global {
		fc.e.Emit(bytecode.OP_GET_GLOBAL, acc.Index)
		return
	}
	fc.checkAccess(acc)
	fc.e.Emit(bytecode.OP_GET_VAR, varRef(acc), acc.Index)
}

func (fc *funcCompiler) store(acc scope.Access) {
	if acc.Class == scope.Global {
		fc.e.Emit(bytecode.OP_SET_GLOBAL, acc.Index)
		return
	}
	fc.checkAccess(acc)
	fc.e.Emit(bytecode.OP_SET_VAR, varRef(acc), acc.Index)
}

// storeDecl stores the top of stack into a Declaration of this unit, as
// seen from Scope from. The value stays on the stack.
func (fc *funcCompiler) storeDecl(from scope.ScopeID, id scope.DeclID) {
	fc.store(fc.tree.AccessDecl(from, id))
}

// binding returns the Declaration a Reference resolved to, in whichever
// unit declares it.
func (fc *funcCompiler) binding(r *scope.Reference) *scope.Declaration {
	owner := r.Tree
	if owner == nil {
		owner = fc.tree
	}
	return owner.Decl(r.Decl)
}

// Scopes

// enterScope opens the runtime frame of s unless Flatten elided it.
func (fc *funcCompiler) enterScope(s scope.ScopeID) bool {
	sc := fc.tree.Scope(s)
	if sc.Has(scope.ScopeElided) {
		return false
	}
	if sc.SlotCount() > maxSlots {
		fc.limit("too many variables in one block")
	}
	fc.e.Emit(bytecode.OP_ENTER_SCOPE, sc.SlotCount())
	fc.push(control{kind: ctlScope})
	return true
}

func (fc *funcCompiler) leaveScope(entered bool) {
	if !entered {
		return
	}
	fc.pop(ctlScope)
	fc.e.Emit(bytecode.OP_LEAVE_SCOPE, 1)
}

func (fc *funcCompiler) str(s string) int {
	return int(fc.u.pool.InternString(s))
}
