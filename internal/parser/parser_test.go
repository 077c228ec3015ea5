package parser_test

import (
	"strings"
	"testing"

	"github.com/nalgeon/be"

	"github.com/funvibe/funscript/internal/ast"
	"github.com/funvibe/funscript/internal/diagnostics"
	"github.com/funvibe/funscript/internal/lexer"
	"github.com/funvibe/funscript/internal/parser"
	"github.com/funvibe/funscript/internal/pipeline"
	"github.com/funvibe/funscript/internal/scope"
)

// parseUnit runs the lexer and parser stages over input.
func parseUnit(input string, expression bool) *pipeline.PipelineContext {
	ctx := pipeline.NewPipelineContext(input)
	ctx.IsExpression = expression
	ctx.Tree = scope.NewTree(nil, nil, scope.NoScope)
	return pipeline.New(&lexer.LexerProcessor{}, &parser.ParserProcessor{}).Run(ctx)
}

// expectError asserts parsing fails with the given code.
func expectError(t *testing.T, input string, code diagnostics.ErrorCode) *diagnostics.DiagnosticError {
	t.Helper()
	ctx := parseUnit(input, false)
	if len(ctx.Errors) == 0 {
		t.Fatalf("expected error %s, but got none\ninput: %s", code, input)
	}
	if ctx.Errors[0].Code != code {
		t.Fatalf("expected error %s, got %s\ninput: %s", code, ctx.Errors[0], input)
	}
	return ctx.Errors[0]
}

// expectProgram asserts parsing succeeds.
func expectProgram(t *testing.T, input string) (*ast.Program, *scope.Tree) {
	t.Helper()
	ctx := parseUnit(input, false)
	if len(ctx.Errors) > 0 {
		t.Fatalf("expected no errors, got %s\ninput: %s", ctx.Errors[0], input)
	}
	return ctx.AstRoot, ctx.Tree
}

func TestAccepts(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"declarations", "var a = 1, b; let c; const d = 2;"},
		{"asi_newline", "let a = 1\nlet b = a\nb"},
		{"asi_before_brace", "function f() { return 1 }"},
		{"arrow_forms", "let f = x => x; let g = (a, b = 2) => { return a + b; }; let h = () => ({});"},
		{"function_expression", "let f = function fact(n) { return n ? n * fact(n - 1) : 1; };"},
		{"defaults_see_earlier_params", "function f(a, b = a + 1) { return b; }"},
		{"objects_and_arrays", "let o = { a: 1, 'b': [1, , 3], 2: null, f() { return this.a; } };"},
		{"member_chains", "a.b[c](d).e = f; a[0]++; --a.b;"},
		{"control_flow", "for (let i = 0; i < 3; i++) { if (i) continue; else break; } while (x) {} do {} while (y);"},
		{"for_of", "for (const v of [1, 2]) print(v); for (x of y) {}"},
		{"try_forms", "try {} catch (e) {} try {} finally {} try {} catch {} finally {}"},
		{"operators", "(a ?? b) || c && !d; typeof x === 'undefined'; a += b -= c;"},
		{"sequence_and_conditional", "x = (a, b, c) ? 1 : 2;"},
		{"throw_and_empty", ";; if (x) ; throw new_error;"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			expectProgram(t, tc.input)
		})
	}
}

func TestRejects(t *testing.T) {
	testCases := []struct {
		input string
		code  diagnostics.ErrorCode
		msg   string
	}{
		{"let x = ;", diagnostics.ErrP001, "Unexpected token ';'"},
		{"a b", diagnostics.ErrP001, "Unexpected token 'b'"},
		{"throw\nx;", diagnostics.ErrP001, "Illegal newline after throw"},
		{"if (x {}", diagnostics.ErrP002, "expected ')'"},
		{"function f() {", diagnostics.ErrP002, "Unexpected end of input"},
		{"const c;", diagnostics.ErrP002, "Missing initializer in const declaration"},
		{"try {}", diagnostics.ErrP002, "Missing catch or finally after try"},
		{"new Foo()", diagnostics.ErrP003, "'new' expressions are not supported"},
		{"class A {}", diagnostics.ErrP003, "classes are not supported"},
		{"with (o) {}", diagnostics.ErrP003, "'with' statements are not supported"},
		{"outer: for (;;) {}", diagnostics.ErrP003, "labeled statements are not supported"},
		{"let [a] = b;", diagnostics.ErrP003, "destructuring declarations are not supported"},
		{"f(...xs)", diagnostics.ErrP003, "spread and rest syntax is not supported"},
		{"function* g() {}", diagnostics.ErrP003, "generator functions are not supported"},
		{"1 = 2;", diagnostics.ErrP004, "Invalid left-hand side in assignment"},
		{"eval = 1;", diagnostics.ErrP004, "Unexpected eval or arguments in strict mode"},
		{"let a; let a;", diagnostics.ErrP005, "Identifier 'a' has already been declared"},
		{"let a; var a;", diagnostics.ErrP005, "already been declared"},
		{"let f; function f() {}", diagnostics.ErrP005, "Identifier 'f' has already been declared"},
		{"return 1;", diagnostics.ErrP006, "Illegal return statement"},
		{"break;", diagnostics.ErrP006, "Illegal break statement"},
		{"while (x) function f() {}", diagnostics.ErrP006, "single-statement context"},
		{"if (x) let y = 1;", diagnostics.ErrP006, "single-statement context"},
		{"for (;;) { function f() { continue; } }", diagnostics.ErrP006, "Illegal continue statement"},
		{strings.Repeat("(", 600) + "1" + strings.Repeat(")", 600), diagnostics.ErrP007, "recursion depth"},
		{"'unterminated", diagnostics.ErrL001, "unterminated string literal"},
	}
	for _, tc := range testCases {
		t.Run(tc.input[:min(len(tc.input), 24)], func(t *testing.T) {
			err := expectError(t, tc.input, tc.code)
			be.True(t, strings.Contains(err.Message, tc.msg))
			be.Equal(t, err.Kind, diagnostics.SyntaxError)
		})
	}
}

func TestErrorPosition(t *testing.T) {
	err := expectError(t, "let a = 1;\nlet b = a +;\n", diagnostics.ErrP001)
	be.Equal(t, err.Line, 2)
	be.Equal(t, err.Column, 12)
	be.Equal(t, err.Error(), "SyntaxError: Unexpected token ';' (line 2, column 12)")
}

func TestPrecedence(t *testing.T) {
	prog, _ := expectProgram(t, "a = b || c && d + e * f;")
	stmt := prog.Statements[0].(*ast.ExpressionStatement)
	assign := stmt.Expression.(*ast.AssignExpression)
	or := assign.Value.(*ast.LogicalExpression)
	be.Equal(t, or.Operator, "||")
	and := or.Right.(*ast.LogicalExpression)
	be.Equal(t, and.Operator, "&&")
	sum := and.Right.(*ast.InfixExpression)
	be.Equal(t, sum.Operator, "+")
	product := sum.Right.(*ast.InfixExpression)
	be.Equal(t, product.Operator, "*")
}

func TestDirectEvalMarksScopes(t *testing.T) {
	prog, tree := expectProgram(t, "function f() { { eval('1'); } } g(eval);")

	fs := prog.Statements[0].(*ast.FunctionStatement)
	block := fs.Function.Body.Statements[0].(*ast.BlockStatement)
	call := block.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.CallExpression)
	be.True(t, call.DirectEval)
	be.Equal(t, call.Scope, block.Scope)
	be.True(t, tree.Scope(block.Scope).Has(scope.ScopeDirectEval))
	be.True(t, tree.Scope(tree.Root().Scope).Has(scope.ScopeDynamic))

	// passing eval as a value is not a direct call
	outer := prog.Statements[1].(*ast.ExpressionStatement).Expression.(*ast.CallExpression)
	be.Equal(t, outer.DirectEval, false)
	be.Equal(t, tree.Scope(tree.Root().Scope).Has(scope.ScopeDirectEval), false)
}

func TestForLetIsPerIteration(t *testing.T) {
	prog, _ := expectProgram(t, "for (let i = 0; i < 1; i++) {} for (var j = 0; j < 1; j++) {}")
	be.True(t, prog.Statements[0].(*ast.ForStatement).PerIteration)
	be.Equal(t, prog.Statements[1].(*ast.ForStatement).PerIteration, false)
}

func TestScopesGrowWithBlocks(t *testing.T) {
	_, tree := expectProgram(t, "let a; { let b; { } } function f(p) { let c; }")
	root := tree.Root().Scope
	_, ok := tree.Scope(root).Lookup("a")
	be.True(t, ok)
	_, ok = tree.Scope(root).Lookup("b")
	be.Equal(t, ok, false)
	be.Equal(t, len(tree.Funcs), 2)
	be.Equal(t, len(tree.Children(root)), 2)

	f := tree.Func(1)
	be.Equal(t, f.Name, "f")
	be.Equal(t, len(f.Params), 1)
	_, ok = tree.Scope(f.Scope).Lookup("c")
	be.True(t, ok)
}

func TestExpressionUnit(t *testing.T) {
	ctx := parseUnit("1 + 2;", true)
	be.Equal(t, len(ctx.Errors), 0)
	be.True(t, ctx.AstRoot.Expression != nil)
	be.Equal(t, len(ctx.AstRoot.Statements), 0)

	ctx = parseUnit("1; 2", true)
	be.Equal(t, len(ctx.Errors), 1)
	be.Equal(t, ctx.Errors[0].Code, diagnostics.ErrP001)
}
