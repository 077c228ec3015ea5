package compiler_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/nalgeon/be"

	"github.com/funvibe/funscript/internal/bytecode"
	"github.com/funvibe/funscript/internal/compiler"
	"github.com/funvibe/funscript/internal/diagnostics"
	"github.com/funvibe/funscript/internal/pool"
	"github.com/funvibe/funscript/internal/scope"
)

func compile(t *testing.T, src string, opts compiler.Options) *bytecode.Program {
	t.Helper()
	if opts.Globals == nil && opts.Enclosing == nil {
		opts.Globals = scope.NewGlobalTable()
	}
	prog, err := compiler.Compile(src, opts)
	be.Err(t, err, nil)
	return prog
}

func compileError(t *testing.T, src string) *compiler.Error {
	t.Helper()
	_, err := compiler.Compile(src, compiler.Options{})
	var ce *compiler.Error
	if !errors.As(err, &ce) {
		t.Fatalf("expected a compile error for %q, got %v", src, err)
	}
	return ce
}

func TestRootShape(t *testing.T) {
	prog := compile(t, "let a = 1; a + 1;", compiler.Options{})
	be.Equal(t, prog.Mode, bytecode.ModeProgram)
	be.Equal(t, prog.Root.Name, "<main>")
	be.True(t, prog.Root.Has(bytecode.FnRoot))
	code := prog.Root.Code
	be.Equal(t, bytecode.Opcode(code[len(code)-2]), bytecode.OP_COMPLETION)
	be.Equal(t, bytecode.Opcode(code[len(code)-1]), bytecode.OP_RETURN)

	expr := compile(t, "1 + 2", compiler.Options{IsExpression: true})
	be.Equal(t, expr.Mode, bytecode.ModeExpression)
	be.Equal(t, bytecode.Opcode(expr.Root.Code[len(expr.Root.Code)-1]), bytecode.OP_RETURN)
	be.Equal(t, strings.Contains(expr.Disassemble(), "COMPLETION"), false)
}

func TestDirectCallsOnlyForUnmodifiedFunctions(t *testing.T) {
	direct := compile(t, "function f(x) { return x; } f(1);", compiler.Options{}).Disassemble()
	be.True(t, strings.Contains(direct, "CALL_DIRECT 0 0 1"))
	be.Equal(t, strings.Contains(direct, "CLOSURE"), false)

	reassigned := compile(t, "function f(x) { return x; } f(1); f = null;", compiler.Options{}).Disassemble()
	be.Equal(t, strings.Contains(reassigned, "CALL_DIRECT"), false)
	be.True(t, strings.Contains(reassigned, "CLOSURE 0"))
	be.True(t, strings.Contains(reassigned, "CALL 1"))
}

func TestElidedBlocksDoNotChangeCode(t *testing.T) {
	plain := compile(t, `
function f() {
  let x = 1;
  { let y = 2; return () => x + y; }
}`, compiler.Options{})
	nested := compile(t, `
function f() {
  let x = 1;
  { { let y = 2; { { return () => x + y; } } } }
}`, compiler.Options{})

	a := plain.Root.Children[0].Children[0]
	b := nested.Root.Children[0].Children[0]
	be.Equal(t, b.Code, a.Code)
	be.Equal(t,
		strings.Count(nested.Disassemble(), "ENTER_SCOPE"),
		strings.Count(plain.Disassemble(), "ENTER_SCOPE"))
}

func TestBuffersReleasedAfterCompile(t *testing.T) {
	p := pool.New(16)
	src := `
function fib(n) { return n < 2 ? n : fib(n - 1) + fib(n - 2); }
for (let i = 0; i < 3; i++) {
  try { if (i) continue; else break; } finally { fib(i); }
}
while (true) { do { break; } while (false); break; }`
	compile(t, src, compiler.Options{Pool: p})
	be.Equal(t, p.Outstanding(), 0)
}

func TestPersistentUnitsShareGlobals(t *testing.T) {
	globals := scope.NewGlobalTable()
	first := compile(t, "var a = 1; function f() { return a; }", compiler.Options{Persistent: true, Globals: globals})
	be.Equal(t, first.Mode, bytecode.ModePersistent)
	be.Equal(t, first.Globals, []string{"a", "f"})

	second := compile(t, "let b = f() + a;", compiler.Options{Persistent: true, Globals: globals})
	be.Equal(t, second.Globals, []string{"a", "f", "b"})
}

func TestEvalUnitBindsIntoEnclosingTree(t *testing.T) {
	outer := compile(t, `function f() { let a = 1; return eval("a"); } f();`, compiler.Options{})
	fn := outer.Root.Children[0]
	tree := fn.Tree
	be.True(t, tree != nil)

	fnScope := tree.Func(scope.FuncID(fn.FuncID)).Scope
	inner := compile(t, "a + 1", compiler.Options{
		Enclosing:      tree,
		EnclosingScope: fnScope,
		IsExpression:   true,
	})
	// eval itself is the only global so far
	be.Equal(t, inner.Globals, []string{"eval"})
	be.True(t, strings.Contains(inner.Disassemble(), "GET_VAR block@1"))

	// a name the enclosing unit does not know becomes a global
	other := compile(t, "zzz", compiler.Options{Enclosing: tree, EnclosingScope: fnScope, IsExpression: true})
	be.Equal(t, other.Globals, []string{"eval", "zzz"})
}

func TestRebuildUnits(t *testing.T) {
	prog := compile(t, `function f() { let a = 20; return eval("a * 2"); } f();`, compiler.Options{})
	data, err := prog.Marshal()
	be.Err(t, err, nil)

	loaded, err := bytecode.Unmarshal(data)
	be.Err(t, err, nil)
	be.True(t, loaded.Root.Children[0].Tree == nil)
	be.Err(t, compiler.RebuildUnits(loaded, scope.NewGlobalTable()), nil)
	be.True(t, loaded.Root.Tree != nil)
	be.True(t, loaded.Root.Children[0].Tree == loaded.Root.Tree)

	tampered, err := bytecode.Unmarshal(data)
	be.Err(t, err, nil)
	tampered.Source = `function f() { let a = 21; return eval("a * 2"); } f();`
	be.Err(t, compiler.RebuildUnits(tampered, scope.NewGlobalTable()), bytecode.ErrCorruptProgram)

	tampered.Source = "function ("
	be.Err(t, compiler.RebuildUnits(tampered, scope.NewGlobalTable()), "does not compile")
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		src    string
		code   diagnostics.ErrorCode
		kind   diagnostics.Kind
		line   int
		substr string
	}{
		{"let x = ;", diagnostics.ErrP001, diagnostics.SyntaxError, 1, ""},
		{"let a = 1;\nlet a = 2;", diagnostics.ErrP005, diagnostics.SyntaxError, 2, "already been declared"},
		{"1 = 2;", diagnostics.ErrP004, diagnostics.SyntaxError, 1, ""},
		{"break;", diagnostics.ErrP006, diagnostics.SyntaxError, 1, ""},
		{"class A {}", diagnostics.ErrP003, diagnostics.SyntaxError, 1, ""},
		{"let s = 'open", diagnostics.ErrL001, diagnostics.SyntaxError, 1, ""},
		{"function f() {", diagnostics.ErrP002, diagnostics.SyntaxError, 1, "end of input"},
		{"f(" + strings.Repeat("1,", 256) + "1);", diagnostics.ErrC001, diagnostics.RangeError, 1, "too many arguments"},
	}
	for _, tt := range tests {
		t.Run(tt.src[:min(len(tt.src), 16)], func(t *testing.T) {
			ce := compileError(t, tt.src)
			be.Equal(t, ce.Code, tt.code)
			be.Equal(t, ce.Kind, tt.kind)
			be.Equal(t, ce.Line, tt.line)
			if tt.substr != "" {
				be.True(t, strings.Contains(ce.Message, tt.substr))
			}
		})
	}
}
