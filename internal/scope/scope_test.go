package scope_test

import (
	"errors"
	"testing"

	"github.com/nalgeon/be"

	"github.com/funvibe/funscript/internal/lexer"
	"github.com/funvibe/funscript/internal/parser"
	"github.com/funvibe/funscript/internal/scope"
)

// analyze parses src into a fresh unit and runs the resolver and allocator.
func analyze(t *testing.T, src string, persistent bool) *scope.Tree {
	t.Helper()
	tokens, err := lexer.Tokenize(src)
	be.Err(t, err, nil)
	tree := scope.NewTree(nil, nil, scope.NoScope)
	tree.PersistentRoot = persistent
	_, err = parser.Parse(tokens, tree, false)
	be.Err(t, err, nil)
	tree.Resolve()
	tree.Allocate()
	return tree
}

func decl(t *testing.T, tree *scope.Tree, name string) *scope.Declaration {
	t.Helper()
	for i := range tree.Decls {
		if tree.Decls[i].Name == name {
			return &tree.Decls[i]
		}
	}
	t.Fatalf("no declaration %q", name)
	return nil
}

func function(t *testing.T, tree *scope.Tree, name string) *scope.Function {
	t.Helper()
	for i := range tree.Funcs {
		if tree.Funcs[i].Name == name {
			return &tree.Funcs[i]
		}
	}
	t.Fatalf("no function %q", name)
	return nil
}

// lastRef is the last recorded use of name.
func lastRef(t *testing.T, tree *scope.Tree, name string) *scope.Reference {
	t.Helper()
	for i := len(tree.Refs) - 1; i >= 0; i-- {
		if tree.Refs[i].Name == name {
			return &tree.Refs[i]
		}
	}
	t.Fatalf("no reference %q", name)
	return nil
}

const storageSource = `
var g = 1;
let c = 2;
function f(a, b) {
  let r = a;
  let k = 0;
  function inner() { return k + c; }
  return inner;
}
f(1, 2);`

func TestStorageClasses(t *testing.T) {
	tree := analyze(t, storageSource, false)

	tests := []struct {
		name  string
		class scope.StorageClass
		index int
	}{
		{"g", scope.Register, 0},
		{"c", scope.Global, 0},
		{"f", scope.NoStorage, -1},
		{"a", scope.Argument, 0},
		{"b", scope.Argument, 1},
		{"r", scope.Register, 0},
		{"k", scope.BlockLocal, 0},
		{"inner", scope.FunctionLocal, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := decl(t, tree, tt.name)
			be.Equal(t, d.Class, tt.class)
			be.Equal(t, d.Index, tt.index)
		})
	}

	// registers follow block-locals in the frame
	be.Equal(t, decl(t, tree, "k").Slot, 0)
	be.Equal(t, decl(t, tree, "r").Slot, 1)
	fs := tree.Scope(function(t, tree, "f").Scope)
	be.Equal(t, fs.BlockLocalCount, 1)
	be.Equal(t, fs.RegisterCount, 1)
	be.Equal(t, fs.SlotCount(), 2)
	be.Equal(t, tree.Globals.Names(), []string{"c"})
}

func TestCaptureFlags(t *testing.T) {
	tree := analyze(t, `
function outer(p) {
  let v = 1;
  function mid() {
    return function leaf() { return p + v; };
  }
  return mid;
}
outer(1);`, false)

	be.True(t, decl(t, tree, "p").Has(scope.DeclCaptured))
	be.True(t, decl(t, tree, "v").Has(scope.DeclCaptured))

	outer := function(t, tree, "outer")
	be.True(t, outer.Has(scope.FuncArgsCaptured))
	be.True(t, outer.Has(scope.FuncVarsCaptured))
	be.Equal(t, outer.Has(scope.FuncCapturesAncestor), false)

	// every function between the use and the declaration captures
	be.True(t, function(t, tree, "mid").Has(scope.FuncCapturesAncestor))
	be.True(t, function(t, tree, "leaf").Has(scope.FuncCapturesAncestor))
	be.Equal(t, function(t, tree, "mid").Has(scope.FuncVarsCaptured), false)
}

func TestDirectCallTarget(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		direct bool
	}{
		{"called only", "function h() {} h();", true},
		{"nested call", "function o() { function h() {} return h(); } o();", true},
		{"reassigned", "function h() {} h(); h = 1;", false},
		{"read as value", "function h() {} h(); let v = h;", false},
		{"redeclared", "function h() {} function h() {} h();", false},
		{"eval in scope", "function h() {} h(); eval('1');", false},
		{"var then function", "var h; function h() {} h();", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := analyze(t, tt.src, false)
			r := lastRef(t, tree, "h")
			_, ok := tree.CallTarget(r)
			be.Equal(t, ok, tt.direct)
			be.Equal(t, decl(t, tree, "h").Class == scope.NoStorage, tt.direct)
		})
	}
}

func TestDirectCallDepth(t *testing.T) {
	tree := analyze(t, `
function o() {
  function a() {}
  function b() {}
  { let x = 1; { b(); x; } }
}
o();`, false)
	target, ok := tree.CallTarget(lastRef(t, tree, "b"))
	be.True(t, ok)
	be.Equal(t, target.Child, 1)
	// the block holding x is kept, the empty inner one is elided
	be.Equal(t, target.Depth, 1)
}

func TestElisionKeepsDepths(t *testing.T) {
	plain := analyze(t, `
function f() {
  let x = 1;
  { let y = 2; return () => x + y; }
}
f();`, false)
	nested := analyze(t, `
function f() {
  let x = 1;
  { { let y = 2; { { return () => x + y; } } } }
}
f();`, false)

	for _, name := range []string{"x", "y"} {
		a := plain.AccessRef(lastRef(t, plain, name))
		b := nested.AccessRef(lastRef(t, nested, name))
		be.Equal(t, b, a)
	}

	elided := 0
	for i := range nested.Scopes {
		if nested.Scopes[i].Has(scope.ScopeElided) {
			elided++
		}
	}
	be.Equal(t, elided, 3)
}

func TestPersistentRootUsesGlobals(t *testing.T) {
	tree := analyze(t, "var a = 1; let b = 2; function f() {} f();", true)
	be.Equal(t, decl(t, tree, "a").Class, scope.Global)
	be.Equal(t, decl(t, tree, "b").Class, scope.Global)
	be.Equal(t, decl(t, tree, "f").Class, scope.Global)
	be.Equal(t, tree.Globals.Names(), []string{"a", "b", "f"})
}

func TestDirectEvalMakesScopesDynamic(t *testing.T) {
	tree := analyze(t, `
function f(p) {
  let x = 1;
  { let y = 2; eval("x + y"); }
}
f(1);`, false)
	be.Equal(t, decl(t, tree, "x").Class, scope.BlockLocal)
	be.Equal(t, decl(t, tree, "y").Class, scope.BlockLocal)
	be.Equal(t, decl(t, tree, "p").Class, scope.Argument)
	f := function(t, tree, "f")
	be.True(t, f.Has(scope.FuncDirectEval))
	be.True(t, f.Args != scope.NoDecl)
	be.True(t, tree.Scope(tree.Root().Scope).Has(scope.ScopeDynamic))
}

func TestUndeclaredNamesBecomeGlobals(t *testing.T) {
	tree := analyze(t, "function f() { return missing + missing; } f();", false)
	d := decl(t, tree, "missing")
	be.True(t, d.Has(scope.DeclImplicit))
	be.Equal(t, d.Class, scope.Global)
	be.Equal(t, tree.Globals.Names(), []string{"missing"})
}

func TestRedeclaration(t *testing.T) {
	tree := scope.NewTree(nil, nil, scope.NoScope)
	root := tree.Root().Scope

	_, err := tree.DeclareVariable(root, "a", scope.KindLet)
	be.Err(t, err, nil)
	_, err = tree.DeclareVariable(root, "a", scope.KindConst)
	be.Err(t, err, "Identifier 'a' has already been declared")
	_, err = tree.DeclareVariable(root, "a", scope.KindVar)
	be.Err(t, err, "already been declared")

	v1, err := tree.DeclareVariable(root, "v", scope.KindVar)
	be.Err(t, err, nil)
	block := tree.NewBlockScope(root)
	v2, err := tree.DeclareVariable(block, "v", scope.KindVar)
	be.Err(t, err, nil)
	be.Equal(t, v2, v1)

	_, err = tree.DeclareVariable(block, "w", scope.KindLet)
	be.Err(t, err, nil)
	inner := tree.NewBlockScope(block)
	_, err = tree.DeclareVariable(inner, "w", scope.KindVar)
	var re *scope.RedeclarationError
	be.True(t, errors.As(err, &re))
	be.Equal(t, re.Name, "w")
}

func TestGlobalTable(t *testing.T) {
	g := scope.NewGlobalTable()
	be.Equal(t, g.Intern("a"), 0)
	be.Equal(t, g.Intern("b"), 1)
	be.Equal(t, g.Intern("a"), 0)

	idx, ok := g.Lookup("b")
	be.True(t, ok)
	be.Equal(t, idx, 1)
	_, ok = g.Lookup("c")
	be.Equal(t, ok, false)
	be.Equal(t, g.Name(1), "b")
	be.Equal(t, g.Name(7), "")
	be.Equal(t, g.Len(), 2)
}
