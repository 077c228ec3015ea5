package funscript_test

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"

	funscript "github.com/funvibe/funscript/pkg/embed"
)

// User is a Go struct passed to scripts by value.
type User struct {
	Name  string
	Score int
}

func TestEmbedAPI(t *testing.T) {
	vm := funscript.New()

	be.Err(t, vm.Bind("double", func(x int) int { return x * 2 }), nil)
	be.Err(t, vm.Bind("player", User{Name: "Alice", Score: 10}), nil)
	be.Err(t, vm.Bind("status", func(u User) string {
		return fmt.Sprintf("User %s has %d points", u.Name, u.Score)
	}), nil)

	code := `
var doubled = double(21);
var p = player;
p.Score = p.Score + 5;
[doubled, p.Name, status(p)];`

	res, err := vm.Eval(code)
	be.Err(t, err, nil)
	be.Equal[any](t, res, []interface{}{42.0, "Alice", "User Alice has 15 points"})
}

func TestEvalSharesGlobals(t *testing.T) {
	vm := funscript.New()
	_, err := vm.Eval("function add(a, b) { return a + b; }\nvar total = 0;")
	be.Err(t, err, nil)

	_, err = vm.Eval("total = add(total, 5);")
	be.Err(t, err, nil)

	total, err := vm.Get("total")
	be.Err(t, err, nil)
	be.Equal(t, total, 5.0)

	sum, err := vm.Call("add", 2, 3)
	be.Err(t, err, nil)
	be.Equal(t, sum, 5.0)
}

func TestGetMissing(t *testing.T) {
	vm := funscript.New()
	_, err := vm.Get("nothing")
	be.Err(t, err, "not found")
	_, err = vm.Call("nothing")
	be.Err(t, err, "not found")
}

func TestGoErrorsAreCatchable(t *testing.T) {
	vm := funscript.New()
	be.Err(t, vm.Bind("load", func(key string) (string, error) {
		if key == "" {
			return "", errors.New("empty key")
		}
		return "v:" + key, nil
	}), nil)

	res, err := vm.Eval(`
let out = [load("a")];
try { load(""); } catch (e) { out.push(e.message); }
out;`)
	be.Err(t, err, nil)
	be.Equal[any](t, res, []interface{}{"v:a", "empty key"})
}

func TestVariadicAndMultipleResults(t *testing.T) {
	vm := funscript.New()
	be.Err(t, vm.Bind("sum", func(xs ...float64) float64 {
		total := 0.0
		for _, x := range xs {
			total += x
		}
		return total
	}), nil)
	be.Err(t, vm.Bind("split", func(n int) (int, int) { return n / 2, n % 2 }), nil)

	res, err := vm.Eval("[sum(1, 2, 3), sum(), split(7)]")
	be.Err(t, err, nil)
	be.Equal[any](t, res, []interface{}{6.0, 0.0, []interface{}{3.0, 1.0}})
}

func TestObjectsToMapsAndStructs(t *testing.T) {
	vm := funscript.New()
	var got User
	be.Err(t, vm.Bind("save", func(u User) { got = u }), nil)
	be.Err(t, vm.Bind("config", map[string]interface{}{"depth": 3, "tags": []string{"a", "b"}}), nil)

	res, err := vm.Eval(`save({ Name: "Bob", Score: 7 }); ({ depth: config.depth + 1, first: config.tags[0] });`)
	be.Err(t, err, nil)
	be.Equal(t, got, User{Name: "Bob", Score: 7})
	be.Equal[any](t, res, map[string]interface{}{"depth": 4.0, "first": "a"})
}

func TestCallValue(t *testing.T) {
	vm := funscript.New()
	fn, err := vm.Eval("(function (a) { return a * 3; })")
	be.Err(t, err, nil)
	res, err := vm.CallValue(fn, 5)
	be.Err(t, err, nil)
	be.Equal(t, res, 15.0)
}

func TestRunDrainsJobs(t *testing.T) {
	vm := funscript.New()
	var out bytes.Buffer
	vm.SetOutput(&out)
	_, err := vm.Eval(`queueMicrotask(() => print("job")); print("main");`)
	be.Err(t, err, nil)
	be.Equal(t, out.String(), "main\njob\n")
}

func TestStepLimit(t *testing.T) {
	vm := funscript.New()
	vm.SetStepLimit(10_000)
	_, err := vm.Eval("while (true) {}")
	be.Err(t, err, "step budget")
}

func TestCompileErrors(t *testing.T) {
	vm := funscript.New()
	_, err := vm.Eval("let x = ;")
	be.Err(t, err, "SyntaxError")
}

func TestImageRoundTrip(t *testing.T) {
	src := funscript.New()
	p, err := src.Compile("greet", `function greet(n) { return "hi " + n; } greet("ann");`)
	be.Err(t, err, nil)
	data, err := p.Marshal()
	be.Err(t, err, nil)

	dst := funscript.New()
	loaded, err := dst.LoadImage(data)
	be.Err(t, err, nil)
	res, err := dst.Run(loaded)
	be.Err(t, err, nil)
	be.Equal(t, res, "hi ann")

	res, err = dst.Call("greet", "bo")
	be.Err(t, err, nil)
	be.Equal(t, res, "hi bo")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.js")
	be.Err(t, os.WriteFile(path, []byte("var loaded = 1 + 1;"), 0o644), nil)

	vm := funscript.New()
	be.Err(t, vm.LoadFile(path), nil)
	v, err := vm.Get("loaded")
	be.Err(t, err, nil)
	be.Equal(t, v, 2.0)
}

func TestDisassemble(t *testing.T) {
	vm := funscript.New()
	p, err := vm.Compile("d", "function f() { return 1; }")
	be.Err(t, err, nil)
	be.True(t, len(p.Disassemble()) > 0)
}
