package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func writeScript(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	be.Err(t, os.WriteFile(path, []byte(src), 0o644), nil)
	return path
}

func runMain(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Main(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunFile(t *testing.T) {
	path := writeScript(t, t.TempDir(), "main.js", `
function greet(n) { return "hello " + n; }
print(greet("world"));
queueMicrotask(() => print("later"));`)

	code, out, errOut := runMain(t, "", "--no-cache", path)
	be.Equal(t, code, 0)
	be.Equal(t, out, "hello world\nlater\n")
	be.Equal(t, errOut, "")

	code, out, _ = runMain(t, "", "--no-cache", "run", path)
	be.Equal(t, code, 0)
	be.Equal(t, out, "hello world\nlater\n")
}

func TestUncaughtErrorReport(t *testing.T) {
	path := writeScript(t, t.TempDir(), "main.js", "function f() {\n  return null.x;\n}\nf();")
	code, _, errOut := runMain(t, "", "--no-cache", path)
	be.Equal(t, code, 1)
	be.Equal(t, errOut, "Uncaught TypeError: Cannot read properties of null (reading 'x')\n"+
		"    at f (line 2)\n"+
		"    at <main> (line 4)\n")
}

func TestSyntaxErrorReport(t *testing.T) {
	path := writeScript(t, t.TempDir(), "bad.js", "let x = ;")
	code, _, errOut := runMain(t, "", "--no-cache", path)
	be.Equal(t, code, 1)
	be.True(t, strings.HasPrefix(errOut, path+":1:"))
	be.True(t, strings.Contains(errOut, "SyntaxError"))
}

func TestEval(t *testing.T) {
	code, out, _ := runMain(t, "", "eval", "[1 + 2, typeof print]")
	be.Equal(t, code, 0)
	be.Equal(t, out, "[3, \"function\"]\n")

	code, out, _ = runMain(t, "", "-e", "'a' + 1")
	be.Equal(t, code, 0)
	be.Equal(t, out, "\"a1\"\n")
}

func TestStdin(t *testing.T) {
	code, out, _ := runMain(t, "print(6 * 7)")
	be.Equal(t, code, 0)
	be.Equal(t, out, "42\n")
}

func TestStepFlag(t *testing.T) {
	path := writeScript(t, t.TempDir(), "loop.js", "while (true) {}")
	code, _, errOut := runMain(t, "", "--no-cache", "--steps", "1000", path)
	be.Equal(t, code, 1)
	be.True(t, strings.Contains(errOut, "step budget"))
}

func TestBuildAndRunImage(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "app.js", `function f() { let a = 20; return eval("a * 2 + 2"); } print(f());`)

	code, out, _ := runMain(t, "", "build", path)
	be.Equal(t, code, 0)
	image := filepath.Join(dir, "app.fsc")
	be.True(t, strings.Contains(out, image))

	code, out, _ = runMain(t, "", "--no-cache", image)
	be.Equal(t, code, 0)
	be.Equal(t, out, "42\n")

	code, out, _ = runMain(t, "", "disasm", image)
	be.Equal(t, code, 0)
	be.True(t, strings.Contains(out, "RETURN"))
}

func TestDisasmSource(t *testing.T) {
	path := writeScript(t, t.TempDir(), "d.js", "function add(a, b) { return a + b; } add(1, 2);")
	code, out, _ := runMain(t, "", "disasm", path)
	be.Equal(t, code, 0)
	be.True(t, strings.Contains(out, "add"))
	be.True(t, strings.Contains(out, "ADD"))
}

func TestCacheUsage(t *testing.T) {
	dir := t.TempDir()
	cfg := writeScript(t, dir, "funscript.yaml", "cache:\n  path: cache/programs.db\n")
	path := writeScript(t, dir, "main.js", "print('cached');")

	for i := 0; i < 2; i++ {
		code, out, _ := runMain(t, "", "--config", cfg, path)
		be.Equal(t, code, 0)
		be.Equal(t, out, "cached\n")
	}

	code, out, _ := runMain(t, "", "--config", cfg, "cache", "list")
	be.Equal(t, code, 0)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	be.Equal(t, len(lines), 2)
	be.True(t, strings.Contains(lines[1], "main.js"))

	code, out, _ = runMain(t, "", "--config", cfg, "cache", "clear")
	be.Equal(t, code, 0)
	be.Equal(t, out, "removed 1 cached programs\n")
}

func TestUsageErrors(t *testing.T) {
	code, _, errOut := runMain(t, "", "--bogus")
	be.Equal(t, code, 2)
	be.True(t, strings.Contains(errOut, "unknown flag"))

	code, _, _ = runMain(t, "", "run")
	be.Equal(t, code, 2)

	code, out, _ := runMain(t, "", "version")
	be.Equal(t, code, 0)
	be.True(t, strings.HasPrefix(out, "funscript "))
}

func TestMissingFile(t *testing.T) {
	code, _, errOut := runMain(t, "", "--no-cache", filepath.Join(t.TempDir(), "nope.js"))
	be.Equal(t, code, 1)
	be.True(t, strings.HasPrefix(errOut, "Error: "))
}

func TestNeedsMoreInput(t *testing.T) {
	be.True(t, needsMoreInput("function f() {"))
	be.True(t, needsMoreInput("let x = (1 +"))
	be.Equal(t, needsMoreInput("let x = 1;"), false)
	be.Equal(t, needsMoreInput("let = 1;"), false)
}
