package conformance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"
)

const doc = "# Closures\n\nSome prose.\n\n" +
	"## Test: counter\n\n```js\nlet n = 0;\nprint(n);\n```\n\n```output\n0\n```\n\n" +
	"## Test: sum\n\n```js-expr\n1 + 2\n```\n\n```result\n3\n```\n\n```output\n\n```\n"

func TestExtract(t *testing.T) {
	cases, err := Extract([]byte(doc))
	be.Err(t, err, nil)
	be.Equal(t, len(cases), 2)

	be.Equal(t, cases[0].Name, "counter")
	be.Equal(t, cases[0].Input, "let n = 0;\nprint(n);")
	be.Equal(t, cases[0].Expression(), false)
	be.Equal(t, cases[0].Assertions, []Assertion{{Type: AssertOutput, Content: "0"}})

	be.Equal(t, cases[1].Name, "sum")
	be.Equal(t, cases[1].Expression(), true)
	be.Equal(t, len(cases[1].Assertions), 2)
	be.Equal(t, cases[1].Assertions[0], Assertion{Type: AssertResult, Content: "3"})
	be.Equal(t, cases[1].Assertions[1].Content, "")
}

func TestExtractLines(t *testing.T) {
	cases, err := Extract([]byte(doc))
	be.Err(t, err, nil)
	be.Equal(t, cases[0].Line, 5)
}

func TestExtractErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"no input", "## Test: a\n\n```output\nx\n```\n", "no input fence"},
		{"no assertions", "## Test: a\n\n```js\n1\n```\n", "no assertion fences"},
		{"two inputs", "## Test: a\n\n```js\n1\n```\n\n```js\n2\n```\n", "more than one input fence"},
		{"unknown language", "## Test: a\n\n```js\n1\n```\n\n```python\n2\n```\n", "unknown fence language"},
		{"outside case", "```js\n1\n```\n", "outside of a test case"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Extract([]byte(tc.doc))
			be.Err(t, err, tc.want)
		})
	}
}

func TestPlainFencesAreIgnored(t *testing.T) {
	cases, err := Extract([]byte("Intro\n\n```\nnot a case\n```\n"))
	be.Err(t, err, nil)
	be.Equal(t, len(cases), 0)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	be.Err(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte(doc), 0o644), nil)
	be.Err(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("## Test: first\n\n```js\n1\n```\n\n```result\n1\n```\n"), 0o644), nil)
	be.Err(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644), nil)

	cases, err := Load(dir)
	be.Err(t, err, nil)
	be.Equal(t, len(cases), 3)
	be.Equal(t, cases[0].File, "a.md")
	be.Equal(t, cases[0].Name, "first")
	be.Equal(t, cases[2].File, "b.md")
	be.Equal(t, cases[2].Name, "sum")
}
