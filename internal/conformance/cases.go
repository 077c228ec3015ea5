// Package conformance extracts script test cases from Markdown documents.
//
// A case starts at a heading "Test: <name>" and holds one input fence
// (```js for a program, ```js-expr for a single expression) followed by
// assertion fences:
//
//	output         text the script prints
//	result         Inspect rendering of the completion value
//	error          the uncaught error, as Error() renders it
//	compile-error  the compile-time error, as Error() renders it
package conformance

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// InputType is the language tag of an input fence.
type InputType string

const (
	InputProgram    InputType = "js"
	InputExpression InputType = "js-expr"
)

// AssertionType is the language tag of an assertion fence.
type AssertionType string

const (
	AssertOutput       AssertionType = "output"
	AssertResult       AssertionType = "result"
	AssertError        AssertionType = "error"
	AssertCompileError AssertionType = "compile-error"
)

type Assertion struct {
	Type    AssertionType
	Content string
}

// Case is one test case of a document.
type Case struct {
	Name       string
	File       string
	Line       int
	Input      string
	InputType  InputType
	Assertions []Assertion
}

// Expression reports whether the input is a single expression.
func (c *Case) Expression() bool { return c.InputType == InputExpression }

// Extract parses a Markdown document and returns its cases in order.
func Extract(markdown []byte) ([]Case, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(markdown))

	var cases []Case
	var cur *Case
	flush := func() error {
		if cur == nil {
			return nil
		}
		if err := validate(cur); err != nil {
			return err
		}
		cases = append(cases, *cur)
		cur = nil
		return nil
	}

	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *ast.Heading:
			heading := nodeText(n, markdown)
			if !strings.HasPrefix(heading, "Test: ") {
				return ast.WalkContinue, nil
			}
			if err := flush(); err != nil {
				return ast.WalkStop, err
			}
			cur = &Case{Name: strings.TrimPrefix(heading, "Test: "), Line: lineOf(n, markdown)}

		case *ast.FencedCodeBlock:
			lang := string(n.Language(markdown))
			line := lineOf(n, markdown)
			if cur == nil {
				if lang != "" {
					return ast.WalkStop, fmt.Errorf("line %d: %s fence outside of a test case", line, lang)
				}
				return ast.WalkContinue, nil
			}
			content := strings.TrimRight(fenceContent(n, markdown), "\n")
			switch {
			case lang == string(InputProgram) || lang == string(InputExpression):
				if cur.Input != "" {
					return ast.WalkStop, fmt.Errorf("line %d: test %q has more than one input fence", line, cur.Name)
				}
				cur.Input = content
				cur.InputType = InputType(lang)
			case isAssertion(lang):
				cur.Assertions = append(cur.Assertions, Assertion{Type: AssertionType(lang), Content: content})
			case lang != "":
				return ast.WalkStop, fmt.Errorf("line %d: unknown fence language %q in test %q", line, lang, cur.Name)
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return cases, nil
}

// Load extracts the cases of every .md file in dir, ordered by file name.
func Load(dir string) ([]Case, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	var all []Case
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		cases, err := Extract(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for i := range cases {
			cases[i].File = filepath.Base(path)
		}
		all = append(all, cases...)
	}
	return all, nil
}

func isAssertion(lang string) bool {
	switch AssertionType(lang) {
	case AssertOutput, AssertResult, AssertError, AssertCompileError:
		return true
	}
	return false
}

func validate(c *Case) error {
	if c.InputType == "" {
		return fmt.Errorf("test %q has no input fence", c.Name)
	}
	if len(c.Assertions) == 0 {
		return fmt.Errorf("test %q has no assertion fences", c.Name)
	}
	return nil
}

func nodeText(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*ast.Text); ok && entering {
			buf.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func fenceContent(block *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return buf.String()
}

func lineOf(node ast.Node, source []byte) int {
	var start int
	switch {
	case node.Lines().Len() > 0:
		start = node.Lines().At(0).Start
	default:
		return 0
	}
	return bytes.Count(source[:min(start, len(source))], []byte{'\n'}) + 1
}
