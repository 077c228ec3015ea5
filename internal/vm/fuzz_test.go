package vm

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/funvibe/funscript/internal/bytecode"
	"github.com/funvibe/funscript/internal/compiler"
)

// byteSource uses a byte slice as a source of randomness.
type byteSource struct {
	data []byte
	pos  int
}

func (s *byteSource) Intn(n int) int {
	if n <= 0 || s.pos >= len(s.data) {
		return 0
	}
	v := int(s.data[s.pos])
	s.pos++
	return v % n
}

// generator writes random but well-formed scripts that exercise scoping:
// nested functions, blocks, loops, closures, try/catch and eval.
type generator struct {
	src   *byteSource
	depth int
	fresh int
	vars  []string
}

const (
	maxGenDepth      = 4
	maxGenStatements = 4
)

func newGenerator(data []byte) *generator {
	return &generator{src: &byteSource{data: data}, vars: []string{"x", "y"}}
}

func (g *generator) program() string {
	var sb strings.Builder
	sb.WriteString("var x = 1; let y = 2;\n")
	for i := g.src.Intn(maxGenStatements) + 1; i > 0; i-- {
		sb.WriteString(g.statement())
		sb.WriteString("\n")
	}
	sb.WriteString("print(x, y);")
	return sb.String()
}

func (g *generator) name() string {
	g.fresh++
	return fmt.Sprintf("v%d", g.fresh)
}

func (g *generator) variable() string {
	return g.vars[g.src.Intn(len(g.vars))]
}

func (g *generator) block() string {
	saved := len(g.vars)
	var sb strings.Builder
	sb.WriteString("{ ")
	for i := g.src.Intn(maxGenStatements); i > 0; i-- {
		sb.WriteString(g.statement())
		sb.WriteString(" ")
	}
	sb.WriteString("}")
	g.vars = g.vars[:saved]
	return sb.String()
}

func (g *generator) statement() string {
	if g.depth > maxGenDepth {
		return g.variable() + " = " + g.variable() + " + 1;"
	}
	g.depth++
	defer func() { g.depth-- }()

	switch g.src.Intn(10) {
	case 0, 1:
		n := g.name()
		s := fmt.Sprintf("let %s = %s;", n, g.expression())
		g.vars = append(g.vars, n)
		return s
	case 2:
		return fmt.Sprintf("%s = %s;", g.variable(), g.expression())
	case 3:
		n := g.name()
		p := g.name()
		saved := g.vars
		g.vars = append(append([]string(nil), g.vars...), p)
		body := g.block()
		g.vars = saved
		s := fmt.Sprintf("function %s(%s) { %s return %s; }", n, p, body, p)
		g.vars = append(g.vars, n)
		return s
	case 4:
		return fmt.Sprintf("if (%s) %s else %s", g.expression(), g.block(), g.block())
	case 5:
		i := g.name()
		saved := g.vars
		g.vars = append(append([]string(nil), g.vars...), i)
		body := g.block()
		g.vars = saved
		return fmt.Sprintf("for (let %s = 0; %s < 3; %s++) %s", i, i, i, body)
	case 6:
		return fmt.Sprintf("try %s catch (e) { %s = 0; } finally { %s; }", g.block(), g.variable(), g.expression())
	case 7:
		return fmt.Sprintf("eval(%q);", g.variable()+" = "+g.variable()+" + 1")
	case 8:
		return fmt.Sprintf("queueMicrotask(() => { %s = %s; });", g.variable(), g.expression())
	}
	return g.expression() + ";"
}

func (g *generator) expression() string {
	if g.depth > maxGenDepth {
		return g.variable()
	}
	g.depth++
	defer func() { g.depth-- }()

	switch g.src.Intn(8) {
	case 0:
		return fmt.Sprintf("%d", g.src.Intn(100))
	case 1:
		return fmt.Sprintf("(%s + %s)", g.expression(), g.expression())
	case 2:
		return fmt.Sprintf("(%s < %s ? %s : %s)", g.expression(), g.expression(), g.expression(), g.variable())
	case 3:
		return fmt.Sprintf("(() => %s)()", g.expression())
	case 4:
		return fmt.Sprintf("[%s, %s].length", g.expression(), g.variable())
	case 5:
		return fmt.Sprintf("typeof %s", g.variable())
	case 6:
		return fmt.Sprintf("(%s || %s)", g.variable(), g.expression())
	}
	return g.variable()
}

// FuzzCompileRun checks that generated programs compile deterministically,
// survive an image round trip, and run to the same output either way.
func FuzzCompileRun(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{3, 3, 0, 1, 5, 2, 7})
	f.Add([]byte{5, 4, 6, 1, 8, 3, 2, 2, 9, 7, 0, 4})
	f.Add([]byte("closures and eval"))

	f.Fuzz(func(t *testing.T, data []byte) {
		if len(data) > 512 {
			return
		}
		src := newGenerator(data).program()

		run := func(load func(m *VM) (*bytecode.Program, error)) (string, error) {
			m := New()
			var out bytes.Buffer
			m.SetOutput(&out)
			m.SetStepLimit(200_000)
			prog, err := load(m)
			if err != nil {
				t.Fatalf("compile: %v\n%s", err, src)
			}
			if _, err := m.Run(prog); err != nil {
				return out.String(), err
			}
			return out.String(), m.RunJobs()
		}
		compile := func(m *VM) (*bytecode.Program, error) {
			return compiler.Compile(src, compiler.Options{Globals: m.Globals(), Pool: m.Pool()})
		}

		first, err := compiler.Compile(src, compiler.Options{Globals: NewGlobalTable()})
		if err != nil {
			t.Fatalf("compile: %v\n%s", err, src)
		}
		second, _ := compiler.Compile(src, compiler.Options{Globals: NewGlobalTable()})
		a, _ := first.Marshal()
		b, _ := second.Marshal()
		if !bytes.Equal(a, b) {
			t.Fatalf("compilation is not deterministic\n%s", src)
		}

		want, wantErr := run(compile)
		got, gotErr := run(func(*VM) (*bytecode.Program, error) { return bytecode.Unmarshal(a) })
		if got != want {
			t.Fatalf("image run printed %q, source run %q\n%s", got, want, src)
		}
		if (wantErr == nil) != (gotErr == nil) {
			t.Fatalf("image run error %v, source run error %v\n%s", gotErr, wantErr, src)
		}
		var se *ScriptError
		if wantErr != nil && !errors.As(wantErr, &se) {
			t.Fatalf("unexpected host error %v\n%s", wantErr, src)
		}
	})
}
