package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/funvibe/funscript/internal/bytecode"
	"github.com/funvibe/funscript/internal/cache"
	"github.com/funvibe/funscript/internal/compiler"
	"github.com/funvibe/funscript/internal/config"
	"github.com/funvibe/funscript/internal/diagnostics"
	"github.com/funvibe/funscript/internal/vm"
)

func (s *session) newMachine() *vm.VM {
	m := vm.New()
	m.SetOutput(s.stdout)
	m.SetStepLimit(s.cfg.Engine.StepLimit)
	m.SetMaxDepth(s.cfg.Engine.MaxDepth)
	return m
}

func (s *session) openCache() *cache.Cache {
	if s.noCache || s.cfg.Cache.Disabled {
		return nil
	}
	c, err := cache.Open(s.cfg.Cache.Path)
	if err != nil {
		log.Warningf("cache unavailable: %s", err)
		return nil
	}
	return c
}

// load reads a script or image and compiles it for m. Source files go
// through the program cache.
func (s *session) load(m *vm.VM, path string) (*bytecode.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if bytecode.IsImage(data) {
		return bytecode.Unmarshal(data)
	}
	return s.compileCached(m, path, string(data))
}

func (s *session) compileCached(m *vm.VM, name, source string) (*bytecode.Program, error) {
	c := s.openCache()
	if c == nil {
		return compileFor(m, name, source)
	}
	defer c.Close()

	key := cache.Key(source, bytecode.ModeProgram)
	prog, err := c.Get(key)
	if err == nil {
		return prog, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		log.Warningf("cache read: %s", err)
	}
	prog, err = compileFor(m, name, source)
	if err != nil {
		return nil, err
	}
	if _, err := c.Put(key, name, prog); err != nil {
		log.Warningf("cache write: %s", err)
	}
	return prog, nil
}

func compileFor(m *vm.VM, name, source string) (*bytecode.Program, error) {
	return compiler.Compile(source, compiler.Options{
		Name:    name,
		Globals: m.Globals(),
		Pool:    m.Pool(),
	})
}

func (s *session) runFile(path string) int {
	m := s.newMachine()
	prog, err := s.load(m, path)
	if err != nil {
		s.report(path, err)
		return 1
	}
	return s.execute(m, path, prog)
}

func (s *session) runStdin() int {
	data, err := io.ReadAll(s.stdin)
	if err != nil {
		s.report("<stdin>", err)
		return 1
	}
	if strings.TrimSpace(string(data)) == "" {
		return 0
	}
	m := s.newMachine()
	prog, err := compileFor(m, "<stdin>", string(data))
	if err != nil {
		s.report("<stdin>", err)
		return 1
	}
	return s.execute(m, "<stdin>", prog)
}

// execute runs prog and then drains the job queue. Ctrl-C cancels the run.
func (s *session) execute(m *vm.VM, name string, prog *bytecode.Program) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	m.SetContext(ctx)

	if _, err := m.Run(prog); err != nil {
		s.report(name, err)
		return 1
	}
	if err := m.RunJobs(); err != nil {
		s.report(name, err)
		return 1
	}
	return 0
}

func (s *session) eval(expr string) int {
	m := s.newMachine()
	prog, err := compiler.Compile(expr, compiler.Options{
		Name:         "<eval>",
		IsExpression: true,
		Globals:      m.Globals(),
		Pool:         m.Pool(),
	})
	if err != nil {
		s.report("<eval>", err)
		return 1
	}
	v, err := m.Run(prog)
	if err != nil {
		s.report("<eval>", err)
		return 1
	}
	if err := m.RunJobs(); err != nil {
		s.report("<eval>", err)
		return 1
	}
	fmt.Fprintln(s.stdout, v.Inspect())
	return 0
}

func (s *session) disasm(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		s.report(path, err)
		return 1
	}
	var prog *bytecode.Program
	if bytecode.IsImage(data) {
		prog, err = bytecode.Unmarshal(data)
	} else {
		prog, err = compileFor(vm.New(), path, string(data))
	}
	if err != nil {
		s.report(path, err)
		return 1
	}
	fmt.Fprint(s.stdout, prog.Disassemble())
	return 0
}

// build compiles a script into an image file, or with --exe into a copy of
// this binary that runs the image on start.
func (s *session) build(args []string) int {
	var source, output string
	exe := false
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-o":
			if i+1 >= len(args) {
				fmt.Fprintln(s.stderr, "-o needs a path")
				return 2
			}
			i++
			output = args[i]
		case "--exe":
			exe = true
		default:
			if source != "" || strings.HasPrefix(args[i], "-") {
				fmt.Fprintf(s.stderr, "unexpected argument %s\n", args[i])
				return 2
			}
			source = args[i]
		}
	}
	if source == "" {
		fmt.Fprintln(s.stderr, "Usage: funscript build <file> [-o <output>] [--exe]")
		return 2
	}

	data, err := os.ReadFile(source)
	if err != nil {
		s.report(source, err)
		return 1
	}
	prog, err := compileFor(vm.New(), source, string(data))
	if err != nil {
		s.report(source, err)
		return 1
	}
	image, err := prog.Marshal()
	if err != nil {
		s.report(source, err)
		return 1
	}

	base := strings.TrimSuffix(source, filepath.Ext(source))
	mode := os.FileMode(0o644)
	if exe {
		host, err := hostBinary()
		if err != nil {
			s.report(source, err)
			return 1
		}
		image = PackSelfContained(host, image)
		mode = 0o755
		if output == "" {
			output = base
		}
	} else if output == "" {
		output = base + config.ImageFileExt
	}

	if err := os.WriteFile(output, image, mode); err != nil {
		s.report(output, err)
		return 1
	}
	fmt.Fprintf(s.stdout, "Compiled %s -> %s (%d bytes)\n", source, output, len(image))
	return 0
}

func (s *session) cacheCommand(args []string) int {
	sub := "list"
	if len(args) > 0 {
		sub = args[0]
	}
	if s.cfg.Cache.Disabled {
		fmt.Fprintln(s.stderr, "the program cache is disabled")
		return 1
	}
	c, err := cache.Open(s.cfg.Cache.Path)
	if err != nil {
		s.report(s.cfg.Cache.Path, err)
		return 1
	}
	defer c.Close()

	switch sub {
	case "list":
		entries, err := c.Entries()
		if err != nil {
			s.report(c.Path(), err)
			return 1
		}
		w := tabwriter.NewWriter(s.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSIZE\tHITS\tCREATED")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", e.ID, e.Name, e.Size, e.Hits, e.Created.Format("2006-01-02 15:04"))
		}
		w.Flush()
	case "clear":
		n, err := c.Clear()
		if err != nil {
			s.report(c.Path(), err)
			return 1
		}
		fmt.Fprintf(s.stdout, "removed %d cached programs\n", n)
	case "path":
		fmt.Fprintln(s.stdout, c.Path())
	default:
		fmt.Fprintf(s.stderr, "unknown cache command %s\n", sub)
		return 2
	}
	return 0
}

// report prints err to stderr: compile errors with their position, script
// errors with their stack trace.
func (s *session) report(name string, err error) {
	var de *diagnostics.DiagnosticError
	var se *vm.ScriptError
	switch {
	case errors.As(err, &de):
		fmt.Fprintf(s.stderr, "%s:%d:%d: %s\n", name, de.Line, de.Column, s.paint(red, fmt.Sprintf("%s: %s", de.Kind, de.Message)))
	case errors.As(err, &se):
		fmt.Fprintln(s.stderr, s.paint(red, "Uncaught "+strings.TrimPrefix(se.Error(), "Uncaught ")))
		for _, line := range se.Trace {
			fmt.Fprintln(s.stderr, "    "+s.paint(dim, line))
		}
	default:
		fmt.Fprintln(s.stderr, s.paint(red, "Error: "+err.Error()))
	}
}

const (
	red = "31"
	dim = "2"
)

func (s *session) paint(code, text string) string {
	if !s.color {
		return text
	}
	return "\x1b[" + code + "m" + text + "\x1b[0m"
}
