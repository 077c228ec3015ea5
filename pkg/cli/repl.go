package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/funvibe/funscript/internal/compiler"
	"github.com/funvibe/funscript/internal/config"
	"github.com/funvibe/funscript/internal/diagnostics"
	"github.com/funvibe/funscript/internal/vm"
)

const (
	historyFile = ".funscript_history"
	promptMain  = "> "
	promptCont  = "... "
)

// replState is one interactive session: every line is compiled as a
// persistent unit against the same VM, so declarations carry over.
type replState struct {
	s *session
	m *vm.VM
}

func (s *session) repl() int {
	fmt.Fprintf(s.stdout, "funscript %s. Type :help for commands, Ctrl+D to exit.\n", config.Version)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	// Load history (best-effort)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	r := &replState{s: s, m: s.newMachine()}
	for {
		code, ok := readUntilComplete(ln, promptMain, promptCont)
		if !ok {
			fmt.Fprintln(s.stdout)
			break
		}
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))
		if strings.HasPrefix(trimmed, ":") {
			if r.command(trimmed) {
				break
			}
			continue
		}
		r.eval(code)
	}

	// Persist history (best-effort)
	if f, err := os.Create(histPath); err == nil {
		_, _ = ln.WriteHistory(f)
		_ = f.Close()
	}
	return 0
}

// eval runs one unit and prints its completion value.
func (r *replState) eval(code string) {
	prog, err := compiler.Compile(code, compiler.Options{
		Name:       "<repl>",
		Persistent: true,
		Globals:    r.m.Globals(),
		Pool:       r.m.Pool(),
	})
	if err != nil {
		r.s.report("<repl>", err)
		return
	}
	v, err := r.m.Run(prog)
	if err != nil {
		r.s.report("<repl>", err)
		return
	}
	if err := r.m.RunJobs(); err != nil {
		r.s.report("<repl>", err)
		return
	}
	fmt.Fprintln(r.s.stdout, v.Inspect())
}

// command handles :help, :quit, :load, :disasm and :reset. It reports
// whether the session should end.
func (r *replState) command(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":q", ":exit":
		return true
	case ":help":
		fmt.Fprintln(r.s.stdout, ":load <file>    run a file in this session")
		fmt.Fprintln(r.s.stdout, ":disasm <code>  show the bytecode of a snippet")
		fmt.Fprintln(r.s.stdout, ":reset          start over with a fresh VM")
		fmt.Fprintln(r.s.stdout, ":quit           leave")
	case ":reset":
		r.m = r.s.newMachine()
	case ":load":
		if len(fields) != 2 {
			fmt.Fprintln(r.s.stderr, "usage: :load <file>")
			return false
		}
		data, err := os.ReadFile(fields[1])
		if err != nil {
			r.s.report(fields[1], err)
			return false
		}
		r.eval(string(data))
	case ":disasm":
		code := strings.TrimSpace(strings.TrimPrefix(line, ":disasm"))
		prog, err := compiler.Compile(code, compiler.Options{
			Persistent: true,
			Globals:    r.m.Globals(),
			Pool:       r.m.Pool(),
		})
		if err != nil {
			r.s.report("<repl>", err)
			return false
		}
		fmt.Fprint(r.s.stdout, prog.Disassemble())
	default:
		fmt.Fprintf(r.s.stderr, "unknown command %s (try :help)\n", fields[0])
	}
	return false
}

// readUntilComplete reads lines until the buffer compiles or fails for a
// reason other than running out of input.
func readUntilComplete(ln *liner.State, prompt, cont string) (string, bool) {
	var b strings.Builder
	for {
		p := prompt
		if b.Len() > 0 {
			p = cont
		}
		line, err := ln.Prompt(p)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			// Ctrl+C aborts the current input; let user start again.
			return "", true
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") || !needsMoreInput(src) {
			return src, true
		}
	}
}

// needsMoreInput reports whether src fails to parse only because it ends
// too early.
func needsMoreInput(src string) bool {
	_, err := compiler.Compile(src, compiler.Options{Persistent: true, Globals: vm.NewGlobalTable()})
	var de *diagnostics.DiagnosticError
	if !errors.As(err, &de) {
		return false
	}
	msg := strings.ToLower(de.Message)
	return strings.Contains(msg, "end of input") || strings.Contains(msg, "unterminated")
}
