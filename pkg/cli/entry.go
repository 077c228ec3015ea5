// Package cli implements the funscript command line.
package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/funvibe/funscript/internal/config"
)

var log = commonlog.GetLogger("funscript.cli")

// session carries what every command needs: the streams, the loaded
// configuration and the global flags.
type session struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	cfg     *config.Config
	color   bool
	noCache bool
}

const usage = `Usage: funscript [flags] <command> [args]

Commands:
  run <file>             run a script or compiled image (default when a file is given)
  eval <expr>            evaluate an expression and print its value (also -e)
  disasm <file>          print the bytecode of a script or image
  build <file> [-o out]  compile a script to an image; --exe packs a standalone binary
  repl                   start an interactive session (default on a terminal)
  cache [list|clear]     inspect the compiled-program cache
  version                print the version

Flags:
  --config <path>        use this config file instead of searching for one
  --steps <n>            bound each run to n instructions
  --no-cache             do not read or write the program cache
  --debug                log compiler and interpreter activity
`

// Run is the binary entry point.
func Run() {
	if code, ok := runEmbeddedImage(os.Args, os.Stdout, os.Stderr); ok {
		os.Exit(code)
	}
	os.Exit(Main(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// Main runs the command line in args and returns the exit code.
func Main(args []string, stdin io.Reader, stdout, stderr io.Writer) (code int) {
	// Catch panics and show user-friendly error
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r)
			}
			fmt.Fprintf(stderr, "Internal error: %v\n", r)
			fmt.Fprintln(stderr, "This is a bug. Please report it.")
			code = 1
		}
	}()

	s := &session{stdin: stdin, stdout: stdout, stderr: stderr, color: isTerminal(stderr)}

	var configPath string
	var steps int64 = -1
	debug := false
	for len(args) > 0 && strings.HasPrefix(args[0], "--") {
		switch args[0] {
		case "--debug":
			debug = true
		case "--no-cache":
			s.noCache = true
		case "--config", "--steps":
			if len(args) < 2 {
				fmt.Fprintf(stderr, "%s needs a value\n", args[0])
				return 2
			}
			if args[0] == "--config" {
				configPath = args[1]
			} else {
				n, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil || n < 0 {
					fmt.Fprintf(stderr, "--steps: invalid count %q\n", args[1])
					return 2
				}
				steps = n
			}
			args = args[1:]
		case "--help":
			fmt.Fprint(stdout, usage)
			return 0
		case "--version":
			fmt.Fprintln(stdout, "funscript "+config.Version)
			return 0
		default:
			fmt.Fprintf(stderr, "unknown flag %s\n", args[0])
			fmt.Fprint(stderr, usage)
			return 2
		}
		args = args[1:]
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return 1
	}
	if steps >= 0 {
		cfg.Engine.StepLimit = steps
	}
	if debug {
		cfg.Log.Verbosity = 2
	}
	s.cfg = cfg
	configureLogging(cfg.Log)

	if len(args) == 0 {
		switch {
		case cfg.Engine.Entry != "":
			return s.runFile(cfg.Engine.Entry)
		case isTerminal(stdin):
			return s.repl()
		}
		return s.runStdin()
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "run":
		if len(rest) != 1 {
			fmt.Fprintln(stderr, "Usage: funscript run <file>")
			return 2
		}
		return s.runFile(rest[0])
	case "eval", "-e":
		if len(rest) != 1 {
			fmt.Fprintln(stderr, "Usage: funscript eval <expression>")
			return 2
		}
		return s.eval(rest[0])
	case "disasm":
		if len(rest) != 1 {
			fmt.Fprintln(stderr, "Usage: funscript disasm <file>")
			return 2
		}
		return s.disasm(rest[0])
	case "build":
		return s.build(rest)
	case "repl":
		return s.repl()
	case "cache":
		return s.cacheCommand(rest)
	case "version", "-v", "-version":
		fmt.Fprintln(stdout, "funscript "+config.Version)
		return 0
	case "help", "-h", "-help":
		fmt.Fprint(stdout, usage)
		return 0
	case "-":
		return s.runStdin()
	}
	if strings.HasPrefix(cmd, "-") {
		fmt.Fprintf(stderr, "unknown flag %s\n", cmd)
		fmt.Fprint(stderr, usage)
		return 2
	}
	if len(rest) > 0 {
		fmt.Fprintf(stderr, "unexpected arguments after %s\n", cmd)
		return 2
	}
	return s.runFile(cmd)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadConfig(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return config.Default(), nil
	}
	return config.Load(wd)
}

func configureLogging(l config.Log) {
	var path *string
	if l.File != "" {
		path = &l.File
	}
	commonlog.Configure(l.Verbosity, path)
}

func isTerminal(v interface{}) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
