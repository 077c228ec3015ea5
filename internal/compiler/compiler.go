// Package compiler turns source text into a bytecode.Program. It drives the
// pipeline (lex, parse, resolve, allocate, emit) for one compilation unit;
// eval units compile against the finished Tree of the unit they run in.
package compiler

import (
	"bytes"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/funvibe/funscript/internal/bytecode"
	"github.com/funvibe/funscript/internal/diagnostics"
	"github.com/funvibe/funscript/internal/lexer"
	"github.com/funvibe/funscript/internal/parser"
	"github.com/funvibe/funscript/internal/pipeline"
	"github.com/funvibe/funscript/internal/pool"
	"github.com/funvibe/funscript/internal/scope"
)

var log = commonlog.GetLogger("funscript.compiler")

// Error is a compile-time failure: a SyntaxError for malformed or
// unsupported source, a RangeError when the program exceeds an encoding limit.
type Error = diagnostics.DiagnosticError

// Options configure one compilation.
type Options struct {
	// Name labels the unit in logs.
	Name string
	// Enclosing and EnclosingScope are set for direct eval: names the unit
	// does not declare resolve into the enclosing Tree from that Scope.
	Enclosing      *scope.Tree
	EnclosingScope scope.ScopeID
	// IsExpression compiles a single expression whose value is returned.
	IsExpression bool
	// Persistent makes root declarations named globals, so later units
	// compiled against the same GlobalTable see them.
	Persistent bool
	// Globals is the program's global name table. Eval units default to the
	// enclosing Tree's table.
	Globals *scope.GlobalTable
	// Pool supplies emitter buffers and interns constants.
	Pool *pool.Pool
}

func (o Options) mode() bytecode.Mode {
	switch {
	case o.IsExpression:
		return bytecode.ModeExpression
	case o.Persistent:
		return bytecode.ModePersistent
	}
	return bytecode.ModeProgram
}

// Compile compiles source into a Program. Syntax errors are returned as
// *Error; internal invariant violations panic.
func Compile(source string, opts Options) (*bytecode.Program, error) {
	if opts.Pool == nil {
		opts.Pool = pool.New(pool.DefaultBufferSize)
	}
	globals := opts.Globals
	if globals == nil && opts.Enclosing != nil {
		globals = opts.Enclosing.Globals
	}
	tree := scope.NewTree(globals, opts.Enclosing, opts.EnclosingScope)
	tree.PersistentRoot = opts.Persistent && opts.Enclosing == nil

	ctx := pipeline.NewPipelineContext(source)
	if opts.Name != "" {
		ctx.Name = opts.Name
	}
	ctx.IsExpression = opts.IsExpression
	ctx.Tree = tree

	p := pipeline.New(
		&lexer.LexerProcessor{},
		&parser.ParserProcessor{},
		&ResolveProcessor{},
		&AllocateProcessor{},
		&EmitProcessor{Pool: opts.Pool, Mode: opts.mode()},
	)
	ctx = p.Run(ctx)
	if err := ctx.Err(); err != nil {
		log.Debugf("%s: %s", ctx.Name, err)
		return nil, err
	}
	return &bytecode.Program{
		Root:    ctx.Root,
		Strings: opts.Pool.Strings(),
		Doubles: opts.Pool.Doubles(),
		Globals: tree.Globals.Names(),
		Source:  source,
		Mode:    opts.mode(),
	}, nil
}

// ResolveProcessor binds every Reference of the parsed unit.
type ResolveProcessor struct{}

func (rp *ResolveProcessor) Name() string { return "resolve" }

func (rp *ResolveProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	ctx.Tree.Resolve()
	return ctx
}

// AllocateProcessor flattens the scope chain and assigns storage.
type AllocateProcessor struct{}

func (ap *AllocateProcessor) Name() string { return "allocate" }

func (ap *AllocateProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	ctx.Tree.Allocate()
	if log.AllowLevel(commonlog.Debug) {
		for i := range ctx.Tree.Decls {
			d := &ctx.Tree.Decls[i]
			log.Debugf("%s: %s %q -> %s[%d] slot %d", ctx.Name, d.Kind, d.Name, d.Class, d.Index, d.Slot)
		}
	}
	return ctx
}

// EmitProcessor generates code for every Function of the unit.
type EmitProcessor struct {
	Pool *pool.Pool
	Mode bytecode.Mode
}

func (ep *EmitProcessor) Name() string { return "emit" }

func (ep *EmitProcessor) Process(ctx *pipeline.PipelineContext) (out *pipeline.PipelineContext) {
	defer func() {
		if r := recover(); r != nil {
			if de, ok := r.(*diagnostics.DiagnosticError); ok {
				ctx.Errors = append(ctx.Errors, de)
				out = ctx
				return
			}
			panic(r)
		}
	}()
	u := &unit{
		tree:     ctx.Tree,
		pool:     ep.Pool,
		mode:     ep.Mode,
		literals: make(map[scope.FuncID]*functionSource),
	}
	ctx.Root = u.compileRoot(ctx.AstRoot)
	return ctx
}

// RebuildUnits recompiles an image's source to reattach the scope Trees that
// direct eval needs. The rebuilt code must match the image byte for byte.
func RebuildUnits(prog *bytecode.Program, globals *scope.GlobalTable) error {
	p := pool.FromTables(prog.Strings, prog.Doubles)
	rebuilt, err := Compile(prog.Source, Options{
		Name:         "<image>",
		IsExpression: prog.Mode == bytecode.ModeExpression,
		Persistent:   prog.Mode == bytecode.ModePersistent,
		Globals:      globals,
		Pool:         p,
	})
	if err != nil {
		return fmt.Errorf("%w: source does not compile: %v", bytecode.ErrCorruptProgram, err)
	}
	return attachTrees(prog.Root, rebuilt.Root)
}

func attachTrees(dst, src *bytecode.CompiledFunction) error {
	if !bytes.Equal(dst.Code, src.Code) || len(dst.Children) != len(src.Children) {
		return fmt.Errorf("%w: %s does not match its source", bytecode.ErrCorruptProgram, dst.Name)
	}
	dst.Tree = src.Tree
	for i := range dst.Children {
		if err := attachTrees(dst.Children[i], src.Children[i]); err != nil {
			return err
		}
	}
	return nil
}
