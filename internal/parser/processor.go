package parser

import (
	"github.com/funvibe/funscript/internal/diagnostics"
	"github.com/funvibe/funscript/internal/pipeline"
)

// ParserProcessor builds the AST and grows ctx.Tree, which the caller
// creates so eval units can be linked to their enclosing unit.
type ParserProcessor struct{}

func (pp *ParserProcessor) Name() string { return "parse" }

func (pp *ParserProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.TokenStream == nil || ctx.Tree == nil {
		ctx.Errors = append(ctx.Errors, diagnostics.NewErrorAt(diagnostics.ErrP001, 0, 0, "parser: token stream or scope tree is nil"))
		return ctx
	}
	prog, err := Parse(ctx.TokenStream, ctx.Tree, ctx.IsExpression)
	if err != nil {
		ctx.Errors = append(ctx.Errors, err.(*diagnostics.DiagnosticError))
		return ctx
	}
	ctx.AstRoot = prog
	return ctx
}
