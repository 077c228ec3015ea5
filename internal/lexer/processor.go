package lexer

import (
	"errors"

	"github.com/funvibe/funscript/internal/diagnostics"
	"github.com/funvibe/funscript/internal/pipeline"
)

type LexerProcessor struct{}

func (lp *LexerProcessor) Name() string { return "lex" }

func (lp *LexerProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	tokens, err := Tokenize(ctx.SourceCode)
	if err != nil {
		var le *Error
		if errors.As(err, &le) {
			ctx.Errors = append(ctx.Errors, diagnostics.NewErrorAt(diagnostics.ErrL001, le.Line, le.Column, "%s", le.Message))
		} else {
			ctx.Errors = append(ctx.Errors, diagnostics.NewErrorAt(diagnostics.ErrL001, 0, 0, "%s", err.Error()))
		}
		return ctx
	}
	ctx.TokenStream = tokens
	return ctx
}
