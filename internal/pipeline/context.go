package pipeline

import (
	"github.com/funvibe/funscript/internal/ast"
	"github.com/funvibe/funscript/internal/bytecode"
	"github.com/funvibe/funscript/internal/diagnostics"
	"github.com/funvibe/funscript/internal/scope"
	"github.com/funvibe/funscript/internal/token"
)

// PipelineContext carries one compilation unit through the stages.
type PipelineContext struct {
	SourceCode   string
	Name         string // file path or "<eval>"; used in logs only
	IsExpression bool

	TokenStream []token.Token
	Tree        *scope.Tree
	AstRoot     *ast.Program
	Root        *bytecode.CompiledFunction

	Errors []*diagnostics.DiagnosticError
}

func NewPipelineContext(source string) *PipelineContext {
	return &PipelineContext{SourceCode: source, Name: "<input>"}
}

// Err returns the first recorded error, or nil.
func (ctx *PipelineContext) Err() error {
	if len(ctx.Errors) == 0 {
		return nil
	}
	return ctx.Errors[0]
}
