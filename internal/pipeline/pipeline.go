// Package pipeline runs the compile stages of one unit in order: lexing,
// parsing, resolution, allocation and emission. Stages share a
// PipelineContext and record failures in it.
package pipeline

import (
	"time"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("funscript.pipeline")

// Processor is one stage.
type Processor interface {
	Process(ctx *PipelineContext) *PipelineContext
}

// Named stages report their name in debug logs.
type Named interface {
	Name() string
}

// Pipeline represents a sequence of processing stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Run executes the pipeline. A stage that records an error stops it: every
// later stage needs the complete output of the one before.
func (p *Pipeline) Run(initialCtx *PipelineContext) *PipelineContext {
	ctx := initialCtx
	for _, processor := range p.processors {
		start := time.Now()
		ctx = processor.Process(ctx)
		if n, ok := processor.(Named); ok {
			log.Debugf("%s: %s in %s", ctx.Name, n.Name(), time.Since(start))
		}
		if len(ctx.Errors) > 0 {
			break
		}
	}
	return ctx
}
