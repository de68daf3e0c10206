package engine

import (
	"context"
	"log/slog"

	"github.com/nao1215/sitewatch/internal/model"
)

// Step defines the interface that all run pipeline steps implement.
// Steps execute in sequence, each receiving the run result accumulated
// by the previous ones.
//
// Design decision: We use an interface rather than function types because:
// 1. It allows steps to carry configuration state
// 2. It provides a Name() method for logging and debugging
// 3. It's more extensible for future features (e.g., priority, dependencies)
type Step interface {
	// Do executes the pipeline step. Errors returned here are critical
	// and abort the run; per-page problems belong in the result.
	Do(ctx context.Context, result *model.CrawlRunResult) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes an ordered list of steps for one crawl run.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineLogger sets a custom logger for the pipeline.
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline creates a Pipeline with the given options.
// Steps are added with AddSteps after creation.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{steps: make([]Step, 0)}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddSteps appends steps to the pipeline in execution order.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence for the run result.
//
// Cancellation is checked between steps; steps handle their own
// timeouts internally. The first step error aborts the pipeline:
// a run whose traversal failed must not go on to reconcile removals
// against a partial visited set.
func (p *Pipeline) Execute(ctx context.Context, result *model.CrawlRunResult) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("run cancelled",
				"step", step.Name(),
				"run_id", result.ID,
				"reason", ctx.Err())
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"run_id", result.ID,
			"host", result.Target.ScopeHost)

		if err := step.Do(ctx, result); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"run_id", result.ID,
				"host", result.Target.ScopeHost,
				"error", err)
			return err
		}
	}
	return nil
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
