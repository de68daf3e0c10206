package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/nao1215/sitewatch/internal/crawler"
	"github.com/nao1215/sitewatch/internal/database"
	"github.com/nao1215/sitewatch/internal/diff"
	"github.com/nao1215/sitewatch/internal/model"
)

// ErrRunInProgress is returned when a run is requested for a domain
// that already has one executing.
var ErrRunInProgress = errors.New("a crawl run for this domain is already in progress")

// Runner executes complete crawl-and-detect runs.
//
// Concurrency contract: at most one run per scope host at a time,
// enforced by an in-process lock registry. Runs for distinct hosts
// proceed concurrently and share nothing but the database, whose
// single-writer connection serializes their writes.
type Runner struct {
	spider   *crawler.Spider
	detector *diff.Detector
	db       *database.SiteDB
	logger   *slog.Logger

	mu     sync.Mutex
	active map[string]bool
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger sets the logger used by the runner and its pipeline.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// NewRunner creates a Runner from its collaborators.
func NewRunner(spider *crawler.Spider, detector *diff.Detector, db *database.SiteDB, opts ...RunnerOption) *Runner {
	r := &Runner{
		spider:   spider,
		detector: detector,
		db:       db,
		logger:   slog.Default(),
		active:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one complete run for the target: traverse, detect,
// reconcile, save. It returns ErrRunInProgress when the target's
// domain already has a run executing.
//
// On cancellation the partial result is returned alongside the error;
// nothing from the aborted run has been persisted as snapshot state
// beyond the pages already processed by the detect step.
func (r *Runner) Run(ctx context.Context, target *model.CrawlTarget) (*model.CrawlRunResult, error) {
	if !r.acquire(target.ScopeHost) {
		return nil, ErrRunInProgress
	}
	defer r.release(target.ScopeHost)

	result := model.NewCrawlRunResult(target)

	pipeline := NewPipeline(WithPipelineLogger(r.logger))
	pipeline.AddSteps(
		NewTraverseStep(r.spider),
		NewDetectStep(r.db, r.detector),
		NewReconcileStep(r.db, r.detector),
		NewSaveRunStep(r.db),
	)

	if err := pipeline.Execute(ctx, result); err != nil {
		return result, err
	}

	r.logger.Info("run finished",
		"run_id", result.ID,
		"host", target.ScopeHost,
		"state", string(result.State),
		"pages", result.PagesCrawled(),
		"new", result.CountByKind(model.ChangeNew),
		"modified", result.CountByKind(model.ChangeModified),
		"removed", result.CountByKind(model.ChangeRemoved),
		"failures", result.Failures)

	return result, nil
}

// acquire takes the per-domain lock, reporting false when held.
func (r *Runner) acquire(scopeHost string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[scopeHost] {
		return false
	}
	r.active[scopeHost] = true
	return true
}

// release frees the per-domain lock.
func (r *Runner) release(scopeHost string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, scopeHost)
}
