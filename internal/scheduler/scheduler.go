package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/sitewatch/internal/engine"
	"github.com/nao1215/sitewatch/internal/model"
)

// RunFunc executes one crawl run for a target. The scheduler treats
// engine.ErrRunInProgress as a skipped tick rather than a failure.
type RunFunc func(ctx context.Context, target *model.CrawlTarget) (*model.CrawlRunResult, error)

// Entry is one scheduled domain: a target and how often to crawl it.
type Entry struct {
	// Target is the crawl target to run.
	Target *model.CrawlTarget

	// Interval is the time between run starts for this domain.
	Interval time.Duration
}

// Scheduler runs registered domains on their intervals until stopped.
type Scheduler struct {
	run     RunFunc
	entries []Entry
	logger  *slog.Logger

	// onResult, when set, receives every successful run result.
	// Watch mode uses it to feed the change digest notifier.
	onResult func(*model.CrawlRunResult)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithResultHandler registers a callback invoked after every
// successful run. The callback runs on the domain's goroutine and
// must be safe for concurrent use.
func WithResultHandler(handler func(*model.CrawlRunResult)) Option {
	return func(s *Scheduler) { s.onResult = handler }
}

// New creates a Scheduler that executes runs through run.
func New(run RunFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		run:    run,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a domain. Must be called before Start.
func (s *Scheduler) Add(target *model.CrawlTarget, interval time.Duration) {
	s.entries = append(s.entries, Entry{Target: target, Interval: interval})
}

// Entries returns the registered schedule.
func (s *Scheduler) Entries() []Entry {
	return s.entries
}

// Start launches one goroutine per registered domain. Each domain runs
// immediately, then on every interval tick. Start returns right away;
// use Stop or cancel ctx to shut down.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	for _, entry := range s.entries {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.watch(ctx, entry)
		}()
	}

	s.logger.Info("scheduler started", "domains", len(s.entries))
}

// Stop cancels all domain loops and waits for in-flight runs to
// finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// watch is the per-domain loop: an immediate run, then one per tick.
func (s *Scheduler) watch(ctx context.Context, entry Entry) {
	s.logger.Info("watching domain",
		"host", entry.Target.ScopeHost,
		"interval", entry.Interval)

	s.runOnce(ctx, entry.Target)

	ticker := time.NewTicker(entry.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, entry.Target)
		}
	}
}

// runOnce executes a single run, logging failures without propagating
// them: one bad run must not take the whole watch process down.
func (s *Scheduler) runOnce(ctx context.Context, target *model.CrawlTarget) {
	result, err := s.run(ctx, target)
	switch {
	case errors.Is(err, engine.ErrRunInProgress):
		s.logger.Debug("tick skipped, run still in progress", "host", target.ScopeHost)
	case errors.Is(err, context.Canceled):
	case err != nil:
		s.logger.Error("scheduled run failed", "host", target.ScopeHost, "error", err)
	default:
		if s.onResult != nil {
			s.onResult(result)
		}
	}
}
