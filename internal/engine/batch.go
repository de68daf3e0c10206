package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitewatch/internal/model"
)

// BatchProcessor runs crawls for multiple domains concurrently.
//
// Design decision: Batch execution lives outside the Runner because
// the Runner is about one run's correctness (locking, pipeline order)
// while batching is a throughput concern. Watch mode and the one-shot
// multi-domain CLI both reuse this.
type BatchProcessor struct {
	// runner executes individual runs. Its per-domain locks make
	// sharing one runner across the batch safe.
	runner *Runner

	// concurrency is the maximum number of simultaneous domain runs.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) { b.logger = logger }
}

// WithConcurrency sets the maximum number of concurrent domain runs.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor around a shared Runner.
func NewBatchProcessor(runner *Runner, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		runner:      runner,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch runs all targets, at most `concurrency` at a time, and
// returns the results in target order.
//
// Design decision: errgroup.SetLimit rather than a hand-rolled worker
// pool; each target gets its own goroutine and errgroup bounds how
// many run simultaneously. A failed run does not stop the others: its
// slot in the results holds whatever partial result exists, and the
// first error is returned after all targets finish.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []*model.CrawlTarget) ([]*model.CrawlRunResult, error) {
	bp.logger.Info("starting batch",
		"domains", len(targets),
		"concurrency", bp.concurrency)

	start := time.Now()
	results := make([]*model.CrawlRunResult, len(targets))
	var mu sync.Mutex
	var firstErr error

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			result, err := bp.runner.Run(ctx, target)

			mu.Lock()
			results[i] = result
			if err != nil && firstErr == nil {
				firstErr = err
			}
			mu.Unlock()

			if err != nil {
				bp.logger.Warn("domain run failed",
					"host", target.ScopeHost,
					"error", err)
			}
			// Keep other domains running; the error is collected above.
			return nil
		})
	}

	if err := g.Wait(); err != nil && firstErr == nil {
		firstErr = err
	}

	bp.logger.Info("batch finished",
		"domains", len(targets),
		"elapsed", time.Since(start))

	return results, firstErr
}
