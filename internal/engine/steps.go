package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/nao1215/sitewatch/internal/crawler"
	"github.com/nao1215/sitewatch/internal/database"
	"github.com/nao1215/sitewatch/internal/diff"
	"github.com/nao1215/sitewatch/internal/model"
)

// TraverseStep runs the BFS crawl and fills the result with visits and
// snapshots.
type TraverseStep struct {
	spider *crawler.Spider
}

// NewTraverseStep creates a TraverseStep around the spider.
func NewTraverseStep(spider *crawler.Spider) *TraverseStep {
	return &TraverseStep{spider: spider}
}

// Name returns the step name.
func (s *TraverseStep) Name() string { return "traverse" }

// Do executes the crawl into the result.
func (s *TraverseStep) Do(ctx context.Context, result *model.CrawlRunResult) error {
	return s.spider.Run(ctx, result)
}

// DetectStep compares each fresh snapshot against its stored
// predecessor, appends change records to the result, and persists both
// the changes and the new snapshots.
type DetectStep struct {
	db       *database.SiteDB
	detector *diff.Detector
}

// NewDetectStep creates a DetectStep.
func NewDetectStep(db *database.SiteDB, detector *diff.Detector) *DetectStep {
	return &DetectStep{db: db, detector: detector}
}

// Name returns the step name.
func (s *DetectStep) Name() string { return "detect" }

// Do runs change detection for every snapshot taken this run.
// Snapshots are processed in sorted URL order so a run's change list
// is deterministic for a fixed set of pages.
func (s *DetectStep) Do(ctx context.Context, result *model.CrawlRunResult) error {
	urls := make([]string, 0, len(result.Snapshots))
	for u := range result.Snapshots {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	for _, u := range urls {
		current := result.Snapshots[u]

		previous, err := s.db.GetSnapshot(ctx, u)
		if err != nil {
			return fmt.Errorf("detect %s: %w", u, err)
		}

		if change := s.detector.Detect(previous, current); change != nil {
			result.Changes = append(result.Changes, change)
			if err := s.db.PutChange(ctx, result.ID, result.Target.ScopeHost, change); err != nil {
				return fmt.Errorf("detect %s: %w", u, err)
			}
		}

		// The stored snapshot advances on every successful fetch,
		// changed or not, so reconciliation always sees fresh state.
		if err := s.db.PutSnapshot(ctx, result.Target.ScopeHost, current); err != nil {
			return fmt.Errorf("detect %s: %w", u, err)
		}
	}
	return nil
}

// ReconcileStep emits removed-page records for URLs that were live
// before this run but absent from its visited set.
type ReconcileStep struct {
	db       *database.SiteDB
	detector *diff.Detector
}

// NewReconcileStep creates a ReconcileStep.
func NewReconcileStep(db *database.SiteDB, detector *diff.Detector) *ReconcileStep {
	return &ReconcileStep{db: db, detector: detector}
}

// Name returns the step name.
func (s *ReconcileStep) Name() string { return "reconcile" }

// Do reconciles removed pages. Runs that stopped on the page budget
// are skipped entirely: an unreached page is not a removed page.
func (s *ReconcileStep) Do(ctx context.Context, result *model.CrawlRunResult) error {
	if result.State != model.RunCompleted {
		return nil
	}

	live, err := s.db.GetLiveURLs(ctx, result.Target.ScopeHost)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	visited := make(map[string]struct{}, len(result.Visits))
	for u := range result.Visits {
		visited[u] = struct{}{}
	}

	for _, change := range s.detector.ReconcileRemoved(live, visited) {
		result.Changes = append(result.Changes, change)
		if err := s.db.MarkRemoved(ctx, change.URL); err != nil {
			return fmt.Errorf("reconcile %s: %w", change.URL, err)
		}
		if err := s.db.PutChange(ctx, result.ID, result.Target.ScopeHost, change); err != nil {
			return fmt.Errorf("reconcile %s: %w", change.URL, err)
		}
	}
	return nil
}

// SaveRunStep persists the run summary and visit log.
type SaveRunStep struct {
	db *database.SiteDB
}

// NewSaveRunStep creates a SaveRunStep.
func NewSaveRunStep(db *database.SiteDB) *SaveRunStep {
	return &SaveRunStep{db: db}
}

// Name returns the step name.
func (s *SaveRunStep) Name() string { return "save-run" }

// Do writes the finished run to the database.
func (s *SaveRunStep) Do(ctx context.Context, result *model.CrawlRunResult) error {
	if err := s.db.SaveRun(ctx, result); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}
