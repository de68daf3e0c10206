package model

import (
	"time"

	"github.com/google/uuid"
)

// RunState is the lifecycle state of a crawl run.
//
// The state machine is PENDING -> RUNNING -> {COMPLETED, BUDGET_EXHAUSTED}.
// There is deliberately no FAILED terminal state: individual page failures
// are recorded per URL and never abort the run.
type RunState string

// Run state values.
const (
	// RunPending means the run has been created but not started.
	RunPending RunState = "pending"

	// RunRunning means the traversal is in progress.
	RunRunning RunState = "running"

	// RunCompleted means the frontier emptied before the page budget.
	RunCompleted RunState = "completed"

	// RunBudgetExhausted means the page budget stopped the traversal
	// with URLs still in the frontier. This is a normal terminal state,
	// not an error.
	RunBudgetExhausted RunState = "budget_exhausted"
)

// Terminal reports whether the state is one of the two terminal states.
func (s RunState) Terminal() bool {
	return s == RunCompleted || s == RunBudgetExhausted
}

// CrawlRunResult collects everything a crawl run produced. It is the
// value handed back to the scheduler and the unit the
// engine pipeline steps operate on.
type CrawlRunResult struct {
	// ID uniquely identifies the run.
	ID string `json:"id"`

	// Target is the crawl target the run executed.
	Target *CrawlTarget `json:"target"`

	// State is the run's lifecycle state.
	State RunState `json:"state"`

	// Visits maps canonical URL to its visit record.
	Visits map[string]*VisitRecord `json:"visits"`

	// VisitedOrder lists canonical URLs in the order they were fetched.
	// Deterministic for a fixed set of page fixtures.
	VisitedOrder []string `json:"visited_order"`

	// Snapshots maps canonical URL to the snapshot taken this run.
	// Only successfully fetched pages appear here.
	Snapshots map[string]*PageSnapshot `json:"-"`

	// Changes are the change records detected for this run, including
	// removed records from post-run reconciliation.
	Changes []*ChangeRecord `json:"changes,omitempty"`

	// Failures counts per-URL fetch failures (timeouts, connection
	// errors, HTTP errors). Robots blocks are not failures.
	Failures int `json:"failures"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewCrawlRunResult creates an empty pending result for the target.
func NewCrawlRunResult(target *CrawlTarget) *CrawlRunResult {
	return &CrawlRunResult{
		ID:        uuid.NewString(),
		Target:    target,
		State:     RunPending,
		Visits:    make(map[string]*VisitRecord),
		Snapshots: make(map[string]*PageSnapshot),
	}
}

// Visited reports whether the canonical URL was visited in this run.
func (r *CrawlRunResult) Visited(canonicalURL string) bool {
	_, ok := r.Visits[canonicalURL]
	return ok
}

// PagesCrawled returns the number of URLs visited in this run.
func (r *CrawlRunResult) PagesCrawled() int {
	return len(r.VisitedOrder)
}

// CountByKind returns how many change records of the given kind the
// run produced.
func (r *CrawlRunResult) CountByKind(kind ChangeKind) int {
	n := 0
	for _, c := range r.Changes {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}
