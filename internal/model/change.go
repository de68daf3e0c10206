package model

import (
	"time"

	"github.com/google/uuid"
)

// ChangeKind is the category of a detected page change.
type ChangeKind string

// Change kind values.
const (
	// ChangeNew means the page had no previous snapshot.
	ChangeNew ChangeKind = "new"

	// ChangeModified means the page's normalized text differs from the
	// previous snapshot.
	ChangeModified ChangeKind = "modified"

	// ChangeRemoved means a previously live page was absent from the
	// current run's visited set. Emitted only by post-run reconciliation.
	ChangeRemoved ChangeKind = "removed"
)

// ChangeRecord describes one detected change for one URL. At most one
// record is produced per URL per run; unchanged pages produce none.
type ChangeRecord struct {
	// ID uniquely identifies the change record.
	ID string `json:"id"`

	// URL is the canonical URL the change applies to.
	URL string `json:"url"`

	// Kind is the change category.
	Kind ChangeKind `json:"kind"`

	// Similarity is the text similarity ratio in [0,1] between the
	// previous and current snapshot. Only set for modified changes.
	Similarity *float64 `json:"similarity,omitempty"`

	// Diff is a line-level unified diff of the normalized text.
	// Only set for modified changes; empty for new and removed.
	Diff string `json:"diff,omitempty"`

	// Structural locates the modification in the page's DOM structure.
	// Set only for modified changes when the previous snapshot carries
	// an element list; nil otherwise.
	Structural *StructuralDiff `json:"structural,omitempty"`

	// DetectedAt is when the change was detected.
	DetectedAt time.Time `json:"detected_at"`
}

// NewChangeRecord creates a ChangeRecord with a fresh identifier and
// the current detection time.
func NewChangeRecord(url string, kind ChangeKind) *ChangeRecord {
	return &ChangeRecord{
		ID:         uuid.NewString(),
		URL:        url,
		Kind:       kind,
		DetectedAt: time.Now(),
	}
}
