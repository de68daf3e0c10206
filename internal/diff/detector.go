package diff

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/nao1215/sitewatch/internal/model"
)

// DefaultMaxDiffLines caps the unified diff stored per change. Diffs
// are for human review in digests and reports; a full rewrite of a
// large page produces thousands of lines nobody reads.
const DefaultMaxDiffLines = 200

// diffContextLines is the number of unchanged lines shown around each
// hunk in the unified diff.
const diffContextLines = 3

// truncationMarker terminates a diff that exceeded the line cap.
const truncationMarker = "... (diff truncated)"

// Detector compares page snapshots across crawls and produces change
// records.
type Detector struct {
	// maxDiffLines caps the stored unified diff.
	maxDiffLines int
}

// Option configures a Detector.
type Option func(*Detector)

// WithMaxDiffLines overrides the diff line cap. Values below 1 are
// ignored.
func WithMaxDiffLines(n int) Option {
	return func(d *Detector) {
		if n >= 1 {
			d.maxDiffLines = n
		}
	}
}

// NewDetector creates a Detector with the given options.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{maxDiffLines: DefaultMaxDiffLines}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect compares the current snapshot of a page against its previous
// one and returns a change record, or nil when the page is unchanged.
//
// previous may be nil, meaning the page has never been seen; the
// result is then a "new" record with no similarity score or diff.
// When both snapshots exist, equal digests short-circuit to nil
// without touching the text. Only a digest mismatch computes the
// similarity ratio, the unified diff, and the structural element
// comparison.
func (d *Detector) Detect(previous, current *model.PageSnapshot) *model.ChangeRecord {
	if current == nil {
		return nil
	}
	if previous == nil {
		return model.NewChangeRecord(current.URL, model.ChangeNew)
	}
	if previous.Digest == current.Digest {
		return nil
	}

	ratio := Similarity(previous.Text, current.Text)
	record := model.NewChangeRecord(current.URL, model.ChangeModified)
	record.Similarity = &ratio
	record.Diff = d.unifiedDiff(previous.Text, current.Text, current.URL)
	// Snapshots stored before structure extraction existed have no
	// element list; comparing against one would report every element
	// as added, so the structural view is skipped for them.
	if len(previous.Structure) > 0 {
		record.Structural = CompareStructures(previous.Structure, current.Structure)
	}
	return record
}

// ReconcileRemoved returns removed-page records for every URL that was
// live after the previous crawl but absent from the visited set of the
// current one.
//
// The caller must only invoke this for runs that completed their full
// traversal; a budget-exhausted run skips pages it never reached, and
// treating those as removed would be wrong.
func (d *Detector) ReconcileRemoved(liveURLs []string, visited map[string]struct{}) []*model.ChangeRecord {
	var records []*model.ChangeRecord
	for _, u := range liveURLs {
		if _, ok := visited[u]; ok {
			continue
		}
		records = append(records, model.NewChangeRecord(u, model.ChangeRemoved))
	}
	return records
}

// Similarity scores how alike two texts are, from 0.0 (nothing in
// common) to 1.0 (identical).
//
// Design decision: The ratio is computed character-wise rather than
// line-wise. Line-level matching scores a one-line page against its
// one-line edit as 0.0, which makes the score useless for exactly the
// pages where a reviewer wants it most. Character-level matching
// degrades gracefully: a small edit to a large page scores near 1.0.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	matcher := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return matcher.Ratio()
}

// unifiedDiff renders a unified diff between the two texts, truncated
// to the configured line cap.
func (d *Detector) unifiedDiff(before, after, pageURL string) string {
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: fmt.Sprintf("%s (previous)", pageURL),
		ToFile:   fmt.Sprintf("%s (current)", pageURL),
		Context:  diffContextLines,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		// GetUnifiedDiffString writes to a strings.Builder and cannot
		// fail in practice; keep the change record rather than drop it.
		return ""
	}
	return truncate(text, d.maxDiffLines)
}

// truncate cuts a diff to at most maxLines lines, appending a marker
// when anything was dropped.
func truncate(text string, maxLines int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) <= maxLines {
		return strings.TrimRight(text, "\n")
	}
	return strings.Join(append(lines[:maxLines], truncationMarker), "\n")
}
