package notify

import (
	"time"

	"github.com/nao1215/sitewatch/internal/model"
)

// Digest aggregates the outcome of one or more crawl runs for
// reporting.
type Digest struct {
	// GeneratedAt is when the digest was assembled.
	GeneratedAt time.Time `json:"generated_at"`

	// Domains holds one report per crawled domain, in run order.
	Domains []DomainReport `json:"domains"`
}

// DomainReport summarizes one domain's run.
type DomainReport struct {
	// ScopeHost identifies the watched domain.
	ScopeHost string `json:"scope_host"`

	// RootURL is the crawl's starting URL.
	RootURL string `json:"root_url"`

	// State is the run's terminal state.
	State model.RunState `json:"state"`

	// Pages is the number of pages visited.
	Pages int `json:"pages"`

	// Failures is the number of per-page fetch failures.
	Failures int `json:"failures"`

	// Changes lists the run's change records, detection order.
	Changes []*model.ChangeRecord `json:"changes,omitempty"`
}

// NewDigest builds a digest from run results, skipping nil entries
// (failed batch slots).
func NewDigest(results []*model.CrawlRunResult) *Digest {
	d := &Digest{GeneratedAt: time.Now()}
	for _, result := range results {
		if result == nil {
			continue
		}
		d.Domains = append(d.Domains, DomainReport{
			ScopeHost: result.Target.ScopeHost,
			RootURL:   result.Target.RootURL,
			State:     result.State,
			Pages:     result.PagesCrawled(),
			Failures:  result.Failures,
			Changes:   result.Changes,
		})
	}
	return d
}

// TotalChanges returns the number of change records across all domains.
func (d *Digest) TotalChanges() int {
	n := 0
	for _, domain := range d.Domains {
		n += len(domain.Changes)
	}
	return n
}

// Empty reports whether the digest carries no changes at all.
// Empty digests are rendered but never mailed.
func (d *Digest) Empty() bool {
	return d.TotalChanges() == 0
}

// CountByKind returns how many changes of the given kind the digest
// holds across all domains.
func (d *Digest) CountByKind(kind model.ChangeKind) int {
	n := 0
	for _, domain := range d.Domains {
		for _, c := range domain.Changes {
			if c.Kind == kind {
				n++
			}
		}
	}
	return n
}
