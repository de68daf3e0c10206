package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// MaxTextSize is the maximum size of the normalized text stored in a
// snapshot. Larger pages are truncated to keep snapshots and diffs
// bounded in memory and in the database.
const MaxTextSize = 512 * 1024 // 512 KB

// PageSnapshot holds the comparable state of a page: its normalized
// text, the digest of that text, and the link classification observed
// at fetch time. Exactly one live snapshot exists per URL across runs;
// a run replaces it only after a successful fetch.
type PageSnapshot struct {
	// URL is the canonical URL of the page.
	URL string `json:"url"`

	// Digest is the SHA-256 hex digest of Text. Equal digests are
	// treated as ground truth for "unchanged".
	Digest string `json:"digest"`

	// Text is the normalized page text the digest was computed over.
	Text string `json:"text"`

	// Title is the page title, empty for non-HTML content.
	Title string `json:"title,omitempty"`

	// Links is the link classification computed at this fetch.
	// It is recomputed fresh on every visit, never merged across runs.
	Links LinkClassification `json:"links"`

	// Structure is the page's extracted DOM element list, used to
	// locate where a modification happened. Empty for non-HTML content.
	Structure []PageElement `json:"structure,omitempty"`

	// FetchedAt is when this snapshot was taken.
	FetchedAt time.Time `json:"fetched_at"`
}

// ComputeDigest calculates and sets the SHA-256 digest of the snapshot's
// text. Call after setting Text.
func (s *PageSnapshot) ComputeDigest() {
	s.Digest = DigestText(s.Text)
}

// TruncateText enforces MaxTextSize on the snapshot's text.
// The digest must be recomputed after truncation.
func (s *PageSnapshot) TruncateText() {
	if len(s.Text) > MaxTextSize {
		s.Text = s.Text[:MaxTextSize]
	}
}

// DigestText returns the SHA-256 hex digest of text.
// The digest of the empty string is the digest of no content, not "".
func DigestText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// LinkClassification groups the links found on one page by kind.
// Each slice has set semantics: no duplicates, canonical URLs.
type LinkClassification struct {
	// Internal links share the crawl scope host and are crawl candidates.
	Internal []string `json:"internal"`

	// External links point to other hosts. Classified, never crawled.
	External []string `json:"external"`

	// Files are links to downloadable attachments, matched by extension.
	// File URLs are never fetched by the traversal engine even when
	// they are same-domain.
	Files []string `json:"files"`
}

// Total returns the number of classified links across all kinds.
func (lc *LinkClassification) Total() int {
	return len(lc.Internal) + len(lc.External) + len(lc.Files)
}
