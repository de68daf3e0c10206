package model

import (
	"errors"
	"net/url"
	"strings"
)

// Target validation errors.
var (
	// ErrInvalidRootURL is returned when the root URL cannot be parsed
	// or is not an absolute http(s) URL.
	ErrInvalidRootURL = errors.New("invalid root URL: must be an absolute http or https URL")

	// ErrInvalidMaxDepth is returned when the maximum depth is negative.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be >= 0")

	// ErrInvalidMaxPages is returned when the page budget is less than one.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be >= 1")
)

// CrawlTarget describes a single crawl run. It is constructed per
// invocation, validated once, and never mutated while the run executes.
//
// Design decision: All run parameters live in an explicit value passed
// through every call rather than in process-wide state. This keeps
// concurrent runs for different domains fully independent.
type CrawlTarget struct {
	// RootURL is the starting URL of the traversal.
	RootURL string `json:"root_url"`

	// MaxDepth limits how deep to crawl from the root.
	// 0 means only the root page, 1 means the root plus its links, etc.
	MaxDepth int `json:"max_depth"`

	// MaxPages is the hard budget on pages fetched in this run.
	// Traversal halts the moment the budget is reached.
	MaxPages int `json:"max_pages"`

	// ScopeHost is the host that defines "internal" for this run.
	// Links to any other host are classified but never enqueued.
	// If empty, the root URL's host is used.
	ScopeHost string `json:"scope_host"`

	// IncludeSubdomains widens the scope so that subdomains of ScopeHost
	// count as internal. Off by default: exact host match only.
	IncludeSubdomains bool `json:"include_subdomains,omitempty"`
}

// NewCrawlTarget creates a validated CrawlTarget for the given root URL.
// The scope host defaults to the root URL's host.
func NewCrawlTarget(rootURL string, maxDepth, maxPages int) (*CrawlTarget, error) {
	u, err := url.Parse(rootURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, ErrInvalidRootURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrInvalidRootURL
	}
	if maxDepth < 0 {
		return nil, ErrInvalidMaxDepth
	}
	if maxPages < 1 {
		return nil, ErrInvalidMaxPages
	}

	return &CrawlTarget{
		RootURL:   rootURL,
		MaxDepth:  maxDepth,
		MaxPages:  maxPages,
		ScopeHost: strings.ToLower(u.Hostname()),
	}, nil
}

// InScope reports whether host belongs to this target's crawl scope.
// Matching is exact by default; with IncludeSubdomains the scope host's
// subdomains (and the bare host with or without a "www." prefix) match too.
func (t *CrawlTarget) InScope(host string) bool {
	host = strings.ToLower(host)
	scope := strings.ToLower(t.ScopeHost)
	if host == scope {
		return true
	}
	if !t.IncludeSubdomains {
		return false
	}
	return strings.HasSuffix(host, "."+strings.TrimPrefix(scope, "www."))
}
