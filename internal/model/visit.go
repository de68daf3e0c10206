package model

import (
	"net/url"
	"strings"
)

// FetchOutcome classifies the result of fetching a single URL.
// Outcomes other than OutcomeOK are per-URL failures: they are recorded
// and the run continues. Nothing here is fatal to a crawl run.
type FetchOutcome string

// Fetch outcome values.
const (
	// OutcomeOK means the page was fetched with a 2xx status.
	OutcomeOK FetchOutcome = "ok"

	// OutcomeBlocked means robots.txt disallowed the URL.
	// The URL is never retried within the run.
	OutcomeBlocked FetchOutcome = "blocked"

	// OutcomeTimeout means the request exceeded the fetch timeout.
	OutcomeTimeout FetchOutcome = "timeout"

	// OutcomeConnection means the connection failed before a response.
	OutcomeConnection FetchOutcome = "connection"

	// OutcomeHTTPStatus means the server answered with a non-2xx status.
	OutcomeHTTPStatus FetchOutcome = "http_status"

	// OutcomeParseError means the body could not be parsed as HTML.
	// The page still receives a digest computed over the raw text.
	OutcomeParseError FetchOutcome = "parse_error"
)

// Failed reports whether the outcome counts toward the run's failure total.
// Robots blocks are skips rather than failures.
func (o FetchOutcome) Failed() bool {
	switch o {
	case OutcomeTimeout, OutcomeConnection, OutcomeHTTPStatus:
		return true
	default:
		return false
	}
}

// VisitRecord is created once per unique canonical URL per run.
// Depth is the shortest discovery depth from the root, guaranteed by
// BFS order: the first enqueue wins and the URL is never re-visited.
type VisitRecord struct {
	// URL is the canonical form of the visited URL.
	URL string `json:"url"`

	// Depth is the BFS depth at which the URL was first discovered.
	Depth int `json:"depth"`

	// Outcome is the fetch result for this URL.
	Outcome FetchOutcome `json:"outcome"`

	// StatusCode is the HTTP status, zero when no response was received.
	StatusCode int `json:"status_code,omitempty"`
}

// CanonicalURL normalizes a URL into the deduplication key used across
// the whole engine: lowercase scheme and host, fragment stripped, root
// path normalized, trailing slash trimmed. Query strings are kept since
// they often select distinct content.
//
// Unparseable input is returned as-is; the caller treats it as opaque.
func CanonicalURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	// http://example.com and http://example.com/ are the same page.
	if u.Path == "" {
		u.Path = "/"
	}
	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String()
}
