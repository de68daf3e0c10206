package crawler

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/sitewatch/internal/config"
	"github.com/nao1215/sitewatch/internal/model"
)

// FetchResult is the outcome of fetching one URL.
type FetchResult struct {
	// Outcome classifies what happened.
	Outcome model.FetchOutcome

	// StatusCode is the HTTP status, zero when no response arrived.
	StatusCode int

	// FinalURL is the URL after following redirects. This, not the
	// requested URL, is what the page is identified by downstream.
	FinalURL string

	// Body is the response body, capped at the configured size.
	// Only set when Outcome is OutcomeOK or OutcomeParseError.
	Body string

	// HTML reports whether the response declared an HTML content type.
	HTML bool
}

// Fetcher retrieves single pages politely: robots.txt is consulted
// before every request and a randomized delay precedes every request,
// unconditionally. There is no configuration that disables the delay.
type Fetcher struct {
	client      *http.Client
	robots      *robotsCache
	userAgent   string
	minDelay    time.Duration
	maxDelay    time.Duration
	maxBodySize int64
}

// NewFetcher creates a Fetcher from the configuration. The delays are
// clamped to the politeness floor regardless of what cfg carries.
func NewFetcher(cfg *config.Config) *Fetcher {
	cfg.ClampDelays()

	// net/http follows at most 10 redirects by default, which also
	// terminates redirect loops.
	client := &http.Client{Timeout: cfg.Timeout}

	return &Fetcher{
		client:      client,
		robots:      newRobotsCache(client, cfg.UserAgent),
		userAgent:   cfg.UserAgent,
		minDelay:    cfg.MinDelay,
		maxDelay:    cfg.MaxDelay,
		maxBodySize: cfg.MaxBodySize,
	}
}

// Fetch retrieves rawURL. The returned error is non-nil only when ctx
// was canceled; every other problem is expressed as a FetchResult
// outcome so the caller can record it and continue the run.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return &FetchResult{Outcome: model.OutcomeConnection, FinalURL: rawURL}, nil
	}

	if !f.robots.allowed(ctx, u) {
		return &FetchResult{Outcome: model.OutcomeBlocked, FinalURL: rawURL}, nil
	}

	if err := f.delay(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &FetchResult{Outcome: model.OutcomeConnection, FinalURL: rawURL}, nil
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &FetchResult{Outcome: classifyTransportError(err), FinalURL: rawURL}, nil
	}
	defer resp.Body.Close()

	result := &FetchResult{
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		HTML:       isHTML(resp.Header.Get("Content-Type")),
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result.Outcome = model.OutcomeHTTPStatus
		return result, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.Outcome = classifyTransportError(err)
		return result, nil
	}

	result.Body = string(body)
	if result.HTML {
		result.Outcome = model.OutcomeOK
	} else {
		// Non-HTML still gets a snapshot over its raw text, but the
		// visit is recorded as a parse failure and yields no links.
		result.Outcome = model.OutcomeParseError
	}
	return result, nil
}

// delay sleeps for a random duration in [minDelay, maxDelay], honoring
// context cancellation. Called before every request without exception.
func (f *Fetcher) delay(ctx context.Context) error {
	d := f.minDelay
	if spread := f.maxDelay - f.minDelay; spread > 0 {
		d += rand.N(spread)
	}

	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// classifyTransportError maps a transport-level error onto a fetch
// outcome: timeouts are distinguished from everything else.
func classifyTransportError(err error) model.FetchOutcome {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.OutcomeTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.OutcomeTimeout
	}
	return model.OutcomeConnection
}

// isHTML reports whether the Content-Type header names an HTML or
// XHTML document. An absent header is assumed to be HTML; servers that
// omit it are almost always serving pages.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "html")
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
