package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// Chosen to match common polite-crawling practice and the defaults of the
// original monitoring setup where applicable.
const (
	// DefaultTimeout bounds each HTTP request. 15 seconds is generous for
	// ordinary sites while keeping a worst-case run duration predictable:
	// a run is bounded by max_pages * (timeout + delay).
	DefaultTimeout = 15 * time.Second

	// DefaultMaxDepth limits BFS depth from the root. Two levels reach
	// most content on typical sites without exploding the frontier.
	DefaultMaxDepth = 2

	// DefaultMaxPages is the hard page budget per run. This prevents
	// runaway crawling on large or infinitely-generating sites.
	DefaultMaxPages = 100

	// DefaultMinDelay and DefaultMaxDelay bound the randomized politeness
	// delay applied before every request. The delay is unconditional: it
	// cannot be configured below MinDelayFloor.
	DefaultMinDelay = 1 * time.Second
	DefaultMaxDelay = 3 * time.Second

	// MinDelayFloor is the lowest per-request delay any configuration can
	// produce. Politeness takes priority over throughput.
	MinDelayFloor = 500 * time.Millisecond

	// DefaultUserAgent identifies SiteWatch in HTTP requests.
	// A descriptive User-Agent lets operators identify monitor traffic.
	DefaultUserAgent = "SiteWatch/1.0 (+https://github.com/nao1215/sitewatch)"

	// DefaultMaxBodySize limits the response body size read per page.
	// 5MB covers HTML pages while preventing memory exhaustion.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultConcurrency is the number of domains crawled concurrently
	// in watch mode. Runs for distinct domains share nothing but the
	// database, so a small pool is safe.
	DefaultConcurrency = 4

	// DefaultInterval is how often a watched domain is re-crawled when
	// the watch file does not specify one.
	DefaultInterval = time.Hour

	// DefaultDiffContext is the number of unchanged context lines kept
	// around each hunk in unified diffs.
	DefaultDiffContext = 3

	// DefaultMaxDiffLines truncates oversized diffs in change records.
	DefaultMaxDiffLines = 200

	// AppName is the application name used for XDG directory paths.
	AppName = "sitewatch"
)

// Config holds all configuration options for SiteWatch.
// It is populated from CLI flags and the watch file and passed through
// the application via dependency injection rather than global state.
type Config struct {
	// RootURL is the starting URL for a single crawl invocation.
	RootURL string

	// MaxDepth is the maximum BFS depth from the root.
	// Depth 0 means only fetch the root page.
	MaxDepth int

	// MaxPages is the hard page budget per run.
	MaxPages int

	// ScopeHost overrides the crawl scope host. Empty means the root
	// URL's host.
	ScopeHost string

	// IncludeSubdomains widens the scope to subdomains of ScopeHost.
	IncludeSubdomains bool

	// Timeout is the per-request fetch timeout.
	Timeout time.Duration

	// MinDelay and MaxDelay bound the randomized per-request delay.
	// Values below MinDelayFloor are raised to the floor: the delay is
	// a politeness guarantee, not a tunable.
	MinDelay time.Duration
	MaxDelay time.Duration

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// Verbose enables debug-level log output.
	Verbose bool

	// WatchFilePath is the path to the watch file. Empty means search
	// the current directory and then the home directory.
	WatchFilePath string

	// WatchFile holds per-domain settings loaded from the watch file.
	WatchFile *File

	// Concurrency is the number of domains crawled concurrently in
	// watch mode.
	Concurrency int

	// JSONOutput and MarkdownOutput select the change digest format.
	// Mutually exclusive; default is human-readable text.
	JSONOutput     bool
	MarkdownOutput bool

	// OutputFile writes the digest to a file instead of stdout.
	OutputFile string

	// DBDir is the directory holding the SQLite database.
	// Defaults to the XDG data directory.
	DBDir string
}

// NewConfig creates a Config with default values.
//
// Design decision: A constructor rather than zero values because most
// defaults are non-zero, and the constructor documents what they are.
func NewConfig() *Config {
	return &Config{
		MaxDepth:    DefaultMaxDepth,
		MaxPages:    DefaultMaxPages,
		Timeout:     DefaultTimeout,
		MinDelay:    DefaultMinDelay,
		MaxDelay:    DefaultMaxDelay,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		Concurrency: DefaultConcurrency,
		DBDir:       XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for SiteWatch.
// On Linux: ~/.local/share/sitewatch
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for SiteWatch.
// On Linux: ~/.config/sitewatch
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ClampDelays raises configured delays to the politeness floor and
// ensures MinDelay <= MaxDelay. Called after flag parsing so that no
// flag combination can disable the per-request delay.
func (c *Config) ClampDelays() {
	if c.MinDelay < MinDelayFloor {
		c.MinDelay = MinDelayFloor
	}
	if c.MaxDelay < c.MinDelay {
		c.MaxDelay = c.MinDelay
	}
}

// Validate checks the configuration and returns a specific sentinel
// error describing the first problem found. Called once after CLI
// parsing, before any crawling begins.
func (c *Config) Validate() error {
	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}
	if c.MaxPages < 1 {
		return ErrInvalidMaxPages
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Concurrency < 1 {
		return ErrInvalidConcurrency
	}
	if c.JSONOutput && c.MarkdownOutput {
		return ErrConflictingOutputFormats
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	return nil
}
