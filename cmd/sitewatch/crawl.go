package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitewatch/internal/config"
	"github.com/nao1215/sitewatch/internal/content"
	"github.com/nao1215/sitewatch/internal/crawler"
	"github.com/nao1215/sitewatch/internal/database"
	"github.com/nao1215/sitewatch/internal/diff"
	"github.com/nao1215/sitewatch/internal/engine"
	"github.com/nao1215/sitewatch/internal/log"
	"github.com/nao1215/sitewatch/internal/model"
	"github.com/nao1215/sitewatch/internal/notify"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url]...",
		Short: "Crawl one or more websites and report changes",
		Long: `Crawl traverses each website breadth-first within its domain scope,
honoring robots.txt and pacing requests with a randomized delay. The
crawl is compared against the previous one and every change is
reported: new pages, modified pages (with similarity and diff), and
removed pages.

Examples:
  # Crawl a site with defaults (depth 2, 100 pages)
  sitewatch crawl https://example.com

  # Crawl several sites concurrently
  sitewatch crawl https://example.com https://example.org

  # Deeper crawl with a larger page budget
  sitewatch crawl -d 3 -p 500 https://example.com

  # Include subdomains in the crawl scope
  sitewatch crawl --include-subdomains https://example.com

  # Machine-readable output
  sitewatch crawl --json https://example.com

Watch file (.sitewatch) denylist rules are applied when the file is
found, so volatile page elements configured there are ignored in
one-shot crawls too.`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Traversal flags
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum crawl depth from the root URL (0 = root only)")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to fetch per site")
	cmd.Flags().StringP("scope-host", "s", "",
		"Override the crawl scope host (default: each root URL's host)")
	cmd.Flags().Bool("include-subdomains", false,
		"Treat subdomains of the scope host as internal")

	// Politeness flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each HTTP request")
	cmd.Flags().Duration("min-delay", config.DefaultMinDelay,
		"Lower bound of the randomized per-request delay")
	cmd.Flags().Duration("max-delay", config.DefaultMaxDelay,
		"Upper bound of the randomized per-request delay")

	// Batch flag
	cmd.Flags().IntP("batch", "b", config.DefaultConcurrency,
		"Number of sites crawled concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Watch file path (default: .sitewatch in current or home directory)")

	// Output flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON digest (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown digest (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write digest to specified file path (creates directories if needed)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return runCrawl(ctx, cfg, args, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error

	if cfg.MaxDepth, err = cmd.Flags().GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = cmd.Flags().GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.ScopeHost, err = cmd.Flags().GetString("scope-host"); err != nil {
		return nil, err
	}
	if cfg.IncludeSubdomains, err = cmd.Flags().GetBool("include-subdomains"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.MinDelay, err = cmd.Flags().GetDuration("min-delay"); err != nil {
		return nil, err
	}
	if cfg.MaxDelay, err = cmd.Flags().GetDuration("max-delay"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = cmd.Flags().GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.WatchFilePath, err = cmd.Flags().GetString("config"); err != nil {
		return nil, err
	}
	if cfg.JSONOutput, err = cmd.Flags().GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownOutput, err = cmd.Flags().GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.OutputFile, err = cmd.Flags().GetString("output"); err != nil {
		return nil, err
	}

	// The delay floor is not negotiable via flags.
	cfg.ClampDelays()

	if err := loadWatchFileInto(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadWatchFileInto resolves and loads the watch file. A missing file
// is an error only when the user named it explicitly.
func loadWatchFileInto(cfg *config.Config) error {
	explicit := cfg.WatchFilePath != ""
	path := config.FindWatchFile(cfg.WatchFilePath)

	if path == "" {
		if explicit {
			return fmt.Errorf("watch file not found: %s", cfg.WatchFilePath)
		}
		cfg.WatchFile = &config.File{Domains: make(map[string]config.DomainConfig)}
		return nil
	}

	file, err := config.LoadWatchFile(path)
	if err != nil {
		return fmt.Errorf("failed to load watch file %s: %w", path, err)
	}
	cfg.WatchFile = file
	return nil
}

// runCrawl executes crawls for all target URLs and writes the digest.
func runCrawl(ctx context.Context, cfg *config.Config, urls []string, logger *slog.Logger) error {
	if len(urls) == 0 {
		return errors.New("no targets provided (specify one or more URLs as arguments)")
	}

	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	logger.Info("database opened", "dir", cfg.DBDir)

	targets := make([]*model.CrawlTarget, 0, len(urls))
	for _, rawURL := range urls {
		target, err := buildTarget(cfg, rawURL)
		if err != nil {
			return err
		}
		if err := db.UpsertDomain(ctx, target.RootURL, target.ScopeHost); err != nil {
			return err
		}
		targets = append(targets, target)
	}

	spider := crawler.NewSpider(cfg,
		crawler.WithLogger(logger),
		crawler.WithDenyRules(denyRules(cfg.WatchFile.Denylist)))
	runner := engine.NewRunner(spider, diff.NewDetector(), db, engine.WithRunnerLogger(logger))
	batch := engine.NewBatchProcessor(runner,
		engine.WithConcurrency(cfg.Concurrency),
		engine.WithBatchLogger(logger))

	results, runErr := batch.ProcessBatch(ctx, targets)

	digest := notify.NewDigest(results)
	if err := writeDigest(cfg, digest); err != nil {
		return err
	}
	return runErr
}

// buildTarget creates a validated crawl target from one URL argument.
func buildTarget(cfg *config.Config, rawURL string) (*model.CrawlTarget, error) {
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	target, err := model.NewCrawlTarget(rawURL, cfg.MaxDepth, cfg.MaxPages)
	if err != nil {
		return nil, fmt.Errorf("invalid target %q: %w", rawURL, err)
	}
	if cfg.ScopeHost != "" {
		target.ScopeHost = strings.ToLower(cfg.ScopeHost)
	}
	target.IncludeSubdomains = cfg.IncludeSubdomains
	return target, nil
}

// denyRules converts watch file denylist entries into normalizer rules.
func denyRules(rules []config.DenyRule) []content.Rule {
	converted := make([]content.Rule, 0, len(rules))
	for _, r := range rules {
		converted = append(converted, content.Rule{Tag: r.Tag, Attr: r.Attr, Pattern: r.Pattern})
	}
	return converted
}

// writeDigest renders the digest in the selected format to stdout or
// the output file.
func writeDigest(cfg *config.Config, digest *notify.Digest) error {
	var out io.Writer = os.Stdout
	if cfg.OutputFile != "" {
		if dir := filepath.Dir(cfg.OutputFile); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		f, err := os.Create(cfg.OutputFile) //nolint:gosec // User-provided output path is intentional
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	var writer notify.Writer
	switch {
	case cfg.JSONOutput:
		writer = notify.NewJSONWriter(out)
	case cfg.MarkdownOutput:
		writer = notify.NewMarkdownWriter(out)
	default:
		writer = notify.NewTextWriter(out, notify.WithDiffs(true))
	}

	if _, err := writer.WriteDigest(digest); err != nil {
		return fmt.Errorf("failed to write digest: %w", err)
	}
	return nil
}

// sinceTime parses a --since value as either a duration back from now
// ("24h", "30m") or an absolute date ("2026-08-30").
func sinceTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		return time.Now().Add(-d), nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid --since value %q (use a duration like 24h or a date like 2006-01-02)", value)
}
