package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitewatch/internal/config"
	"github.com/nao1215/sitewatch/internal/crawler"
	"github.com/nao1215/sitewatch/internal/database"
	"github.com/nao1215/sitewatch/internal/diff"
	"github.com/nao1215/sitewatch/internal/engine"
	"github.com/nao1215/sitewatch/internal/log"
	"github.com/nao1215/sitewatch/internal/model"
	"github.com/nao1215/sitewatch/internal/notify"
	"github.com/nao1215/sitewatch/internal/scheduler"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Continuously monitor the domains in the watch file",
		Long: `Watch reads the .sitewatch file and re-crawls every configured domain
on its interval, printing a change digest after each run and mailing
it when SMTP delivery is configured.

Each domain runs on its own schedule; crawls for distinct domains may
overlap, but a domain is never crawled twice at once. Stop with
Ctrl+C; in-flight runs finish before shutdown.

Example watch file:
  defaults:
    depth: 2
    maxPages: 100
    interval: 1h
  domains:
    example:
      url: https://example.com
      interval: 30m
      email: ops@example.com
  smtp:
    host: mail.example.com
    port: 587
    from: sitewatch@example.com`,
		Args: cobra.NoArgs,
		RunE: runWatchCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Watch file path (default: .sitewatch in current or home directory)")
	cmd.Flags().IntP("batch", "b", config.DefaultConcurrency,
		"Number of domains crawled concurrently")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each HTTP request")

	return cmd
}

// runWatchCmd executes the watch command.
func runWatchCmd(cmd *cobra.Command, _ []string) error {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	if cfg.WatchFilePath, err = cmd.Flags().GetString("config"); err != nil {
		return err
	}
	if cfg.Concurrency, err = cmd.Flags().GetInt("batch"); err != nil {
		return err
	}
	if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	path := config.FindWatchFile(cfg.WatchFilePath)
	if path == "" {
		return fmt.Errorf("watch mode requires a watch file; create one with 'sitewatch init'")
	}
	file, err := config.LoadWatchFile(path)
	if err != nil {
		return fmt.Errorf("failed to load watch file %s: %w", path, err)
	}
	if len(file.Domains) == 0 {
		return fmt.Errorf("watch file %s defines no domains", path)
	}
	cfg.WatchFile = file

	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return runWatch(ctx, cfg, logger)
}

// watchedDomain ties a schedule entry to its digest recipient.
type watchedDomain struct {
	target   *model.CrawlTarget
	interval time.Duration
	email    string
	runner   *engine.Runner
}

// runWatch builds the per-domain runners and drives the scheduler
// until interrupted.
func runWatch(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	domains, err := buildWatchedDomains(ctx, cfg, db, logger)
	if err != nil {
		return err
	}

	var mailer *notify.Mailer
	if smtp := cfg.WatchFile.SMTP; smtp != nil {
		mailer = notify.NewMailer(smtp.Host, smtp.Port, smtp.From, smtp.Username, smtp.Password)
	}

	runners := make(map[string]*engine.Runner, len(domains))
	recipients := make(map[string][]string, len(domains))
	for _, wd := range domains {
		runners[wd.target.ScopeHost] = wd.runner
		if wd.email != "" {
			recipients[wd.target.ScopeHost] = []string{wd.email}
		} else if smtp := cfg.WatchFile.SMTP; smtp != nil && smtp.To != "" {
			recipients[wd.target.ScopeHost] = []string{smtp.To}
		}
	}

	run := func(ctx context.Context, target *model.CrawlTarget) (*model.CrawlRunResult, error) {
		return runners[target.ScopeHost].Run(ctx, target)
	}

	onResult := func(result *model.CrawlRunResult) {
		digest := notify.NewDigest([]*model.CrawlRunResult{result})
		if _, err := notify.NewTextWriter(os.Stdout).WriteDigest(digest); err != nil {
			logger.Error("failed to write digest", "error", err)
		}
		if mailer == nil || digest.Empty() {
			return
		}
		to := recipients[result.Target.ScopeHost]
		if err := mailer.Send(digest, to); err != nil {
			logger.Error("failed to mail digest",
				"host", result.Target.ScopeHost,
				"error", err)
		} else {
			logger.Info("digest mailed",
				"host", result.Target.ScopeHost,
				"changes", digest.TotalChanges())
		}
	}

	sched := scheduler.New(run,
		scheduler.WithLogger(logger),
		scheduler.WithResultHandler(onResult))
	for _, wd := range domains {
		sched.Add(wd.target, wd.interval)
	}

	sched.Start(ctx)
	<-ctx.Done()
	logger.Info("shutting down, waiting for in-flight runs...")
	sched.Stop()
	return nil
}

// buildWatchedDomains turns watch file entries into crawl targets with
// their own runners, so each domain gets its own denylist rules.
func buildWatchedDomains(ctx context.Context, cfg *config.Config, db *database.SiteDB, logger *slog.Logger) ([]watchedDomain, error) {
	detector := diff.NewDetector()

	var domains []watchedDomain
	for name := range cfg.WatchFile.Domains {
		dc := cfg.WatchFile.GetDomainConfig(name)
		if dc.URL == "" {
			return nil, fmt.Errorf("watch file domain %q has no url", name)
		}

		depth := cfg.MaxDepth
		if dc.Depth != 0 {
			depth = dc.Depth
		}
		maxPages := cfg.MaxPages
		if dc.MaxPages != 0 {
			maxPages = dc.MaxPages
		}

		target, err := model.NewCrawlTarget(dc.URL, depth, maxPages)
		if err != nil {
			return nil, fmt.Errorf("watch file domain %q: %w", name, err)
		}
		if dc.ScopeHost != "" {
			target.ScopeHost = strings.ToLower(dc.ScopeHost)
		}
		target.IncludeSubdomains = dc.IncludeSubdomains

		if err := db.UpsertDomain(ctx, target.RootURL, target.ScopeHost); err != nil {
			return nil, err
		}

		interval := config.DefaultInterval
		if !dc.Interval.IsZero() {
			interval = dc.Interval.Duration
		}

		spider := crawler.NewSpider(cfg,
			crawler.WithLogger(logger),
			crawler.WithDenyRules(denyRules(dc.Denylist)))

		domains = append(domains, watchedDomain{
			target:   target,
			interval: interval,
			email:    dc.Email,
			runner:   engine.NewRunner(spider, detector, db, engine.WithRunnerLogger(logger)),
		})
	}
	return domains, nil
}
