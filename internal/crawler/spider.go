package crawler

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/sitewatch/internal/config"
	"github.com/nao1215/sitewatch/internal/content"
	"github.com/nao1215/sitewatch/internal/model"
)

// queueItem is one frontier entry: a canonical URL and the depth it
// was discovered at.
type queueItem struct {
	url   string
	depth int
}

// Spider performs the breadth-first traversal of one crawl target.
//
// Traversal invariants:
//   - each canonical URL is fetched at most once per run
//   - a URL's recorded depth is its shortest distance from the root,
//     guaranteed by FIFO order and first-enqueue-wins deduplication
//   - the page budget is a hard stop checked before every fetch
type Spider struct {
	fetcher    *Fetcher
	normalizer *content.Normalizer
	logger     *slog.Logger
}

// Option configures a Spider.
type Option func(*Spider)

// WithLogger sets the logger used for per-page progress output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Spider) { s.logger = logger }
}

// WithFetcher replaces the fetcher. Exists for tests that need to
// control delays or transports.
func WithFetcher(f *Fetcher) Option {
	return func(s *Spider) { s.fetcher = f }
}

// WithDenyRules adds normalization denylist rules on top of the
// defaults.
func WithDenyRules(rules []content.Rule) Option {
	return func(s *Spider) { s.normalizer = content.NewNormalizer(rules...) }
}

// NewSpider creates a Spider from the configuration.
func NewSpider(cfg *config.Config, opts ...Option) *Spider {
	s := &Spider{
		fetcher:    NewFetcher(cfg),
		normalizer: content.NewNormalizer(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Crawl runs the traversal for target and returns the run result.
//
// The returned error is non-nil only for context cancellation; in that
// case the partial result accumulated so far is returned alongside it.
// Per-page failures are recorded in the result and never returned as
// errors.
func (s *Spider) Crawl(ctx context.Context, target *model.CrawlTarget) (*model.CrawlRunResult, error) {
	result := model.NewCrawlRunResult(target)
	return result, s.Run(ctx, result)
}

// Run executes the traversal into an already-created run result. It
// exists so the engine pipeline can own the result's lifecycle.
func (s *Spider) Run(ctx context.Context, result *model.CrawlRunResult) error {
	target := result.Target
	result.State = model.RunRunning
	result.StartedAt = time.Now()

	root := model.CanonicalURL(target.RootURL)
	queue := []queueItem{{url: root, depth: 0}}
	enqueued := map[string]bool{root: true}

	s.logger.Info("crawl started",
		slog.String("run_id", result.ID),
		slog.String("root", root),
		slog.Int("max_depth", target.MaxDepth),
		slog.Int("max_pages", target.MaxPages))

	for len(queue) > 0 {
		if result.PagesCrawled() >= target.MaxPages {
			result.State = model.RunBudgetExhausted
			break
		}

		item := queue[0]
		queue = queue[1:]

		if result.Visited(item.url) {
			continue
		}
		// Links are only enqueued below MaxDepth, but re-check here so a
		// frontier entry can never be fetched past the limit.
		if item.depth > target.MaxDepth {
			continue
		}

		if err := s.visit(ctx, result, item, &queue, enqueued); err != nil {
			result.FinishedAt = time.Now()
			return err
		}
	}

	if result.State == model.RunRunning {
		result.State = model.RunCompleted
	}
	result.FinishedAt = time.Now()

	s.logger.Info("crawl finished",
		slog.String("run_id", result.ID),
		slog.String("state", string(result.State)),
		slog.Int("pages", result.PagesCrawled()),
		slog.Int("failures", result.Failures))

	return nil
}

// visit fetches one frontier item, records the visit, and extends the
// frontier with the page's in-scope links.
func (s *Spider) visit(ctx context.Context, result *model.CrawlRunResult, item queueItem, queue *[]queueItem, enqueued map[string]bool) error {
	fetched, err := s.fetcher.Fetch(ctx, item.url)
	if err != nil {
		return err
	}

	visit := &model.VisitRecord{
		URL:        item.url,
		Depth:      item.depth,
		Outcome:    fetched.Outcome,
		StatusCode: fetched.StatusCode,
	}
	result.Visits[item.url] = visit
	result.VisitedOrder = append(result.VisitedOrder, item.url)
	if visit.Outcome.Failed() {
		result.Failures++
	}

	s.logger.Debug("visited",
		slog.String("url", item.url),
		slog.Int("depth", item.depth),
		slog.String("outcome", string(fetched.Outcome)),
		slog.Int("status", fetched.StatusCode))

	if fetched.Outcome != model.OutcomeOK && fetched.Outcome != model.OutcomeParseError {
		return nil
	}

	// Redirects may land on a different page; the resolved URL is the
	// identity the snapshot is stored under, and an alias visit entry
	// prevents fetching the destination a second time.
	finalURL := model.CanonicalURL(fetched.FinalURL)
	if finalURL != item.url {
		result.Visits[finalURL] = visit
	}

	normalized := s.normalizer.Normalize(fetched.Body)
	snapshot := &model.PageSnapshot{
		URL:       finalURL,
		Text:      normalized.Text,
		Title:     normalized.Title,
		FetchedAt: time.Now(),
	}
	snapshot.TruncateText()
	snapshot.ComputeDigest()

	if fetched.Outcome == model.OutcomeOK {
		// Structure is only meaningful for HTML; parse-error bodies are
		// digested as opaque text.
		snapshot.Structure = s.normalizer.ExtractStructure(fetched.Body)
		parser, perr := NewParser(fetched.FinalURL)
		if perr == nil {
			links := parser.ExtractLinks(fetched.Body)
			snapshot.Links = ClassifyLinks(links, result.Target)
			if item.depth < result.Target.MaxDepth {
				for _, link := range snapshot.Links.Internal {
					if enqueued[link] || result.Visited(link) {
						continue
					}
					enqueued[link] = true
					*queue = append(*queue, queueItem{url: link, depth: item.depth + 1})
				}
			}
		}
	}

	result.Snapshots[finalURL] = snapshot
	return nil
}
