package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/sitewatch/internal/config"
	"github.com/nao1215/sitewatch/internal/database"
	"github.com/nao1215/sitewatch/internal/model"
)

// skipIfShort skips the test if -short flag is set. The politeness
// delay floor makes full crawls take a few seconds.
func skipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode (politeness delays make crawls slow)")
	}
}

// mutableSite is a small site whose pages can change between crawls.
type mutableSite struct {
	mu    sync.Mutex
	pages map[string]string
}

func (s *mutableSite) set(path, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[path] = body
}

func (s *mutableSite) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		body, ok := s.pages[r.URL.Path]
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(body))
	}
}

// TestCrawlIntegration runs the crawl command path end to end against
// a local HTTP server: first crawl reports every page as new, second
// crawl reports the edited page as modified.
func TestCrawlIntegration(t *testing.T) {
	skipIfShort(t)

	site := &mutableSite{pages: map[string]string{
		"/": `<html><head><title>Home</title></head><body>
<p>Welcome.</p><a href="/news">News</a></body></html>`,
		"/news": `<html><head><title>News</title></head><body>
<p>Nothing new.</p></body></html>`,
	}}
	srv := httptest.NewServer(site.handler())
	defer srv.Close()

	cfg := config.NewConfig()
	cfg.DBDir = t.TempDir()
	cfg.MaxDepth = 2
	cfg.MaxPages = 10
	cfg.MinDelay = 0
	cfg.MaxDelay = 0
	cfg.WatchFile = &config.File{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	outDir := t.TempDir()

	// First crawl: everything is new.
	cfg.OutputFile = filepath.Join(outDir, "first.txt")
	if err := runCrawl(context.Background(), cfg, []string{srv.URL}, logger); err != nil {
		t.Fatalf("first crawl failed: %v", err)
	}

	first, err := os.ReadFile(cfg.OutputFile)
	if err != nil {
		t.Fatalf("failed to read first digest: %v", err)
	}
	if !strings.Contains(string(first), "[new]") {
		t.Errorf("expected new pages in first digest, got:\n%s", first)
	}

	// Second crawl after editing one page.
	site.set("/news", `<html><head><title>News</title></head><body>
<p>Big announcement today.</p></body></html>`)

	cfg.OutputFile = filepath.Join(outDir, "second.txt")
	if err := runCrawl(context.Background(), cfg, []string{srv.URL}, logger); err != nil {
		t.Fatalf("second crawl failed: %v", err)
	}

	second, err := os.ReadFile(cfg.OutputFile)
	if err != nil {
		t.Fatalf("failed to read second digest: %v", err)
	}
	if !strings.Contains(string(second), "[modified]") {
		t.Errorf("expected modified page in second digest, got:\n%s", second)
	}
	if !strings.Contains(string(second), "/news") {
		t.Errorf("expected edited URL in second digest, got:\n%s", second)
	}

	// The change history is queryable afterward.
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to reopen database: %v", err)
	}
	defer db.Close()

	changes, err := db.GetChanges(context.Background(),
		database.ChangeFilter{ScopeHost: "127.0.0.1", Kind: model.ChangeModified})
	if err != nil {
		t.Fatalf("failed to query changes: %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("expected 1 modified change, got %d", len(changes))
	}
	if changes[0].Similarity == nil || *changes[0].Similarity <= 0 || *changes[0].Similarity >= 1 {
		t.Errorf("expected similarity strictly between 0 and 1, got %v", changes[0].Similarity)
	}
	if changes[0].Diff == "" {
		t.Error("expected non-empty diff for modified page")
	}
}
