package database

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/nao1215/sitewatch/internal/model"
)

func openTestDB(t *testing.T) *SiteDB {
	t.Helper()
	sdb, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() {
		if err := sdb.Close(); err != nil {
			t.Errorf("Close() error: %v", err)
		}
	})
	return sdb
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database when allowed", func(t *testing.T) {
		t.Parallel()
		openTestDB(t)
	})

	t.Run("refuses missing database when creation disabled", func(t *testing.T) {
		t.Parallel()

		opts := DefaultOptions()
		opts.CreateIfNotExists = false
		if _, err := Open(t.TempDir(), opts); err == nil {
			t.Error("Open() error = nil, want error for missing database")
		}
	})
}

func TestSnapshots(t *testing.T) {
	t.Parallel()
	sdb := openTestDB(t)
	ctx := context.Background()

	snapshot := &model.PageSnapshot{
		URL:   "https://example.com/",
		Text:  "hello world",
		Title: "Home",
		Links: model.LinkClassification{
			Internal: []string{"https://example.com/about"},
			External: []string{"https://other.example/"},
		},
		Structure: []model.PageElement{
			{Path: "html > body > h1", Tag: "h1", Text: "Welcome home"},
			{Path: "html > body > p", Tag: "p", Text: "hello world from the page"},
		},
		FetchedAt: time.Now(),
	}
	snapshot.ComputeDigest()

	if err := sdb.PutSnapshot(ctx, "example.com", snapshot); err != nil {
		t.Fatalf("PutSnapshot() error: %v", err)
	}

	t.Run("round trip", func(t *testing.T) {
		got, err := sdb.GetSnapshot(ctx, "https://example.com/")
		if err != nil {
			t.Fatalf("GetSnapshot() error: %v", err)
		}
		if got == nil {
			t.Fatal("GetSnapshot() = nil, want snapshot")
		}
		if got.Digest != snapshot.Digest {
			t.Errorf("Digest = %q, want %q", got.Digest, snapshot.Digest)
		}
		if got.Text != "hello world" {
			t.Errorf("Text = %q, want %q", got.Text, "hello world")
		}
		if !reflect.DeepEqual(got.Links, snapshot.Links) {
			t.Errorf("Links = %+v, want %+v", got.Links, snapshot.Links)
		}
		if !reflect.DeepEqual(got.Structure, snapshot.Structure) {
			t.Errorf("Structure = %+v, want %+v", got.Structure, snapshot.Structure)
		}
	})

	t.Run("unknown URL returns nil without error", func(t *testing.T) {
		got, err := sdb.GetSnapshot(ctx, "https://example.com/unknown")
		if err != nil {
			t.Fatalf("GetSnapshot() error: %v", err)
		}
		if got != nil {
			t.Errorf("GetSnapshot() = %+v, want nil", got)
		}
	})

	t.Run("upsert replaces and keeps one live snapshot", func(t *testing.T) {
		updated := &model.PageSnapshot{
			URL:       "https://example.com/",
			Text:      "hello again",
			FetchedAt: time.Now(),
		}
		updated.ComputeDigest()
		if err := sdb.PutSnapshot(ctx, "example.com", updated); err != nil {
			t.Fatalf("PutSnapshot() error: %v", err)
		}

		got, err := sdb.GetSnapshot(ctx, "https://example.com/")
		if err != nil {
			t.Fatalf("GetSnapshot() error: %v", err)
		}
		if got.Text != "hello again" {
			t.Errorf("Text = %q, want replacement text", got.Text)
		}

		urls, err := sdb.GetLiveURLs(ctx, "example.com")
		if err != nil {
			t.Fatalf("GetLiveURLs() error: %v", err)
		}
		if !reflect.DeepEqual(urls, []string{"https://example.com/"}) {
			t.Errorf("GetLiveURLs() = %v, want single URL", urls)
		}
	})

	t.Run("mark removed keeps the snapshot", func(t *testing.T) {
		if err := sdb.MarkRemoved(ctx, "https://example.com/"); err != nil {
			t.Fatalf("MarkRemoved() error: %v", err)
		}

		urls, err := sdb.GetLiveURLs(ctx, "example.com")
		if err != nil {
			t.Fatalf("GetLiveURLs() error: %v", err)
		}
		if len(urls) != 0 {
			t.Errorf("GetLiveURLs() = %v, want empty after removal", urls)
		}

		got, err := sdb.GetSnapshot(ctx, "https://example.com/")
		if err != nil {
			t.Fatalf("GetSnapshot() error: %v", err)
		}
		if got == nil {
			t.Error("GetSnapshot() = nil, want retained snapshot for reappearing pages")
		}
	})

	t.Run("put reactivates a removed URL", func(t *testing.T) {
		back := &model.PageSnapshot{URL: "https://example.com/", Text: "back", FetchedAt: time.Now()}
		back.ComputeDigest()
		if err := sdb.PutSnapshot(ctx, "example.com", back); err != nil {
			t.Fatalf("PutSnapshot() error: %v", err)
		}

		urls, err := sdb.GetLiveURLs(ctx, "example.com")
		if err != nil {
			t.Fatalf("GetLiveURLs() error: %v", err)
		}
		if len(urls) != 1 {
			t.Errorf("GetLiveURLs() = %v, want reactivated URL", urls)
		}
	})
}

func TestChanges(t *testing.T) {
	t.Parallel()
	sdb := openTestDB(t)
	ctx := context.Background()

	ratio := 0.87
	records := []*model.ChangeRecord{
		{ID: "c1", URL: "https://example.com/a", Kind: model.ChangeNew, DetectedAt: time.Now().Add(-2 * time.Hour)},
		{ID: "c2", URL: "https://example.com/b", Kind: model.ChangeModified, Similarity: &ratio, Diff: "-old\n+new",
			Structural: &model.StructuralDiff{
				Modified: []model.ElementChange{
					{Path: "html > body > p", Tag: "p", OldText: "old words", NewText: "new words", Similarity: 0.6},
				},
			},
			DetectedAt: time.Now().Add(-time.Hour)},
		{ID: "c3", URL: "https://example.com/c", Kind: model.ChangeRemoved, DetectedAt: time.Now()},
	}
	for _, r := range records {
		if err := sdb.PutChange(ctx, "run-1", "example.com", r); err != nil {
			t.Fatalf("PutChange(%s) error: %v", r.ID, err)
		}
	}
	if err := sdb.PutChange(ctx, "run-2", "other.example",
		&model.ChangeRecord{ID: "c4", URL: "https://other.example/", Kind: model.ChangeNew, DetectedAt: time.Now()}); err != nil {
		t.Fatalf("PutChange(c4) error: %v", err)
	}

	t.Run("filter by host newest first", func(t *testing.T) {
		got, err := sdb.GetChanges(ctx, ChangeFilter{ScopeHost: "example.com"})
		if err != nil {
			t.Fatalf("GetChanges() error: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("len = %d, want 3", len(got))
		}
		if got[0].ID != "c3" || got[2].ID != "c1" {
			t.Errorf("order = [%s %s %s], want newest first", got[0].ID, got[1].ID, got[2].ID)
		}
	})

	t.Run("similarity and diff survive the round trip", func(t *testing.T) {
		got, err := sdb.GetChanges(ctx, ChangeFilter{ScopeHost: "example.com", Kind: model.ChangeModified})
		if err != nil {
			t.Fatalf("GetChanges() error: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("len = %d, want 1", len(got))
		}
		if got[0].Similarity == nil || *got[0].Similarity != ratio {
			t.Errorf("Similarity = %v, want %f", got[0].Similarity, ratio)
		}
		if got[0].Diff != "-old\n+new" {
			t.Errorf("Diff = %q", got[0].Diff)
		}
		if got[0].Structural == nil {
			t.Fatal("Structural = nil, want the stored element comparison")
		}
		if !reflect.DeepEqual(got[0].Structural, records[1].Structural) {
			t.Errorf("Structural = %+v, want %+v", got[0].Structural, records[1].Structural)
		}
	})

	t.Run("since and limit", func(t *testing.T) {
		got, err := sdb.GetChanges(ctx, ChangeFilter{
			ScopeHost: "example.com",
			Since:     time.Now().Add(-90 * time.Minute),
		})
		if err != nil {
			t.Fatalf("GetChanges() error: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("len = %d, want 2 recent changes", len(got))
		}

		got, err = sdb.GetChanges(ctx, ChangeFilter{ScopeHost: "example.com", Limit: 1})
		if err != nil {
			t.Fatalf("GetChanges() error: %v", err)
		}
		if len(got) != 1 {
			t.Errorf("len = %d, want 1 with limit", len(got))
		}
	})

	t.Run("new and removed records have no similarity", func(t *testing.T) {
		got, err := sdb.GetChanges(ctx, ChangeFilter{ScopeHost: "example.com", Kind: model.ChangeNew})
		if err != nil {
			t.Fatalf("GetChanges() error: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("len = %d, want 1", len(got))
		}
		if got[0].Similarity != nil {
			t.Errorf("Similarity = %v, want nil", *got[0].Similarity)
		}
		if got[0].Structural != nil {
			t.Errorf("Structural = %+v, want nil", got[0].Structural)
		}
	})
}

func TestRuns(t *testing.T) {
	t.Parallel()
	sdb := openTestDB(t)
	ctx := context.Background()

	target, err := model.NewCrawlTarget("https://example.com/", 2, 100)
	if err != nil {
		t.Fatalf("NewCrawlTarget() error: %v", err)
	}
	result := model.NewCrawlRunResult(target)
	result.State = model.RunCompleted
	result.StartedAt = time.Now().Add(-time.Minute)
	result.FinishedAt = time.Now()
	result.Visits["https://example.com/"] = &model.VisitRecord{
		URL: "https://example.com/", Depth: 0, Outcome: model.OutcomeOK, StatusCode: 200,
	}
	result.Visits["https://example.com/404"] = &model.VisitRecord{
		URL: "https://example.com/404", Depth: 1, Outcome: model.OutcomeHTTPStatus, StatusCode: 404,
	}
	result.VisitedOrder = []string{"https://example.com/", "https://example.com/404"}
	result.Failures = 1

	if err := sdb.SaveRun(ctx, result); err != nil {
		t.Fatalf("SaveRun() error: %v", err)
	}

	runs, err := sdb.GetRunHistory(ctx, "example.com", 10)
	if err != nil {
		t.Fatalf("GetRunHistory() error: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("len = %d, want 1", len(runs))
	}
	got := runs[0]
	if got.ID != result.ID {
		t.Errorf("ID = %q, want %q", got.ID, result.ID)
	}
	if got.State != model.RunCompleted {
		t.Errorf("State = %q, want %q", got.State, model.RunCompleted)
	}
	if got.Pages != 2 {
		t.Errorf("Pages = %d, want 2", got.Pages)
	}
	if got.Failures != 1 {
		t.Errorf("Failures = %d, want 1", got.Failures)
	}
	if got.StartedAt.IsZero() || got.FinishedAt.IsZero() {
		t.Error("timestamps did not survive the round trip")
	}
}

func TestDomains(t *testing.T) {
	t.Parallel()
	sdb := openTestDB(t)
	ctx := context.Background()

	if err := sdb.UpsertDomain(ctx, "https://example.com/", "example.com"); err != nil {
		t.Fatalf("UpsertDomain() error: %v", err)
	}
	if err := sdb.UpsertDomain(ctx, "https://example.com/", "example.com"); err != nil {
		t.Fatalf("UpsertDomain() second call error: %v", err)
	}
	if err := sdb.UpsertDomain(ctx, "https://beta.example/", "beta.example"); err != nil {
		t.Fatalf("UpsertDomain() error: %v", err)
	}

	domains, err := sdb.ListDomains(ctx)
	if err != nil {
		t.Fatalf("ListDomains() error: %v", err)
	}
	if len(domains) != 2 {
		t.Fatalf("len = %d, want 2 (upsert must not duplicate)", len(domains))
	}
	if domains[0].RootURL != "https://beta.example/" {
		t.Errorf("first domain = %q, want ordering by root URL", domains[0].RootURL)
	}
}
