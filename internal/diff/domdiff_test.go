package diff

import (
	"testing"

	"github.com/nao1215/sitewatch/internal/model"
)

func element(path, tag, text string) model.PageElement {
	return model.PageElement{Path: path, Tag: tag, Text: text}
}

func TestCompareStructures(t *testing.T) {
	t.Parallel()

	t.Run("identical structures yield nil", func(t *testing.T) {
		t.Parallel()

		elements := []model.PageElement{
			element("html > body > h1", "h1", "Quarterly results"),
			element("html > body > p", "p", "Profits doubled."),
		}
		if got := CompareStructures(elements, elements); got != nil {
			t.Errorf("CompareStructures() = %+v, want nil", got)
		}
	})

	t.Run("classifies added removed and modified", func(t *testing.T) {
		t.Parallel()

		previous := []model.PageElement{
			element("html > body > h1", "h1", "Quarterly results"),
			element("html > body > p.intro", "p", "Profits doubled compared to last year."),
			element("html > body > div.footer", "div", "Contact us at the old address."),
		}
		current := []model.PageElement{
			element("html > body > h1", "h1", "Quarterly results"),
			element("html > body > p.intro", "p", "Profits tripled compared to last year."),
			element("html > body > aside.notice", "aside", "Office closed next Monday."),
		}

		got := CompareStructures(previous, current)
		if got == nil {
			t.Fatal("CompareStructures() = nil, want a diff")
		}

		if len(got.Added) != 1 || got.Added[0].Path != "html > body > aside.notice" {
			t.Errorf("Added = %+v, want the aside", got.Added)
		}
		if len(got.Removed) != 1 || got.Removed[0].Path != "html > body > div.footer" {
			t.Errorf("Removed = %+v, want the footer", got.Removed)
		}
		if len(got.Modified) != 1 {
			t.Fatalf("Modified = %+v, want one entry", got.Modified)
		}

		mod := got.Modified[0]
		if mod.Path != "html > body > p.intro" {
			t.Errorf("Path = %q, want the intro paragraph", mod.Path)
		}
		if mod.OldText != previous[1].Text || mod.NewText != current[1].Text {
			t.Errorf("texts = (%q, %q), want the before and after", mod.OldText, mod.NewText)
		}
		if mod.Similarity <= 0 || mod.Similarity >= 1 {
			t.Errorf("Similarity = %f, want strictly between 0 and 1", mod.Similarity)
		}
		if got.Total() != 3 {
			t.Errorf("Total() = %d, want 3", got.Total())
		}
	})

	t.Run("output is ordered by path", func(t *testing.T) {
		t.Parallel()

		current := []model.PageElement{
			element("html > body > p.zeta", "p", "last paragraph on the page"),
			element("html > body > p.alpha", "p", "first paragraph on the page"),
		}

		got := CompareStructures(nil, current)
		if got == nil {
			t.Fatal("CompareStructures() = nil, want a diff")
		}
		if len(got.Added) != 2 {
			t.Fatalf("Added = %+v, want two entries", got.Added)
		}
		if got.Added[0].Path >= got.Added[1].Path {
			t.Errorf("Added paths out of order: %q before %q", got.Added[0].Path, got.Added[1].Path)
		}
	})
}

func TestDetectAttachesStructuralDiff(t *testing.T) {
	t.Parallel()

	t.Run("modified record carries the structural view", func(t *testing.T) {
		t.Parallel()

		prev := snapshot("https://example.com/news", "Profits doubled compared to last year.")
		prev.Structure = []model.PageElement{
			element("html > body > p", "p", "Profits doubled compared to last year."),
		}
		curr := snapshot("https://example.com/news", "Profits tripled compared to last year.")
		curr.Structure = []model.PageElement{
			element("html > body > p", "p", "Profits tripled compared to last year."),
		}

		got := NewDetector().Detect(prev, curr)
		if got == nil {
			t.Fatal("Detect() = nil, want modified change")
		}
		if got.Structural == nil {
			t.Fatal("Structural is nil, want the element comparison")
		}
		if len(got.Structural.Modified) != 1 {
			t.Fatalf("Modified = %+v, want one entry", got.Structural.Modified)
		}
		if got.Structural.Modified[0].Path != "html > body > p" {
			t.Errorf("Path = %q, want the paragraph", got.Structural.Modified[0].Path)
		}
	})

	t.Run("skipped when the previous snapshot has no structure", func(t *testing.T) {
		t.Parallel()

		prev := snapshot("https://example.com/news", "old words")
		curr := snapshot("https://example.com/news", "new words entirely")
		curr.Structure = []model.PageElement{
			element("html > body > p", "p", "new words entirely"),
		}

		got := NewDetector().Detect(prev, curr)
		if got == nil {
			t.Fatal("Detect() = nil, want modified change")
		}
		if got.Structural != nil {
			t.Errorf("Structural = %+v, want nil for a structure-less previous snapshot", got.Structural)
		}
	})
}
