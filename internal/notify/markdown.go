package notify

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"

	"github.com/nao1215/sitewatch/internal/model"
)

// MarkdownWriter outputs digests in Markdown, suitable for sharing in
// issues, wikis, and chat tools.
//
// Design decision: We use the nao1215/markdown library for fluent
// markdown generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// WriteDigest outputs the digest in Markdown format.
func (w *MarkdownWriter) WriteDigest(digest *Digest) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("SiteWatch Change Digest")
	md.PlainText("")
	md.PlainTextf("Generated at %s.", digest.GeneratedAt.Format("2006-01-02 15:04"))
	md.PlainText("")

	w.writeSummary(md, digest)

	if digest.Empty() {
		md.PlainText("")
		md.Note("No changes detected across the watched domains.")
		return len(md.String()), md.Build()
	}

	for _, domain := range digest.Domains {
		if len(domain.Changes) == 0 {
			continue
		}
		w.writeDomain(md, domain)
	}

	md.HorizontalRule()
	md.PlainText("Report generated by SiteWatch.")

	return len(md.String()), md.Build()
}

// writeSummary writes the per-kind change totals table.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, digest *Digest) {
	md.H2("Summary")
	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Count"},
		Rows: [][]string{
			{"New pages", strconv.Itoa(digest.CountByKind(model.ChangeNew))},
			{"Modified pages", strconv.Itoa(digest.CountByKind(model.ChangeModified))},
			{"Removed pages", strconv.Itoa(digest.CountByKind(model.ChangeRemoved))},
		},
	})
}

// writeDomain writes one domain's section with its change list and
// diffs.
func (w *MarkdownWriter) writeDomain(md *markdown.Markdown, domain DomainReport) {
	md.H2(domain.ScopeHost)
	md.PlainTextf("Root URL: %s", domain.RootURL)
	md.PlainTextf("Run state: %s, pages crawled: %d, failures: %d.",
		domain.State, domain.Pages, domain.Failures)
	md.PlainText("")

	items := make([]string, 0, len(domain.Changes))
	for _, change := range domain.Changes {
		items = append(items, formatChange(change))
	}
	md.BulletList(items...)

	for _, change := range domain.Changes {
		if change.Diff == "" {
			continue
		}
		md.PlainText("")
		md.PlainText(fmt.Sprintf("Diff for %s:", change.URL))
		md.CodeBlocks(markdown.SyntaxHighlightDiff, change.Diff)
	}
}
