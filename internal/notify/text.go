package notify

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/sitewatch/internal/model"
)

// TextWriter outputs human-readable digests for terminal display.
//
// Design decision: Plain text with ASCII formatting rather than ANSI
// colors because it works in all terminals and pipes cleanly into
// files and email bodies.
type TextWriter struct {
	baseWriter

	// showDiffs controls whether unified diffs are included inline.
	showDiffs bool
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithDiffs includes each modified page's unified diff in the output.
func WithDiffs(show bool) TextWriterOption {
	return func(w *TextWriter) { w.showDiffs = show }
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteDigest outputs the digest as plain text.
func (w *TextWriter) WriteDigest(digest *Digest) (int, error) {
	var sb strings.Builder

	title := fmt.Sprintf("SiteWatch change digest - %s", digest.GeneratedAt.Format("2006-01-02 15:04"))
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("=", len(title)) + "\n\n")

	if digest.Empty() {
		sb.WriteString("No changes detected.\n")
	}

	for _, domain := range digest.Domains {
		if len(domain.Changes) == 0 {
			continue
		}

		sb.WriteString(fmt.Sprintf("%s (%s)\n", domain.ScopeHost, domain.RootURL))
		sb.WriteString(fmt.Sprintf("  state: %s  pages: %d  failures: %d\n",
			domain.State, domain.Pages, domain.Failures))

		for _, change := range domain.Changes {
			sb.WriteString("  " + formatChange(change) + "\n")
			if sd := change.Structural; sd != nil {
				sb.WriteString(fmt.Sprintf("    elements: %d added, %d removed, %d modified\n",
					len(sd.Added), len(sd.Removed), len(sd.Modified)))
			}
			if w.showDiffs && change.Diff != "" {
				for _, line := range strings.Split(change.Diff, "\n") {
					sb.WriteString("    " + line + "\n")
				}
			}
		}
		sb.WriteString("\n")
	}

	return io.WriteString(w.output, sb.String())
}

// formatChange renders one change record as a single summary line.
func formatChange(change *model.ChangeRecord) string {
	label := fmt.Sprintf("[%s]", change.Kind)
	if change.Kind == model.ChangeModified && change.Similarity != nil {
		return fmt.Sprintf("%-10s %s (similarity %.1f%%)", label, change.URL, *change.Similarity*100)
	}
	return fmt.Sprintf("%-10s %s", label, change.URL)
}
