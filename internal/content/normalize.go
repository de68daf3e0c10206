package content

import (
	"strings"

	"golang.org/x/net/html"
)

// skipElements are elements whose subtrees never contribute meaningful
// text. They are removed before text extraction regardless of denylist
// configuration.
var skipElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// Rule removes an element subtree when one of its attribute values
// contains Pattern. An empty Tag matches any element.
//
// Rules exist to cut volatile page furniture out of the comparison
// text: ad slots, visit counters, "last updated" widgets. Matching is
// a case-insensitive substring test on the attribute value, which is
// deliberately loose; sites rarely use stable exact class names.
type Rule struct {
	// Tag is the element name to match (e.g. "div"). Empty matches all.
	Tag string

	// Attr is the attribute to inspect (e.g. "class", "id").
	Attr string

	// Pattern is the substring to look for in the attribute value.
	Pattern string
}

// DefaultRules covers the common sources of meaningless churn:
// advertising containers, visitor counters, and timestamp widgets.
func DefaultRules() []Rule {
	return []Rule{
		{Attr: "class", Pattern: "advert"},
		{Attr: "class", Pattern: "sponsor"},
		{Attr: "class", Pattern: "ad-banner"},
		{Attr: "class", Pattern: "visitor"},
		{Attr: "class", Pattern: "counter"},
		{Attr: "id", Pattern: "counter"},
		{Attr: "class", Pattern: "timestamp"},
		{Attr: "class", Pattern: "last-updated"},
	}
}

// Normalizer converts HTML into comparison text.
//
// Design decision: We parse with golang.org/x/net/html rather than
// stripping tags with regex because:
//  1. It correctly handles malformed HTML common on the web
//  2. Subtree removal (denylist rules) needs a real tree
//  3. Entity decoding comes for free
type Normalizer struct {
	rules []Rule
}

// NormalizeResult holds the outputs of a normalization pass.
type NormalizeResult struct {
	// Title is the page title from the <title> tag, whitespace-collapsed.
	Title string

	// Text is the normalized body text: one trimmed, space-collapsed
	// line per text block, joined by newlines.
	Text string
}

// NewNormalizer creates a Normalizer with the given denylist rules.
// The default rules are always applied; extra rules extend them.
func NewNormalizer(extra ...Rule) *Normalizer {
	return &Normalizer{rules: append(DefaultRules(), extra...)}
}

// Normalize converts raw HTML into comparison text.
//
// The parser from golang.org/x/net/html accepts effectively any input,
// so malformed HTML degrades to whatever text survives rather than
// failing: a page we can fetch is always a page we can compare.
//
// Normalize is idempotent. Extracted text re-encodes "&" and "<" as
// entities, so a second pass decodes exactly what the first encoded
// and returns the text unchanged. Without the encoding, page text such
// as "&lt;b&gt;" would decode to "<b>" on the first pass and re-parse
// as an element on the next.
func (n *Normalizer) Normalize(raw string) NormalizeResult {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		// html.Parse only fails on reader errors, which cannot happen
		// with strings.Reader, but fall back to plain-text handling
		// rather than dropping the page.
		return NormalizeResult{Text: collapseText(raw)}
	}

	var result NormalizeResult
	var lines []string
	n.walk(doc, &result, &lines)
	result.Text = strings.Join(lines, "\n")
	return result
}

// walk traverses the DOM depth-first, collecting text blocks and the
// page title while pruning skipped and denylisted subtrees.
func (n *Normalizer) walk(node *html.Node, result *NormalizeResult, lines *[]string) {
	if node.Type == html.ElementNode {
		if skipElements[node.Data] || n.denied(node) {
			return
		}
		if node.Data == "title" && result.Title == "" {
			result.Title = collapseLine(textOf(node))
			return
		}
	}

	if node.Type == html.TextNode {
		appendLines(lines, node.Data)
		return
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		n.walk(child, result, lines)
	}
}

// denied reports whether any denylist rule matches the element.
func (n *Normalizer) denied(node *html.Node) bool {
	for _, rule := range n.rules {
		if rule.Tag != "" && !strings.EqualFold(rule.Tag, node.Data) {
			continue
		}
		for _, attr := range node.Attr {
			if !strings.EqualFold(attr.Key, rule.Attr) {
				continue
			}
			if strings.Contains(strings.ToLower(attr.Val), strings.ToLower(rule.Pattern)) {
				return true
			}
		}
	}
	return false
}

// textOf returns the concatenated text content of a subtree.
func textOf(node *html.Node) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(nd *html.Node) {
		if nd.Type == html.TextNode {
			sb.WriteString(nd.Data)
		}
		for child := nd.FirstChild; child != nil; child = child.NextSibling {
			visit(child)
		}
	}
	visit(node)
	return sb.String()
}

// markupEscaper re-encodes the characters the HTML parser treats as
// markup. The parser's entity decoding is the exact inverse, which is
// what keeps Normalize idempotent.
var markupEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;")

// appendLines splits a text node on newlines, collapses horizontal
// whitespace within each line, escapes markup characters, and appends
// the non-empty results.
//
// Splitting on newlines before collapsing is what makes Normalize
// idempotent: feeding normalized text back through the parser keeps
// each line a separate block instead of gluing them together. The
// escape step covers the other half of the invariant: decoded entities
// that spell markup ("&lt;b&gt;") must not re-parse as elements on the
// next pass.
func appendLines(lines *[]string, text string) {
	for _, line := range strings.Split(text, "\n") {
		if collapsed := collapseLine(line); collapsed != "" {
			*lines = append(*lines, markupEscaper.Replace(collapsed))
		}
	}
}

// collapseLine trims a single line and collapses internal whitespace
// runs into single spaces.
func collapseLine(line string) string {
	return strings.Join(strings.Fields(line), " ")
}

// collapseText applies line collapsing to a multi-line string,
// dropping blank lines. Used as the fallback for unparseable input.
func collapseText(text string) string {
	var lines []string
	appendLines(&lines, text)
	return strings.Join(lines, "\n")
}
