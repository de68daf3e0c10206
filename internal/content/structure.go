package content

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/sitewatch/internal/model"
)

const (
	// maxStructureDepth bounds how deep into the DOM elements are
	// collected. Deeply nested markup past this point is page plumbing,
	// not content structure.
	maxStructureDepth = 10

	// minElementText is the minimum collapsed text length for an
	// element to count as text-bearing. Shorter elements are layout
	// noise (icons, separators, single labels).
	minElementText = 10

	// maxElementText caps the text stored per element.
	maxElementText = 200
)

// ExtractStructure walks the DOM and returns the text-bearing elements
// addressed by selector-like paths. The same pruning as Normalize
// applies: skipped elements and denylisted subtrees contribute nothing,
// so volatile page furniture never shows up as structural movement.
//
// Unparseable input yields no elements; structure is a refinement over
// the text comparison, never a gate on it.
func (n *Normalizer) ExtractStructure(raw string) []model.PageElement {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil
	}
	var elements []model.PageElement
	n.collect(doc, nil, 0, &elements)
	return elements
}

// collect gathers text-bearing elements pre-order, accumulating the
// path from the document root.
func (n *Normalizer) collect(node *html.Node, path []string, depth int, out *[]model.PageElement) {
	if depth > maxStructureDepth {
		return
	}
	if node.Type == html.ElementNode {
		if skipElements[node.Data] || n.denied(node) {
			return
		}
		path = append(path, pathSegment(node))
		if text := collapseLine(n.visibleTextOf(node)); len(text) >= minElementText {
			if len(text) > maxElementText {
				text = text[:maxElementText]
			}
			*out = append(*out, model.PageElement{
				Path: strings.Join(path, " > "),
				Tag:  node.Data,
				Text: text,
			})
		}
		depth++
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		n.collect(child, path, depth, out)
	}
}

// pathSegment renders one element as a selector-like path component:
// the tag name plus the id and first class when present, for example
// "div#main.article".
func pathSegment(node *html.Node) string {
	var sb strings.Builder
	sb.WriteString(node.Data)
	for _, attr := range node.Attr {
		if strings.EqualFold(attr.Key, "id") && attr.Val != "" {
			sb.WriteString("#")
			sb.WriteString(attr.Val)
			break
		}
	}
	for _, attr := range node.Attr {
		if strings.EqualFold(attr.Key, "class") {
			if fields := strings.Fields(attr.Val); len(fields) > 0 {
				sb.WriteString(".")
				sb.WriteString(fields[0])
			}
			break
		}
	}
	return sb.String()
}

// visibleTextOf concatenates the subtree's text the way the reader sees
// it, pruning the same subtrees Normalize prunes.
func (n *Normalizer) visibleTextOf(node *html.Node) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(nd *html.Node) {
		if nd.Type == html.ElementNode && (skipElements[nd.Data] || n.denied(nd)) {
			return
		}
		if nd.Type == html.TextNode {
			sb.WriteString(nd.Data)
			sb.WriteString(" ")
			return
		}
		for child := nd.FirstChild; child != nil; child = child.NextSibling {
			visit(child)
		}
	}
	visit(node)
	return sb.String()
}
