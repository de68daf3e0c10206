package crawler

import (
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/sitewatch/internal/model"
)

// fileExtensions marks URLs that point at downloadable attachments.
// Such URLs are classified and reported but never fetched, even when
// they live on the scope host.
var fileExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true, ".odt": true, ".csv": true,
	".zip": true, ".rar": true, ".7z": true, ".gz": true, ".tar": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".svg": true,
	".webp": true, ".ico": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".wmv": true,
	".exe": true, ".dmg": true, ".iso": true,
}

// skippedSchemes are link schemes that can never be crawled.
var skippedSchemes = map[string]bool{
	"javascript": true,
	"mailto":     true,
	"tel":        true,
	"data":       true,
	"ftp":        true,
}

// Parser extracts links from one HTML page, resolving them against the
// page's own URL.
//
// Design decision: We use golang.org/x/net/html rather than regex
// because it correctly handles the malformed HTML common on the web
// and gives us real attribute access instead of pattern guessing.
type Parser struct {
	base *url.URL
}

// NewParser creates a Parser for the page at pageURL. Relative links
// are resolved against it.
func NewParser(pageURL string) (*Parser, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	return &Parser{base: base}, nil
}

// ExtractLinks returns the canonical absolute URLs of all usable links
// on the page, in document order with duplicates removed. Fragments,
// unsupported schemes, and unparseable hrefs are dropped.
//
// Order matters: the spider enqueues links in this order, which keeps
// traversal deterministic for a fixed set of pages.
func (p *Parser) ExtractLinks(rawHTML string) []string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == "a" {
			if resolved, ok := p.resolve(attrValue(node, "href")); ok {
				canonical := model.CanonicalURL(resolved)
				if !seen[canonical] {
					seen[canonical] = true
					links = append(links, canonical)
				}
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return links
}

// resolve turns an href into an absolute URL, reporting false for
// links that cannot be crawled.
func (p *Parser) resolve(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if skippedSchemes[strings.ToLower(ref.Scheme)] {
		return "", false
	}

	resolved := p.base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	return resolved.String(), true
}

// ClassifyLinks splits canonical links into internal pages, external
// pages, and file attachments relative to the target's crawl scope.
// Files win over the internal/external split: a same-host PDF is a
// file, not an internal page.
func ClassifyLinks(links []string, target *model.CrawlTarget) model.LinkClassification {
	var lc model.LinkClassification
	for _, link := range links {
		u, err := url.Parse(link)
		if err != nil {
			continue
		}
		switch {
		case isFileURL(u):
			lc.Files = append(lc.Files, link)
		case target.InScope(u.Hostname()):
			lc.Internal = append(lc.Internal, link)
		default:
			lc.External = append(lc.External, link)
		}
	}
	return lc
}

// isFileURL reports whether the URL path ends in a known attachment
// extension.
func isFileURL(u *url.URL) bool {
	return fileExtensions[strings.ToLower(path.Ext(u.Path))]
}

// attrValue returns the value of the named attribute, or "".
func attrValue(node *html.Node, name string) string {
	for _, attr := range node.Attr {
		if strings.EqualFold(attr.Key, name) {
			return attr.Val
		}
	}
	return ""
}
