package adapter

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/scrollcrawl/internal/model"
)

// ExtractLinks is the discovery-extraction step: it collects every anchor of
// the document that the adapter accepts, normalizes it against the document
// URL and removes duplicates. The result is a set; order follows the first
// occurrence in the document and carries no meaning.
func ExtractLinks(a Adapter, doc *model.RenderedDocument) ([]string, error) {
	if doc == nil {
		return nil, ErrNilDocument
	}

	root, err := html.Parse(strings.NewReader(doc.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", doc.URL, err)
	}

	base := doc.URL
	links := make([]string, 0)
	seen := make(map[string]struct{})

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "base":
				// <base href> changes how relative links resolve.
				if href := getAttr(n, "href"); href != "" {
					if resolved, err := Normalize(href, doc.URL); err == nil {
						base = resolved
					}
				}
			case "a":
				href := strings.TrimSpace(getAttr(n, "href"))
				if href != "" && a.Accepts(href) {
					if normalized, err := a.Normalize(href, base); err == nil {
						if _, dup := seen[normalized]; !dup {
							seen[normalized] = struct{}{}
							links = append(links, normalized)
						}
					}
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(root)
	return links, nil
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
