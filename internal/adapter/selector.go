package adapter

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/scrollcrawl/internal/model"
)

// Article field names used in ExtractionError.
const (
	FieldDocument = "document"
	FieldHeadline = "headline"
	FieldDate     = "date"
	FieldAuthors  = "authors"
	FieldBody     = "body"
)

// bodyNoise are removed from the body container before its text is read.
var bodyNoise = []string{"script", "style", "noscript", "iframe", "aside", "figure", "nav", "form"}

// selectors are the CSS selectors of one selector rule. Comma-separated
// alternatives are allowed and the first match in document order wins.
type selectors struct {
	Headline string
	Date     string
	// DateAttr is read before the element text, usually "datetime".
	DateAttr string
	Authors  string
	Body     string
	Topics   string
	// RequireAuthors turns a missing byline into an ExtractionError.
	RequireAuthors bool
}

// selectorRule extracts articles with goquery selectors.
type selectorRule struct {
	namespace
	sel selectors
}

// ExtractArticle implements Adapter.
func (r *selectorRule) ExtractArticle(doc *model.RenderedDocument) (*model.ArticleRecord, error) {
	if doc == nil {
		return nil, ErrNilDocument
	}

	gdoc, err := goquery.NewDocumentFromReader(strings.NewReader(doc.HTML))
	if err != nil {
		return nil, &ExtractionError{URL: doc.URL, Field: FieldDocument, Reason: ReasonUnparsable, Err: err}
	}

	headline := firstText(gdoc.Selection, r.sel.Headline)
	if headline == "" {
		headline = metaContent(gdoc, "og:title")
	}
	if headline == "" {
		return nil, missing(doc.URL, FieldHeadline)
	}

	rawDate := r.rawDate(gdoc)
	if rawDate == "" {
		return nil, missing(doc.URL, FieldDate)
	}
	date, err := parseDate(rawDate)
	if err != nil {
		return nil, illFormed(doc.URL, FieldDate, err)
	}

	authors := model.NormalizeList(allTexts(gdoc.Selection, r.sel.Authors))
	if len(authors) == 0 {
		if byline := metaContent(gdoc, "author"); byline != "" {
			authors = model.NormalizeList([]string{byline})
		}
	}
	if len(authors) == 0 && r.sel.RequireAuthors {
		return nil, missing(doc.URL, FieldAuthors)
	}

	body := bodyText(gdoc.Selection, r.sel.Body)
	if body == "" {
		return nil, missing(doc.URL, FieldBody)
	}

	return &model.ArticleRecord{
		Site:        r.site,
		Headline:    headline,
		Date:        date,
		Authors:     authors,
		Body:        body,
		Topics:      model.NormalizeList(allTexts(gdoc.Selection, r.sel.Topics)),
		URL:         doc.URL,
		ExtractedAt: time.Now().UTC(),
	}, nil
}

// rawDate reads the date attribute, then the element text, then the
// article:published_time meta tag.
func (r *selectorRule) rawDate(gdoc *goquery.Document) string {
	if r.sel.Date != "" {
		el := gdoc.Find(r.sel.Date).First()
		if el.Length() > 0 {
			if r.sel.DateAttr != "" {
				if v, ok := el.Attr(r.sel.DateAttr); ok && strings.TrimSpace(v) != "" {
					return strings.TrimSpace(v)
				}
			}
			if text := collapse(el.Text()); text != "" {
				return text
			}
		}
	}
	return metaContent(gdoc, "article:published_time")
}

// firstText returns the collapsed text of the first non-empty match.
func firstText(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	var out string
	s.Find(selector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		out = collapse(el.Text())
		return out == ""
	})
	return out
}

// allTexts returns the collapsed text of every match, in document order.
func allTexts(s *goquery.Selection, selector string) []string {
	if selector == "" {
		return nil
	}
	return s.Find(selector).Map(func(_ int, el *goquery.Selection) string {
		return collapse(el.Text())
	})
}

// bodyText returns the paragraphs of the first body container joined by
// blank lines. Containers without <p> elements contribute their whole text.
func bodyText(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	container := s.Find(selector).First()
	if container.Length() == 0 {
		return ""
	}
	container = container.Clone()
	container.Find(strings.Join(bodyNoise, ",")).Remove()

	paragraphs := make([]string, 0)
	container.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := collapse(p.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) > 0 {
		return strings.Join(paragraphs, "\n\n")
	}
	return collapse(container.Text())
}

// metaContent returns the content of <meta property=name> or <meta name=name>.
func metaContent(gdoc *goquery.Document, name string) string {
	for _, attr := range []string{"property", "name"} {
		if v, ok := gdoc.Find(`meta[` + attr + `="` + name + `"]`).First().Attr("content"); ok {
			if v = collapse(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// collapse trims s and folds whitespace runs into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
