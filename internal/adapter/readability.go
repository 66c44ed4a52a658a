package adapter

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/nao1215/scrollcrawl/internal/config"
	"github.com/nao1215/scrollcrawl/internal/model"
)

// readabilityRule extracts articles from sites without a dedicated rule.
// go-readability finds the headline, byline and main text; the publish date
// and topics come from the page's meta tags.
type readabilityRule struct {
	namespace
}

func newReadabilityRule(site config.Site) (Adapter, error) {
	ns, err := newNamespace(site, nil)
	if err != nil {
		return nil, err
	}
	return &readabilityRule{namespace: ns}, nil
}

// ExtractArticle implements Adapter.
func (r *readabilityRule) ExtractArticle(doc *model.RenderedDocument) (*model.ArticleRecord, error) {
	if doc == nil {
		return nil, ErrNilDocument
	}

	pageURL, err := url.Parse(doc.URL)
	if err != nil {
		return nil, &ExtractionError{URL: doc.URL, Field: FieldDocument, Reason: ReasonUnparsable, Err: err}
	}
	gdoc, err := goquery.NewDocumentFromReader(strings.NewReader(doc.HTML))
	if err != nil {
		return nil, &ExtractionError{URL: doc.URL, Field: FieldDocument, Reason: ReasonUnparsable, Err: err}
	}

	// Dates live in the head, which readability discards.
	rawDate := metaContent(gdoc, "article:published_time")
	if rawDate == "" {
		rawDate, _ = gdoc.Find("time[datetime]").First().Attr("datetime")
	}

	article, err := readability.FromReader(strings.NewReader(doc.HTML), pageURL)
	if err != nil {
		return nil, &ExtractionError{URL: doc.URL, Field: FieldDocument, Reason: ReasonUnparsable, Err: err}
	}

	headline := collapse(article.Title)
	if headline == "" {
		return nil, missing(doc.URL, FieldHeadline)
	}

	if strings.TrimSpace(rawDate) == "" {
		return nil, missing(doc.URL, FieldDate)
	}
	date, err := parseDate(rawDate)
	if err != nil {
		return nil, illFormed(doc.URL, FieldDate, err)
	}

	body := paragraphs(article.TextContent)
	if body == "" {
		return nil, missing(doc.URL, FieldBody)
	}

	byline := strings.TrimPrefix(collapse(article.Byline), "By ")
	authors := model.NormalizeList(splitByline(byline))

	topics := gdoc.Find(`meta[property="article:tag"]`).Map(func(_ int, s *goquery.Selection) string {
		v, _ := s.Attr("content")
		return v
	})

	return &model.ArticleRecord{
		Site:        r.site,
		Headline:    headline,
		Date:        date,
		Authors:     authors,
		Body:        body,
		Topics:      model.NormalizeList(topics),
		URL:         doc.URL,
		ExtractedAt: time.Now().UTC(),
	}, nil
}

// splitByline splits "A, B and C" into names.
func splitByline(byline string) []string {
	if byline == "" {
		return nil
	}
	byline = strings.ReplaceAll(byline, " and ", ",")
	return strings.Split(byline, ",")
}

// paragraphs collapses blank-line separated text into trimmed paragraphs.
func paragraphs(text string) string {
	out := make([]string, 0)
	for _, line := range strings.Split(text, "\n") {
		if line = collapse(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n\n")
}
