package adapter

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/nao1215/scrollcrawl/internal/config"
	"github.com/nao1215/scrollcrawl/internal/model"
)

const ignArticleHTML = `<html><head><title>Elden Ring Review - IGN</title></head><body>
<h1>  Elden Ring   Review </h1>
<time datetime="2022-02-23T16:00:00-08:00">Feb 23, 2022 4:00pm</time>
<a class="author" href="/person/mitchell">Mitchell Saltzman</a>
<a class="author" href="/person/mitchell">Mitchell  Saltzman</a>
<a href="/topic/rpg">RPG</a><a href="/topic/fromsoftware">FromSoftware</a>
<article>
  <p>Elden Ring is a masterpiece.</p>
  <script>track()</script>
  <figure><figcaption>caption</figcaption></figure>
  <p>It is  also very hard.</p>
</article>
</body></html>`

// TestSelectorRule_ExtractArticle tests the IGN selector rule.
func TestSelectorRule_ExtractArticle(t *testing.T) {
	t.Parallel()

	a := newTestAdapter(t, ignSite())
	doc := model.NewRenderedDocument("https://www.ign.com/articles/elden-ring-review", ignArticleHTML)

	got, err := a.ExtractArticle(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Site != "IGN" {
		t.Errorf("expected site IGN, got %q", got.Site)
	}
	if got.Headline != "Elden Ring Review" {
		t.Errorf("expected collapsed headline, got %q", got.Headline)
	}
	if got.Date != "2022-02-23" {
		t.Errorf("expected date from datetime attribute, got %q", got.Date)
	}
	if !slices.Equal(got.Authors, []string{"Mitchell Saltzman"}) {
		t.Errorf("expected deduplicated author, got %v", got.Authors)
	}
	if !slices.Equal(got.Topics, []string{"RPG", "FromSoftware"}) {
		t.Errorf("expected topics in page order, got %v", got.Topics)
	}
	if got.Body != "Elden Ring is a masterpiece.\n\nIt is also very hard." {
		t.Errorf("unexpected body %q", got.Body)
	}
	if strings.Contains(got.Body, "track()") || strings.Contains(got.Body, "caption") {
		t.Errorf("expected scripts and figures removed, got %q", got.Body)
	}
	if got.URL != doc.URL {
		t.Errorf("expected URL %q, got %q", doc.URL, got.URL)
	}
	if got.ID() != model.ArticleID("IGN", "Elden Ring Review", "2022-02-23") {
		t.Error("expected id derived from site, headline and date")
	}
}

// TestSelectorRule_ExtractionErrors tests that incomplete pages fail without a record.
func TestSelectorRule_ExtractionErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		html       string
		wantField  string
		wantReason string
	}{
		{
			name:       "listing page has no headline",
			html:       `<html><body><a href="/articles/x">x</a></body></html>`,
			wantField:  FieldHeadline,
			wantReason: ReasonMissing,
		},
		{
			name:       "no date",
			html:       `<h1>Title</h1><a class="author">A</a><article><p>Body</p></article>`,
			wantField:  FieldDate,
			wantReason: ReasonMissing,
		},
		{
			name:       "unparseable date",
			html:       `<h1>Title</h1><time>sometime last week</time><a class="author">A</a><article><p>Body</p></article>`,
			wantField:  FieldDate,
			wantReason: ReasonIllFormed,
		},
		{
			name:       "author required by rule",
			html:       `<h1>Title</h1><time datetime="2024-01-05">Jan 5</time><article><p>Body</p></article>`,
			wantField:  FieldAuthors,
			wantReason: ReasonMissing,
		},
		{
			name:       "no body",
			html:       `<h1>Title</h1><time datetime="2024-01-05">Jan 5</time><a class="author">A</a>`,
			wantField:  FieldBody,
			wantReason: ReasonMissing,
		},
	}

	a := newTestAdapter(t, ignSite())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			doc := model.NewRenderedDocument("https://www.ign.com/articles/c", tt.html)
			got, err := a.ExtractArticle(doc)
			if got != nil {
				t.Errorf("expected no record, got %+v", got)
			}

			var extErr *ExtractionError
			if !errors.As(err, &extErr) {
				t.Fatalf("expected *ExtractionError, got %v", err)
			}
			if extErr.Field != tt.wantField || extErr.Reason != tt.wantReason {
				t.Errorf("expected %s %s, got %s %s", tt.wantField, tt.wantReason, extErr.Field, extErr.Reason)
			}
			if extErr.URL != doc.URL {
				t.Errorf("expected URL %q, got %q", doc.URL, extErr.URL)
			}
			if !IsExtractionError(err) {
				t.Error("expected IsExtractionError to report true")
			}
		})
	}
}

// TestSelectorRule_MetaFallbacks tests meta tag fallbacks.
func TestSelectorRule_MetaFallbacks(t *testing.T) {
	t.Parallel()

	a := newTestAdapter(t, config.Site{
		Name:           "PC Gamer",
		BaseURL:        "https://www.pcgamer.com/",
		ExtractionRule: RulePCGamer,
	})

	html := `<html><head>
<meta property="og:title" content="Best GPUs">
<meta property="article:published_time" content="2024-03-10T09:00:00Z">
<meta name="author" content="Jacob Ridley">
</head><body><div id="article-body"><p>Buy one.</p></div></body></html>`

	got, err := a.ExtractArticle(model.NewRenderedDocument("https://www.pcgamer.com/hardware/best-gpus", html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Headline != "Best GPUs" {
		t.Errorf("expected og:title headline, got %q", got.Headline)
	}
	if got.Date != "2024-03-10" {
		t.Errorf("expected meta date, got %q", got.Date)
	}
	if !slices.Equal(got.Authors, []string{"Jacob Ridley"}) {
		t.Errorf("expected meta author, got %v", got.Authors)
	}
	if got.Topics == nil {
		t.Error("expected non-nil topics")
	}
}

// TestReadabilityRule_ExtractArticle tests the generic rule.
func TestReadabilityRule_ExtractArticle(t *testing.T) {
	t.Parallel()

	a := newTestAdapter(t, config.Site{
		Name:           "Blog",
		BaseURL:        "https://blog.example.com/",
		ExtractionRule: RuleReadability,
	})

	paragraph := "The crawler walks every listing page and follows each article link it finds along the way. "
	html := `<html><head><title>Crawling Infinite Feeds</title>
<meta property="article:published_time" content="2023-11-02T08:30:00Z">
<meta property="article:tag" content="Go">
<meta property="article:tag" content="crawling">
</head><body><div id="main"><h1>Crawling Infinite Feeds</h1>
<p>` + strings.Repeat(paragraph, 5) + `</p>
<p>` + strings.Repeat(paragraph, 5) + `</p>
</div></body></html>`

	t.Run("extracts article", func(t *testing.T) {
		t.Parallel()

		got, err := a.ExtractArticle(model.NewRenderedDocument("https://blog.example.com/2023/crawling", html))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Headline == "" {
			t.Error("expected headline")
		}
		if got.Date != "2023-11-02" {
			t.Errorf("expected 2023-11-02, got %q", got.Date)
		}
		if !strings.Contains(got.Body, "follows each article link") {
			t.Errorf("expected body text, got %q", got.Body)
		}
		if !slices.Equal(got.Topics, []string{"Go", "crawling"}) {
			t.Errorf("expected meta topics, got %v", got.Topics)
		}
	})

	t.Run("missing date", func(t *testing.T) {
		t.Parallel()

		noDate := strings.Replace(html, `<meta property="article:published_time" content="2023-11-02T08:30:00Z">`, "", 1)
		_, err := a.ExtractArticle(model.NewRenderedDocument("https://blog.example.com/2023/crawling", noDate))

		var extErr *ExtractionError
		if !errors.As(err, &extErr) || extErr.Field != FieldDate {
			t.Errorf("expected missing date, got %v", err)
		}
	})
}

// TestParseDate tests the accepted date formats.
func TestParseDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "2024-01-05", want: "2024-01-05"},
		{in: "2024-01-05T10:00:00Z", want: "2024-01-05"},
		{in: "2024-01-05T23:30:00-08:00", want: "2024-01-05"},
		{in: "2024-01-05T10:00:00.123Z", want: "2024-01-05"},
		{in: "January 5, 2024", want: "2024-01-05"},
		{in: "Jan 5, 2024", want: "2024-01-05"},
		{in: "Published Jan 5, 2024 3:00pm", want: "2024-01-05"},
		{in: "Sept. 9, 2023", want: "2023-09-09"},
		{in: "Published Sept 5, 2024 3:00pm", want: "2024-09-05"},
		{in: "September 5, 2024", want: "2024-09-05"},
		{in: "Published September 5, 2024 3:00pm", want: "2024-09-05"},
		{in: "Updated 5 September 2024 | 4 min", want: "2024-09-05"},
		{in: "Monday, September 2, 2024", want: "2024-09-02"},
		{in: "2024-09-05 08:15:00", want: "2024-09-05"},
		{in: "5 January 2024", want: "2024-01-05"},
		{in: "Updated: 2024-01-05 | 4 min read", want: "2024-01-05"},
		{in: "Fri, 05 Jan 2024 10:00:00 +0000", want: "2024-01-05"},
		{in: "  ", wantErr: true},
		{in: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := parseDate(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestExtractionError_Error tests the error message.
func TestExtractionError_Error(t *testing.T) {
	t.Parallel()

	cause := errors.New("bad layout")
	err := &ExtractionError{URL: "https://x.com/a", Field: FieldDate, Reason: ReasonIllFormed, Err: cause}

	if !strings.Contains(err.Error(), "date ill-formed") {
		t.Errorf("expected field and reason in message, got %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("expected Unwrap to expose the cause")
	}
}
