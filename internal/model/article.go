package model

import (
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DateLayout is the canonical layout of ArticleRecord.Date.
const DateLayout = "2006-01-02"

// idFieldSeparator joins the identity fields before hashing so that
// ("ab", "c") and ("a", "bc") never collide.
const idFieldSeparator = "\x1f"

// ArticleRecord is a structured article extracted from a rendered page.
//
// Identity is ArticleID(Site, Headline, Date). Body, authors and topics do not
// take part in the identity, so re-extracting an article that was edited
// overwrites the stored record instead of creating a second one.
type ArticleRecord struct {
	// Site is the configured site name.
	Site string `json:"site"`

	// Headline is the article title.
	Headline string `json:"headline"`

	// Date is the publish date in DateLayout.
	Date string `json:"date"`

	// Authors are listed in byline order.
	Authors []string `json:"authors"`

	// Body is the article text with paragraphs separated by blank lines.
	Body string `json:"body"`

	// Topics are listed in page order.
	Topics []string `json:"topics"`

	// URL is the page the article was extracted from.
	URL string `json:"url,omitempty"`

	// ExtractedAt is when the extraction happened.
	ExtractedAt time.Time `json:"extracted_at"`
}

// ID returns the deterministic id of the article.
func (a *ArticleRecord) ID() string {
	return ArticleID(a.Site, a.Headline, a.Date)
}

// ArticleID returns the deterministic id for the identity triple.
//
// Each field is NFKC-normalized, case-folded and stripped of all whitespace
// before hashing with SHA3-256. Cosmetic differences between two renders of the
// same page (non-breaking spaces, doubled spaces, capitalization of the site
// name) therefore map to the same id.
func ArticleID(site, headline, date string) string {
	key := strings.Join([]string{
		identityField(site),
		identityField(headline),
		identityField(date),
	}, idFieldSeparator)

	sum := sha3.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// identityField canonicalizes one identity field.
func identityField(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), "")
}

// NormalizeList trims every entry, collapses inner whitespace and removes empty
// entries and case-insensitive duplicates. The first spelling wins and order is kept.
func NormalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	folder := cases.Fold()

	for _, v := range values {
		v = strings.Join(strings.Fields(norm.NFKC.String(v)), " ")
		if v == "" {
			continue
		}
		key := folder.String(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}

	return out
}
