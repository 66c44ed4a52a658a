package adapter

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/nao1215/scrollcrawl/internal/model"
)

// fallbackLayouts cover site formats dateparse does not detect.
var fallbackLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"Jan. 2, 2006",
	"Mon, January 2, 2006",
	"Monday, January 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"2 Jan. 2006",
}

// Date fragments embedded in longer text such as
// "Published Jan 5, 2024 3:00pm" or "Updated: 2024-01-05 | 4 min read".
var (
	isoDateFragment   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	monthDateFragment = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2},\s+\d{4}`)
	dayMonthFragment  = regexp.MustCompile(`(?i)\b\d{1,2}\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{4}`)

	// "Sept" is not a month abbreviation time.Parse knows; "September" stays.
	septWord = regexp.MustCompile(`(?i)\bsept\b`)
)

var errUnrecognizedDate = errors.New("unrecognized date format")

// parseDate parses a publish date and returns it in model.DateLayout.
func parseDate(s string) (string, error) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "", errUnrecognizedDate
	}

	if t, ok := parseAny(s); ok {
		return t.Format(model.DateLayout), nil
	}

	for _, re := range []*regexp.Regexp{isoDateFragment, monthDateFragment, dayMonthFragment} {
		if fragment := re.FindString(s); fragment != "" {
			if t, ok := parseAny(fragment); ok {
				return t.Format(model.DateLayout), nil
			}
		}
	}

	return "", errUnrecognizedDate
}

func parseAny(s string) (time.Time, bool) {
	s = septWord.ReplaceAllString(s, "Sep")
	if t, err := dateparse.ParseAny(s); err == nil {
		return t, true
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
