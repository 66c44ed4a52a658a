package adapter

import (
	"errors"
	"fmt"
)

// Sentinel errors for adapter resolution.
var (
	// ErrUnknownRule is returned by New when no rule is registered under the
	// site's extraction rule id.
	ErrUnknownRule = errors.New("unknown extraction rule")

	// ErrNilDocument is returned when extraction is attempted on a nil document.
	ErrNilDocument = errors.New("nil document")
)

// Reasons carried by ExtractionError.
const (
	// ReasonMissing means a mandatory field was not found on the page.
	ReasonMissing = "missing"

	// ReasonIllFormed means a mandatory field was found but could not be parsed.
	ReasonIllFormed = "ill-formed"

	// ReasonUnparsable means the document itself could not be read.
	ReasonUnparsable = "unparsable"
)

// ExtractionError reports that a rendered document is not a readable article.
// No partial record accompanies it: the worker treats the document as a
// listing page instead.
type ExtractionError struct {
	// URL is the document that failed.
	URL string

	// Field is the article field that failed, empty for document-level failures.
	Field string

	// Reason is one of ReasonMissing, ReasonIllFormed or ReasonUnparsable.
	Reason string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements error.
func (e *ExtractionError) Error() string {
	msg := "extraction failed for " + e.URL
	if e.Field != "" {
		msg += fmt.Sprintf(": %s %s", e.Field, e.Reason)
	} else if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// IsExtractionError reports whether err is or wraps an *ExtractionError.
func IsExtractionError(err error) bool {
	var target *ExtractionError
	return errors.As(err, &target)
}

func missing(rawURL, field string) *ExtractionError {
	return &ExtractionError{URL: rawURL, Field: field, Reason: ReasonMissing}
}

func illFormed(rawURL, field string, err error) *ExtractionError {
	return &ExtractionError{URL: rawURL, Field: field, Reason: ReasonIllFormed, Err: err}
}
