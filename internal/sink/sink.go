package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrEmptyCollection is returned when a collection name is empty.
	ErrEmptyCollection = errors.New("collection name is required")

	// ErrEmptyID is returned when a record id is empty.
	ErrEmptyID = errors.New("record id is required")

	// ErrClosed is returned by operations on a closed sink.
	ErrClosed = errors.New("sink is closed")

	// ErrNotFound is returned by Get when no record has the id.
	ErrNotFound = errors.New("record not found")
)

// Sink is the persistence contract consumed by crawl workers.
type Sink interface {
	// Upsert stores record under id, replacing any previous record.
	// Failures are returned as *WriteError.
	Upsert(ctx context.Context, collection, id string, record any) error

	// Exists reports whether a record with id is stored. The answer may be
	// stale for backends with eventual visibility.
	Exists(ctx context.Context, collection, id string) (bool, error)

	// Close releases the sink's connections.
	Close() error
}

// Scanner iterates over every record of a collection.
// Iteration stops at the first error returned by fn.
type Scanner interface {
	Scan(ctx context.Context, collection string, fn func(id string, doc json.RawMessage) error) error
}

// WriteError reports a failed upsert.
type WriteError struct {
	Collection string
	ID         string
	Err        error
}

// Error implements error.
func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write %s/%s: %v", e.Collection, e.ID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *WriteError) Unwrap() error {
	return e.Err
}

// IsWriteError reports whether err is or wraps a *WriteError.
func IsWriteError(err error) bool {
	var target *WriteError
	return errors.As(err, &target)
}

// encode validates the key and marshals record for storage.
func encode(collection, id string, record any) ([]byte, error) {
	if collection == "" {
		return nil, &WriteError{Collection: collection, ID: id, Err: ErrEmptyCollection}
	}
	if id == "" {
		return nil, &WriteError{Collection: collection, ID: id, Err: ErrEmptyID}
	}

	body, err := json.Marshal(record)
	if err != nil {
		return nil, &WriteError{Collection: collection, ID: id, Err: fmt.Errorf("failed to encode record: %w", err)}
	}
	return body, nil
}

// PageIndex answers frontier dedup checks from the pages collection.
type PageIndex struct {
	sink       Sink
	collection string
}

// NewPageIndex creates a PageIndex over collection of s.
func NewPageIndex(s Sink, collection string) *PageIndex {
	return &PageIndex{sink: s, collection: collection}
}

// Exists reports whether a page record with the URL is stored.
func (p *PageIndex) Exists(ctx context.Context, url string) (bool, error) {
	return p.sink.Exists(ctx, p.collection, url)
}

// NopCloser returns s with a Close that does nothing, for a sink shared by
// several workers and closed once by its owner. A Scanner stays a Scanner.
func NopCloser(s Sink) Sink {
	if scanner, ok := s.(Scanner); ok {
		return nopScanCloser{nopCloser{s}, scanner}
	}
	return nopCloser{s}
}

type nopCloser struct {
	Sink
}

func (nopCloser) Close() error { return nil }

type nopScanCloser struct {
	nopCloser
	Scanner
}
