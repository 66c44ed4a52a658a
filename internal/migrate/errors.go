package migrate

import "errors"

var (
	// ErrSameCollection is returned when source and target collection are equal.
	ErrSameCollection = errors.New("source and target collection must differ")

	// ErrScanUnsupported is returned when the sink cannot list a collection.
	ErrScanUnsupported = errors.New("sink does not support scanning collections")

	// errMissingIdentity marks a stored record without site, headline or date.
	errMissingIdentity = errors.New("record has no site, headline or date")
)
