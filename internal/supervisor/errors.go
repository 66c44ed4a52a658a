package supervisor

import "errors"

var (
	// ErrNoSites is returned by Run when there is nothing to crawl.
	ErrNoSites = errors.New("no sites to crawl")

	// ErrUnknownBackend is returned by the factory when the configuration
	// names a sink, frontier or renderer it cannot build.
	ErrUnknownBackend = errors.New("unknown backend")
)
