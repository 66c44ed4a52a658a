package crawler

import "errors"

var (
	// ErrFrontierExhausted marks the normal end of a worker: the configured
	// number of consecutive discovery rounds found nothing new. It is what
	// Worker.Reason reports after Run returned nil; Run never returns it.
	ErrFrontierExhausted = errors.New("frontier exhausted")

	// ErrResourceAcquisition wraps failures to acquire rendering resources
	// when a worker starts. It is the only error that marks a site as failed.
	ErrResourceAcquisition = errors.New("failed to acquire crawl resources")

	// ErrWorkerStarted is returned when Run is called twice on the same worker.
	ErrWorkerStarted = errors.New("worker already started")
)
