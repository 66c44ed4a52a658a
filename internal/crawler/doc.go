// Package crawler implements the per-site crawl worker.
//
// # State machine
//
// A Worker starts in StateDiscovering. A discovery round renders the site's
// listing page (the first round loads it, every round scrolls it further),
// extracts the links the site adapter accepts and offers them to the
// frontier. A round that adds at least one URL moves the worker to
// StateDraining; an empty round pauses for the discovery backoff, and after
// Site.MaxDiscoveryAttempts empty rounds in a row the worker is
// StateExhausted and stops.
//
// While draining, the worker pops one URL at a time, renders it and runs the
// adapter's article extraction:
//   - success: the page and article records are upserted to the sink
//   - ExtractionError: the page is treated as a listing and its links are
//     offered to the frontier, no record is written
//   - RenderError after all retries: the URL is dropped and never requeued
//
// The politeness delay follows every article fetch. An empty frontier sends
// the worker back to discovery.
//
// # Resources
//
// Run opens two render sessions, one for the listing and one for articles,
// and closes both on every exit path. Cancellation is checked between steps;
// a render in flight finishes or times out first.
//
// # Usage
//
//	w := crawler.NewWorker(site, adapter, frontier, sink, provider,
//		crawler.WithRunID(runID), crawler.WithLogger(logger))
//	if err := w.Run(ctx); err != nil {
//		// ctx cancelled or ErrResourceAcquisition
//	}
//	stats := w.Stats()
package crawler
