package model

import (
	"time"

	"github.com/google/uuid"
)

// SiteStatus is the terminal status of one site's worker.
type SiteStatus string

const (
	// SiteStatusExhausted means the worker ran out of new links after its
	// discovery budget. This is the normal way for a crawl to end.
	SiteStatusExhausted SiteStatus = "exhausted"

	// SiteStatusFailed means the worker could not start, typically because
	// the renderer or the sink was unavailable.
	SiteStatusFailed SiteStatus = "failed"

	// SiteStatusCancelled means the crawl was stopped from outside.
	SiteStatusCancelled SiteStatus = "cancelled"
)

// String returns the status name.
func (s SiteStatus) String() string {
	return string(s)
}

// CrawlStats are the counters a worker keeps while it runs.
type CrawlStats struct {
	DiscoveryRounds    int `json:"discovery_rounds"`
	EmptyRounds        int `json:"empty_rounds"`
	LinksEnqueued      int `json:"links_enqueued"`
	PagesFetched       int `json:"pages_fetched"`
	ArticlesWritten    int `json:"articles_written"`
	ExtractionFailures int `json:"extraction_failures"`
	RenderDrops        int `json:"render_drops"`
	WriteFailures      int `json:"write_failures"`
}

// Add accumulates other into s.
func (s *CrawlStats) Add(other CrawlStats) {
	s.DiscoveryRounds += other.DiscoveryRounds
	s.EmptyRounds += other.EmptyRounds
	s.LinksEnqueued += other.LinksEnqueued
	s.PagesFetched += other.PagesFetched
	s.ArticlesWritten += other.ArticlesWritten
	s.ExtractionFailures += other.ExtractionFailures
	s.RenderDrops += other.RenderDrops
	s.WriteFailures += other.WriteFailures
}

// SiteResult is the outcome of crawling one site.
type SiteResult struct {
	// Site is the configured site name.
	Site string `json:"site"`

	// Status is the terminal status.
	Status SiteStatus `json:"status"`

	// Error describes why the site failed or was cancelled.
	Error string `json:"error,omitempty"`

	// Stats are the worker counters at exit.
	Stats CrawlStats `json:"stats"`

	// StartedAt and FinishedAt bound the worker's lifetime.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration returns how long the worker ran.
func (r *SiteResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// CrawlReport aggregates the results of one crawl run across all sites.
type CrawlReport struct {
	// RunID is a random identifier of the run, also stamped on page records.
	RunID string `json:"run_id"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Sites holds one result per configured site, in configuration order.
	Sites []SiteResult `json:"sites"`
}

// NewCrawlReport creates an empty report with a fresh run id.
func NewCrawlReport() *CrawlReport {
	return &CrawlReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Sites:     make([]SiteResult, 0),
	}
}

// ID returns the record id in the crawl runs collection.
func (r *CrawlReport) ID() string {
	return r.RunID
}

// Totals sums the stats of every site.
func (r *CrawlReport) Totals() CrawlStats {
	var total CrawlStats
	for _, s := range r.Sites {
		total.Add(s.Stats)
	}
	return total
}

// CountByStatus returns how many sites ended with the given status.
func (r *CrawlReport) CountByStatus(status SiteStatus) int {
	n := 0
	for _, s := range r.Sites {
		if s.Status == status {
			n++
		}
	}
	return n
}

// HasFailures reports whether any site failed to start.
func (r *CrawlReport) HasFailures() bool {
	return r.CountByStatus(SiteStatusFailed) > 0
}
