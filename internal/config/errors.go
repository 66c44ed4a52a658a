package config

import "errors"

// Configuration validation errors.
// They are returned by Config.Validate, Site.Validate and SitesFile.Resolve, and
// can be matched with errors.Is. Site errors are wrapped with the site name.
var (
	// ErrConfigNotFound is returned when the sites file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrNoSites is returned when the sites file lists no site.
	ErrNoSites = errors.New("no sites configured")

	// ErrSiteNameRequired is returned when a site has no name.
	ErrSiteNameRequired = errors.New("site name is required")

	// ErrDuplicateSiteName is returned when two sites share a name.
	// The name keys the worker, the frontier namespace and the records.
	ErrDuplicateSiteName = errors.New("duplicate site name")

	// ErrInvalidBaseURL is returned when baseUrl is not an absolute http(s) URL.
	ErrInvalidBaseURL = errors.New("invalid base URL: must be an absolute http or https URL")

	// ErrExtractionRuleRequired is returned when a site names no extraction rule.
	ErrExtractionRuleRequired = errors.New("extraction rule is required")

	// ErrInvalidPolitenessDelay is returned when the politeness delay is negative.
	ErrInvalidPolitenessDelay = errors.New("invalid politeness delay: must be non-negative")

	// ErrInvalidDiscoveryAttempts is returned when maxDiscoveryAttempts is below one.
	ErrInvalidDiscoveryAttempts = errors.New("invalid max discovery attempts: must be at least 1")

	// ErrInvalidScrollIncrement is returned when scrollIncrement is below one.
	ErrInvalidScrollIncrement = errors.New("invalid scroll increment: must be at least 1")

	// ErrInvalidRenderTimeout is returned when the render timeout is not positive.
	ErrInvalidRenderTimeout = errors.New("invalid render timeout: must be positive")

	// ErrInvalidQueueOrder is returned for a queue order other than fifo or lifo.
	ErrInvalidQueueOrder = errors.New("invalid queue order: must be fifo or lifo")

	// ErrInvalidSink is returned for an unknown sink backend.
	ErrInvalidSink = errors.New("invalid sink: must be memory, sqlite or elasticsearch")

	// ErrNoDBDir is returned when the sqlite sink has no database directory.
	ErrNoDBDir = errors.New("no database directory configured for the sqlite sink")

	// ErrNoElasticAddress is returned when the elasticsearch sink has neither
	// node addresses nor a cloud id.
	ErrNoElasticAddress = errors.New("no elasticsearch address or cloud id configured")

	// ErrEmptyCollection is returned when a collection name is empty.
	ErrEmptyCollection = errors.New("collection names must not be empty")

	// ErrInvalidFrontier is returned for an unknown frontier backend.
	ErrInvalidFrontier = errors.New("invalid frontier: must be memory or redis")

	// ErrNoRedisAddress is returned when the redis frontier has no address.
	ErrNoRedisAddress = errors.New("no redis address configured")

	// ErrInvalidRenderer is returned for an unknown renderer backend.
	ErrInvalidRenderer = errors.New("invalid renderer: must be rod or http")

	// ErrInvalidRenderAttempts is returned when render attempts is not positive.
	ErrInvalidRenderAttempts = errors.New("invalid render attempts: must be positive")

	// ErrInvalidRenderBackoff is returned when a render backoff is negative.
	ErrInvalidRenderBackoff = errors.New("invalid render backoff: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidRequestRate is returned when requests per second is negative.
	ErrInvalidRequestRate = errors.New("invalid request rate: must be non-negative")

	// ErrInvalidConcurrency is returned when concurrency is negative.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be non-negative")

	// ErrInvalidLogFormat is returned for a log format other than text or json.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrInvalidReportFormat is returned for an unknown report format.
	ErrInvalidReportFormat = errors.New("invalid report format: must be text, json or markdown")
)
