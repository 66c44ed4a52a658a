package config

import (
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// Site-level defaults follow the behaviour of the original scroll crawler:
// one second between article fetches and five screens of scrolling per round.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "scrollcrawl"

	// DefaultPolitenessDelay is the pause after every article fetch.
	DefaultPolitenessDelay = 1 * time.Second

	// DefaultMaxDiscoveryAttempts is how many consecutive empty discovery
	// rounds a worker tolerates before it stops.
	DefaultMaxDiscoveryAttempts = 5

	// DefaultScrollIncrement is how many screens a listing is scrolled per
	// discovery round.
	DefaultScrollIncrement = 5

	// DefaultRenderTimeout bounds a single render attempt, readiness polling included.
	// Ad-heavy news pages regularly need more than ten seconds to settle.
	DefaultRenderTimeout = 30 * time.Second

	// DefaultRenderAttempts is the number of attempts per URL before it is dropped.
	DefaultRenderAttempts = 3

	// DefaultRenderBackoff is the delay before the second render attempt.
	// Later attempts double it up to DefaultRenderMaxBackoff.
	DefaultRenderBackoff = 2 * time.Second

	// DefaultRenderMaxBackoff caps the delay between render attempts.
	DefaultRenderMaxBackoff = 30 * time.Second

	// DefaultUserAgent identifies the crawler in HTTP requests.
	DefaultUserAgent = "scrollcrawl/1.0 (+https://github.com/nao1215/scrollcrawl)"

	// DefaultMaxBodySize limits the response body read by the static renderer.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultRequestsPerSecond caps static renderer requests per worker.
	DefaultRequestsPerSecond = 2.0

	// DefaultPagesCollection and DefaultArticlesCollection are the logical
	// collection names used by the sinks. The Elasticsearch sink maps pages
	// to the "webpages" index unless overridden.
	DefaultPagesCollection    = "pages"
	DefaultArticlesCollection = "articles"

	// DefaultRunsCollection receives one crawl report per run.
	DefaultRunsCollection = "crawl_runs"

	// DefaultMigrationTarget is the collection migrate writes to.
	DefaultMigrationTarget = "unique-articles"

	// DefaultRedisAddress is the standard local Redis address.
	DefaultRedisAddress = "127.0.0.1:6379"

	// DefaultElasticAddress is the standard local Elasticsearch address.
	DefaultElasticAddress = "http://127.0.0.1:9200"
)

// Names of the environment variables that carry credentials.
// Only the names are configuration; values are always read from the environment.
const (
	DefaultElasticPasswordEnv = "ELASTIC_PASSWORD"
	DefaultElasticAPIKeyEnv   = "ELASTIC_API_KEY"
	DefaultElasticCloudIDEnv  = "ELASTIC_CLOUD_ID"
	DefaultRedisPasswordEnv   = "REDIS_PASSWORD"
)

// Sink backends.
const (
	SinkMemory        = "memory"
	SinkSQLite        = "sqlite"
	SinkElasticsearch = "elasticsearch"
)

// Frontier queue backends.
const (
	FrontierMemory = "memory"
	FrontierRedis  = "redis"
)

// Renderer backends.
const (
	RendererRod  = "rod"
	RendererHTTP = "http"
)

// Report formats.
const (
	ReportText     = "text"
	ReportJSON     = "json"
	ReportMarkdown = "markdown"
)

// Log formats.
const (
	LogText = "text"
	LogJSON = "json"
)

// Config holds the process-level configuration of a crawl run.
// Per-site behaviour lives in Site; Config decides which backends the
// workers are wired to.
type Config struct {
	// SitesFile is the path of the YAML sites file. Empty means search the
	// default locations (see FindSitesFile).
	SitesFile string

	// Sink selects the persistence backend: memory, sqlite or elasticsearch.
	Sink string

	// DBDir is the directory of the SQLite database.
	// Defaults to the XDG data directory.
	DBDir string

	// PagesCollection, ArticlesCollection and RunsCollection name the
	// logical collections records are written to.
	PagesCollection    string
	ArticlesCollection string
	RunsCollection     string

	// ElasticAddresses lists Elasticsearch node URLs.
	ElasticAddresses []string

	// ElasticUsername is used together with the password read from ElasticPasswordEnv.
	ElasticUsername string

	// ElasticPasswordEnv, ElasticAPIKeyEnv and ElasticCloudIDEnv name the
	// environment variables holding Elasticsearch credentials.
	ElasticPasswordEnv string
	ElasticAPIKeyEnv   string
	ElasticCloudIDEnv  string

	// ElasticPassword, ElasticAPIKey and ElasticCloudID are resolved from the
	// environment by ResolveCredentials. They are never read from files or flags.
	ElasticPassword string
	ElasticAPIKey   string
	ElasticCloudID  string

	// Frontier selects the queue backend: memory or redis.
	Frontier string

	// RedisAddress is the host:port of the Redis server.
	RedisAddress string

	// RedisDB is the Redis logical database number.
	RedisDB int

	// RedisPasswordEnv names the environment variable with the Redis password.
	RedisPasswordEnv string

	// RedisPassword is resolved from the environment by ResolveCredentials.
	RedisPassword string

	// Renderer selects the page renderer: rod (headless Chrome) or http (static).
	Renderer string

	// BrowserBin is the Chrome/Chromium binary used by the rod renderer.
	// Empty lets rod locate or download a browser.
	BrowserBin string

	// BrowserControlURL connects the rod renderer to an already running
	// browser's DevTools endpoint instead of launching one per worker.
	BrowserControlURL string

	// Headless controls whether a launched browser shows a window.
	Headless bool

	// ProxyURL routes static renderer requests through a SOCKS5 proxy,
	// for example "socks5://127.0.0.1:1080".
	ProxyURL string

	// UserAgent is sent with every request.
	UserAgent string

	// MaxBodySize is the maximum response body read by the static renderer.
	MaxBodySize int64

	// RequestsPerSecond caps the static renderer's request rate per worker.
	RequestsPerSecond float64

	// RenderAttempts is the number of render attempts per URL.
	RenderAttempts int

	// RenderBackoff is the delay before the second render attempt.
	RenderBackoff time.Duration

	// RenderMaxBackoff caps the delay between render attempts.
	RenderMaxBackoff time.Duration

	// Concurrency limits how many site workers run at once. 0 runs all sites at once.
	Concurrency int

	// Verbose enables Debug logging.
	Verbose bool

	// LogFormat is text or json.
	LogFormat string

	// ReportFormat is text, json or markdown.
	ReportFormat string

	// ReportFile writes the crawl report to a file instead of stdout.
	ReportFile string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Sink:               SinkSQLite,
		DBDir:              XDGDataDir(),
		PagesCollection:    DefaultPagesCollection,
		ArticlesCollection: DefaultArticlesCollection,
		RunsCollection:     DefaultRunsCollection,
		ElasticAddresses:   []string{DefaultElasticAddress},
		ElasticPasswordEnv: DefaultElasticPasswordEnv,
		ElasticAPIKeyEnv:   DefaultElasticAPIKeyEnv,
		ElasticCloudIDEnv:  DefaultElasticCloudIDEnv,
		Frontier:           FrontierMemory,
		RedisAddress:       DefaultRedisAddress,
		RedisPasswordEnv:   DefaultRedisPasswordEnv,
		Renderer:           RendererRod,
		Headless:           true,
		UserAgent:          DefaultUserAgent,
		MaxBodySize:        DefaultMaxBodySize,
		RequestsPerSecond:  DefaultRequestsPerSecond,
		RenderAttempts:     DefaultRenderAttempts,
		RenderBackoff:      DefaultRenderBackoff,
		RenderMaxBackoff:   DefaultRenderMaxBackoff,
		LogFormat:          LogText,
		ReportFormat:       ReportText,
	}
}

// ResolveCredentials reads credential values from the environment variables
// named in the configuration. lookup is usually os.LookupEnv.
func (c *Config) ResolveCredentials(lookup func(string) (string, bool)) {
	read := func(name string) string {
		if name == "" {
			return ""
		}
		v, _ := lookup(name)
		return v
	}

	c.ElasticPassword = read(c.ElasticPasswordEnv)
	c.ElasticAPIKey = read(c.ElasticAPIKeyEnv)
	c.ElasticCloudID = read(c.ElasticCloudIDEnv)
	c.RedisPassword = read(c.RedisPasswordEnv)
}

// XDGDataDir returns the XDG data directory for scrollcrawl.
// On Linux: ~/.local/share/scrollcrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for scrollcrawl.
// On Linux: ~/.config/scrollcrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as one of the sentinel errors.
func (c *Config) Validate() error {
	if !slices.Contains([]string{SinkMemory, SinkSQLite, SinkElasticsearch}, c.Sink) {
		return ErrInvalidSink
	}
	if c.Sink == SinkSQLite && c.DBDir == "" {
		return ErrNoDBDir
	}
	if c.Sink == SinkElasticsearch && len(c.ElasticAddresses) == 0 && c.ElasticCloudID == "" {
		return ErrNoElasticAddress
	}
	if c.PagesCollection == "" || c.ArticlesCollection == "" {
		return ErrEmptyCollection
	}

	if !slices.Contains([]string{FrontierMemory, FrontierRedis}, c.Frontier) {
		return ErrInvalidFrontier
	}
	if c.Frontier == FrontierRedis && c.RedisAddress == "" {
		return ErrNoRedisAddress
	}

	if !slices.Contains([]string{RendererRod, RendererHTTP}, c.Renderer) {
		return ErrInvalidRenderer
	}
	if c.RenderAttempts <= 0 {
		return ErrInvalidRenderAttempts
	}
	if c.RenderBackoff < 0 || c.RenderMaxBackoff < 0 {
		return ErrInvalidRenderBackoff
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.RequestsPerSecond < 0 {
		return ErrInvalidRequestRate
	}

	if c.Concurrency < 0 {
		return ErrInvalidConcurrency
	}
	if !slices.Contains([]string{LogText, LogJSON}, c.LogFormat) {
		return ErrInvalidLogFormat
	}
	if !slices.Contains([]string{ReportText, ReportJSON, ReportMarkdown}, c.ReportFormat) {
		return ErrInvalidReportFormat
	}

	return nil
}
