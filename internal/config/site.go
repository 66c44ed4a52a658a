package config

import (
	"fmt"
	"maps"
	"net/url"
	"strings"
	"time"
)

// Queue orders accepted in Site.QueueOrder.
const (
	// QueueOrderFIFO dequeues the earliest discovered URL first, giving a
	// breadth-first crawl across discovery rounds.
	QueueOrderFIFO = "fifo"

	// QueueOrderLIFO dequeues the most recently discovered URL first.
	QueueOrderLIFO = "lifo"
)

// Site is the crawl configuration of one target website.
// A Site is immutable once its worker starts; one Site maps to one worker.
type Site struct {
	// Name identifies the site in logs, records and frontier keys.
	Name string `yaml:"name"`

	// BaseURL is the site root, e.g. "https://www.ign.com/".
	BaseURL string `yaml:"baseUrl"`

	// Subdirectory is joined to BaseURL to form the listing page, e.g. "news".
	Subdirectory string `yaml:"subdirectory,omitempty"`

	// AcceptPrefixes are the URL path prefixes of the article namespace.
	// When empty, the extraction rule's default prefixes apply.
	AcceptPrefixes []string `yaml:"acceptPrefixes,omitempty"`

	// ExtractionRule is the registered extraction rule id, e.g. "ign".
	ExtractionRule string `yaml:"extractionRule"`

	// PolitenessDelayMs is the pause after each article fetch.
	PolitenessDelayMs *int `yaml:"politenessDelayMs,omitempty"`

	// MaxDiscoveryAttempts is the number of consecutive empty discovery
	// rounds before the worker stops.
	MaxDiscoveryAttempts int `yaml:"maxDiscoveryAttempts,omitempty"`

	// ScrollIncrement is the number of screens scrolled per discovery round.
	ScrollIncrement int `yaml:"scrollIncrement,omitempty"`

	// DiscoveryBackoffMs is the pause after an empty discovery round.
	// When unset, the politeness delay is used.
	DiscoveryBackoffMs *int `yaml:"discoveryBackoffMs,omitempty"`

	// RenderTimeoutMs bounds each render attempt.
	RenderTimeoutMs int `yaml:"renderTimeoutMs,omitempty"`

	// QueueOrder is fifo (default) or lifo.
	QueueOrder string `yaml:"queueOrder,omitempty"`

	// RespectRobots filters discovered links through the site's robots.txt.
	RespectRobots *bool `yaml:"respectRobots,omitempty"`

	// IgnorePatterns are URL path globs that are never enqueued, even when
	// they fall inside the article namespace (e.g. "/articles/sponsored-*", "*.pdf").
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// PaginationParam is the query parameter the static renderer uses to
	// emulate scrolling, e.g. "page". Ignored by the headless renderer.
	PaginationParam string `yaml:"paginationParam,omitempty"`

	// Cookie is an HTTP cookie sent with every request to this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers sent with every request to this site.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// SitesFile represents the structure of the sites YAML file.
type SitesFile struct {
	// Defaults are applied to every site for fields the site leaves unset.
	Defaults Site `yaml:"defaults,omitempty"`

	// Sites lists the crawl targets in the order workers are reported.
	Sites []Site `yaml:"sites"`
}

// Resolve merges the defaults into every site, fills built-in defaults and
// validates the result. Names must be unique.
func (sf *SitesFile) Resolve() ([]Site, error) {
	if len(sf.Sites) == 0 {
		return nil, ErrNoSites
	}

	seen := make(map[string]struct{}, len(sf.Sites))
	sites := make([]Site, 0, len(sf.Sites))

	for _, s := range sf.Sites {
		merged := sf.Defaults.merge(s)
		merged.applyBuiltinDefaults()

		if err := merged.Validate(); err != nil {
			return nil, err
		}

		key := strings.ToLower(merged.Name)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("site %q: %w", merged.Name, ErrDuplicateSiteName)
		}
		seen[key] = struct{}{}

		sites = append(sites, merged)
	}

	return sites, nil
}

// merge returns the site with unset fields taken from d.
func (d Site) merge(s Site) Site {
	result := s

	if result.Subdirectory == "" {
		result.Subdirectory = d.Subdirectory
	}
	if len(result.AcceptPrefixes) == 0 {
		result.AcceptPrefixes = d.AcceptPrefixes
	}
	if result.ExtractionRule == "" {
		result.ExtractionRule = d.ExtractionRule
	}
	if result.PolitenessDelayMs == nil {
		result.PolitenessDelayMs = d.PolitenessDelayMs
	}
	if result.MaxDiscoveryAttempts == 0 {
		result.MaxDiscoveryAttempts = d.MaxDiscoveryAttempts
	}
	if result.ScrollIncrement == 0 {
		result.ScrollIncrement = d.ScrollIncrement
	}
	if result.DiscoveryBackoffMs == nil {
		result.DiscoveryBackoffMs = d.DiscoveryBackoffMs
	}
	if result.RenderTimeoutMs == 0 {
		result.RenderTimeoutMs = d.RenderTimeoutMs
	}
	if result.QueueOrder == "" {
		result.QueueOrder = d.QueueOrder
	}
	if result.RespectRobots == nil {
		result.RespectRobots = d.RespectRobots
	}
	if len(result.IgnorePatterns) == 0 {
		result.IgnorePatterns = d.IgnorePatterns
	}
	if result.PaginationParam == "" {
		result.PaginationParam = d.PaginationParam
	}
	if result.Cookie == "" {
		result.Cookie = d.Cookie
	}

	if len(d.Headers) > 0 {
		headers := make(map[string]string, len(d.Headers)+len(s.Headers))
		maps.Copy(headers, d.Headers)
		maps.Copy(headers, s.Headers)
		result.Headers = headers
	}

	return result
}

// applyBuiltinDefaults fills fields that neither the site nor the defaults set.
func (s *Site) applyBuiltinDefaults() {
	if s.PolitenessDelayMs == nil {
		ms := int(DefaultPolitenessDelay / time.Millisecond)
		s.PolitenessDelayMs = &ms
	}
	if s.MaxDiscoveryAttempts == 0 {
		s.MaxDiscoveryAttempts = DefaultMaxDiscoveryAttempts
	}
	if s.ScrollIncrement == 0 {
		s.ScrollIncrement = DefaultScrollIncrement
	}
	if s.RenderTimeoutMs == 0 {
		s.RenderTimeoutMs = int(DefaultRenderTimeout / time.Millisecond)
	}
	if s.QueueOrder == "" {
		s.QueueOrder = QueueOrderFIFO
	}
	s.QueueOrder = strings.ToLower(s.QueueOrder)
}

// Validate checks a single resolved site.
func (s *Site) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrSiteNameRequired
	}

	wrap := func(err error) error {
		return fmt.Errorf("site %q: %w", s.Name, err)
	}

	u, err := url.Parse(s.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return wrap(ErrInvalidBaseURL)
	}
	if s.ExtractionRule == "" {
		return wrap(ErrExtractionRuleRequired)
	}
	if s.PolitenessDelayMs != nil && *s.PolitenessDelayMs < 0 {
		return wrap(ErrInvalidPolitenessDelay)
	}
	if s.DiscoveryBackoffMs != nil && *s.DiscoveryBackoffMs < 0 {
		return wrap(ErrInvalidPolitenessDelay)
	}
	if s.MaxDiscoveryAttempts < 1 {
		return wrap(ErrInvalidDiscoveryAttempts)
	}
	if s.ScrollIncrement < 1 {
		return wrap(ErrInvalidScrollIncrement)
	}
	if s.RenderTimeoutMs <= 0 {
		return wrap(ErrInvalidRenderTimeout)
	}
	if s.QueueOrder != QueueOrderFIFO && s.QueueOrder != QueueOrderLIFO {
		return wrap(ErrInvalidQueueOrder)
	}

	return nil
}

// PolitenessDelay returns the pause after each article fetch.
func (s *Site) PolitenessDelay() time.Duration {
	if s.PolitenessDelayMs == nil {
		return DefaultPolitenessDelay
	}
	return time.Duration(*s.PolitenessDelayMs) * time.Millisecond
}

// DiscoveryBackoff returns the pause after an empty discovery round.
func (s *Site) DiscoveryBackoff() time.Duration {
	if s.DiscoveryBackoffMs == nil {
		return s.PolitenessDelay()
	}
	return time.Duration(*s.DiscoveryBackoffMs) * time.Millisecond
}

// RenderTimeout returns the deadline of a single render attempt.
func (s *Site) RenderTimeout() time.Duration {
	if s.RenderTimeoutMs <= 0 {
		return DefaultRenderTimeout
	}
	return time.Duration(s.RenderTimeoutMs) * time.Millisecond
}

// ObeysRobots reports whether robots.txt filtering is enabled.
func (s *Site) ObeysRobots() bool {
	return s.RespectRobots != nil && *s.RespectRobots
}

// ListingURL returns BaseURL joined with Subdirectory.
func (s *Site) ListingURL() (string, error) {
	base, err := url.Parse(s.BaseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse base URL: %w", err)
	}
	if s.Subdirectory == "" {
		return base.String(), nil
	}
	return base.JoinPath(s.Subdirectory).String(), nil
}

// Host returns the lowercase host of BaseURL.
func (s *Site) Host() string {
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
