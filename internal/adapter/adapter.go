package adapter

import (
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/nao1215/scrollcrawl/internal/config"
	"github.com/nao1215/scrollcrawl/internal/model"
)

// Adapter is the ruleset of one crawl target.
// Implementations are stateless and safe to call from a single worker
// for the lifetime of a crawl.
type Adapter interface {
	// Name returns the site name the adapter was built for.
	Name() string

	// Accepts reports whether a raw href belongs to the site's article namespace.
	Accepts(href string) bool

	// Normalize converts a relative or absolute href into the canonical
	// absolute URL used as frontier entry and page record id.
	Normalize(href, base string) (string, error)

	// ExtractArticle reads an article from a rendered document. It returns an
	// *ExtractionError, never a partial record, when a mandatory field is
	// absent or ill-formed.
	ExtractArticle(doc *model.RenderedDocument) (*model.ArticleRecord, error)
}

// Factory builds an Adapter for a site.
type Factory func(site config.Site) (Adapter, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a rule available under id. It panics if id is empty, the
// factory is nil, or id is already registered.
func Register(id string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		panic("adapter: Register with empty rule id")
	}
	if factory == nil {
		panic("adapter: Register factory is nil for " + id)
	}
	if _, dup := registry[id]; dup {
		panic("adapter: Register called twice for " + id)
	}
	registry[id] = factory
}

// New resolves the site's extraction rule and builds its Adapter.
func New(site config.Site) (Adapter, error) {
	id := strings.ToLower(strings.TrimSpace(site.ExtractionRule))

	registryMu.RLock()
	factory, ok := registry[id]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("site %q: %w: %q", site.Name, ErrUnknownRule, site.ExtractionRule)
	}

	a, err := factory(site)
	if err != nil {
		return nil, fmt.Errorf("failed to build %q adapter for site %q: %w", id, site.Name, err)
	}
	return a, nil
}

// Rules returns the registered rule ids in sorted order.
func Rules() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// namespace implements Name, Accepts and Normalize for rules that recognise
// articles by host and path prefix. Rules embed it.
type namespace struct {
	site     string
	host     string
	origin   string
	prefixes []string
}

// newNamespace builds the namespace of a site. The site's accept prefixes win
// over the rule defaults.
func newNamespace(site config.Site, defaultPrefixes []string) (namespace, error) {
	base, err := url.Parse(site.BaseURL)
	if err != nil || base.Host == "" {
		return namespace{}, fmt.Errorf("invalid base URL %q", site.BaseURL)
	}

	prefixes := site.AcceptPrefixes
	if len(prefixes) == 0 {
		prefixes = defaultPrefixes
	}

	cleaned := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		cleaned = append(cleaned, p)
	}

	return namespace{
		site:     site.Name,
		host:     canonicalHost(base.Hostname()),
		origin:   strings.ToLower(base.Host),
		prefixes: slices.Clip(cleaned),
	}, nil
}

// Name returns the site name.
func (n namespace) Name() string {
	return n.site
}

// Accepts reports whether href points into the site's article namespace.
// Relative hrefs must be root-relative. Absolute hrefs must be on the site
// host; "www." is ignored when comparing hosts.
func (n namespace) Accepts(href string) bool {
	href = strings.TrimSpace(href)
	if isIgnorableHref(href) {
		return false
	}

	u, err := url.Parse(href)
	if err != nil {
		return false
	}

	switch {
	case u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https":
		return false
	case u.Host != "":
		if canonicalHost(u.Hostname()) != n.host {
			return false
		}
	case !strings.HasPrefix(u.Path, "/"):
		return false
	}

	if len(n.prefixes) == 0 {
		return u.Path != "" && u.Path != "/"
	}
	for _, p := range n.prefixes {
		if strings.HasPrefix(u.Path, p) {
			return true
		}
	}
	return false
}

// Normalize resolves href against base and canonicalizes it. Links to the
// site host with or without "www." are rewritten to the host of the base URL,
// so both spellings of an article map to one URL.
func (n namespace) Normalize(href, base string) (string, error) {
	normalized, err := Normalize(href, base)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(normalized)
	if err != nil {
		return "", fmt.Errorf("failed to parse normalized URL: %w", err)
	}
	if u.Host == n.origin || canonicalHost(u.Host) != canonicalHost(n.origin) {
		return normalized, nil
	}
	u.Host = n.origin
	return u.String(), nil
}

// canonicalHost lowercases a host and strips a leading "www.".
func canonicalHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
