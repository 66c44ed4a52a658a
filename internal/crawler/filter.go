package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/temoto/robotstxt"
)

// maxRobotsSize caps how much of a robots.txt is read.
const maxRobotsSize = 512 * 1024

// RobotsPolicy answers whether a URL may be fetched according to a site's robots.txt.
type RobotsPolicy struct {
	data  *robotstxt.RobotsData
	agent string
	group *robotstxt.Group
}

// FetchRobots downloads and parses <baseURL>/robots.txt for agent.
// A missing file (4xx) allows everything; a 5xx answer disallows everything,
// following the robots exclusion protocol.
func FetchRobots(ctx context.Context, client *http.Client, baseURL, agent string) (*RobotsPolicy, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	robotsURL := base.ResolveReference(&url.URL{Path: "/robots.txt"})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create robots.txt request: %w", err)
	}
	req.Header.Set("User-Agent", agent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read robots.txt: %w", err)
	}

	return ParseRobots(resp.StatusCode, body, agent)
}

// ParseRobots builds a policy from a robots.txt response.
func ParseRobots(status int, body []byte, agent string) (*RobotsPolicy, error) {
	data, err := robotstxt.FromStatusAndBytes(status, body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse robots.txt: %w", err)
	}
	token := productToken(agent)
	return &RobotsPolicy{data: data, agent: token, group: data.FindGroup(token)}, nil
}

// Allowed reports whether rawURL may be fetched.
func (p *RobotsPolicy) Allowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	// TestAgent honours the allow-all and disallow-all answers derived
	// from the status code, which the group alone does not.
	return p.data.TestAgent(u.RequestURI(), p.agent)
}

// CrawlDelay returns the Crawl-delay the site asks for, or zero.
func (p *RobotsPolicy) CrawlDelay() time.Duration {
	return p.group.CrawlDelay
}

// productToken returns the agent name robots.txt groups are matched on:
// "scrollcrawl/1.0 (+https://...)" becomes "scrollcrawl".
func productToken(agent string) string {
	token, _, _ := strings.Cut(agent, "/")
	token, _, _ = strings.Cut(token, " ")
	return token
}

// LinkFilter drops discovered links before they reach the frontier.
// A nil *LinkFilter allows everything.
type LinkFilter struct {
	robots         *RobotsPolicy
	ignorePatterns []string
}

// NewLinkFilter combines an optional robots policy with path globs that are
// never crawled. It returns nil when there is nothing to filter.
func NewLinkFilter(robots *RobotsPolicy, ignorePatterns []string) *LinkFilter {
	if robots == nil && len(ignorePatterns) == 0 {
		return nil
	}
	return &LinkFilter{robots: robots, ignorePatterns: ignorePatterns}
}

// CrawlDelay returns the robots.txt Crawl-delay, or zero.
func (f *LinkFilter) CrawlDelay() time.Duration {
	if f == nil || f.robots == nil {
		return 0
	}
	return f.robots.CrawlDelay()
}

// Filter returns the links that pass, keeping their order.
func (f *LinkFilter) Filter(links []string) []string {
	if f == nil {
		return links
	}
	kept := links[:0:0]
	for _, link := range links {
		if f.Allow(link) {
			kept = append(kept, link)
		}
	}
	return kept
}

// Allow reports whether a single link passes.
func (f *LinkFilter) Allow(rawURL string) bool {
	if f == nil {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range f.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if f.robots != nil && !f.robots.Allowed(rawURL) {
		return false
	}
	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//
// Examples:
//   - "/video/*" matches "/video/trailer", "/video/clips"
//   - "*.pdf" matches "/press/kit.pdf"
//   - "/articles/sponsored-*" matches "/articles/sponsored-deal"
func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(path, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err == nil && matched {
		return true
	}

	// Patterns without a slash also match the last path segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
	}

	return false
}
