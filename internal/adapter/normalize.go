package adapter

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// trackingParams are query parameters that never change page content.
var trackingParams = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"gclsrc":  {},
	"dclid":   {},
	"msclkid": {},
	"mc_cid":  {},
	"mc_eid":  {},
}

var errNotAbsolute = errors.New("normalized URL is not absolute")

// Normalize resolves href against base and returns the canonical absolute URL:
// lowercase scheme and host, no fragment, no tracking parameters, and the
// remaining query parameters sorted by key.
func Normalize(href, base string) (string, error) {
	href = strings.TrimSpace(href)
	if isIgnorableHref(href) {
		return "", fmt.Errorf("cannot normalize %q", href)
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("failed to parse base URL: %w", err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("failed to parse href: %w", err)
	}

	u := baseURL.ResolveReference(ref)
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", errNotAbsolute, u.String())
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	if u.Path == "" {
		u.Path = "/"
	}
	u.RawQuery = cleanQuery(u.Query())

	return u.String(), nil
}

// cleanQuery drops tracking parameters and encodes the rest sorted by key.
func cleanQuery(values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") {
			continue
		}
		if _, tracking := trackingParams[lower]; tracking {
			continue
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		vals := values[key]
		sort.Strings(vals)
		for _, val := range vals {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(val))
		}
	}
	return b.String()
}

// isIgnorableHref reports hrefs that never lead to a page.
func isIgnorableHref(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return true
	}
	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}
