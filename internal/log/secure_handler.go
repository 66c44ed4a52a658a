package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// sensitiveKeys contains attribute keys whose values are always masked.
var sensitiveKeys = map[string]bool{
	// HTTP headers sent to crawled sites
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"proxy-authorization": true,

	// Sink and queue credentials
	"password":         true,
	"api_key":          true,
	"apikey":           true,
	"api-key":          true,
	"cloud_id":         true,
	"cloudid":          true,
	"elastic_password": true,
	"redis_password":   true,

	// Generic secrets
	"secret":        true,
	"token":         true,
	"access_token":  true,
	"refresh_token": true,
	"session":       true,
	"session_id":    true,
	"credentials":   true,
}

// sensitiveKeywords mark a key as sensitive when contained anywhere in it.
// The bare word "key" is left out because it matches harmless keys such as
// "frontier_key" or "redis_key", and "auth" alone would mask "authors".
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "authorization", "credential", "apikey", "api_key", "cookie",
}

// sensitivePatterns contains regex patterns that indicate sensitive values.
var sensitivePatterns = []*regexp.Regexp{
	// JWT tokens
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),

	// Bearer, Basic and Elasticsearch ApiKey authorization values
	regexp.MustCompile(`(?i)^(bearer|basic|apikey)\s+\S+`),

	// Elastic Cloud ids: "<deployment>:<base64>"
	regexp.MustCompile(`^[\w-]+:[A-Za-z0-9+/]{40,}={0,2}$`),
}

// opaqueToken matches long single-token strings. A match is only treated as a
// secret when it mixes letter cases, so hex digests such as article ids pass.
var opaqueToken = regexp.MustCompile(`^[A-Za-z0-9_-]{40,}$`)

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// SecureHandler wraps an slog.Handler and masks credentials before records
// reach the underlying handler. Keys are matched case-insensitively; string
// values are checked against known secret formats, and URLs carrying a
// password in their userinfo (redis://:pw@host, socks5://u:pw@proxy) keep
// everything except the password.
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler creates a new SecureHandler wrapping the given handler.
// If handler is nil, slog.Default().Handler() is used.
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled reports whether the underlying handler handles records at the given level.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sanitizes the record's attributes and passes it to the underlying handler.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a new handler with the given attributes sanitized and added.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitized := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitized[i] = sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(sanitized)}
}

// WithGroup returns a new handler with the given group name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

// sanitizeAttr sanitizes a single attribute, recursing into groups.
func sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		sanitized := make([]slog.Attr, len(group))
		for i, ga := range group {
			sanitized[i] = sanitizeAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitized...)}
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	if a.Value.Kind() == slog.KindString {
		s := a.Value.String()
		if isSensitiveValue(s) {
			return slog.String(a.Key, MaskValue)
		}
		if redacted, ok := redactURLPassword(s); ok {
			return slog.String(a.Key, redacted)
		}
	}

	return a
}

// isSensitiveKey checks the key against the exact and keyword lists.
func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	if sensitiveKeys[k] {
		return true
	}
	for _, kw := range sensitiveKeywords {
		if strings.Contains(k, kw) {
			return true
		}
	}
	return false
}

// isSensitiveValue checks if a value matches a known secret format.
func isSensitiveValue(value string) bool {
	for _, p := range sensitivePatterns {
		if p.MatchString(value) {
			return true
		}
	}
	return opaqueToken.MatchString(value) &&
		strings.ToLower(value) != value &&
		strings.ToUpper(value) != value
}

// redactURLPassword masks the password of a URL's userinfo.
// ok is false when value is not a URL with a password.
func redactURLPassword(value string) (string, bool) {
	if !strings.Contains(value, "://") || !strings.Contains(value, "@") {
		return "", false
	}
	u, err := url.Parse(value)
	if err != nil || u.User == nil {
		return "", false
	}
	if _, hasPassword := u.User.Password(); !hasPassword {
		return "", false
	}
	return u.Redacted(), true
}

// New creates a *slog.Logger writing to w through a SecureHandler.
// format is "json" for JSON lines; anything else selects the text handler.
// verbose lowers the level from Info to Debug.
func New(w io.Writer, format string, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(NewSecureHandler(handler))
}

// Discard returns a logger that drops every record. Useful as a default in tests.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
