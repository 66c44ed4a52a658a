// Package log builds the process logger for scrollcrawl on top of log/slog.
//
// Every record passes through SecureHandler before it is written. Sink and
// queue credentials, cookies and authorization headers configured for a site,
// and values that look like tokens are replaced with MaskValue. URLs keep
// their host and path but lose any userinfo password.
//
// # Usage
//
//	logger := log.New(os.Stderr, "text", verbose)
//	logger.Info("site exhausted", "site", "IGN", "pages", 42)
//
// Packages that accept a *slog.Logger fall back to slog.Default() when given
// nil, so tests can pass log.Discard() or nothing at all.
package log
