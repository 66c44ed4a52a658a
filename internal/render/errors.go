package render

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrSessionClosed is returned when a closed session is used.
	ErrSessionClosed = errors.New("render session is closed")

	// ErrNothingLoaded is returned by Scroll before the session loaded a page.
	ErrNothingLoaded = errors.New("no page loaded in session")

	// ErrUnexpectedStatus is returned when a static fetch answers with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrInvalidProxyURL is returned when the proxy URL cannot be used for dialing.
	ErrInvalidProxyURL = errors.New("invalid proxy URL: expected socks5://host:port")

	// ErrNotReady is returned when a page never reached the ready state.
	ErrNotReady = errors.New("page did not become ready")
)

// Kind classifies a RenderError.
type Kind string

const (
	// KindTimeout means the attempt exceeded its deadline.
	KindTimeout Kind = "timeout"

	// KindNavigation means the page could not be loaded: DNS, connection,
	// HTTP status or browser navigation failures.
	KindNavigation Kind = "navigation"
)

// RenderError reports that a URL could not be rendered.
type RenderError struct {
	Kind Kind
	URL  string
	Err  error
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s failed (%s): %v", e.URL, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *RenderError) Unwrap() error {
	return e.Err
}

// IsRenderError reports whether err is or wraps a *RenderError.
func IsRenderError(err error) bool {
	var re *RenderError
	return errors.As(err, &re)
}

// IsTimeout reports whether err is a RenderError of kind timeout.
func IsTimeout(err error) bool {
	var re *RenderError
	return errors.As(err, &re) && re.Kind == KindTimeout
}

// classify wraps err into a RenderError. An attempt that ran into its own
// deadline is a timeout; everything else is a navigation failure.
func classify(attemptCtx context.Context, rawURL string, err error) *RenderError {
	var re *RenderError
	if errors.As(err, &re) {
		return re
	}
	kind := KindNavigation
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &RenderError{Kind: kind, URL: rawURL, Err: err}
}
