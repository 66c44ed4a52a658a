package render

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/scrollcrawl/internal/model"
)

// Provider opens rendering sessions. A provider belongs to one worker.
type Provider interface {
	// Open acquires a new rendering context. An error here means the
	// renderer is unavailable.
	Open(ctx context.Context) (Session, error)
}

// Session is one rendering context with a current document.
// A session is used by one goroutine at a time.
type Session interface {
	// Load navigates to rawURL and returns the snapshot once the page is ready.
	Load(ctx context.Context, rawURL string) (*model.RenderedDocument, error)

	// Scroll advances the current document to offset screens from the top
	// and returns the snapshot once newly loaded content has settled.
	Scroll(ctx context.Context, offset int) (*model.RenderedDocument, error)

	// Close releases the context. Closing twice is a no-op.
	Close() error
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Renderer adds deadlines and retries to a Session.
type Renderer struct {
	session Session
	policy  RetryPolicy
	timeout time.Duration
	sleep   SleepFunc
	logger  *slog.Logger
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithRetryPolicy sets the retry policy.
func WithRetryPolicy(p RetryPolicy) RendererOption {
	return func(r *Renderer) {
		r.policy = p
	}
}

// WithTimeout bounds every attempt. Zero disables the per-attempt deadline.
func WithTimeout(d time.Duration) RendererOption {
	return func(r *Renderer) {
		r.timeout = d
	}
}

// WithSleep replaces the pause between attempts, mainly for tests.
func WithSleep(fn SleepFunc) RendererOption {
	return func(r *Renderer) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

// WithRendererLogger sets the logger.
func WithRendererLogger(logger *slog.Logger) RendererOption {
	return func(r *Renderer) {
		r.logger = logger
	}
}

// NewRenderer wraps session.
func NewRenderer(session Session, opts ...RendererOption) *Renderer {
	r := &Renderer{
		session: session,
		policy:  DefaultRetryPolicy(),
		timeout: 30 * time.Second,
		sleep:   Sleep,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}

	return r
}

// Render loads rawURL, retrying failed attempts.
func (r *Renderer) Render(ctx context.Context, rawURL string) (*model.RenderedDocument, error) {
	return r.do(ctx, rawURL, func(ctx context.Context) (*model.RenderedDocument, error) {
		return r.session.Load(ctx, rawURL)
	})
}

// Scroll advances the current document to offset, retrying failed attempts.
// rawURL only labels errors and log lines.
func (r *Renderer) Scroll(ctx context.Context, rawURL string, offset int) (*model.RenderedDocument, error) {
	return r.do(ctx, rawURL, func(ctx context.Context) (*model.RenderedDocument, error) {
		return r.session.Scroll(ctx, offset)
	})
}

// Close closes the underlying session.
func (r *Renderer) Close() error {
	return r.session.Close()
}

// do runs fn up to the policy's attempt count. When ctx itself is cancelled
// the context error is returned as is, so callers can tell a stop request
// from a render failure.
func (r *Renderer) do(
	ctx context.Context,
	rawURL string,
	fn func(context.Context) (*model.RenderedDocument, error),
) (*model.RenderedDocument, error) {
	var lastErr *RenderError

	for attempt := 1; attempt <= r.policy.Attempts(); attempt++ {
		if delay := r.policy.Delay(attempt); delay > 0 {
			if err := r.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc, rerr := r.attempt(ctx, fn)
		if rerr == nil {
			return doc, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		rerr.URL = rawURL
		lastErr = rerr
		r.logger.Debug("render attempt failed",
			"url", rawURL,
			"attempt", attempt,
			"kind", string(lastErr.Kind),
			"error", lastErr.Err,
		)
	}

	return nil, lastErr
}

// attempt runs one bounded attempt and classifies its failure.
func (r *Renderer) attempt(
	ctx context.Context,
	fn func(context.Context) (*model.RenderedDocument, error),
) (*model.RenderedDocument, *RenderError) {
	attemptCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	doc, err := fn(attemptCtx)
	if err != nil {
		return nil, classify(attemptCtx, "", err)
	}
	return doc, nil
}
