package render

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/scrollcrawl/internal/log"
	"github.com/nao1215/scrollcrawl/internal/model"
)

// scriptedSession returns the queued results of Load in order and counts calls.
type scriptedSession struct {
	mu      sync.Mutex
	results []error
	loads   int
	scrolls []int
	closed  bool
	block   bool
}

func (s *scriptedSession) Load(ctx context.Context, rawURL string) (*model.RenderedDocument, error) {
	s.mu.Lock()
	s.loads++
	var err error
	if len(s.results) > 0 {
		err = s.results[0]
		s.results = s.results[1:]
	}
	block := s.block
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return model.NewRenderedDocument(rawURL, "<html></html>"), nil
}

func (s *scriptedSession) Scroll(_ context.Context, offset int) (*model.RenderedDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrolls = append(s.scrolls, offset)
	return model.NewRenderedDocument("https://example.com/news", "<html></html>"), nil
}

func (s *scriptedSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// recordSleeps returns a SleepFunc that records requested pauses without waiting.
func recordSleeps(mu *sync.Mutex, got *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		*got = append(*got, d)
		mu.Unlock()
		return ctx.Err()
	}
}

func TestRenderer_Render(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{MaxAttempts: 3, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}

	t.Run("first attempt succeeds", func(t *testing.T) {
		t.Parallel()

		session := &scriptedSession{}
		r := NewRenderer(session, WithRetryPolicy(policy), WithRendererLogger(log.Discard()))

		doc, err := r.Render(t.Context(), "https://example.com/articles/a")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if doc.URL != "https://example.com/articles/a" {
			t.Errorf("expected document URL to be the requested URL, got %q", doc.URL)
		}
		if session.loads != 1 {
			t.Errorf("expected 1 load, got %d", session.loads)
		}
	})

	t.Run("retries until success with backoff", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		var sleeps []time.Duration
		session := &scriptedSession{results: []error{errors.New("connection reset"), errors.New("connection reset")}}
		r := NewRenderer(session,
			WithRetryPolicy(policy),
			WithSleep(recordSleeps(&mu, &sleeps)),
			WithRendererLogger(log.Discard()),
		)

		if _, err := r.Render(t.Context(), "https://example.com/articles/a"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if session.loads != 3 {
			t.Errorf("expected 3 loads, got %d", session.loads)
		}
		want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
		if len(sleeps) != len(want) || sleeps[0] != want[0] || sleeps[1] != want[1] {
			t.Errorf("expected sleeps %v, got %v", want, sleeps)
		}
	})

	t.Run("exhausted retries return a navigation RenderError", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		var sleeps []time.Duration
		cause := errors.New("net::ERR_NAME_NOT_RESOLVED")
		session := &scriptedSession{results: []error{cause, cause, cause, nil}}
		r := NewRenderer(session,
			WithRetryPolicy(policy),
			WithSleep(recordSleeps(&mu, &sleeps)),
			WithRendererLogger(log.Discard()),
		)

		_, err := r.Render(t.Context(), "https://example.com/articles/a")
		var re *RenderError
		if !errors.As(err, &re) {
			t.Fatalf("expected RenderError, got %v", err)
		}
		if re.Kind != KindNavigation {
			t.Errorf("expected navigation kind, got %q", re.Kind)
		}
		if re.URL != "https://example.com/articles/a" {
			t.Errorf("expected URL on error, got %q", re.URL)
		}
		if !errors.Is(err, cause) {
			t.Errorf("expected error to wrap the cause, got %v", err)
		}
		if session.loads != 3 {
			t.Errorf("expected exactly 3 loads, got %d", session.loads)
		}
	})

	t.Run("attempt deadline is a timeout RenderError", func(t *testing.T) {
		t.Parallel()

		session := &scriptedSession{block: true}
		r := NewRenderer(session,
			WithRetryPolicy(RetryPolicy{MaxAttempts: 2}),
			WithTimeout(10*time.Millisecond),
			WithRendererLogger(log.Discard()),
		)

		_, err := r.Render(t.Context(), "https://example.com/slow")
		if !IsTimeout(err) {
			t.Fatalf("expected timeout RenderError, got %v", err)
		}
		if session.loads != 2 {
			t.Errorf("expected 2 loads, got %d", session.loads)
		}
	})

	t.Run("cancelled caller context is not a RenderError", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		session := &scriptedSession{}
		r := NewRenderer(session, WithRendererLogger(log.Discard()))

		_, err := r.Render(ctx, "https://example.com/articles/a")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if IsRenderError(err) {
			t.Errorf("expected plain context error, got RenderError %v", err)
		}
		if session.loads != 0 {
			t.Errorf("expected no load after cancellation, got %d", session.loads)
		}
	})

	t.Run("RenderError from the session keeps its kind", func(t *testing.T) {
		t.Parallel()

		session := &scriptedSession{results: []error{&RenderError{Kind: KindTimeout, Err: errors.New("slow")}}}
		r := NewRenderer(session, WithRetryPolicy(RetryPolicy{MaxAttempts: 1}), WithRendererLogger(log.Discard()))

		_, err := r.Render(t.Context(), "https://example.com/a")
		if !IsTimeout(err) {
			t.Errorf("expected timeout kind to survive, got %v", err)
		}
	})
}

func TestRenderer_ScrollAndClose(t *testing.T) {
	t.Parallel()

	session := &scriptedSession{}
	r := NewRenderer(session, WithRendererLogger(log.Discard()))

	for _, offset := range []int{5, 10} {
		if _, err := r.Scroll(t.Context(), "https://example.com/news", offset); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(session.scrolls) != 2 || session.scrolls[0] != 5 || session.scrolls[1] != 10 {
		t.Errorf("expected offsets [5 10], got %v", session.scrolls)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !session.closed {
		t.Error("expected session to be closed")
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	t.Parallel()

	rp := RetryPolicy{
		MaxAttempts:  10,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 0},
		{2, 100 * time.Millisecond},
		{3, 200 * time.Millisecond},
		{4, 400 * time.Millisecond},
		{5, 800 * time.Millisecond},
		{6, time.Second},
		{20, time.Second},
	}

	for _, tt := range tests {
		if got := rp.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d): expected %v, got %v", tt.attempt, tt.want, got)
		}
	}

	t.Run("multiplier below one keeps the initial delay", func(t *testing.T) {
		t.Parallel()
		flat := RetryPolicy{InitialDelay: time.Second}
		if got := flat.Delay(4); got != time.Second {
			t.Errorf("expected 1s, got %v", got)
		}
	})

	t.Run("attempts are at least one", func(t *testing.T) {
		t.Parallel()
		if got := (RetryPolicy{}).Attempts(); got != 1 {
			t.Errorf("expected 1, got %d", got)
		}
	})
}

func TestSleep(t *testing.T) {
	t.Parallel()

	t.Run("returns after the duration", func(t *testing.T) {
		t.Parallel()
		if err := Sleep(t.Context(), time.Millisecond); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("returns early on cancellation", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		start := time.Now()
		if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if time.Since(start) > time.Second {
			t.Error("expected Sleep to return immediately")
		}
	})
}

func TestRenderError_Error(t *testing.T) {
	t.Parallel()

	err := &RenderError{Kind: KindTimeout, URL: "https://example.com/a", Err: context.DeadlineExceeded}
	want := "render https://example.com/a failed (timeout): context deadline exceeded"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected Unwrap to expose the cause")
	}
}
