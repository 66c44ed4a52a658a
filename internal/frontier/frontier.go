package frontier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Queue stores frontier entries for one site.
// Seen is remembered for the lifetime of the queue, so an entry that was
// popped is never accepted again.
type Queue interface {
	// Seen reports whether url was ever added.
	Seen(ctx context.Context, url string) (bool, error)

	// Add marks url as seen and appends it. It returns false without
	// appending when url was seen before.
	Add(ctx context.Context, url string) (bool, error)

	// Pop removes and returns the next entry. ok is false when the queue is empty.
	Pop(ctx context.Context) (url string, ok bool, err error)

	// Len returns the number of queued entries.
	Len(ctx context.Context) (int, error)

	// Close releases the queue.
	Close(ctx context.Context) error
}

// DedupIndex reports whether a URL is already archived.
// The answer is advisory and may be stale.
type DedupIndex interface {
	Exists(ctx context.Context, url string) (bool, error)
}

// Frontier is the enqueue-time deduplicating queue of one worker.
// It is not safe for concurrent use; a worker owns exactly one.
type Frontier struct {
	queue  Queue
	dedup  DedupIndex
	logger *slog.Logger
}

// Option configures a Frontier.
type Option func(*Frontier)

// WithDedupIndex sets the index consulted before a URL is enqueued.
func WithDedupIndex(d DedupIndex) Option {
	return func(f *Frontier) {
		f.dedup = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Frontier) {
		f.logger = logger
	}
}

// New creates a Frontier over queue.
func New(queue Queue, opts ...Option) *Frontier {
	f := &Frontier{
		queue:  queue,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// Enqueue appends the candidates that are neither seen by this frontier nor
// present in the dedup index, in the given order. It returns how many were
// added. An empty or fully duplicate batch adds nothing.
//
// A dedup index failure counts as "not present": at worst the URL is fetched
// and overwritten once more.
func (f *Frontier) Enqueue(ctx context.Context, urls []string) (int, error) {
	added := 0
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}

		seen, err := f.queue.Seen(ctx, u)
		if err != nil {
			return added, fmt.Errorf("failed to check frontier for %s: %w", u, err)
		}
		if seen {
			continue
		}

		if f.dedup != nil {
			exists, err := f.dedup.Exists(ctx, u)
			if err != nil {
				f.logger.Warn("dedup check failed, treating URL as new", "url", u, "error", err)
			} else if exists {
				f.logger.Debug("skipping archived URL", "url", u)
				continue
			}
		}

		ok, err := f.queue.Add(ctx, u)
		if err != nil {
			return added, fmt.Errorf("failed to enqueue %s: %w", u, err)
		}
		if ok {
			added++
		}
	}
	return added, nil
}

// Dequeue removes and returns the next URL. ok is false when the frontier is empty.
func (f *Frontier) Dequeue(ctx context.Context) (string, bool, error) {
	u, ok, err := f.queue.Pop(ctx)
	if err != nil {
		return "", false, fmt.Errorf("failed to dequeue: %w", err)
	}
	return u, ok, nil
}

// Len returns the number of queued URLs.
func (f *Frontier) Len(ctx context.Context) (int, error) {
	return f.queue.Len(ctx)
}

// Close releases the underlying queue.
func (f *Frontier) Close(ctx context.Context) error {
	return f.queue.Close(ctx)
}
