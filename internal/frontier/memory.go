package frontier

import (
	"context"
	"strings"
	"sync"
)

// MemoryQueue is an in-process Queue.
type MemoryQueue struct {
	mu      sync.Mutex
	lifo    bool
	entries []string
	seen    map[string]struct{}
	closed  bool
}

// NewMemoryQueue creates an empty queue. order is "fifo" or "lifo"; empty means fifo.
func NewMemoryQueue(order string) (*MemoryQueue, error) {
	lifo, err := isLIFO(order)
	if err != nil {
		return nil, err
	}
	return &MemoryQueue{
		lifo:    lifo,
		entries: make([]string, 0),
		seen:    make(map[string]struct{}),
	}, nil
}

// Seen implements Queue.
func (q *MemoryQueue) Seen(_ context.Context, url string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false, ErrClosed
	}
	_, ok := q.seen[url]
	return ok, nil
}

// Add implements Queue.
func (q *MemoryQueue) Add(_ context.Context, url string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false, ErrClosed
	}
	if _, ok := q.seen[url]; ok {
		return false, nil
	}
	q.seen[url] = struct{}{}
	q.entries = append(q.entries, url)
	return true, nil
}

// Pop implements Queue.
func (q *MemoryQueue) Pop(_ context.Context) (string, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return "", false, ErrClosed
	}
	if len(q.entries) == 0 {
		return "", false, nil
	}

	var url string
	if q.lifo {
		last := len(q.entries) - 1
		url = q.entries[last]
		q.entries = q.entries[:last]
	} else {
		url = q.entries[0]
		q.entries[0] = ""
		q.entries = q.entries[1:]
	}
	return url, true, nil
}

// Len implements Queue.
func (q *MemoryQueue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries), nil
}

// Close implements Queue. It drops all entries.
func (q *MemoryQueue) Close(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.entries = nil
	q.seen = nil
	return nil
}

// isLIFO parses a queue order.
func isLIFO(order string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(order)) {
	case "", "fifo":
		return false, nil
	case "lifo":
		return true, nil
	default:
		return false, ErrInvalidOrder
	}
}
