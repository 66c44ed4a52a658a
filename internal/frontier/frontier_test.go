package frontier

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// fakeIndex is a DedupIndex with a fixed set of archived URLs.
type fakeIndex struct {
	mu       sync.Mutex
	archived map[string]bool
	err      error
	calls    int
}

func (f *fakeIndex) Exists(_ context.Context, url string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.archived[url], nil
}

type queueFactory func(t *testing.T, order string) Queue

func newMemory(t *testing.T, order string) Queue {
	t.Helper()

	q, err := NewMemoryQueue(order)
	if err != nil {
		t.Fatalf("failed to create memory queue: %v", err)
	}
	return q
}

func newRedis(t *testing.T, order string) Queue {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q, err := NewRedisQueue(t.Context(), client, "IGN", order)
	if err != nil {
		t.Fatalf("failed to create redis queue: %v", err)
	}
	return q
}

var backends = map[string]queueFactory{
	"memory": newMemory,
	"redis":  newRedis,
}

func drain(t *testing.T, f *Frontier) []string {
	t.Helper()

	out := make([]string, 0)
	for {
		u, ok, err := f.Dequeue(t.Context())
		if err != nil {
			t.Fatalf("unexpected dequeue error: %v", err)
		}
		if !ok {
			return out
		}
		out = append(out, u)
	}
}

// TestFrontier_Enqueue tests enqueue-time filtering on every backend.
func TestFrontier_Enqueue(t *testing.T) {
	t.Parallel()

	for name, factory := range backends {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			t.Run("skips resident and archived URLs", func(t *testing.T) {
				t.Parallel()

				index := &fakeIndex{archived: map[string]bool{"https://x.com/archived": true}}
				f := New(factory(t, "fifo"), WithDedupIndex(index))

				n, err := f.Enqueue(t.Context(), []string{"https://x.com/a", "https://x.com/b"})
				if err != nil || n != 2 {
					t.Fatalf("expected 2 added, got %d (%v)", n, err)
				}

				n, err = f.Enqueue(t.Context(), []string{
					"https://x.com/b",
					"https://x.com/archived",
					"https://x.com/c",
					"https://x.com/c",
					"",
				})
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if n != 1 {
					t.Errorf("expected only c to be added, got %d", n)
				}

				got := drain(t, f)
				want := []string{"https://x.com/a", "https://x.com/b", "https://x.com/c"}
				if !slices.Equal(got, want) {
					t.Errorf("expected %v, got %v", want, got)
				}
			})

			t.Run("empty batch is a no-op", func(t *testing.T) {
				t.Parallel()

				f := New(factory(t, "fifo"))
				n, err := f.Enqueue(t.Context(), nil)
				if err != nil || n != 0 {
					t.Errorf("expected 0 added, got %d (%v)", n, err)
				}
				if l, _ := f.Len(t.Context()); l != 0 {
					t.Errorf("expected empty frontier, got %d", l)
				}
			})

			t.Run("dequeued URLs are never accepted again", func(t *testing.T) {
				t.Parallel()

				f := New(factory(t, "fifo"))
				if _, err := f.Enqueue(t.Context(), []string{"https://x.com/dropped"}); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				drain(t, f)

				n, err := f.Enqueue(t.Context(), []string{"https://x.com/dropped"})
				if err != nil || n != 0 {
					t.Errorf("expected re-discovered URL to be skipped, got %d (%v)", n, err)
				}
			})

			t.Run("FIFO order across rounds", func(t *testing.T) {
				t.Parallel()

				f := New(factory(t, "fifo"))
				_, _ = f.Enqueue(t.Context(), []string{"/articles/a", "/articles/b"})
				first, _, _ := f.Dequeue(t.Context())
				_, _ = f.Enqueue(t.Context(), []string{"/articles/c"})

				rest := drain(t, f)
				if first != "/articles/a" || !slices.Equal(rest, []string{"/articles/b", "/articles/c"}) {
					t.Errorf("expected a, then b, c; got %s then %v", first, rest)
				}
			})

			t.Run("LIFO order", func(t *testing.T) {
				t.Parallel()

				f := New(factory(t, "lifo"))
				_, _ = f.Enqueue(t.Context(), []string{"/a", "/b", "/c"})

				got := drain(t, f)
				if !slices.Equal(got, []string{"/c", "/b", "/a"}) {
					t.Errorf("expected most recent first, got %v", got)
				}
			})

			t.Run("dequeue on empty frontier", func(t *testing.T) {
				t.Parallel()

				f := New(factory(t, "fifo"))
				u, ok, err := f.Dequeue(t.Context())
				if err != nil || ok || u != "" {
					t.Errorf("expected empty result, got %q %v %v", u, ok, err)
				}
			})
		})
	}
}

// TestFrontier_DedupFailureIsNotFatal tests that an index error never blocks progress.
func TestFrontier_DedupFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	index := &fakeIndex{err: errors.New("connection refused")}
	f := New(newMemory(t, "fifo"), WithDedupIndex(index), WithLogger(nil))

	n, err := f.Enqueue(t.Context(), []string{"https://x.com/a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected URL to be enqueued, got %d", n)
	}
}

// TestFrontier_SeenURLsSkipIndex tests that the index is not consulted for resident URLs.
func TestFrontier_SeenURLsSkipIndex(t *testing.T) {
	t.Parallel()

	index := &fakeIndex{}
	f := New(newMemory(t, "fifo"), WithDedupIndex(index))

	_, _ = f.Enqueue(t.Context(), []string{"/a"})
	_, _ = f.Enqueue(t.Context(), []string{"/a", "/a"})

	if index.calls != 1 {
		t.Errorf("expected 1 index call, got %d", index.calls)
	}
}

// TestNewMemoryQueue_InvalidOrder tests order validation.
func TestNewMemoryQueue_InvalidOrder(t *testing.T) {
	t.Parallel()

	if _, err := NewMemoryQueue("random"); !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("expected ErrInvalidOrder, got %v", err)
	}
}

// TestMemoryQueue_Closed tests operations after Close.
func TestMemoryQueue_Closed(t *testing.T) {
	t.Parallel()

	q := newMemory(t, "fifo")
	if err := q.Close(t.Context()); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if _, err := q.Add(t.Context(), "/a"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, _, err := q.Pop(t.Context()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

// TestRedisQueue_Keys tests key layout and lifecycle.
func TestRedisQueue_Keys(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	// Leftovers from an earlier process.
	if _, err := mr.Lpush(QueueKey("IGN"), "https://stale"); err != nil {
		t.Fatalf("failed to seed: %v", err)
	}
	if _, err := mr.SetAdd(SeenKey("IGN"), "https://stale"); err != nil {
		t.Fatalf("failed to seed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q, err := NewRedisQueue(t.Context(), client, "IGN", "fifo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mr.Exists(QueueKey("IGN")) || mr.Exists(SeenKey("IGN")) {
		t.Error("expected stale keys to be cleared at open")
	}

	if _, err := q.Add(t.Context(), "https://www.ign.com/articles/a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list, err := mr.List(QueueKey("IGN"))
	if err != nil || !slices.Equal(list, []string{"https://www.ign.com/articles/a"}) {
		t.Errorf("expected entry in %s, got %v (%v)", QueueKey("IGN"), list, err)
	}
	if ok, _ := mr.SIsMember(SeenKey("IGN"), "https://www.ign.com/articles/a"); !ok {
		t.Errorf("expected entry in %s", SeenKey("IGN"))
	}

	if err := q.Close(context.Background()); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if mr.Exists(QueueKey("IGN")) || mr.Exists(SeenKey("IGN")) {
		t.Error("expected keys to be removed at close")
	}
}

// TestRedisQueue_AddIsAtomic checks that a URL is only marked seen when it
// was also queued.
func TestRedisQueue_AddIsAtomic(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q, err := NewRedisQueue(t.Context(), client, "IGN", "fifo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = q.Close(context.Background()) })

	const url = "https://www.ign.com/articles/a"

	// A value of the wrong type under the list key makes the push fail.
	if err := mr.Set(QueueKey("IGN"), "not a list"); err != nil {
		t.Fatalf("failed to seed: %v", err)
	}
	if added, err := q.Add(t.Context(), url); err == nil || added {
		t.Fatalf("expected push failure, got added=%v err=%v", added, err)
	}
	if ok, _ := mr.SIsMember(SeenKey("IGN"), url); ok {
		t.Error("expected URL not to be marked seen after a failed push")
	}

	mr.Del(QueueKey("IGN"))
	added, err := q.Add(t.Context(), url)
	if err != nil || !added {
		t.Fatalf("expected URL to be added on retry, got added=%v err=%v", added, err)
	}
	if added, err := q.Add(t.Context(), url); err != nil || added {
		t.Errorf("expected duplicate to be skipped, got added=%v err=%v", added, err)
	}
	list, err := mr.List(QueueKey("IGN"))
	if err != nil || !slices.Equal(list, []string{url}) {
		t.Errorf("expected one queued entry, got %v (%v)", list, err)
	}
}

// TestNewRedisQueue_Errors tests constructor validation.
func TestNewRedisQueue_Errors(t *testing.T) {
	t.Parallel()

	if _, err := NewRedisQueue(t.Context(), nil, "IGN", "fifo"); !errors.Is(err, ErrNoRedisClient) {
		t.Errorf("expected ErrNoRedisClient, got %v", err)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	if _, err := NewRedisQueue(t.Context(), client, "IGN", "random"); !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("expected ErrInvalidOrder, got %v", err)
	}
}

// TestDialRedis tests connecting to a server.
func TestDialRedis(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	client, err := DialRedis(t.Context(), mr.Addr(), "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = client.Close()

	addr := mr.Addr()
	mr.Close()
	if _, err := DialRedis(t.Context(), addr, "", 0); err == nil {
		t.Error("expected error for stopped server")
	}
}
