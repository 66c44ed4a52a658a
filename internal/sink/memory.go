package sink

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
)

// Memory is an in-process Sink. Records are stored as JSON so callers can
// not mutate them after Upsert. It is safe for concurrent use and can be
// shared by several workers.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
	closed      bool
}

// NewMemory creates an empty Memory sink.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string][]byte),
	}
}

// Upsert implements Sink.
func (m *Memory) Upsert(_ context.Context, collection, id string, record any) error {
	body, err := encode(collection, id, record)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return &WriteError{Collection: collection, ID: id, Err: ErrClosed}
	}
	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string][]byte)
		m.collections[collection] = docs
	}
	docs[id] = body
	return nil
}

// Exists implements Sink.
func (m *Memory) Exists(_ context.Context, collection, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, ErrClosed
	}
	_, ok := m.collections[collection][id]
	return ok, nil
}

// Get decodes the record stored under id into v.
func (m *Memory) Get(collection, id string, v any) error {
	m.mu.RLock()
	body, ok := m.collections[collection][id]
	m.mu.RUnlock()

	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(body, v)
}

// Count returns the number of records in collection.
func (m *Memory) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}

// Scan implements Scanner. Records are visited in id order.
func (m *Memory) Scan(ctx context.Context, collection string, fn func(string, json.RawMessage) error) error {
	m.mu.RLock()
	docs := m.collections[collection]
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	bodies := make(map[string][]byte, len(docs))
	for id, body := range docs {
		bodies[id] = body
	}
	m.mu.RUnlock()

	slices.Sort(ids)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(id, json.RawMessage(bodies[id])); err != nil {
			return err
		}
	}
	return nil
}

// Close implements Sink. Records stay readable through Get and Scan.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
