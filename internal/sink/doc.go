// Package sink persists crawl records.
//
// A Sink stores JSON documents in named collections with idempotent upsert by
// id. Three collections are used by a crawl: pages (id = URL), articles
// (id = model.ArticleID) and crawl runs (id = run id). Backends:
//
//   - Memory: in-process reference implementation, used in tests and dry runs
//   - SQLite: a single documents table keyed by (collection, id)
//   - Elasticsearch: one index per collection, document id = record id
//
// Upsert failures are reported as *WriteError. Callers log them and keep
// going; a later upsert of the same id repairs the store.
package sink
