package migrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/scrollcrawl/internal/config"
	"github.com/nao1215/scrollcrawl/internal/model"
	"github.com/nao1215/scrollcrawl/internal/sink"
)

// Result counts what a migration did.
type Result struct {
	// Scanned is the number of source records read.
	Scanned int `json:"scanned"`

	// Written is the number of records written to the target.
	Written int `json:"written"`

	// Duplicates is the number of records whose id was already written,
	// in this run or an earlier one.
	Duplicates int `json:"duplicates"`

	// Invalid is the number of records that could not be decoded or lack
	// an identity field.
	Invalid int `json:"invalid"`

	// WriteFailures is the number of failed target writes.
	WriteFailures int `json:"write_failures"`
}

// Migrator copies articles from one collection to another.
type Migrator struct {
	source sink.Scanner
	target sink.Sink
	from   string
	to     string
	dryRun bool
	logger *slog.Logger
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithCollections sets the source and target collections.
// Defaults are "articles" and "unique-articles".
func WithCollections(from, to string) Option {
	return func(m *Migrator) {
		if from != "" {
			m.from = from
		}
		if to != "" {
			m.to = to
		}
	}
}

// WithDryRun counts without writing.
func WithDryRun(dryRun bool) Option {
	return func(m *Migrator) {
		m.dryRun = dryRun
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Migrator) {
		m.logger = logger
	}
}

// New creates a Migrator reading from source and writing to target.
// Both may be the same sink.
func New(source sink.Scanner, target sink.Sink, opts ...Option) *Migrator {
	m := &Migrator{
		source: source,
		target: target,
		from:   config.DefaultArticlesCollection,
		to:     config.DefaultMigrationTarget,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// AsScanner returns s as a Scanner, or ErrScanUnsupported.
func AsScanner(s sink.Sink) (sink.Scanner, error) {
	scanner, ok := s.(sink.Scanner)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrScanUnsupported, s)
	}
	return scanner, nil
}

// Run performs the migration. Invalid records and write failures are
// counted and skipped; only a failing scan or a cancelled context stop it.
func (m *Migrator) Run(ctx context.Context) (Result, error) {
	var result Result

	if m.from == m.to {
		return result, ErrSameCollection
	}

	m.logger.Info("starting migration", "from", m.from, "to", m.to, "dry_run", m.dryRun)
	written := make(map[string]struct{})

	err := m.source.Scan(ctx, m.from, func(id string, doc json.RawMessage) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		result.Scanned++

		article, err := decodeArticle(doc)
		if err != nil {
			result.Invalid++
			m.logger.Warn("skipping record", "id", id, "error", err)
			return nil
		}

		newID := article.ID()
		if _, dup := written[newID]; dup {
			result.Duplicates++
			return nil
		}
		written[newID] = struct{}{}

		exists, err := m.target.Exists(ctx, m.to, newID)
		if err != nil {
			m.logger.Warn("existence check failed, writing anyway", "id", newID, "error", err)
		}
		if exists {
			result.Duplicates++
			return nil
		}

		if m.dryRun {
			result.Written++
			return nil
		}
		if err := m.target.Upsert(ctx, m.to, newID, article); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			result.WriteFailures++
			m.logger.Warn("write failed", "id", newID, "headline", article.Headline, "error", err)
			return nil
		}

		result.Written++
		m.logger.Debug("article migrated", "id", newID, "headline", article.Headline)
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("failed to scan %s: %w", m.from, err)
	}

	m.logger.Info("migration finished",
		"scanned", result.Scanned,
		"written", result.Written,
		"duplicates", result.Duplicates,
		"invalid", result.Invalid,
		"write_failures", result.WriteFailures,
	)
	return result, nil
}

// storedArticle accepts both the current record shape and the legacy one
// with "author" and a list-valued body.
type storedArticle struct {
	Site        string          `json:"site"`
	Headline    string          `json:"headline"`
	Date        string          `json:"date"`
	Authors     json.RawMessage `json:"authors"`
	Author      json.RawMessage `json:"author"`
	Body        json.RawMessage `json:"body"`
	Topics      json.RawMessage `json:"topics"`
	URL         string          `json:"url"`
	ExtractedAt time.Time       `json:"extracted_at"`
}

// decodeArticle converts a stored document into an ArticleRecord.
func decodeArticle(doc json.RawMessage) (*model.ArticleRecord, error) {
	var stored storedArticle
	if err := json.Unmarshal(doc, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode article: %w", err)
	}

	article := &model.ArticleRecord{
		Site:        strings.TrimSpace(stored.Site),
		Headline:    strings.TrimSpace(stored.Headline),
		Date:        strings.TrimSpace(stored.Date),
		URL:         stored.URL,
		ExtractedAt: stored.ExtractedAt,
	}
	if article.Site == "" || article.Headline == "" || article.Date == "" {
		return nil, errMissingIdentity
	}

	authors := stored.Authors
	if isEmpty(authors) {
		authors = stored.Author
	}

	var errs []error
	var err error
	if article.Authors, err = stringList(authors); err != nil {
		errs = append(errs, fmt.Errorf("authors: %w", err))
	}
	if article.Topics, err = stringList(stored.Topics); err != nil {
		errs = append(errs, fmt.Errorf("topics: %w", err))
	}
	paragraphs, err := stringList(stored.Body)
	if err != nil {
		errs = append(errs, fmt.Errorf("body: %w", err))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	article.Authors = model.NormalizeList(article.Authors)
	article.Topics = model.NormalizeList(article.Topics)
	article.Body = strings.Join(paragraphs, "\n\n")
	return article, nil
}

// stringList decodes a JSON string or array of strings. Null and missing
// values decode to nil.
func stringList(raw json.RawMessage) ([]string, error) {
	if isEmpty(raw) {
		return nil, nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("expected string or list of strings, got %s", raw)
	}
	if single == "" {
		return nil, nil
	}
	return []string{single}, nil
}

func isEmpty(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}
