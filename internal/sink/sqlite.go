package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// DBFileName is the SQLite database file created inside the data directory.
const DBFileName = "scrollcrawl.db"

// busyTimeoutMs lets a connection wait for another worker's write lock
// instead of failing with SQLITE_BUSY.
const busyTimeoutMs = 5000

// SQLite stores records in a single documents table keyed by
// (collection, id). Every worker opens its own SQLite handle on the same
// file; WAL mode and the busy timeout serialize their writes.
type SQLite struct {
	db     *sql.DB
	dbPath string
}

// Options configures SQLite behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so readers do not block the writer.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// OpenSQLite opens or creates the database in dbDir.
func OpenSQLite(ctx context.Context, dbDir string, opts Options) (*SQLite, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	dsn := fmt.Sprintf("%s?mode=%s&_pragma=busy_timeout(%d)", dbPath, mode, busyTimeoutMs)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection per handle; concurrency comes from one handle per worker.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLite{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, id)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_updated ON documents(collection, updated_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Upsert implements Sink.
func (s *SQLite) Upsert(ctx context.Context, collection, id string, record any) error {
	body, err := encode(collection, id, record)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO documents (collection, id, body)
	VALUES (?, ?, ?)
	ON CONFLICT(collection, id) DO UPDATE SET
		body = excluded.body,
		updated_at = CURRENT_TIMESTAMP
	`

	if _, err := s.db.ExecContext(ctx, query, collection, id, string(body)); err != nil {
		return &WriteError{Collection: collection, ID: id, Err: err}
	}
	return nil
}

// Exists implements Sink.
func (s *SQLite) Exists(ctx context.Context, collection, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM documents WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check %s/%s: %w", collection, id, err)
	}
	return true, nil
}

// Get decodes the record stored under id into v.
func (s *SQLite) Get(ctx context.Context, collection, id string, v any) error {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return json.Unmarshal([]byte(body), v)
}

// Count returns the number of records in collection.
func (s *SQLite) Count(ctx context.Context, collection string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = ?`, collection,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	return n, nil
}

// Scan implements Scanner. Records are visited in id order.
// Rows are read into memory first so fn may write through the same handle.
func (s *SQLite) Scan(ctx context.Context, collection string, fn func(string, json.RawMessage) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, body FROM documents WHERE collection = ? ORDER BY id`, collection,
	)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", collection, err)
	}

	type row struct {
		id   string
		body string
	}
	var results []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.body); err != nil {
			_ = rows.Close()
			return fmt.Errorf("failed to read %s row: %w", collection, err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("failed to iterate %s: %w", collection, err)
	}
	_ = rows.Close()

	for _, r := range results {
		if err := fn(r.id, json.RawMessage(r.body)); err != nil {
			return err
		}
	}
	return nil
}
