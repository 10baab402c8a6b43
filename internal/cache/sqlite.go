package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	sq "github.com/Masterminds/squirrel"
	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"
)

const cacheTable = "cache"

// SQLite is a Store backed by a SQLite database file. Values are stored
// zstd-compressed.
type SQLite struct {
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Stats summarizes the contents of a SQLite store.
type Stats struct {
	Path    string `json:"path"`
	Entries int    `json:"entries"`
	Bytes   int64  `json:"bytes"` // compressed payload size
}

// OpenSQLite opens or creates a cache database at the given path.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	return &SQLite{db: db, enc: enc, dec: dec}, nil
}

// createSchema creates the database schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS cache (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`
	_, err := db.Exec(schema)
	return err
}

// Get implements Store.
func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var blob []byte
	err := sq.Select("value").
		From(cacheTable).
		Where(sq.Eq{"key": key}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry: %w", err)
	}

	value, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		// A corrupt entry is treated as a miss so the caller refetches.
		_ = s.Delete(ctx, key)
		return nil, false, nil
	}
	return value, true, nil
}

// Set implements Store.
func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	blob := s.enc.EncodeAll(value, nil)
	_, err := sq.Insert(cacheTable).
		Columns("key", "value", "updated_at").
		Values(key, blob, time.Now().Unix()).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *SQLite) Delete(ctx context.Context, key string) error {
	_, err := sq.Delete(cacheTable).
		Where(sq.Eq{"key": key}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("deleting cache entry: %w", err)
	}
	return nil
}

// Clear removes every entry whose key starts with prefix; an empty prefix
// clears the whole cache. It returns the number of removed entries.
func (s *SQLite) Clear(ctx context.Context, prefix string) (int64, error) {
	del := sq.Delete(cacheTable)
	if prefix != "" {
		// substr compares literally; LIKE would treat _ and % as wildcards.
		del = del.Where(sq.Expr("substr(key, 1, ?) = ?", utf8.RuneCountInString(prefix), prefix))
	}
	res, err := del.RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("clearing cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clearing cache: %w", err)
	}
	return n, nil
}

// Stats returns the entry count and total compressed size.
func (s *SQLite) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var size sql.NullInt64
	err := sq.Select("COUNT(*)", "SUM(LENGTH(value))").
		From(cacheTable).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&st.Entries, &size)
	if err != nil {
		return st, fmt.Errorf("reading cache stats: %w", err)
	}
	st.Bytes = size.Int64
	return st, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	s.dec.Close()
	if err := s.enc.Close(); err != nil {
		s.db.Close()
		return err
	}
	return s.db.Close()
}
