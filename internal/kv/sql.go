package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// SQLStore keeps entries in the kv_entries table of a Postgres or SQLite
// database.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// OpenPostgres connects with pgx and applies the bundled migrations.
func OpenPostgres(ctx context.Context, databaseURL string) (*SQLStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	return newSQLStore(ctx, db, Postgres)
}

// OpenSQLite opens (or creates) a database file.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one connection keeps writers serialized and :memory: databases shared
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return newSQLStore(ctx, db, SQLite)
}

func newSQLStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	s := &SQLStore{db: db, dialect: dialect}
	if err := ApplyMigrations(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) (Entry, error) {
	var entry Entry
	var value string
	err := s.db.QueryRowContext(ctx,
		rebind(s.dialect, `SELECT entry_value, version FROM kv_entries WHERE entry_key=?`), key,
	).Scan(&value, &entry.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, nil
	}
	if err != nil {
		return Entry{}, fmt.Errorf("read entry: %w", err)
	}
	entry.Value = []byte(value)
	return entry, nil
}

func (s *SQLStore) Put(ctx context.Context, key string, value []byte, baseVersion int64) (int64, error) {
	next := baseVersion + 1
	updatedAt := time.Now().UnixMilli()

	var res sql.Result
	var err error
	if baseVersion == 0 {
		res, err = s.db.ExecContext(ctx, rebind(s.dialect, `
			INSERT INTO kv_entries(entry_key, entry_value, version, updated_at)
			VALUES(?, ?, ?, ?)
			ON CONFLICT (entry_key) DO NOTHING
		`), key, string(value), next, updatedAt)
	} else {
		res, err = s.db.ExecContext(ctx, rebind(s.dialect, `
			UPDATE kv_entries SET entry_value=?, version=?, updated_at=?
			WHERE entry_key=? AND version=?
		`), string(value), next, updatedAt, key, baseVersion)
	}
	if err != nil {
		return 0, fmt.Errorf("write entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("write entry: %w", err)
	}
	if affected == 0 {
		current, err := s.Get(ctx, key)
		if err != nil {
			return 0, err
		}
		return 0, &ConflictError{Key: key, Expected: baseVersion, Current: current.Version}
	}
	return next, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for Postgres.
func rebind(dialect Dialect, query string) string {
	if dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
