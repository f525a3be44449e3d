// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/roostbot/roost/lib/clock"
	"github.com/roostbot/roost/lib/sqlitepool"
)

// schema is applied once per pooled connection. The single kv table
// holds every namespace; the composite primary key gives namespace
// isolation and an index for the Keys scan.
const schema = `
CREATE TABLE IF NOT EXISTS kv (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (namespace, key)
) WITHOUT ROWID;
`

// SQLiteConfig holds the parameters for opening a SQLite-backed store.
type SQLiteConfig struct {
	// Path is the filesystem path to the database file. The parent
	// directory must exist. Required.
	Path string

	// PoolSize is the connection pool size. Defaults to 4.
	PoolSize int

	// Clock provides timestamps for updated_at. Defaults to the real
	// clock.
	Clock clock.Clock

	// Logger receives operational messages. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// SQLite is a Store backed by a SQLite database. All bot namespaces
// share one database file; isolation comes from the composite
// (namespace, key) primary key. Safe for concurrent use.
type SQLite struct {
	pool  *sqlitepool.Pool
	clock clock.Clock
}

// OpenSQLite opens (creating if necessary) a SQLite-backed store at
// the configured path. The caller must call Close when done.
func OpenSQLite(cfg SQLiteConfig) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store: Path is required")
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: poolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	return &SQLite{pool: pool, clock: clk}, nil
}

// Close closes the underlying connection pool. Blocks until all
// borrowed connections are returned.
func (s *SQLite) Close() error {
	return s.pool.Close()
}

// Get returns the value stored under (namespace, key).
func (s *SQLite) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: get %s/%s: %w", namespace, key, err)
	}
	defer s.pool.Put(conn)

	var value []byte
	found := false
	err = sqlitex.Execute(conn, `SELECT value FROM kv WHERE namespace = ? AND key = ?`, &sqlitex.ExecOptions{
		Args: []any{namespace, key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = true
			value = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, value)
			return nil
		},
	})
	if err != nil {
		return nil, classify(fmt.Errorf("get %s/%s", namespace, key), err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return value, nil
}

// Put stores value under (namespace, key), overwriting any previous
// value.
func (s *SQLite) Put(ctx context.Context, namespace, key string, value []byte) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: put %s/%s: %w", namespace, key, err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO kv (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		&sqlitex.ExecOptions{
			Args: []any{namespace, key, value, s.clock.Now().UnixMilli()},
		})
	if err != nil {
		return classify(fmt.Errorf("put %s/%s", namespace, key), err)
	}
	return nil
}

// Delete removes (namespace, key). Deleting an absent key is a no-op.
func (s *SQLite) Delete(ctx context.Context, namespace, key string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: delete %s/%s: %w", namespace, key, err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `DELETE FROM kv WHERE namespace = ? AND key = ?`, &sqlitex.ExecOptions{
		Args: []any{namespace, key},
	})
	if err != nil {
		return classify(fmt.Errorf("delete %s/%s", namespace, key), err)
	}
	return nil
}

// Keys returns all keys in the namespace, sorted.
func (s *SQLite) Keys(ctx context.Context, namespace string) ([]string, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: keys %s: %w", namespace, err)
	}
	defer s.pool.Put(conn)

	var keys []string
	err = sqlitex.Execute(conn, `SELECT key FROM kv WHERE namespace = ? ORDER BY key`, &sqlitex.ExecOptions{
		Args: []any{namespace},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			keys = append(keys, stmt.ColumnText(0))
			return nil
		},
	})
	if err != nil {
		return nil, classify(fmt.Errorf("keys %s", namespace), err)
	}
	return keys, nil
}

// classify maps SQLite result codes to the store's typed errors.
// SQLITE_BUSY and SQLITE_LOCKED become ErrBusy so the cache layer can
// retry; everything else is wrapped as-is.
func classify(op error, err error) error {
	switch sqlite.ErrCode(err) {
	case sqlite.ResultBusy, sqlite.ResultLocked:
		return fmt.Errorf("store: %v: %w", op, ErrBusy)
	default:
		return fmt.Errorf("store: %v: %w", op, err)
	}
}

// Compile-time check: *SQLite implements Store.
var _ Store = (*SQLite)(nil)
