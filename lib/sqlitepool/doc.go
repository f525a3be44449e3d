// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides a Roost-standard SQLite connection pool.
//
// It wraps zombiezen.com/go/sqlite with production defaults: WAL
// journal mode, NORMAL synchronous for process-crash durability
// without fsync-per-commit overhead, and a short busy timeout so that
// write contention surfaces as a typed error the caller can retry on
// its own schedule (the write-back cache does exactly that).
//
// The pool is built on zombiezen's sqlitex.Pool, which manages a
// fixed-size set of connections. Callers [Pool.Take] a connection,
// perform work, and [Pool.Put] it back. Connections are NOT safe for
// concurrent use — each goroutine must hold its own connection for the
// duration of its work.
//
// This package is intentionally thin: it applies standard pragmas and
// exposes the underlying zombiezen types directly. Stores write SQL
// and use sqlitex.Execute; there is no query builder and no attempt to
// abstract away SQLite's connection model.
package sqlitepool
