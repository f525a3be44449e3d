// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

// Package store provides the persistent key/value collaborator
// underneath the write-back cache.
//
// Every value is addressed as (namespace, key) — one namespace per
// bot identity — so multiple bots can share one physical database
// without observing each other's keys.
//
// Two implementations exist: [SQLite] (the production store, all
// namespaces in one database file) and [Memory] (for tests and bots
// configured without a database path). Write contention surfaces as
// [ErrBusy]; the cache layer owns the retry policy, not the store.
package store
