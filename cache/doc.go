// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache provides a write-back key/value cache layered over a
// persistent store. Writes complete in memory and are persisted in the
// background by periodic or explicit flushes; reads see the most recent
// write immediately. Persistence failures never propagate to the writer:
// a failed entry stays dirty and is retried on the next flush.
package cache
