// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key does not exist in the
// namespace.
var ErrNotFound = errors.New("store: key not found")

// ErrBusy is returned when the backing store is locked by another
// writer and the operation should be retried later. The write-back
// cache retries busy failures on its flush schedule; callers hitting
// ErrBusy directly can treat it the same way.
var ErrBusy = errors.New("store: busy")

// Store is the persistent key/value collaborator underneath the
// write-back cache. Keys are always addressed as (namespace, key);
// implementations must guarantee that two namespaces never observe
// each other's keys even when they share one physical database.
type Store interface {
	// Get returns the value stored under (namespace, key), or
	// ErrNotFound if absent.
	Get(ctx context.Context, namespace, key string) ([]byte, error)

	// Put stores value under (namespace, key), overwriting any
	// previous value. May return ErrBusy under write contention.
	Put(ctx context.Context, namespace, key string, value []byte) error

	// Delete removes (namespace, key). Deleting an absent key is not
	// an error.
	Delete(ctx context.Context, namespace, key string) error

	// Keys returns all keys present in the namespace, sorted.
	Keys(ctx context.Context, namespace string) ([]string, error)
}
