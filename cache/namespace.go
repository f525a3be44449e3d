// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import "context"

// Namespace is a view of a Cache scoped to a single namespace. Each bot
// gets its own namespace, so two bots using the same key never collide.
type Namespace struct {
	cache *Cache
	name  string
}

// Name returns the namespace this view is scoped to.
func (n *Namespace) Name() string { return n.name }

// Get reads the value for key into out, which must be a pointer. A hit
// in the in-memory layer is served without touching the store; a miss
// falls through to the store and populates the memory layer on success.
// Returns false when the key exists in neither layer, leaving out
// untouched.
func (n *Namespace) Get(ctx context.Context, key string, out any) (bool, error) {
	return n.cache.get(ctx, n.name, key, out)
}

// Put records a new value for key in the in-memory layer and marks the
// entry dirty. The value is encoded immediately, so later mutations of
// the caller's value do not affect what Get returns or what Flush
// persists. The store is not touched until the next flush.
func (n *Namespace) Put(key string, value any) error {
	return n.cache.put(n.name, key, value)
}

// Delete removes key from both the in-memory layer and the store.
// Deleting an absent key is not an error.
func (n *Namespace) Delete(ctx context.Context, key string) error {
	return n.cache.delete(ctx, n.name, key)
}

// Keys lists every key visible in this namespace: the union of the
// store's keys and any not-yet-flushed entries. Order is unspecified.
func (n *Namespace) Keys(ctx context.Context) ([]string, error) {
	return n.cache.keys(ctx, n.name)
}

// Flush persists this namespace's dirty entries to the store.
func (n *Namespace) Flush(ctx context.Context) error {
	return n.cache.flushNamespace(ctx, n.name)
}
