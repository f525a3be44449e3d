// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-memory Store. It backs bots that run without a
// configured database path, and tests that need a scriptable
// collaborator. Safe for concurrent use.
type Memory struct {
	mu   sync.Mutex
	data map[string]map[string][]byte // namespace → key → value

	// FailPuts, when positive, makes the next N Put calls return
	// ErrBusy. Tests use this to exercise the cache's flush retry
	// path.
	failPuts int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string][]byte)}
}

// FailNextPuts makes the next n Put calls return ErrBusy.
func (m *Memory) FailNextPuts(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPuts = n
}

// Get returns the value stored under (namespace, key).
func (m *Memory) Get(_ context.Context, namespace, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.data[namespace][key]
	if !ok {
		return nil, ErrNotFound
	}
	copied := make([]byte, len(value))
	copy(copied, value)
	return copied, nil
}

// Put stores value under (namespace, key).
func (m *Memory) Put(_ context.Context, namespace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failPuts > 0 {
		m.failPuts--
		return ErrBusy
	}

	namespaceData, ok := m.data[namespace]
	if !ok {
		namespaceData = make(map[string][]byte)
		m.data[namespace] = namespaceData
	}
	copied := make([]byte, len(value))
	copy(copied, value)
	namespaceData[key] = copied
	return nil
}

// Delete removes (namespace, key). Absent keys are a no-op.
func (m *Memory) Delete(_ context.Context, namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[namespace], key)
	return nil
}

// Keys returns all keys in the namespace, sorted.
func (m *Memory) Keys(_ context.Context, namespace string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.data[namespace]))
	for key := range m.data[namespace] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Compile-time check: *Memory implements Store.
var _ Store = (*Memory)(nil)
