// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roostbot/roost/lib/clock"
	"github.com/roostbot/roost/lib/codec"
	"github.com/roostbot/roost/store"
)

const (
	defaultRetryDelay = 250 * time.Millisecond
	defaultMaxRetries = 3
)

// Config carries the collaborators for a Cache. Store is required;
// everything else has a usable default.
type Config struct {
	Store  store.Store
	Clock  clock.Clock
	Logger *slog.Logger

	// RetryDelay is the pause between persistence attempts when the
	// store reports contention. Zero means defaultRetryDelay.
	RetryDelay time.Duration

	// MaxRetries bounds the total persistence attempts per entry
	// during a flush. Zero means defaultMaxRetries.
	MaxRetries int
}

// Cache is a write-back key/value cache over a persistent store. Reads
// fall through to the store on a miss and populate the in-memory layer;
// writes land in memory immediately and are persisted by Flush or the
// AutoFlush loop. Values are encoded with the deterministic CBOR codec
// at Put time, so a caller mutating its value after Put never changes
// what gets persisted.
//
// All methods are safe for concurrent use.
type Cache struct {
	store      store.Store
	clock      clock.Clock
	logger     *slog.Logger
	retryDelay time.Duration
	maxRetries int

	mu         sync.Mutex
	namespaces map[string]map[string]*entry
}

// entry is a single cached value. The generation counter increments on
// every Put so a flush that raced with a concurrent overwrite knows not
// to mark the newer value clean.
type entry struct {
	value      []byte
	dirty      bool
	generation uint64
}

func New(config Config) (*Cache, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("cache: Config.Store is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = defaultRetryDelay
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = defaultMaxRetries
	}
	return &Cache{
		store:      config.Store,
		clock:      config.Clock,
		logger:     config.Logger,
		retryDelay: config.RetryDelay,
		maxRetries: config.MaxRetries,
		namespaces: make(map[string]map[string]*entry),
	}, nil
}

// Namespace returns a view of the cache scoped to one namespace. Views
// are cheap; callers typically hold one per bot.
func (c *Cache) Namespace(name string) *Namespace {
	return &Namespace{cache: c, name: name}
}

// Flush persists every dirty entry across all namespaces. See
// Namespace.Flush for the per-entry semantics.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.Lock()
	names := make([]string, 0, len(c.namespaces))
	for name := range c.namespaces {
		names = append(names, name)
	}
	c.mu.Unlock()

	var errs []error
	for _, name := range names {
		if err := c.Namespace(name).Flush(ctx); err != nil {
			if ctx.Err() != nil {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AutoFlush flushes all namespaces every interval until ctx is
// cancelled. Flush failures are logged and the loop keeps going; the
// entries stay dirty and are retried on the next tick. Run it in its
// own goroutine.
func (c *Cache) AutoFlush(ctx context.Context, interval time.Duration) {
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Flush(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Error("periodic cache flush failed", "error", err)
			}
		}
	}
}

func (c *Cache) get(ctx context.Context, namespace, key string, out any) (bool, error) {
	c.mu.Lock()
	if e, ok := c.namespaces[namespace][key]; ok {
		value := e.value
		c.mu.Unlock()
		if err := codec.Unmarshal(value, out); err != nil {
			return false, fmt.Errorf("cache: decoding %s/%s: %w", namespace, key, err)
		}
		return true, nil
	}
	c.mu.Unlock()

	value, err := c.store.Get(ctx, namespace, key)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache: loading %s/%s: %w", namespace, key, err)
	}

	c.mu.Lock()
	// A Put may have landed while we were reading the store. The
	// in-memory value wins: it is the caller's most recent write.
	if e, ok := c.namespaces[namespace][key]; ok {
		value = e.value
	} else {
		c.ensureNamespace(namespace)[key] = &entry{value: value}
	}
	c.mu.Unlock()

	if err := codec.Unmarshal(value, out); err != nil {
		return false, fmt.Errorf("cache: decoding %s/%s: %w", namespace, key, err)
	}
	return true, nil
}

func (c *Cache) put(namespace, key string, value any) error {
	encoded, err := codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encoding %s/%s: %w", namespace, key, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.ensureNamespace(namespace)
	if e, ok := entries[key]; ok {
		e.value = encoded
		e.dirty = true
		e.generation++
	} else {
		entries[key] = &entry{value: encoded, dirty: true, generation: 1}
	}
	return nil
}

func (c *Cache) delete(ctx context.Context, namespace, key string) error {
	c.mu.Lock()
	delete(c.namespaces[namespace], key)
	c.mu.Unlock()
	if err := c.store.Delete(ctx, namespace, key); err != nil {
		return fmt.Errorf("cache: deleting %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (c *Cache) keys(ctx context.Context, namespace string) ([]string, error) {
	stored, err := c.store.Keys(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("cache: listing %s: %w", namespace, err)
	}
	seen := make(map[string]bool, len(stored))
	for _, key := range stored {
		seen[key] = true
	}
	keys := stored
	c.mu.Lock()
	for key := range c.namespaces[namespace] {
		if !seen[key] {
			keys = append(keys, key)
		}
	}
	c.mu.Unlock()
	return keys, nil
}

// flushNamespace persists the dirty entries of one namespace. Each entry
// is attempted up to maxRetries times when the store reports contention,
// sleeping retryDelay between attempts. An entry that cannot be
// persisted stays dirty so a later flush picks it up again; the error is
// recorded but does not abort the remaining entries. Cancellation
// returns immediately with every entry either fully persisted or still
// dirty, never in between.
func (c *Cache) flushNamespace(ctx context.Context, namespace string) error {
	type pending struct {
		key        string
		value      []byte
		generation uint64
	}

	c.mu.Lock()
	var work []pending
	for key, e := range c.namespaces[namespace] {
		if e.dirty {
			work = append(work, pending{key: key, value: e.value, generation: e.generation})
		}
	}
	c.mu.Unlock()

	var errs []error
	for _, p := range work {
		err := c.persist(ctx, namespace, p.key, p.value)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			c.logger.Error("cache entry not persisted",
				"namespace", namespace,
				"key", p.key,
				"error", err)
			errs = append(errs, err)
			continue
		}
		c.mu.Lock()
		if e, ok := c.namespaces[namespace][p.key]; ok && e.generation == p.generation {
			e.dirty = false
		}
		c.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (c *Cache) persist(ctx context.Context, namespace, key string, value []byte) error {
	for attempt := 1; ; attempt++ {
		err := c.store.Put(ctx, namespace, key, value)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrBusy) {
			return fmt.Errorf("cache: persisting %s/%s: %w", namespace, key, err)
		}
		if attempt >= c.maxRetries {
			return fmt.Errorf("cache: persisting %s/%s: store busy after %d attempts: %w",
				namespace, key, attempt, err)
		}
		c.logger.Debug("store busy, retrying",
			"namespace", namespace,
			"key", key,
			"attempt", attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(c.retryDelay):
		}
	}
}

// ensureNamespace returns the entry map for namespace, creating it if
// needed. Callers must hold c.mu.
func (c *Cache) ensureNamespace(namespace string) map[string]*entry {
	entries, ok := c.namespaces[namespace]
	if !ok {
		entries = make(map[string]*entry)
		c.namespaces[namespace] = entries
	}
	return entries
}
