// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/roostbot/roost/lib/clock"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(SQLiteConfig{
		Path:  filepath.Join(t.TempDir(), "roost.db"),
		Clock: clock.Fake(testEpoch()),
	})
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing store: %v", err)
		}
	})
	return s
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.Put(ctx, "bot/echo", "greeting", []byte("hello")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	value, err := s.Get(ctx, "bot/echo", "greeting")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(value) != "hello" {
		t.Errorf("value = %q, want %q", value, "hello")
	}
}

func TestSQLiteOverwrite(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.Put(ctx, "ns", "k", []byte("first")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(ctx, "ns", "k", []byte("second")); err != nil {
		t.Fatalf("overwrite Put failed: %v", err)
	}

	value, err := s.Get(ctx, "ns", "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(value) != "second" {
		t.Errorf("value = %q, want %q", value, "second")
	}
}

func TestSQLiteNotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Get(ctx, "ns", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get of missing key = %v, want ErrNotFound", err)
	}
}

func TestSQLiteNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.Put(ctx, "bot/a", "counter", []byte{1}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(ctx, "bot/b", "counter", []byte{2}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	_, err := s.Get(ctx, "bot/c", "counter")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign namespace read = %v, want ErrNotFound", err)
	}

	valueA, err := s.Get(ctx, "bot/a", "counter")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if valueA[0] != 1 {
		t.Errorf("namespace bot/a observed another namespace's write: %v", valueA)
	}

	keys, err := s.Keys(ctx, "bot/a")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != "counter" {
		t.Errorf("Keys(bot/a) = %v", keys)
	}
}

func TestSQLiteDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.Put(ctx, "ns", "k", []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Delete(ctx, "ns", "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "ns", "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete = %v, want ErrNotFound", err)
	}

	// Deleting an absent key is not an error.
	if err := s.Delete(ctx, "ns", "k"); err != nil {
		t.Errorf("Delete of absent key = %v", err)
	}
}

func TestSQLiteKeysSorted(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, key := range []string{"zeta", "alpha", "mid"} {
		if err := s.Put(ctx, "ns", key, []byte("v")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	keys, err := s.Keys(ctx, "ns")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	if len(keys) != len(want) {
		t.Fatalf("Keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}
