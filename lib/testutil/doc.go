// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Roost packages.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls. These are
// the only places in the test suite where real wall-clock timeouts
// are used; timed production logic is tested against lib/clock's
// FakeClock instead.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation. Use it instead of time.Now() when tests need unique
// queue IDs, cache keys, or message bodies.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no Roost-internal dependencies.
package testutil
