// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for testability.
//
// Production code takes a [Clock] and uses it for all time operations.
// Tests inject a [FakeClock] and drive it with [FakeClock.Advance],
// making timed behavior (cache flush cycles, poll backoff) fully
// deterministic: no sleeps, no flaky timing margins.
//
// [FakeClock.WaitForTimers] synchronizes the test with goroutines that
// register timers, closing the race between "goroutine is about to
// sleep" and "test advances the clock".
package clock
