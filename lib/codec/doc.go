// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Roost's standard serialization: CBOR with
// Core Deterministic Encoding.
//
// Cache values cross the store boundary through this package. CBOR was
// chosen over JSON for compact integers, byte strings without base64,
// and a deterministic encoding guarantee: the same logical value
// always produces identical bytes, which makes store-level equality
// checks and test assertions trivial.
package codec
