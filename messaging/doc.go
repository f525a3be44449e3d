// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging implements the chat server client: a REST client
// for sending messages and managing event queues, and an EventSource
// that turns the server's long-poll event queue protocol into an
// ordered stream of event callbacks.
//
// The server-side protocol is queue based. A client registers an event
// queue, receives a queue ID and a starting event ID, then long-polls
// for events newer than the last ID it has seen. Queues are garbage
// collected server-side after a period of client inactivity; the
// EventSource detects the resulting queue-expired error and registers
// a fresh queue, logging the gap in event IDs it cannot recover.
package messaging
