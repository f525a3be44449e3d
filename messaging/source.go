// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/roostbot/roost/lib/clock"
)

// Handler consumes one event. Handlers run serially on the polling
// goroutine, so a slow handler delays subsequent events but never
// reorders them.
type Handler func(ctx context.Context, event Event)

// SourceConfig carries the collaborators for an EventSource.
type SourceConfig struct {
	// Client performs the queue API calls. Required.
	Client *Client

	// EventTypes selects which event types the queue delivers.
	// Defaults to message events only.
	EventTypes []string

	// Narrow optionally restricts the queue to matching messages.
	Narrow Narrow

	Clock  clock.Clock
	Logger *slog.Logger

	// InitialBackoff and MaxBackoff bound the exponential backoff
	// applied after transient polling failures. Defaults: 1s and 30s.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// MaxAttempts is how many consecutive transient failures the
	// source tolerates before treating the transport as dead and
	// returning an error from Run. Default 10.
	MaxAttempts int
}

// Source states, exposed for observability.
type SourceState string

const (
	StateUnregistered SourceState = "unregistered"
	StateRegistered   SourceState = "registered"
	StatePolling      SourceState = "polling"
	StateClosed       SourceState = "closed"
)

// EventSource drives the long-poll loop over one event queue and
// delivers events to a handler, in order, each at most once. Transient
// failures are retried with exponential backoff; an expired queue is
// replaced with a fresh registration. Events that fell into the gap
// between queue registrations are lost, which the source logs but
// cannot recover.
type EventSource struct {
	client         *Client
	eventTypes     []string
	narrow         Narrow
	clock          clock.Clock
	logger         *slog.Logger
	initialBackoff time.Duration
	maxBackoff     time.Duration
	maxAttempts    int

	mu          sync.Mutex
	state       SourceState
	queueID     string
	lastEventID int64
}

func NewEventSource(config SourceConfig) (*EventSource, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("messaging: SourceConfig.Client is required")
	}
	if len(config.EventTypes) == 0 {
		config.EventTypes = []string{EventTypeMessage}
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = time.Second
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = 30 * time.Second
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = 10
	}
	return &EventSource{
		client:         config.Client,
		eventTypes:     config.EventTypes,
		narrow:         config.Narrow,
		clock:          config.Clock,
		logger:         config.Logger,
		initialBackoff: config.InitialBackoff,
		maxBackoff:     config.MaxBackoff,
		maxAttempts:    config.MaxAttempts,
		state:          StateUnregistered,
	}, nil
}

// State returns the source's current lifecycle state.
func (s *EventSource) State() SourceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastEventID returns the highest event ID delivered so far on the
// current queue, or the queue's starting ID if nothing has been
// delivered yet.
func (s *EventSource) LastEventID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEventID
}

// Run registers a queue and polls it until ctx is cancelled, invoking
// handler for every non-heartbeat event. On cancellation the queue is
// deregistered on a best-effort basis and Run returns nil. Run may be
// called once per EventSource.
func (s *EventSource) Run(ctx context.Context, handler Handler) error {
	defer s.setState(StateClosed)

	if err := s.register(ctx, false); err != nil {
		return err
	}

	backoff := s.initialBackoff
	failures := 0
	for {
		if ctx.Err() != nil {
			s.deregister()
			return nil
		}
		s.setState(StatePolling)

		s.mu.Lock()
		queueID, lastEventID := s.queueID, s.lastEventID
		s.mu.Unlock()

		events, err := s.client.GetEvents(ctx, queueID, lastEventID)
		switch {
		case ctx.Err() != nil:
			s.deregister()
			return nil
		case IsQueueExpired(err):
			if err := s.register(ctx, true); err != nil {
				return err
			}
			backoff = s.initialBackoff
			failures = 0
			continue
		case err != nil:
			failures++
			if failures >= s.maxAttempts {
				s.deregister()
				return fmt.Errorf("messaging: event poll failed %d consecutive times, giving up: %w",
					failures, err)
			}
			s.logger.Warn("event poll failed, backing off",
				"queue_id", queueID,
				"failures", failures,
				"backoff", backoff,
				"error", err)
			// Repeated failures can come from poisoned keep-alive
			// connections; start the next attempt on a fresh one.
			s.client.CloseIdleConnections()
			if !s.sleep(ctx, backoff) {
				s.deregister()
				return nil
			}
			backoff = min(backoff*2, s.maxBackoff)
			continue
		}
		backoff = s.initialBackoff
		failures = 0

		for _, event := range events {
			// The server redelivers events the client has already
			// acknowledged if a poll response was lost in transit.
			// Tracking the high-water mark makes delivery at most
			// once.
			if event.ID <= s.LastEventID() {
				continue
			}
			s.advance(event.ID)
			if event.Type == EventTypeHeartbeat {
				continue
			}
			s.deliver(ctx, handler, event)
		}
	}
}

// register obtains a fresh queue, retrying transient failures with
// backoff until ctx is cancelled. When replacing an expired queue it
// logs how many event IDs the old queue had seen, as a bound on what
// was lost.
func (s *EventSource) register(ctx context.Context, replacing bool) error {
	backoff := s.initialBackoff
	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}
		registration, err := s.client.RegisterQueue(ctx, s.eventTypes, s.narrow)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			if failures >= s.maxAttempts {
				return fmt.Errorf("messaging: queue registration failed %d consecutive times, giving up: %w",
					failures, err)
			}
			s.logger.Warn("queue registration failed, backing off",
				"failures", failures,
				"backoff", backoff,
				"error", err)
			if !s.sleep(ctx, backoff) {
				return nil
			}
			backoff = min(backoff*2, s.maxBackoff)
			continue
		}

		s.mu.Lock()
		if replacing {
			s.logger.Warn("event queue expired, registered a replacement",
				"old_queue_id", s.queueID,
				"old_last_event_id", s.lastEventID,
				"new_queue_id", registration.QueueID,
				"new_last_event_id", registration.LastEventID)
		}
		s.queueID = registration.QueueID
		s.lastEventID = registration.LastEventID
		s.state = StateRegistered
		s.mu.Unlock()

		if !replacing {
			s.logger.Info("event queue registered",
				"queue_id", registration.QueueID,
				"last_event_id", registration.LastEventID)
		}
		return nil
	}
}

// deliver invokes the handler with panic isolation: a panicking handler
// loses its event but never kills the polling loop.
func (s *EventSource) deliver(ctx context.Context, handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("event handler panicked",
				"event_id", event.ID,
				"event_type", event.Type,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	handler(ctx, event)
}

// deregister deletes the current queue using a short fresh context,
// because the loop's context is already cancelled by the time shutdown
// reaches here.
func (s *EventSource) deregister() {
	s.mu.Lock()
	queueID := s.queueID
	s.mu.Unlock()
	if queueID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.DeleteQueue(ctx, queueID); err != nil {
		s.logger.Warn("queue deregistration failed", "queue_id", queueID, "error", err)
	}
}

func (s *EventSource) advance(eventID int64) {
	s.mu.Lock()
	if eventID > s.lastEventID {
		s.lastEventID = eventID
	}
	s.mu.Unlock()
}

func (s *EventSource) setState(state SourceState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// sleep waits for d or until ctx is cancelled. Returns false on
// cancellation.
func (s *EventSource) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-s.clock.After(d):
		return true
	}
}
