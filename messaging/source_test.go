// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/roostbot/roost/lib/testutil"
)

// pollResponse scripts one answer to a GET /events long poll.
type pollResponse struct {
	events []Event
	apiErr *APIError
}

// queueServer is a scripted chat server for EventSource tests. Each
// events poll blocks until the test enqueues a pollResponse, which
// mirrors the real server's long-poll behavior.
type queueServer struct {
	t *testing.T

	mu            sync.Mutex
	registrations int
	deleted       []string

	polls chan pollResponse
}

func newQueueServer(t *testing.T) (*queueServer, *httptest.Server) {
	t.Helper()
	qs := &queueServer{t: t, polls: make(chan pollResponse, 16)}
	server := httptest.NewServer(qs)
	t.Cleanup(server.Close)
	return qs, server
}

func (qs *queueServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/register":
		qs.mu.Lock()
		qs.registrations++
		queueID := fmt.Sprintf("queue-%d", qs.registrations)
		qs.mu.Unlock()
		fmt.Fprintf(w, `{"result":"success","msg":"","queue_id":%q,"last_event_id":-1}`, queueID)

	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/events":
		select {
		case response := <-qs.polls:
			if response.apiErr != nil {
				w.WriteHeader(response.apiErr.StatusCode)
				json.NewEncoder(w).Encode(map[string]any{
					"result": "error",
					"msg":    response.apiErr.Message,
					"code":   response.apiErr.Code,
				})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"result": "success",
				"msg":    "",
				"events": response.events,
			})
		case <-r.Context().Done():
		}

	case r.Method == http.MethodDelete && r.URL.Path == "/api/v1/events":
		qs.mu.Lock()
		qs.deleted = append(qs.deleted, r.URL.Query().Get("queue_id"))
		qs.mu.Unlock()
		fmt.Fprint(w, `{"result":"success","msg":""}`)

	default:
		qs.t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		http.NotFound(w, r)
	}
}

func (qs *queueServer) registrationCount() int {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	return qs.registrations
}

func (qs *queueServer) deletedQueues() []string {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	return append([]string(nil), qs.deleted...)
}

func messageEvent(id int64, content string) Event {
	return Event{
		ID:   id,
		Type: EventTypeMessage,
		Message: &Message{
			ID:               id + 1000,
			SenderID:         5,
			Type:             MessageTypeStream,
			Content:          content,
			Subject:          "ops",
			DisplayRecipient: StreamRecipient("support"),
		},
	}
}

// startSource runs an EventSource against the scripted server and
// returns a channel of delivered events plus a stop function that
// cancels the loop and waits for Run to return.
func startSource(t *testing.T, server *httptest.Server, handler Handler) (stop func()) {
	t.Helper()
	client := newTestClient(t, server)
	source, err := NewEventSource(SourceConfig{
		Client:         client,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewEventSource failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := source.Run(ctx, handler); err != nil {
			t.Errorf("Run returned an error: %v", err)
		}
	}()
	return func() {
		cancel()
		testutil.RequireClosed(t, done, 5*time.Second, "waiting for Run to return")
		if got := source.State(); got != StateClosed {
			t.Errorf("state after Run = %q, want closed", got)
		}
	}
}

func TestSourceDeliversEventsInOrder(t *testing.T) {
	qs, server := newQueueServer(t)
	qs.polls <- pollResponse{events: []Event{
		messageEvent(0, "first"),
		messageEvent(1, "second"),
	}}

	delivered := make(chan Event, 16)
	stop := startSource(t, server, func(_ context.Context, event Event) {
		delivered <- event
	})

	first := testutil.RequireReceive(t, delivered, 5*time.Second, "waiting for first event")
	second := testutil.RequireReceive(t, delivered, 5*time.Second, "waiting for second event")
	if first.Message.Content != "first" || second.Message.Content != "second" {
		t.Errorf("events arrived out of order: %q, %q",
			first.Message.Content, second.Message.Content)
	}

	stop()

	// Shutdown deregisters the queue.
	deleted := qs.deletedQueues()
	if len(deleted) != 1 || deleted[0] != "queue-1" {
		t.Errorf("deleted queues = %v, want [queue-1]", deleted)
	}
}

func TestSourceSkipsHeartbeatsAndDuplicates(t *testing.T) {
	qs, server := newQueueServer(t)
	qs.polls <- pollResponse{events: []Event{
		{ID: 0, Type: EventTypeHeartbeat},
		messageEvent(1, "once"),
	}}
	// The server may resend acknowledged events after a lost response.
	qs.polls <- pollResponse{events: []Event{
		messageEvent(1, "once"),
		messageEvent(2, "twice"),
	}}

	delivered := make(chan Event, 16)
	stop := startSource(t, server, func(_ context.Context, event Event) {
		delivered <- event
	})
	defer stop()

	first := testutil.RequireReceive(t, delivered, 5*time.Second, "waiting for first delivery")
	second := testutil.RequireReceive(t, delivered, 5*time.Second, "waiting for second delivery")
	if first.ID != 1 || second.ID != 2 {
		t.Errorf("delivered IDs = %d, %d; want 1, 2", first.ID, second.ID)
	}
	select {
	case extra := <-delivered:
		t.Errorf("unexpected extra delivery: %+v", extra)
	default:
	}
}

func TestSourceReRegistersExpiredQueue(t *testing.T) {
	qs, server := newQueueServer(t)
	qs.polls <- pollResponse{apiErr: &APIError{
		Code:       CodeBadEventQueueID,
		Message:    "Bad event queue id: queue-1",
		StatusCode: http.StatusBadRequest,
	}}
	qs.polls <- pollResponse{events: []Event{messageEvent(0, "after expiry")}}

	delivered := make(chan Event, 16)
	stop := startSource(t, server, func(_ context.Context, event Event) {
		delivered <- event
	})
	defer stop()

	event := testutil.RequireReceive(t, delivered, 5*time.Second, "waiting for post-expiry event")
	if event.Message.Content != "after expiry" {
		t.Errorf("event content = %q", event.Message.Content)
	}
	if got := qs.registrationCount(); got != 2 {
		t.Errorf("registrations = %d, want 2", got)
	}
}

func TestSourceBacksOffOnTransientErrors(t *testing.T) {
	qs, server := newQueueServer(t)
	qs.polls <- pollResponse{apiErr: &APIError{
		Message:    "internal server error",
		StatusCode: http.StatusInternalServerError,
	}}
	qs.polls <- pollResponse{events: []Event{messageEvent(0, "recovered")}}

	delivered := make(chan Event, 16)
	stop := startSource(t, server, func(_ context.Context, event Event) {
		delivered <- event
	})
	defer stop()

	event := testutil.RequireReceive(t, delivered, 5*time.Second, "waiting for recovery")
	if event.Message.Content != "recovered" {
		t.Errorf("event content = %q", event.Message.Content)
	}
	// A transient error must not burn the queue registration.
	if got := qs.registrationCount(); got != 1 {
		t.Errorf("registrations = %d, want 1", got)
	}
}

func TestSourceSurvivesHandlerPanic(t *testing.T) {
	qs, server := newQueueServer(t)
	qs.polls <- pollResponse{events: []Event{
		messageEvent(0, "poison"),
		messageEvent(1, "fine"),
	}}

	delivered := make(chan Event, 16)
	stop := startSource(t, server, func(_ context.Context, event Event) {
		if event.Message.Content == "poison" {
			panic("handler blew up")
		}
		delivered <- event
	})
	defer stop()

	event := testutil.RequireReceive(t, delivered, 5*time.Second, "waiting for event after panic")
	if event.Message.Content != "fine" {
		t.Errorf("event content = %q", event.Message.Content)
	}
}

func TestSourceFatalAfterAttemptCeiling(t *testing.T) {
	qs, server := newQueueServer(t)
	transient := pollResponse{apiErr: &APIError{
		Message:    "internal server error",
		StatusCode: http.StatusInternalServerError,
	}}
	qs.polls <- transient
	qs.polls <- transient

	source, err := NewEventSource(SourceConfig{
		Client:         newTestClient(t, server),
		InitialBackoff: time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		MaxAttempts:    2,
	})
	if err != nil {
		t.Fatalf("NewEventSource failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- source.Run(context.Background(), func(context.Context, Event) {})
	}()

	runErr := testutil.RequireReceive(t, done, 5*time.Second, "waiting for Run to give up")
	if runErr == nil {
		t.Fatal("Run returned nil despite exceeding the attempt ceiling")
	}
	if got := source.State(); got != StateClosed {
		t.Errorf("state = %q, want closed", got)
	}
	// Giving up still releases the queue.
	if deleted := qs.deletedQueues(); len(deleted) != 1 {
		t.Errorf("deleted queues = %v, want exactly one", deleted)
	}
}
