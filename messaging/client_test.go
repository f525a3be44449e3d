// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/roostbot/roost/lib/secret"
)

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	key, err := secret.NewFromString("test-api-key")
	if err != nil {
		t.Fatalf("creating API key buffer: %v", err)
	}
	t.Cleanup(func() { key.Close() })
	client, err := NewClient(ClientConfig{
		ServerURL:  server.URL,
		Email:      "bot@example.com",
		APIKey:     key,
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestSendStreamMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/messages" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		email, key, ok := r.BasicAuth()
		if !ok || email != "bot@example.com" || key != "test-api-key" {
			t.Errorf("bad credentials: %q %q ok=%v", email, key, ok)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		if got := r.PostForm.Get("type"); got != "stream" {
			t.Errorf("type = %q, want stream", got)
		}
		if got := r.PostForm.Get("to"); got != "support" {
			t.Errorf("to = %q, want support", got)
		}
		if got := r.PostForm.Get("subject"); got != "greetings" {
			t.Errorf("subject = %q, want greetings", got)
		}
		if got := r.PostForm.Get("content"); got != "hello" {
			t.Errorf("content = %q, want hello", got)
		}
		w.Write([]byte(`{"result":"success","msg":"","id":42}`))
	}))
	defer server.Close()

	id, err := newTestClient(t, server).SendStreamMessage(context.Background(), "support", "greetings", "hello")
	if err != nil {
		t.Fatalf("SendStreamMessage failed: %v", err)
	}
	if id != 42 {
		t.Errorf("message ID = %d, want 42", id)
	}
}

func TestSendPrivateMessageEncodesRecipients(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		if got := r.PostForm.Get("type"); got != "private" {
			t.Errorf("type = %q, want private", got)
		}
		var recipients []string
		if err := json.Unmarshal([]byte(r.PostForm.Get("to")), &recipients); err != nil {
			t.Fatalf("to is not a JSON list: %v", err)
		}
		if len(recipients) != 2 || recipients[0] != "a@example.com" || recipients[1] != "b@example.com" {
			t.Errorf("recipients = %v", recipients)
		}
		w.Write([]byte(`{"result":"success","msg":"","id":7}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).SendPrivateMessage(
		context.Background(), []string{"a@example.com", "b@example.com"}, "psst")
	if err != nil {
		t.Fatalf("SendPrivateMessage failed: %v", err)
	}
}

func TestServerErrorBecomesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"result":"error","msg":"Bad event queue id: q1","code":"BAD_EVENT_QUEUE_ID"}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).GetEvents(context.Background(), "q1", -1)
	if err == nil {
		t.Fatal("GetEvents succeeded against an erroring server")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error is %T, want *APIError", err)
	}
	if apiErr.Code != CodeBadEventQueueID || apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("APIError = %+v", apiErr)
	}
	if !IsQueueExpired(err) {
		t.Error("IsQueueExpired = false for a BAD_EVENT_QUEUE_ID error")
	}
}

func TestErrorEnvelopeWithOKStatus(t *testing.T) {
	// Some deployments front the server with proxies that rewrite
	// status codes; the envelope's result field is authoritative.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"error","msg":"Invalid narrow","code":"BAD_REQUEST"}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).RegisterQueue(context.Background(), nil, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error is %T, want *APIError", err)
	}
	if apiErr.Code != "BAD_REQUEST" {
		t.Errorf("Code = %q, want BAD_REQUEST", apiErr.Code)
	}
}

func TestRegisterQueue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/register" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		var eventTypes []string
		if err := json.Unmarshal([]byte(r.PostForm.Get("event_types")), &eventTypes); err != nil {
			t.Fatalf("event_types is not a JSON list: %v", err)
		}
		if len(eventTypes) != 1 || eventTypes[0] != "message" {
			t.Errorf("event_types = %v, want [message]", eventTypes)
		}
		w.Write([]byte(`{"result":"success","msg":"","queue_id":"q-123","last_event_id":-1}`))
	}))
	defer server.Close()

	registration, err := newTestClient(t, server).RegisterQueue(
		context.Background(), []string{"message"}, nil)
	if err != nil {
		t.Fatalf("RegisterQueue failed: %v", err)
	}
	if registration.QueueID != "q-123" || registration.LastEventID != -1 {
		t.Errorf("registration = %+v", registration)
	}
}

func TestGetEventsRequestShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/v1/events" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		query := r.URL.Query()
		if got := query.Get("queue_id"); got != "q-123" {
			t.Errorf("queue_id = %q", got)
		}
		if got := query.Get("last_event_id"); got != "17" {
			t.Errorf("last_event_id = %q", got)
		}
		w.Write([]byte(`{"result":"success","msg":"","events":[
			{"id":18,"type":"message","flags":["mentioned"],"message":{
				"id":900,"sender_id":5,"sender_email":"user@example.com",
				"sender_full_name":"User","type":"stream","content":"!ping",
				"subject":"ops","timestamp":1760000000,"display_recipient":"support"}}]}`))
	}))
	defer server.Close()

	events, err := newTestClient(t, server).GetEvents(context.Background(), "q-123", 17)
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	event := events[0]
	if event.ID != 18 || event.Type != EventTypeMessage {
		t.Errorf("event = %+v", event)
	}
	if !event.Mentioned() {
		t.Error("Mentioned = false for a mentioned flag")
	}
	if event.Message == nil || event.Message.Stream() != "support" {
		t.Errorf("message = %+v", event.Message)
	}
}

func TestRecipientDecoding(t *testing.T) {
	t.Run("stream", func(t *testing.T) {
		var r Recipient
		if err := json.Unmarshal([]byte(`"general"`), &r); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if r.Stream() != "general" || r.Users() != nil {
			t.Errorf("recipient = %+v", r)
		}
	})
	t.Run("users", func(t *testing.T) {
		var r Recipient
		data := `[{"id":1,"email":"a@example.com","full_name":"A"},{"id":2,"email":"b@example.com","full_name":"B"}]`
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		users := r.Users()
		if r.Stream() != "" || len(users) != 2 || users[1].Email != "b@example.com" {
			t.Errorf("recipient = %+v", r)
		}
	})
}

func TestDeleteQueueToleratesExpiredQueue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"result":"error","msg":"Bad event queue id","code":"BAD_EVENT_QUEUE_ID"}`))
	}))
	defer server.Close()

	if err := newTestClient(t, server).DeleteQueue(context.Background(), "gone"); err != nil {
		t.Errorf("DeleteQueue of an expired queue = %v, want nil", err)
	}
}
