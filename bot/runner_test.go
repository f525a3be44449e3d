// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/roostbot/roost/cache"
	"github.com/roostbot/roost/command"
	"github.com/roostbot/roost/lib/codec"
	"github.com/roostbot/roost/lib/config"
	"github.com/roostbot/roost/lib/secret"
	"github.com/roostbot/roost/lib/testutil"
	"github.com/roostbot/roost/messaging"
	"github.com/roostbot/roost/store"
)

const (
	botUserID   = 99
	botEmail    = "roost-bot@example.com"
	botFullName = "Roost"
	senderID    = 5
	senderEmail = "user@example.com"
	adminEmail  = "ops@example.com"
)

type sentMessage struct {
	Type    string
	To      string
	Topic   string
	Content string
}

// chatServer scripts the handful of API endpoints the runner touches.
// Event polls block until the test enqueues a batch; sent messages come
// out of the Sent channel.
type chatServer struct {
	t *testing.T

	Polls chan []messaging.Event
	Sent  chan sentMessage

	mu       sync.Mutex
	deleted  int
	presence int
}

func newChatServer(t *testing.T) (*chatServer, *httptest.Server) {
	t.Helper()
	cs := &chatServer{
		t:     t,
		Polls: make(chan []messaging.Event, 16),
		Sent:  make(chan sentMessage, 16),
	}
	server := httptest.NewServer(cs)
	t.Cleanup(server.Close)
	return cs, server
}

func (cs *chatServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/users/me":
		fmt.Fprintf(w, `{"result":"success","msg":"","user_id":%d,"email":%q,"full_name":%q,"is_bot":true}`,
			botUserID, botEmail, botFullName)

	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/users/me/presence":
		cs.mu.Lock()
		cs.presence++
		cs.mu.Unlock()
		fmt.Fprint(w, `{"result":"success","msg":""}`)

	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/register":
		fmt.Fprint(w, `{"result":"success","msg":"","queue_id":"q-1","last_event_id":-1}`)

	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/events":
		select {
		case events := <-cs.Polls:
			json.NewEncoder(w).Encode(map[string]any{
				"result": "success", "msg": "", "events": events,
			})
		case <-r.Context().Done():
		}

	case r.Method == http.MethodDelete && r.URL.Path == "/api/v1/events":
		cs.mu.Lock()
		cs.deleted++
		cs.mu.Unlock()
		fmt.Fprint(w, `{"result":"success","msg":""}`)

	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/messages":
		if err := r.ParseForm(); err != nil {
			cs.t.Errorf("parsing send form: %v", err)
		}
		cs.Sent <- sentMessage{
			Type:    r.PostForm.Get("type"),
			To:      r.PostForm.Get("to"),
			Topic:   r.PostForm.Get("subject"),
			Content: r.PostForm.Get("content"),
		}
		fmt.Fprint(w, `{"result":"success","msg":"","id":1}`)

	default:
		cs.t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		http.NotFound(w, r)
	}
}

func (cs *chatServer) deletedCount() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.deleted
}

// testBot records callbacks and contributes an add command.
type testBot struct {
	messages chan *messaging.Message
	started  atomic.Bool
	stopped  atomic.Bool
}

func newInstrumentedBot() *testBot {
	return &testBot{messages: make(chan *messaging.Message, 16)}
}

func (b *testBot) OnStart(context.Context, *Runtime) error {
	b.started.Store(true)
	return nil
}

func (b *testBot) OnStop(context.Context, *Runtime) error {
	b.stopped.Store(true)
	return nil
}

func (b *testBot) OnMessage(_ context.Context, rt *Runtime, message *messaging.Message) error {
	if err := rt.Cache().Put("last_message", message.Content); err != nil {
		return err
	}
	b.messages <- message
	return nil
}

func (b *testBot) Commands() []*command.Spec {
	return []*command.Spec{
		{
			Name:        "add",
			Description: "add two integers",
			Args: []command.Arg{
				{Name: "a", Kind: command.KindInt, Required: true},
				{Name: "b", Kind: command.KindInt, Required: true},
			},
			Handler: func(ctx context.Context, call *command.Call) error {
				return call.Reply(ctx, fmt.Sprintf("%d", call.Args.Int("a")+call.Args.Int("b")))
			},
		},
		{
			Name:        "purge",
			Description: "admin only",
			MinLevel:    50,
			Handler: func(ctx context.Context, call *command.Call) error {
				return call.Reply(ctx, "purged")
			},
		},
	}
}

func streamMessage(id int64, sender int64, email, content string) messaging.Event {
	return messaging.Event{
		ID:   id,
		Type: messaging.EventTypeMessage,
		Message: &messaging.Message{
			ID:               id + 1000,
			SenderID:         sender,
			SenderEmail:      email,
			SenderFullName:   "User",
			Type:             messaging.MessageTypeStream,
			Content:          content,
			Subject:          "ops",
			DisplayRecipient: messaging.StreamRecipient("support"),
		},
	}
}

type runnerHarness struct {
	bot     *testBot
	server  *chatServer
	backing *store.Memory
	stop    func()
}

func startRunner(t *testing.T, mutate func(*config.BotConfig)) *runnerHarness {
	t.Helper()
	cs, server := newChatServer(t)

	key, err := secret.NewFromString("test-key")
	if err != nil {
		t.Fatalf("creating key: %v", err)
	}
	t.Cleanup(func() { key.Close() })

	client, err := messaging.NewClient(messaging.ClientConfig{
		ServerURL:  server.URL,
		Email:      botEmail,
		APIKey:     key,
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	backing := store.NewMemory()
	kvCache, err := cache.New(cache.Config{Store: backing})
	if err != nil {
		t.Fatalf("cache.New failed: %v", err)
	}

	botConfig := &config.BotConfig{
		Name:            "testbot",
		CredentialsFile: "unused",
		MentionCommands: true,
		Roles:           map[string]int{"admin": 100},
		Users:           map[string]string{adminEmail: "admin"},
	}
	if mutate != nil {
		mutate(botConfig)
	}

	instrumented := newInstrumentedBot()
	runner, err := NewRunner(RunnerConfig{
		Bot:       instrumented,
		BotConfig: botConfig,
		Client:    client,
		Cache:     kvCache,
	})
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := runner.Run(ctx); err != nil {
			t.Errorf("Run returned an error: %v", err)
		}
	}()

	return &runnerHarness{
		bot:     instrumented,
		server:  cs,
		backing: backing,
		stop: func() {
			cancel()
			testutil.RequireClosed(t, done, 5*time.Second, "waiting for runner shutdown")
		},
	}
}

func TestRunnerDispatchesCommands(t *testing.T) {
	h := startRunner(t, nil)
	defer h.stop()

	h.server.Polls <- []messaging.Event{streamMessage(0, senderID, senderEmail, "!add 1 2")}

	sent := testutil.RequireReceive(t, h.server.Sent, 5*time.Second, "waiting for command reply")
	if sent.Content != "3" {
		t.Errorf("reply = %q, want 3", sent.Content)
	}
	if sent.Type != "stream" || sent.To != "support" || sent.Topic != "ops" {
		t.Errorf("reply addressing = %+v, want the origin stream and topic", sent)
	}
}

func TestRunnerPermissionGate(t *testing.T) {
	h := startRunner(t, nil)
	defer h.stop()

	h.server.Polls <- []messaging.Event{streamMessage(0, senderID, senderEmail, "!purge")}
	denied := testutil.RequireReceive(t, h.server.Sent, 5*time.Second, "waiting for denial reply")
	if !strings.Contains(denied.Content, "not allowed") {
		t.Errorf("denial reply = %q", denied.Content)
	}

	h.server.Polls <- []messaging.Event{streamMessage(1, 7, adminEmail, "!purge")}
	allowed := testutil.RequireReceive(t, h.server.Sent, 5*time.Second, "waiting for admin reply")
	if allowed.Content != "purged" {
		t.Errorf("admin reply = %q", allowed.Content)
	}
}

func TestRunnerTranslatedArgumentErrors(t *testing.T) {
	h := startRunner(t, nil)
	defer h.stop()

	h.server.Polls <- []messaging.Event{streamMessage(0, senderID, senderEmail, "!add 1")}
	sent := testutil.RequireReceive(t, h.server.Sent, 5*time.Second, "waiting for error reply")
	if !strings.Contains(sent.Content, "Missing argument b") {
		t.Errorf("error reply = %q, want a rendered missing-argument message", sent.Content)
	}
}

func TestRunnerSkipsOwnMessages(t *testing.T) {
	h := startRunner(t, nil)
	defer h.stop()

	h.server.Polls <- []messaging.Event{
		streamMessage(0, botUserID, botEmail, "!add 1 2"),
		streamMessage(1, senderID, senderEmail, "!add 2 3"),
	}

	sent := testutil.RequireReceive(t, h.server.Sent, 5*time.Second, "waiting for reply")
	if sent.Content != "5" {
		t.Errorf("reply = %q; the bot answered its own message", sent.Content)
	}
}

func TestRunnerFallsBackToOnMessage(t *testing.T) {
	h := startRunner(t, nil)
	defer h.stop()

	h.server.Polls <- []messaging.Event{streamMessage(0, senderID, senderEmail, "good morning")}
	message := testutil.RequireReceive(t, h.bot.messages, 5*time.Second, "waiting for OnMessage")
	if message.Content != "good morning" {
		t.Errorf("OnMessage content = %q", message.Content)
	}
}

func TestRunnerMentionTrigger(t *testing.T) {
	h := startRunner(t, nil)
	defer h.stop()

	content := "@**" + botFullName + "** add 4 5"
	h.server.Polls <- []messaging.Event{streamMessage(0, senderID, senderEmail, content)}
	sent := testutil.RequireReceive(t, h.server.Sent, 5*time.Second, "waiting for mention reply")
	if sent.Content != "9" {
		t.Errorf("reply = %q, want 9", sent.Content)
	}
}

func TestRunnerHelpCommand(t *testing.T) {
	h := startRunner(t, nil)
	defer h.stop()

	h.server.Polls <- []messaging.Event{streamMessage(0, senderID, senderEmail, "!help")}
	sent := testutil.RequireReceive(t, h.server.Sent, 5*time.Second, "waiting for help reply")
	if !strings.Contains(sent.Content, "!add <a:int> <b:int>") {
		t.Errorf("help reply missing add usage:\n%s", sent.Content)
	}
	// The unprivileged caller must not see the admin command.
	if strings.Contains(sent.Content, "purge") {
		t.Errorf("help reply leaks an admin command:\n%s", sent.Content)
	}
}

func TestRunnerLifecycle(t *testing.T) {
	h := startRunner(t, nil)

	h.server.Polls <- []messaging.Event{streamMessage(0, senderID, senderEmail, "hello")}
	testutil.RequireReceive(t, h.bot.messages, 5*time.Second, "waiting for first event")

	if !h.bot.started.Load() {
		t.Error("OnStart never ran")
	}

	h.stop()

	if !h.bot.stopped.Load() {
		t.Error("OnStop never ran")
	}
	if h.server.deletedCount() != 1 {
		t.Errorf("queue deletions = %d, want 1", h.server.deletedCount())
	}

	// The shutdown flush must have persisted the unflushed write.
	raw, err := h.backing.Get(context.Background(), "testbot", "last_message")
	if err != nil {
		t.Fatalf("reading flushed value: %v", err)
	}
	var content string
	if err := codec.Unmarshal(raw, &content); err != nil {
		t.Fatalf("decoding flushed value: %v", err)
	}
	if content != "hello" {
		t.Errorf("flushed value = %q, want hello", content)
	}
}

func TestRunnerPrivateReplyAddressing(t *testing.T) {
	h := startRunner(t, nil)
	defer h.stop()

	h.server.Polls <- []messaging.Event{{
		ID:   0,
		Type: messaging.EventTypeMessage,
		Message: &messaging.Message{
			ID:          2000,
			SenderID:    senderID,
			SenderEmail: senderEmail,
			Type:        messaging.MessageTypePrivate,
			Content:     "!add 10 20",
			DisplayRecipient: messaging.UserRecipients(
				messaging.RecipientUser{ID: senderID, Email: senderEmail},
				messaging.RecipientUser{ID: botUserID, Email: botEmail},
			),
		},
	}}

	sent := testutil.RequireReceive(t, h.server.Sent, 5*time.Second, "waiting for private reply")
	if sent.Type != "private" {
		t.Errorf("reply type = %q, want private", sent.Type)
	}
	if !strings.Contains(sent.To, senderEmail) || strings.Contains(sent.To, botEmail) {
		t.Errorf("reply recipients = %q, want the sender and not the bot", sent.To)
	}
	if sent.Content != "30" {
		t.Errorf("reply = %q, want 30", sent.Content)
	}
}
