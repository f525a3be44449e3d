// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"
	"fmt"
)

// Message delivery types as they appear on the wire.
const (
	MessageTypeStream  = "stream"
	MessageTypePrivate = "private"
)

// Event types the client distinguishes. The server defines many more;
// anything unrecognized is passed through to the handler untouched.
const (
	EventTypeMessage   = "message"
	EventTypeHeartbeat = "heartbeat"
)

// Message is a chat message as delivered inside a message event.
type Message struct {
	ID             int64  `json:"id"`
	SenderID       int64  `json:"sender_id"`
	SenderEmail    string `json:"sender_email"`
	SenderFullName string `json:"sender_full_name"`

	// Type is MessageTypeStream or MessageTypePrivate.
	Type string `json:"type"`

	Content string `json:"content"`

	// Subject is the topic for stream messages, empty for private
	// messages.
	Subject string `json:"subject"`

	// Timestamp is seconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`

	DisplayRecipient Recipient `json:"display_recipient"`
}

// IsPrivate reports whether the message was sent directly to the bot
// rather than to a stream.
func (m *Message) IsPrivate() bool { return m.Type == MessageTypePrivate }

// Stream returns the stream name for stream messages, or "" for
// private messages.
func (m *Message) Stream() string { return m.DisplayRecipient.Stream() }

// Recipient is the polymorphic display_recipient field of a message:
// a stream name for stream messages, a list of users for private
// messages.
type Recipient struct {
	stream string
	users  []RecipientUser
}

// RecipientUser identifies one participant of a private message.
type RecipientUser struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// StreamRecipient returns a Recipient naming a stream.
func StreamRecipient(name string) Recipient { return Recipient{stream: name} }

// UserRecipients returns a Recipient listing private message
// participants.
func UserRecipients(users ...RecipientUser) Recipient { return Recipient{users: users} }

// Stream returns the stream name, or "" if this recipient is a user
// list.
func (r Recipient) Stream() string { return r.stream }

// Users returns the private message participants, or nil if this
// recipient is a stream.
func (r Recipient) Users() []RecipientUser { return r.users }

func (r *Recipient) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		r.users = nil
		return json.Unmarshal(data, &r.stream)
	}
	r.stream = ""
	if err := json.Unmarshal(data, &r.users); err != nil {
		return fmt.Errorf("display_recipient is neither a stream name nor a user list: %w", err)
	}
	return nil
}

func (r Recipient) MarshalJSON() ([]byte, error) {
	if r.users != nil {
		return json.Marshal(r.users)
	}
	return json.Marshal(r.stream)
}

// Event is one entry from the server's event queue.
type Event struct {
	// ID is the queue-local sequence number. IDs are strictly
	// increasing within one queue registration and reset when a new
	// queue is registered.
	ID int64 `json:"id"`

	Type string `json:"type"`

	// Message is set for message events.
	Message *Message `json:"message,omitempty"`

	// Flags carries per-recipient message flags such as "mentioned"
	// and "read".
	Flags []string `json:"flags,omitempty"`
}

// Mentioned reports whether the event's message mentions the receiving
// user.
func (e *Event) Mentioned() bool {
	for _, flag := range e.Flags {
		if flag == "mentioned" || flag == "wildcard_mentioned" {
			return true
		}
	}
	return false
}

// Profile describes the authenticated user, as returned by the server's
// own-profile endpoint.
type Profile struct {
	UserID   int64  `json:"user_id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	IsBot    bool   `json:"is_bot"`
}

// QueueRegistration is the server's answer to a queue registration:
// the queue to poll and the event ID to poll from.
type QueueRegistration struct {
	QueueID     string `json:"queue_id"`
	LastEventID int64  `json:"last_event_id"`
}

// Narrow restricts an event queue to matching messages. Each filter is
// an operator and an operand, for example {"stream", "support"}.
type Narrow [][2]string
