// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roostbot/roost/cache"
	"github.com/roostbot/roost/lib/translate"
	"github.com/roostbot/roost/messaging"
)

// Runtime is the per-bot handle passed to every bot callback. It
// bundles the bot's view of the world: its identity, its cache
// namespace, its translation catalog, and reply helpers that address
// messages back to where they came from.
type Runtime struct {
	client  *messaging.Client
	cache   *cache.Namespace
	catalog *translate.Catalog
	logger  *slog.Logger
	profile *messaging.Profile
}

// Profile returns the bot account's identity.
func (rt *Runtime) Profile() *messaging.Profile { return rt.profile }

// Logger returns the bot's logger.
func (rt *Runtime) Logger() *slog.Logger { return rt.logger }

// Cache returns the bot's private cache namespace.
func (rt *Runtime) Cache() *cache.Namespace { return rt.cache }

// Translate renders a translated reply string.
func (rt *Runtime) Translate(key string, params map[string]string) string {
	return rt.catalog.Render(key, params)
}

// Reply sends text back to the origin of message: the same stream and
// topic for stream messages, a direct message to all participants for
// private messages.
func (rt *Runtime) Reply(ctx context.Context, message *messaging.Message, text string) error {
	if message.IsPrivate() {
		return rt.ReplyPrivate(ctx, message, text)
	}
	_, err := rt.client.SendStreamMessage(ctx, message.Stream(), message.Subject, text)
	return err
}

// ReplyPrivate sends text as a direct message to the conversation's
// participants, excluding the bot itself. A stream message is answered
// privately to its sender.
func (rt *Runtime) ReplyPrivate(ctx context.Context, message *messaging.Message, text string) error {
	recipients := make([]string, 0, 2)
	for _, user := range message.DisplayRecipient.Users() {
		if user.ID != rt.profile.UserID {
			recipients = append(recipients, user.Email)
		}
	}
	if len(recipients) == 0 {
		if message.SenderEmail == "" {
			return fmt.Errorf("bot: message %d has no addressable sender", message.ID)
		}
		recipients = append(recipients, message.SenderEmail)
	}
	_, err := rt.client.SendPrivateMessage(ctx, recipients, text)
	return err
}

// SendStream posts to an arbitrary stream and topic, for bots that
// speak up outside of replies.
func (rt *Runtime) SendStream(ctx context.Context, stream, topic, text string) error {
	_, err := rt.client.SendStreamMessage(ctx, stream, topic, text)
	return err
}
