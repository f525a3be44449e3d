// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

// Package echo is the smallest useful bot: it repeats what it hears.
package echo

import (
	"context"
	"strings"

	"github.com/roostbot/roost/bot"
	"github.com/roostbot/roost/command"
	"github.com/roostbot/roost/messaging"
)

func init() {
	bot.RegisterFactory("echo", func() bot.Bot { return &Echo{} })
}

type Echo struct{}

// OnMessage repeats any non-command message back to its origin.
func (e *Echo) OnMessage(ctx context.Context, rt *bot.Runtime, message *messaging.Message) error {
	return rt.Reply(ctx, message, message.Content)
}

// Commands adds an explicit echo command for use inside streams where
// the bot ignores unaddressed chatter.
func (e *Echo) Commands() []*command.Spec {
	return []*command.Spec{
		{
			Name:        "echo",
			Description: "repeat the given text",
			Args: []command.Arg{
				{Name: "text", Kind: command.KindString, Required: true, Multiple: true,
					Description: "the words to repeat"},
			},
			Handler: func(ctx context.Context, call *command.Call) error {
				words := make([]string, 0, len(call.Args.List("text")))
				for _, value := range call.Args.List("text") {
					words = append(words, value.(string))
				}
				return call.Reply(ctx, strings.Join(words, " "))
			},
		},
	}
}

var (
	_ bot.Bot             = (*Echo)(nil)
	_ bot.CommandProvider = (*Echo)(nil)
)
