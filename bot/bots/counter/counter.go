// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

// Package counter is a bot that keeps named counters in its cache
// namespace, so counts survive restarts once flushed.
package counter

import (
	"context"
	"strconv"

	"github.com/roostbot/roost/bot"
	"github.com/roostbot/roost/command"
	"github.com/roostbot/roost/messaging"
)

func init() {
	bot.RegisterFactory("counter", func() bot.Bot { return &Counter{} })
}

type Counter struct {
	rt *bot.Runtime
}

func (c *Counter) OnStart(ctx context.Context, rt *bot.Runtime) error {
	c.rt = rt
	return nil
}

// OnMessage ignores chatter; the counter only reacts to commands.
func (c *Counter) OnMessage(context.Context, *bot.Runtime, *messaging.Message) error {
	return nil
}

func (c *Counter) Commands() []*command.Spec {
	return []*command.Spec{
		{
			Name:        "count",
			Description: "increment a counter and show its value",
			Args: []command.Arg{
				{Name: "name", Kind: command.KindString, Description: "counter name, default \"default\""},
				{Name: "by", Kind: command.KindInt, Description: "increment, default 1"},
			},
			Handler: c.count,
		},
		{
			Name:        "total",
			Description: "show a counter without changing it",
			Args: []command.Arg{
				{Name: "name", Kind: command.KindString, Description: "counter name, default \"default\""},
			},
			Handler: c.total,
		},
		{
			Name:        "reset",
			Description: "reset a counter to zero",
			MinLevel:    50,
			Args: []command.Arg{
				{Name: "name", Kind: command.KindString, Description: "counter name, default \"default\""},
			},
			Handler: c.reset,
		},
	}
}

func (c *Counter) count(ctx context.Context, call *command.Call) error {
	name := counterName(call)
	by := int64(1)
	if call.Args.Has("by") {
		by = call.Args.Int("by")
	}

	var value int64
	if _, err := c.rt.Cache().Get(ctx, name, &value); err != nil {
		return err
	}
	value += by
	if err := c.rt.Cache().Put(name, value); err != nil {
		return err
	}
	return call.Reply(ctx, c.rt.Translate("counter.value", map[string]string{
		"name":  name,
		"value": strconv.FormatInt(value, 10),
	}))
}

func (c *Counter) total(ctx context.Context, call *command.Call) error {
	name := counterName(call)
	var value int64
	if _, err := c.rt.Cache().Get(ctx, name, &value); err != nil {
		return err
	}
	return call.Reply(ctx, c.rt.Translate("counter.value", map[string]string{
		"name":  name,
		"value": strconv.FormatInt(value, 10),
	}))
}

func (c *Counter) reset(ctx context.Context, call *command.Call) error {
	name := counterName(call)
	if err := c.rt.Cache().Put(name, int64(0)); err != nil {
		return err
	}
	return call.Reply(ctx, c.rt.Translate("counter.reset", map[string]string{"name": name}))
}

func counterName(call *command.Call) string {
	if call.Args.Has("name") {
		return call.Args.String("name")
	}
	return "default"
}

var (
	_ bot.Bot             = (*Counter)(nil)
	_ bot.Starter         = (*Counter)(nil)
	_ bot.CommandProvider = (*Counter)(nil)
)
