// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

// Package bot defines the bot programming model and the runner that
// wires a bot to the chat server: event queue, command dispatch,
// permission gating, cache namespace, and translated replies.
package bot

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roostbot/roost/command"
	"github.com/roostbot/roost/messaging"
)

// Bot is the minimal bot implementation: it receives every non-command
// message addressed to it. Everything else is opt-in through the
// extension interfaces.
type Bot interface {
	OnMessage(ctx context.Context, rt *Runtime, message *messaging.Message) error
}

// EventHandler receives raw non-message events when the bot's queue is
// configured to deliver them.
type EventHandler interface {
	OnEvent(ctx context.Context, rt *Runtime, event messaging.Event) error
}

// Starter runs after the runner has connected and before the first
// event is delivered.
type Starter interface {
	OnStart(ctx context.Context, rt *Runtime) error
}

// Stopper runs during graceful shutdown, after the event loop has
// stopped and the final cache flush has completed.
type Stopper interface {
	OnStop(ctx context.Context, rt *Runtime) error
}

// CommandProvider contributes command specifications to the bot's
// registry.
type CommandProvider interface {
	Commands() []*command.Spec
}

// Factory constructs a bot instance.
type Factory func() Bot

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// RegisterFactory makes a bot implementation available under name.
// Implementations call this from init; the daemon resolves configured
// bot names against it. Duplicate names panic, like a duplicate flag
// registration would.
func RegisterFactory(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("bot: factory %q registered twice", name))
	}
	factories[name] = factory
}

// NewBot instantiates the bot implementation registered under name.
func NewBot(name string) (Bot, error) {
	factoriesMu.RLock()
	factory, ok := factories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("bot: no implementation registered for %q (have %v)", name, FactoryNames())
	}
	return factory(), nil
}

// FactoryNames lists the registered bot implementations, sorted.
func FactoryNames() []string {
	factoriesMu.RLock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	factoriesMu.RUnlock()
	sort.Strings(names)
	return names
}
