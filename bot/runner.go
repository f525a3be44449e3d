// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roostbot/roost/cache"
	"github.com/roostbot/roost/command"
	"github.com/roostbot/roost/lib/clock"
	"github.com/roostbot/roost/lib/config"
	"github.com/roostbot/roost/lib/translate"
	"github.com/roostbot/roost/messaging"
)

// RunnerConfig carries the collaborators for one bot's Runner.
type RunnerConfig struct {
	// Bot is the implementation to run. Required.
	Bot Bot

	// BotConfig is the bot's configuration entry. Required.
	BotConfig *config.BotConfig

	// Client is the bot account's chat client. Required.
	Client *messaging.Client

	// Cache provides the bot's namespace, named after the bot.
	// Required.
	Cache *cache.Cache

	// Catalog renders user-visible strings. Defaults to an empty
	// catalog serving the builtin strings.
	Catalog *translate.Catalog

	Clock  clock.Clock
	Logger *slog.Logger

	// FlushInterval is the period of the background cache flush.
	// Zero disables periodic flushing; the shutdown flush still runs.
	FlushInterval time.Duration
}

// Runner connects one bot to the chat server and drives its event
// loop. Events are processed serially: a slow handler is the
// backpressure, not a dropped message.
type Runner struct {
	bot       Bot
	botConfig *config.BotConfig
	client    *messaging.Client
	cache     *cache.Cache
	catalog   *translate.Catalog
	clock     clock.Clock
	logger    *slog.Logger
	flushEach time.Duration

	registry   *command.Registry
	dispatcher *command.Dispatcher
	runtime    *Runtime
}

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Bot == nil {
		return nil, fmt.Errorf("bot: RunnerConfig.Bot is required")
	}
	if cfg.BotConfig == nil {
		return nil, fmt.Errorf("bot: RunnerConfig.BotConfig is required")
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("bot: RunnerConfig.Client is required")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("bot: RunnerConfig.Cache is required")
	}
	if cfg.Catalog == nil {
		cfg.Catalog = translate.NewCatalog(nil, nil)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runner{
		bot:       cfg.Bot,
		botConfig: cfg.BotConfig,
		client:    cfg.Client,
		cache:     cfg.Cache,
		catalog:   cfg.Catalog,
		clock:     cfg.Clock,
		logger:    cfg.Logger.With("bot", cfg.BotConfig.Name),
		flushEach: cfg.FlushInterval,
	}, nil
}

// Run connects the bot and processes events until ctx is cancelled.
// Shutdown order: event queue released, final cache flush, OnStop.
func (r *Runner) Run(ctx context.Context) error {
	profile, err := r.client.GetOwnProfile(ctx)
	if err != nil {
		return fmt.Errorf("bot %s: fetching profile: %w", r.botConfig.Name, err)
	}
	r.logger.Info("bot connected",
		"user_id", profile.UserID,
		"email", profile.Email,
		"full_name", profile.FullName)

	r.runtime = &Runtime{
		client:  r.client,
		cache:   r.cache.Namespace(r.botConfig.Name),
		catalog: r.catalog,
		logger:  r.logger,
		profile: profile,
	}
	if err := r.buildRegistry(profile); err != nil {
		return err
	}
	r.dispatcher = command.NewDispatcher(r.registry, r.logger)

	if err := r.client.SetPresence(ctx, "active"); err != nil {
		r.logger.Warn("presence update failed", "error", err)
	}

	if starter, ok := r.bot.(Starter); ok {
		if err := starter.OnStart(ctx, r.runtime); err != nil {
			return fmt.Errorf("bot %s: OnStart: %w", r.botConfig.Name, err)
		}
	}

	if r.flushEach > 0 {
		go r.flushLoop(ctx)
	}

	source, err := messaging.NewEventSource(messaging.SourceConfig{
		Client:     r.client,
		EventTypes: r.botConfig.EventTypes,
		Narrow:     r.narrow(),
		Clock:      r.clock,
		Logger:     r.logger,
	})
	if err != nil {
		return err
	}
	runErr := source.Run(ctx, r.handleEvent)

	r.shutdown()
	return runErr
}

// narrow converts the config's clause pairs to the wire type.
func (r *Runner) narrow() messaging.Narrow {
	if len(r.botConfig.Narrow) == 0 {
		return nil
	}
	narrow := make(messaging.Narrow, len(r.botConfig.Narrow))
	for i, clause := range r.botConfig.Narrow {
		narrow[i] = clause
	}
	return narrow
}

// buildRegistry assembles the bot's command registry: configured
// prefixes, mention aliases for the bot's identity, the bot's own
// commands, and the help command unless disabled.
func (r *Runner) buildRegistry(profile *messaging.Profile) error {
	r.registry = command.NewRegistry(r.botConfig.CommandPrefixes()...)

	if r.botConfig.MentionCommands {
		r.registry.AddAlias("@**" + profile.FullName + "**")
		r.registry.AddAlias("@**" + profile.Email + "**")
	}
	for _, alias := range r.botConfig.ExtraAliases {
		r.registry.AddAlias(alias)
	}

	if provider, ok := r.bot.(CommandProvider); ok {
		for _, spec := range provider.Commands() {
			if err := r.registry.Register(spec); err != nil {
				return fmt.Errorf("bot %s: %w", r.botConfig.Name, err)
			}
		}
	}
	if !r.botConfig.DisableHelp {
		trigger := r.botConfig.CommandPrefixes()[0]
		if err := r.registry.Register(r.registry.HelpSpec(trigger, r.catalog.Render)); err != nil {
			return fmt.Errorf("bot %s: %w", r.botConfig.Name, err)
		}
	}
	return nil
}

// flushLoop persists the bot's namespace periodically until ctx is
// cancelled. Failures are logged; the dirty entries wait for the next
// tick.
func (r *Runner) flushLoop(ctx context.Context) {
	ticker := r.clock.NewTicker(r.flushEach)
	defer ticker.Stop()
	namespace := r.runtime.Cache()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := namespace.Flush(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("periodic cache flush failed", "error", err)
			}
		}
	}
}

// handleEvent routes one event. Command errors become translated
// replies to the user; nothing escapes to the event source.
func (r *Runner) handleEvent(ctx context.Context, event messaging.Event) {
	if event.Type != messaging.EventTypeMessage || event.Message == nil {
		if handler, ok := r.bot.(EventHandler); ok {
			if err := handler.OnEvent(ctx, r.runtime, event); err != nil {
				r.logger.Error("event handler failed", "event_type", event.Type, "error", err)
			}
		}
		return
	}

	message := event.Message
	if message.SenderID == r.runtime.profile.UserID {
		return
	}

	caller := command.Caller{
		ID:    message.SenderID,
		Name:  message.SenderFullName,
		Email: message.SenderEmail,
		Level: r.botConfig.LevelFor(message.SenderEmail),
	}
	reply := func(ctx context.Context, text string) error {
		return r.runtime.Reply(ctx, message, text)
	}

	err := r.dispatcher.Dispatch(ctx, message.Content, caller, reply)
	switch {
	case err == nil:

	case errors.Is(err, command.ErrNotCommand):
		if err := r.bot.OnMessage(ctx, r.runtime, message); err != nil {
			r.logger.Error("message handler failed", "message_id", message.ID, "error", err)
		}

	default:
		r.replyError(ctx, message, err)
	}
}

// replyError turns a dispatch failure into a translated user-visible
// reply. Handler errors and panics render as a generic notice; the
// detail stays in the log.
func (r *Runner) replyError(ctx context.Context, message *messaging.Message, err error) {
	var userFacing command.UserFacing
	var key string
	var params map[string]string
	if errors.As(err, &userFacing) {
		key = userFacing.Key()
		params = userFacing.Params()
	} else {
		r.logger.Error("command failed", "message_id", message.ID, "error", err)
		key = "errors.internal"
		stripped, _ := r.registry.StripTrigger(message.Content)
		spec, _ := r.registry.FindSpec(stripped)
		params = map[string]string{"command": commandName(spec, stripped)}
	}
	text := r.catalog.Render(key, params)
	if err := r.runtime.Reply(ctx, message, text); err != nil {
		r.logger.Error("error reply failed", "message_id", message.ID, "error", err)
	}
}

func commandName(spec *command.Spec, stripped string) string {
	if spec != nil {
		return spec.Name
	}
	return stripped
}

// shutdown runs after the event loop has stopped. It uses a fresh
// short-lived context because the loop's context is already cancelled.
func (r *Runner) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.runtime.Cache().Flush(ctx); err != nil {
		r.logger.Error("final cache flush failed", "error", err)
	}
	if stopper, ok := r.bot.(Stopper); ok {
		if err := stopper.OnStop(ctx, r.runtime); err != nil {
			r.logger.Error("OnStop failed", "error", err)
		}
	}
	r.logger.Info("bot stopped")
}
