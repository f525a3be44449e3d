// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

// Roostd is the Roost bot host. It loads a YAML configuration, opens
// the shared persistent store, and runs every enabled bot against its
// chat server account until interrupted.
//
// On startup:
//  1. Loads configuration from --config or ROOST_CONFIG.
//  2. Opens the SQLite store (or an in-memory store when no storage
//     path is configured) and the write-back cache over it.
//  3. For each enabled bot: loads credentials, builds a chat client,
//     loads the reply translation catalog, constructs the bot from its
//     registered factory, and starts a runner.
//  4. Waits for SIGINT or SIGTERM, then shuts every runner down and
//     flushes the cache.
//
// Each bot runs independently: one bot's fatal error stops the whole
// process so that a supervisor can restart it, but transient chat
// server failures are retried inside the runner and never reach here.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/roostbot/roost/bot"
	"github.com/roostbot/roost/cache"
	"github.com/roostbot/roost/lib/config"
	"github.com/roostbot/roost/lib/translate"
	"github.com/roostbot/roost/lib/version"
	"github.com/roostbot/roost/messaging"
	"github.com/roostbot/roost/store"

	_ "github.com/roostbot/roost/bot/bots/counter"
	_ "github.com/roostbot/roost/bot/bots/echo"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		logLevel   string
		logFormat  string
	)

	flagSet := pflag.NewFlagSet("roostd", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the configuration file (overrides ROOST_CONFIG)")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flagSet.StringVar(&logFormat, "log-format", "text", "log format: text or json")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("roostd")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			flagSet.PrintDefaults()
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		flagSet.PrintDefaults()
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	logger, err := buildLogger(logLevel, logFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	backing, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	if closer, ok := backing.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	kvCache, err := cache.New(cache.Config{
		Store:      backing,
		Logger:     logger,
		RetryDelay: cfg.Storage.RetryDelay.Std(),
		MaxRetries: cfg.Storage.MaxRetries,
	})
	if err != nil {
		return err
	}

	runners, cleanup, err := buildRunners(cfg, kvCache, logger)
	if err != nil {
		cleanup()
		return err
	}
	defer cleanup()
	if len(runners) == 0 {
		return fmt.Errorf("no enabled bots in configuration")
	}

	logger.Info("roostd starting",
		"version", version.Info(),
		"environment", string(cfg.Environment),
		"bots", len(runners))

	// One bot's fatal error takes the process down so a supervisor
	// can restart everything in a known state.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, len(runners))
	for _, runner := range runners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := runner.Run(runCtx); err != nil {
				errs <- err
				cancel()
			}
		}()
	}
	wg.Wait()
	close(errs)

	var failures []error
	for err := range errs {
		failures = append(failures, err)
	}
	return errors.Join(failures...)
}

func buildLogger(level, format string) (*slog.Logger, error) {
	var leveler slog.Level
	switch level {
	case "debug":
		leveler = slog.LevelDebug
	case "info":
		leveler = slog.LevelInfo
	case "warn":
		leveler = slog.LevelWarn
	case "error":
		leveler = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	options := &slog.HandlerOptions{Level: leveler}
	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, options)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, options)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func openStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.Storage.Path == "" {
		logger.Warn("no storage path configured, bot state will not survive restarts")
		return store.NewMemory(), nil
	}
	return store.OpenSQLite(store.SQLiteConfig{
		Path:     cfg.Storage.Path,
		PoolSize: cfg.Storage.PoolSize,
		Logger:   logger,
	})
}

// buildRunners constructs a runner for every enabled bot. The returned
// cleanup function zeroes all loaded credentials and must run after
// the runners stop.
func buildRunners(cfg *config.Config, kvCache *cache.Cache, logger *slog.Logger) ([]*bot.Runner, func(), error) {
	var runners []*bot.Runner
	var credentials []*config.Credentials
	cleanup := func() {
		for _, creds := range credentials {
			creds.Close()
		}
	}

	for i := range cfg.Bots {
		botConfig := &cfg.Bots[i]
		if !botConfig.IsEnabled() {
			logger.Info("bot disabled, skipping", "bot", botConfig.Name)
			continue
		}

		creds, err := config.LoadCredentials(botConfig.CredentialsFile)
		if err != nil {
			return nil, cleanup, fmt.Errorf("bot %s: %w", botConfig.Name, err)
		}
		credentials = append(credentials, creds)

		client, err := messaging.NewClient(messaging.ClientConfig{
			ServerURL: creds.Site,
			Email:     creds.Email,
			APIKey:    creds.APIKey,
			Logger:    logger,
		})
		if err != nil {
			return nil, cleanup, fmt.Errorf("bot %s: %w", botConfig.Name, err)
		}

		catalog, err := translate.LoadCatalog(cfg.Paths.Translations, cfg.ReplyLanguage(botConfig), botConfig.Name)
		if err != nil {
			return nil, cleanup, fmt.Errorf("bot %s: %w", botConfig.Name, err)
		}

		impl, err := bot.NewBot(botConfig.Name)
		if err != nil {
			return nil, cleanup, err
		}

		runner, err := bot.NewRunner(bot.RunnerConfig{
			Bot:           impl,
			BotConfig:     botConfig,
			Client:        client,
			Cache:         kvCache,
			Catalog:       catalog,
			Logger:        logger,
			FlushInterval: cfg.Storage.FlushInterval.Std(),
		})
		if err != nil {
			return nil, cleanup, err
		}
		runners = append(runners, runner)
	}
	return runners, cleanup, nil
}
