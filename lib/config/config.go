// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Roost.
//
// Configuration is loaded from a single file specified by:
//   - ROOST_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
//
// The config file may contain environment-specific sections
// (development, staging, production) that override base values when the
// environment matches.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "250ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for Roost.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Storage configures the shared persistent store and the cache
	// flush policy.
	Storage StorageConfig `yaml:"storage"`

	// Language is the default reply language for all bots.
	Language string `yaml:"language"`

	// Bots lists the bots the daemon runs.
	Bots []BotConfig `yaml:"bots"`

	// Per-environment overrides, applied after the base config.
	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains fields that can be overridden per environment.
type Overrides struct {
	Paths    *PathsConfig   `yaml:"paths,omitempty"`
	Storage  *StorageConfig `yaml:"storage,omitempty"`
	Language string         `yaml:"language,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for Roost data.
	Root string `yaml:"root"`

	// State is where runtime state (the sqlite database) lives.
	State string `yaml:"state"`

	// Translations is the directory of reply translation tables,
	// one YAML file per language.
	Translations string `yaml:"translations"`
}

// StorageConfig configures the persistent store and cache flushing.
type StorageConfig struct {
	// Path is the sqlite database file. Empty means an in-memory
	// store, which loses state on restart.
	Path string `yaml:"path"`

	// PoolSize is the sqlite connection pool size.
	PoolSize int `yaml:"pool_size"`

	// FlushInterval is how often dirty cache entries are persisted.
	FlushInterval Duration `yaml:"flush_interval"`

	// MaxRetries bounds persistence attempts per entry when the
	// store is busy; RetryDelay is the pause between attempts.
	MaxRetries int      `yaml:"max_retries"`
	RetryDelay Duration `yaml:"retry_delay"`
}

// BotConfig configures one bot instance.
type BotConfig struct {
	// Name identifies the bot implementation in the daemon's bot
	// registry, and doubles as the bot's cache namespace.
	Name string `yaml:"name"`

	// Enabled defaults to true; set it to false to keep the bot
	// configured but not running.
	Enabled *bool `yaml:"enabled,omitempty"`

	// CredentialsFile is an INI credentials file carrying the bot
	// account's email, API key, and server URL.
	CredentialsFile string `yaml:"credentials_file"`

	// EventTypes and Narrow shape the bot's event queue. EventTypes
	// defaults to message events.
	EventTypes []string    `yaml:"event_types,omitempty"`
	Narrow     [][2]string `yaml:"narrow,omitempty"`

	// Prefixes are the characters that mark a message as a command,
	// for example "!". Default: "!".
	Prefixes []string `yaml:"prefixes,omitempty"`

	// MentionCommands additionally triggers command handling on
	// messages that start with a mention of the bot.
	MentionCommands bool `yaml:"mention_commands"`

	// ExtraAliases are mention spellings beyond the bot's display
	// name and email.
	ExtraAliases []string `yaml:"extra_aliases,omitempty"`

	// DisableHelp suppresses the auto-registered help command.
	DisableHelp bool `yaml:"disable_help"`

	// Language overrides the global reply language for this bot.
	Language string `yaml:"language,omitempty"`

	// Roles maps role names to permission levels.
	Roles map[string]int `yaml:"roles,omitempty"`

	// Users assigns a role to a sender email. Senders without an
	// assignment get the base level.
	Users map[string]string `yaml:"users,omitempty"`
}

// IsEnabled reports whether the bot should run.
func (b *BotConfig) IsEnabled() bool {
	return b.Enabled == nil || *b.Enabled
}

// Default returns the default configuration. These defaults are used as
// a base before loading the config file. They exist primarily to ensure
// all fields have sensible zero-values, not as a fallback - the config
// file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".local", "share", "roost")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:         defaultRoot,
			State:        filepath.Join(defaultRoot, "state"),
			Translations: filepath.Join(defaultRoot, "translations"),
		},
		Storage: StorageConfig{
			Path:          filepath.Join(defaultRoot, "state", "roost.db"),
			PoolSize:      4,
			FlushInterval: Duration(30 * time.Second),
			MaxRetries:    3,
			RetryDelay:    Duration(250 * time.Millisecond),
		},
		Language: "en",
	}
}

// Load loads configuration from the ROOST_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults - if ROOST_CONFIG is not set, this
// fails. This ensures deterministic, auditable configuration with no
// hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("ROOST_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("ROOST_CONFIG environment variable not set; " +
			"set it to the path of your roost.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values. The only expansion performed is
// ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.State != "" {
			c.Paths.State = overrides.Paths.State
		}
		if overrides.Paths.Translations != "" {
			c.Paths.Translations = overrides.Paths.Translations
		}
	}

	if overrides.Storage != nil {
		if overrides.Storage.Path != "" {
			c.Storage.Path = overrides.Storage.Path
		}
		if overrides.Storage.PoolSize != 0 {
			c.Storage.PoolSize = overrides.Storage.PoolSize
		}
		if overrides.Storage.FlushInterval != 0 {
			c.Storage.FlushInterval = overrides.Storage.FlushInterval
		}
		if overrides.Storage.MaxRetries != 0 {
			c.Storage.MaxRetries = overrides.Storage.MaxRetries
		}
		if overrides.Storage.RetryDelay != 0 {
			c.Storage.RetryDelay = overrides.Storage.RetryDelay
		}
	}

	if overrides.Language != "" {
		c.Language = overrides.Language
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"ROOST_ROOT": c.Paths.Root,
		"HOME":       os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["ROOST_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.State = expandVars(c.Paths.State, vars)
	c.Paths.Translations = expandVars(c.Paths.Translations, vars)
	c.Storage.Path = expandVars(c.Storage.Path, vars)
	for i := range c.Bots {
		c.Bots[i].CredentialsFile = expandVars(c.Bots[i].CredentialsFile, vars)
	}
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. All errors are
// collected so a bad config is reported in one pass.
func (c *Config) Validate() error {
	var errs []string

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Sprintf("invalid environment: %s", c.Environment))
	}
	if c.Storage.PoolSize < 0 {
		errs = append(errs, "storage.pool_size must not be negative")
	}
	if c.Storage.FlushInterval < 0 {
		errs = append(errs, "storage.flush_interval must not be negative")
	}

	seen := make(map[string]bool, len(c.Bots))
	for i := range c.Bots {
		bot := &c.Bots[i]
		if bot.Name == "" {
			errs = append(errs, fmt.Sprintf("bots[%d]: name is required", i))
			continue
		}
		if seen[bot.Name] {
			errs = append(errs, fmt.Sprintf("bots[%d]: duplicate name %q", i, bot.Name))
		}
		seen[bot.Name] = true
		if bot.CredentialsFile == "" {
			errs = append(errs, fmt.Sprintf("bot %q: credentials_file is required", bot.Name))
		}
		for email, role := range bot.Users {
			if _, ok := bot.Roles[role]; !ok {
				errs = append(errs, fmt.Sprintf("bot %q: user %s has undefined role %q", bot.Name, email, role))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  %s", joinLines(errs))
	}
	return nil
}

func joinLines(lines []string) string {
	out := lines[0]
	for _, line := range lines[1:] {
		out += "\n  " + line
	}
	return out
}

// CommandPrefixes returns the bot's command prefixes, defaulting to
// "!".
func (b *BotConfig) CommandPrefixes() []string {
	if len(b.Prefixes) == 0 {
		return []string{"!"}
	}
	return b.Prefixes
}

// ReplyLanguage returns the bot's language, falling back to the global
// default.
func (c *Config) ReplyLanguage(bot *BotConfig) string {
	if bot.Language != "" {
		return bot.Language
	}
	return c.Language
}

// LevelFor resolves a sender email to a permission level through the
// bot's user→role→level assignments. Unassigned senders get the base
// level 1.
func (b *BotConfig) LevelFor(email string) int {
	role, ok := b.Users[email]
	if !ok {
		return 1
	}
	level, ok := b.Roles[role]
	if !ok {
		return 1
	}
	return level
}
