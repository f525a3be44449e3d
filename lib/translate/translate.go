// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

// Package translate renders user-visible reply strings. Lookups are
// two-tier: a bot-specific table first, then the shared default table
// for the language, and finally the literal key so a missing entry
// degrades to something greppable instead of an empty reply.
//
// Tables are loaded from one YAML file per language:
//
//	default:
//	  errors.unknown_command: "Unknown command: {command}"
//	bots:
//	  echo:
//	    greeting: "Hello, {name}!"
//
// Placeholders are written {name} and substituted from the parameters
// of each render call; unknown placeholders are left untouched.
package translate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog resolves translation keys for one bot in one language.
type Catalog struct {
	bot    map[string]string
	shared map[string]string
}

// builtin is the last-resort table for keys the runtime itself renders,
// used when no language file covers them.
var builtin = map[string]string{
	"counter.value":             "{name} is at {value}.",
	"counter.reset":             "{name} reset to zero.",
	"help.description":          "list available commands",
	"help.argument":             "show details for one command",
	"help.no_commands":          "No commands available.",
	"help.aliases":              "Aliases: {aliases}",
	"help.required":             "required",
	"help.optional":             "optional",
	"help.multiple":             "multiple",
	"help.min_level":            "Requires level {level}.",
	"errors.unknown_command":    "Unknown command: {command}",
	"errors.missing_argument":   "Missing argument {argument} for command {command}.",
	"errors.too_many_arguments": "Too many arguments for command {command}: expected {expected}, got {got}.",
	"errors.invalid_value":      "Invalid value {value} for argument {argument} of command {command}: expected {kind}.",
	"errors.permission_denied":  "You are not allowed to run {command}.",
	"errors.internal":           "Something went wrong running {command}.",
}

// NewCatalog builds a catalog from explicit tables. Either may be nil.
func NewCatalog(shared, bot map[string]string) *Catalog {
	return &Catalog{bot: bot, shared: shared}
}

// languageFile is the YAML shape of one language's translation file.
type languageFile struct {
	Default map[string]string            `yaml:"default"`
	Bots    map[string]map[string]string `yaml:"bots"`
}

// LoadCatalog reads dir/<language>.yaml and returns the catalog for the
// named bot. A missing file yields a catalog that serves only the
// builtin strings; a malformed file is an error.
func LoadCatalog(dir, language, botName string) (*Catalog, error) {
	path := filepath.Join(dir, language+".yaml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewCatalog(nil, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("translate: reading %s: %w", path, err)
	}
	var file languageFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("translate: parsing %s: %w", path, err)
	}
	return NewCatalog(file.Default, file.Bots[botName]), nil
}

// Render resolves key and substitutes params into its placeholders.
func (c *Catalog) Render(key string, params map[string]string) string {
	template, ok := c.bot[key]
	if !ok {
		template, ok = c.shared[key]
	}
	if !ok {
		template, ok = builtin[key]
	}
	if !ok {
		template = key
	}
	return substitute(template, params)
}

// substitute replaces {name} placeholders. Placeholders without a
// matching parameter stay literal.
func substitute(template string, params map[string]string) string {
	if len(params) == 0 || !strings.ContainsRune(template, '{') {
		return template
	}
	var b strings.Builder
	b.Grow(len(template))
	rest := template
	for {
		start := strings.IndexByte(rest, '{')
		if start < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			b.WriteString(rest)
			return b.String()
		}
		name := rest[start+1 : start+end]
		value, ok := params[name]
		b.WriteString(rest[:start])
		if ok {
			b.WriteString(value)
		} else {
			b.WriteString(rest[start : start+end+1])
		}
		rest = rest[start+end+1:]
	}
}
