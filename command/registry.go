// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds a bot's command specifications and the triggers that
// mark a message as a command invocation. Safe for concurrent use;
// registration typically happens at startup, lookups on every message.
type Registry struct {
	mu       sync.RWMutex
	names    map[string]*Spec // names and aliases, lowercased
	specs    []*Spec
	prefixes []string
	aliases  []string
}

// NewRegistry returns a registry recognizing the given prefixes, for
// example "!" and "/". A registry with no prefixes only reacts to
// mention aliases.
func NewRegistry(prefixes ...string) *Registry {
	return &Registry{
		names:    make(map[string]*Spec),
		prefixes: append([]string(nil), prefixes...),
	}
}

// Register adds a specification. The name and every alias must be
// unused across all registered names and aliases; collisions here are
// programming errors, caught at startup.
func (r *Registry) Register(spec *Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	keys := make([]string, 0, 1+len(spec.Aliases))
	keys = append(keys, strings.ToLower(spec.Name))
	for _, alias := range spec.Aliases {
		keys = append(keys, strings.ToLower(alias))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range keys {
		if existing, exists := r.names[key]; exists {
			return fmt.Errorf("command: %q is already taken by %q", key, existing.Name)
		}
	}
	for _, key := range keys {
		r.names[key] = spec
	}
	r.specs = append(r.specs, spec)
	return nil
}

// AddAlias registers a mention form that triggers command handling,
// such as "@**roost**". Mention aliases are matched before prefixes,
// case-sensitively, and must be followed by whitespace or end of text.
func (r *Registry) AddAlias(alias string) {
	if alias == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases = append(r.aliases, alias)
	// Longest first, so "@**roost bot**" wins over "@**roost**".
	sort.Slice(r.aliases, func(i, j int) bool {
		return len(r.aliases[i]) > len(r.aliases[j])
	})
}

// StripTrigger removes the command trigger from message text. It
// returns the remaining text and true when the text starts with a
// prefix or a mention alias, or "" and false otherwise.
func (r *Registry) StripTrigger(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, alias := range r.aliases {
		rest, ok := strings.CutPrefix(trimmed, alias)
		if !ok {
			continue
		}
		// A mention must be its own token: "@**roost** help" is a
		// trigger, "@**roostling**" is not a use of "@**roost**".
		// Punctuation directly after the mention ("@**roost**: help")
		// is tolerated and stripped along with the whitespace.
		if rest != "" && !isMentionSeparator(rune(rest[0])) {
			continue
		}
		rest = strings.TrimLeftFunc(rest, isMentionSeparator)
		return strings.TrimRightFunc(rest, isSpace), true
	}
	for _, prefix := range r.prefixes {
		if rest, ok := strings.CutPrefix(trimmed, prefix); ok {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

// FindSpec resolves the command name or alias at the start of stripped
// trigger text. It returns the specification and the remaining
// argument text, or nil when nothing matches. The lookup is
// deliberately cheap and never fails: the dispatcher calls it before
// the permission check, and full argument parsing happens only after
// the check passes.
func (r *Registry) FindSpec(text string) (*Spec, string) {
	name, rest := splitCommand(text)
	if name == "" {
		return nil, ""
	}
	r.mu.RLock()
	spec := r.names[strings.ToLower(name)]
	r.mu.RUnlock()
	if spec == nil {
		return nil, ""
	}
	return spec, rest
}

// splitCommand cuts stripped trigger text into the command name token
// and the remaining argument text. The cut happens at any whitespace,
// matching the tokenizer in Parse.
func splitCommand(text string) (string, string) {
	trimmed := strings.TrimSpace(text)
	i := strings.IndexFunc(trimmed, isSpace)
	if i < 0 {
		return trimmed, ""
	}
	return trimmed[:i], strings.TrimLeftFunc(trimmed[i:], isSpace)
}

func isMentionSeparator(r rune) bool {
	return isSpace(r) || r == ':' || r == ',' || r == '-'
}

// Specs returns all registered specifications sorted by name.
func (r *Registry) Specs() []*Spec {
	r.mu.RLock()
	specs := append([]*Spec(nil), r.specs...)
	r.mu.RUnlock()
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Lookup returns the spec registered under name or one of its aliases,
// or nil.
func (r *Registry) Lookup(name string) *Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names[strings.ToLower(name)]
}
