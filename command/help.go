// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Translator renders a user-visible string from a catalog key and
// substitution parameters. lib/translate's Catalog.Render satisfies
// it. Help output never hardcodes language-specific text; everything
// beyond command names and usage syntax goes through the translator.
type Translator func(key string, params map[string]string) string

// render guards against a nil translator by falling back to the
// literal key, the same last resort a catalog uses for unknown keys.
func (t Translator) render(key string, params map[string]string) string {
	if t == nil {
		return key
	}
	return t(key, params)
}

// HelpText renders a usage listing of every visible command the caller
// is allowed to run, one per line, prefixed with the given trigger.
// Hidden commands and commands above the caller's level are omitted.
func (r *Registry) HelpText(trigger string, callerLevel int) string {
	var b strings.Builder
	for _, spec := range r.Specs() {
		if spec.Hidden || callerLevel < spec.MinLevel {
			continue
		}
		fmt.Fprintf(&b, "%s%s", trigger, spec.Usage())
		if spec.Description != "" {
			fmt.Fprintf(&b, " - %s", spec.Description)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// HelpDetail renders the full description of one command: usage,
// description, aliases, arguments, and the required level if any.
// Returns "" for unknown names and for commands above the caller's
// level, so help never reveals what a caller cannot run.
func (r *Registry) HelpDetail(trigger, name string, callerLevel int, translate Translator) string {
	spec := r.Lookup(name)
	if spec == nil || callerLevel < spec.MinLevel {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s%s", trigger, spec.Usage())
	if spec.Description != "" {
		fmt.Fprintf(&b, "\n%s", spec.Description)
	}
	if len(spec.Aliases) > 0 {
		fmt.Fprintf(&b, "\n%s", translate.render("help.aliases",
			map[string]string{"aliases": strings.Join(spec.Aliases, ", ")}))
	}
	for _, arg := range spec.Args {
		mode := translate.render("help.optional", nil)
		if arg.Required {
			mode = translate.render("help.required", nil)
		}
		if arg.Multiple {
			mode += ", " + translate.render("help.multiple", nil)
		}
		fmt.Fprintf(&b, "\n  %s (%s, %s)", arg.Name, arg.Kind, mode)
		if arg.Description != "" {
			fmt.Fprintf(&b, ": %s", arg.Description)
		}
	}
	if spec.MinLevel > 0 {
		fmt.Fprintf(&b, "\n%s", translate.render("help.min_level",
			map[string]string{"level": strconv.Itoa(spec.MinLevel)}))
	}
	return b.String()
}

// HelpSpec returns a ready-made "help" command that replies with the
// registry's usage listing, or with one command's detail when given a
// name. The trigger is echoed in front of each command name so the
// listing is copy-pasteable.
func (r *Registry) HelpSpec(trigger string, translate Translator) *Spec {
	return &Spec{
		Name:        "help",
		Description: translate.render("help.description", nil),
		Args: []Arg{
			{Name: "command", Kind: KindString, Description: translate.render("help.argument", nil)},
		},
		Handler: func(ctx context.Context, call *Call) error {
			var text string
			if call.Args.Has("command") {
				text = r.HelpDetail(trigger, call.Args.String("command"), call.Caller.Level, translate)
				if text == "" {
					text = translate.render("errors.unknown_command",
						map[string]string{"command": call.Args.String("command")})
				}
			} else {
				text = r.HelpText(trigger, call.Caller.Level)
				if text == "" {
					text = translate.render("help.no_commands", nil)
				}
			}
			return call.Reply(ctx, text)
		},
	}
}
