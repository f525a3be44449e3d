// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"strconv"
	"strings"
)

// Args holds the parsed argument values of one invocation. The typed
// accessors panic on a name that was never declared or on a kind
// mismatch; both are programming errors in the handler, not user input
// errors. Optional arguments that received no token are absent; check
// with Has.
type Args struct {
	values map[string]any
	tokens []string
	extra  []string
}

// Has reports whether the argument received a value.
func (a *Args) Has(name string) bool {
	_, ok := a.values[name]
	return ok
}

// String returns the value of a KindString argument.
func (a *Args) String(name string) string { return lookup[string](a, name) }

// Int returns the value of a KindInt argument.
func (a *Args) Int(name string) int64 { return lookup[int64](a, name) }

// Float returns the value of a KindFloat argument.
func (a *Args) Float(name string) float64 { return lookup[float64](a, name) }

// Bool returns the value of a KindBool argument.
func (a *Args) Bool(name string) bool { return lookup[bool](a, name) }

// List returns the values collected by a Multiple argument. An
// optional Multiple argument that received nothing yields nil.
func (a *Args) List(name string) []any {
	if !a.Has(name) {
		return nil
	}
	return lookup[[]any](a, name)
}

// Tokens returns the raw argument tokens as they appeared after the
// command name.
func (a *Args) Tokens() []string { return a.tokens }

// Extra returns the undeclared trailing tokens of a command with
// AllowExtra set.
func (a *Args) Extra() []string { return a.extra }

func lookup[T any](a *Args, name string) T {
	value, ok := a.values[name]
	if !ok {
		panic("command: access to undeclared or absent argument " + strconv.Quote(name))
	}
	typed, ok := value.(T)
	if !ok {
		panic("command: kind mismatch accessing argument " + strconv.Quote(name))
	}
	return typed
}

// Truthy and falsy spellings accepted for KindBool arguments, matched
// case-insensitively.
var boolSpellings = map[string]bool{
	"true": true, "1": true, "yes": true, "y": true, "on": true,
	"false": false, "0": false, "no": false, "n": false, "off": false,
}

// Parse coerces whitespace-separated tokens from text against the
// spec's declared arguments. Required arguments must all be satisfied;
// optional ones are filled left to right with whatever tokens remain.
// Leftover tokens are an error unless AllowExtra is set or the last
// argument is Multiple.
func (s *Spec) Parse(text string) (*Args, error) {
	tokens := strings.Fields(text)
	args := &Args{
		values: make(map[string]any, len(s.Args)),
		tokens: tokens,
	}

	remaining := tokens
	for _, arg := range s.Args {
		if arg.Multiple {
			if len(remaining) == 0 {
				if arg.Required {
					return nil, &MissingArgumentError{Command: s.Name, Argument: arg.Name}
				}
				break
			}
			values := make([]any, 0, len(remaining))
			for _, token := range remaining {
				value, err := coerce(s.Name, arg, token)
				if err != nil {
					return nil, err
				}
				values = append(values, value)
			}
			args.values[arg.Name] = values
			remaining = nil
			continue
		}
		if len(remaining) == 0 {
			if arg.Required {
				return nil, &MissingArgumentError{Command: s.Name, Argument: arg.Name}
			}
			continue
		}
		value, err := coerce(s.Name, arg, remaining[0])
		if err != nil {
			return nil, err
		}
		args.values[arg.Name] = value
		remaining = remaining[1:]
	}

	if len(remaining) > 0 {
		if !s.AllowExtra {
			return nil, &TooManyArgumentsError{
				Command:  s.Name,
				Expected: len(s.Args),
				Got:      len(tokens),
			}
		}
		args.extra = remaining
	}
	return args, nil
}

func coerce(command string, arg Arg, token string) (any, error) {
	switch arg.Kind {
	case KindString:
		return token, nil
	case KindInt:
		value, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			return nil, &InvalidValueError{Command: command, Argument: arg.Name, Value: token, Kind: arg.Kind}
		}
		return value, nil
	case KindFloat:
		value, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return nil, &InvalidValueError{Command: command, Argument: arg.Name, Value: token, Kind: arg.Kind}
		}
		return value, nil
	case KindBool:
		value, ok := boolSpellings[strings.ToLower(token)]
		if !ok {
			return nil, &InvalidValueError{Command: command, Argument: arg.Name, Value: token, Kind: arg.Kind}
		}
		return value, nil
	default:
		return nil, &InvalidValueError{Command: command, Argument: arg.Name, Value: token, Kind: arg.Kind}
	}
}
