// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"strings"
)

// ArgKind is the type an argument value is coerced to during parsing.
type ArgKind int

const (
	KindString ArgKind = iota
	KindInt
	KindFloat
	KindBool
)

func (k ArgKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("ArgKind(%d)", int(k))
	}
}

// Arg declares one positional argument of a command.
type Arg struct {
	Name string
	Kind ArgKind

	// Required arguments must receive a token. Optional arguments may
	// be omitted, but only from the tail of the invocation: a spec
	// must not declare a required argument after an optional one.
	Required bool

	// Multiple makes this argument consume every remaining token,
	// each coerced to Kind. Only valid on the last argument. A
	// required Multiple argument needs at least one token; an
	// optional one accepts zero.
	Multiple bool

	// Description is shown in the per-command help detail.
	Description string
}

// Caller identifies who invoked a command, for permission checks and
// handler context.
type Caller struct {
	ID    int64
	Name  string
	Email string

	// Level is the caller's permission level from the bot's role
	// configuration. Callers without an assigned role get level 1.
	Level int
}

// ReplyFunc sends text back to wherever the invocation came from.
type ReplyFunc func(ctx context.Context, text string) error

// Call is one command invocation as seen by a handler: the resolved
// specification, the parsed arguments, the caller, and a way to reply.
type Call struct {
	Spec   *Spec
	Args   *Args
	Caller Caller
	Reply  ReplyFunc
}

// Handler executes a command. A returned error is reported to the
// caller by the dispatcher's owner; handlers that have already replied
// should return nil.
type Handler func(ctx context.Context, call *Call) error

// Spec declares a command: its name, argument shape, permission
// requirement, and handler.
type Spec struct {
	// Name is the token identifying the command after the trigger.
	// Matched case-insensitively.
	Name string

	// Aliases are alternative names resolving to this command. They
	// share the registry's uniqueness namespace with names.
	Aliases []string

	// Args are the positional arguments, in order.
	Args []Arg

	// AllowExtra accepts tokens beyond the declared arguments and
	// exposes them via Args.Extra. Without it, extra tokens are an
	// error. Meaningless when the last argument is Multiple.
	AllowExtra bool

	// MinLevel is the caller level required to run the command. Zero
	// means no requirement.
	MinLevel int

	// Hidden keeps the command out of help listings. It remains
	// invocable.
	Hidden bool

	// Description is a one-line summary shown in help output.
	Description string

	Handler Handler
}

// Validate checks the specification for internal consistency.
func (s *Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("command: spec has no name")
	}
	if strings.ContainsFunc(s.Name, isSpace) {
		return fmt.Errorf("command: name %q contains whitespace", s.Name)
	}
	for _, alias := range s.Aliases {
		if alias == "" || strings.ContainsFunc(alias, isSpace) {
			return fmt.Errorf("command %q: invalid alias %q", s.Name, alias)
		}
	}
	if s.Handler == nil {
		return fmt.Errorf("command %q: no handler", s.Name)
	}
	optionalSeen := false
	for i, arg := range s.Args {
		if arg.Name == "" {
			return fmt.Errorf("command %q: argument %d has no name", s.Name, i)
		}
		if arg.Multiple && i != len(s.Args)-1 {
			return fmt.Errorf("command %q: argument %q is Multiple but not last", s.Name, arg.Name)
		}
		if !arg.Required {
			optionalSeen = true
		} else if optionalSeen {
			return fmt.Errorf("command %q: required argument %q follows an optional one", s.Name, arg.Name)
		}
	}
	return nil
}

// Usage renders the command's argument shape for help output, for
// example "add <a:int> <b:int> [rest:string]...".
func (s *Spec) Usage() string {
	var b strings.Builder
	b.WriteString(s.Name)
	for _, arg := range s.Args {
		left, right := "<", ">"
		if !arg.Required {
			left, right = "[", "]"
		}
		fmt.Fprintf(&b, " %s%s:%s%s", left, arg.Name, arg.Kind, right)
		if arg.Multiple {
			b.WriteString("...")
		}
	}
	return b.String()
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
