// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrNotCommand means the message text does not start with any
// configured trigger. The caller should treat the message as ordinary
// chat rather than reporting an error.
var ErrNotCommand = errors.New("command: text is not a command invocation")

// UserFacing is implemented by errors that should be reported to the
// chat user. Key names an entry in the reply translation catalog;
// Params carries the placeholder values for that entry.
type UserFacing interface {
	error
	Key() string
	Params() map[string]string
}

// UnknownCommandError means the trigger was present but the name after
// it matches no registered command.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("command: unknown command %q", e.Name)
}

func (e *UnknownCommandError) Key() string { return "errors.unknown_command" }

func (e *UnknownCommandError) Params() map[string]string {
	return map[string]string{"command": e.Name}
}

// MissingArgumentError names the first declared argument that got no
// token.
type MissingArgumentError struct {
	Command  string
	Argument string
}

func (e *MissingArgumentError) Error() string {
	return fmt.Sprintf("command %q: missing argument %q", e.Command, e.Argument)
}

func (e *MissingArgumentError) Key() string { return "errors.missing_argument" }

func (e *MissingArgumentError) Params() map[string]string {
	return map[string]string{"command": e.Command, "argument": e.Argument}
}

// TooManyArgumentsError means tokens were left over after every
// declared argument was satisfied and the command does not accept
// extras.
type TooManyArgumentsError struct {
	Command  string
	Expected int
	Got      int
}

func (e *TooManyArgumentsError) Error() string {
	return fmt.Sprintf("command %q: got %d arguments, expected %d", e.Command, e.Got, e.Expected)
}

func (e *TooManyArgumentsError) Key() string { return "errors.too_many_arguments" }

func (e *TooManyArgumentsError) Params() map[string]string {
	return map[string]string{
		"command":  e.Command,
		"expected": strconv.Itoa(e.Expected),
		"got":      strconv.Itoa(e.Got),
	}
}

// InvalidValueError means a token could not be coerced to its
// argument's kind.
type InvalidValueError struct {
	Command  string
	Argument string
	Value    string
	Kind     ArgKind
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("command %q: argument %q: %q is not a valid %s",
		e.Command, e.Argument, e.Value, e.Kind)
}

func (e *InvalidValueError) Key() string { return "errors.invalid_value" }

func (e *InvalidValueError) Params() map[string]string {
	return map[string]string{
		"command":  e.Command,
		"argument": e.Argument,
		"value":    e.Value,
		"kind":     e.Kind.String(),
	}
}

// PermissionDeniedError means the caller's level is below the command's
// requirement. Raised before argument parsing, so the message never
// leaks the command's argument shape to unprivileged callers.
type PermissionDeniedError struct {
	Command string
	Level   int
	Minimum int
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("command %q: permission denied (level %d, requires %d)",
		e.Command, e.Level, e.Minimum)
}

func (e *PermissionDeniedError) Key() string { return "errors.permission_denied" }

func (e *PermissionDeniedError) Params() map[string]string {
	return map[string]string{"command": e.Command}
}
