// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Dispatcher resolves message text against a registry and runs the
// matching handler. One dispatcher serves one bot.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, logger: logger}
}

// Dispatch handles one message. It returns ErrNotCommand when text
// carries no trigger, a UserFacing error when the invocation is
// malformed or forbidden, and otherwise whatever the handler returns.
//
// The pipeline is fixed: trigger stripping, name lookup, permission
// check, argument parsing, handler. The permission check runs before
// parsing, so a forbidden caller always gets a permission error even
// when the arguments are also wrong.
func (d *Dispatcher) Dispatch(ctx context.Context, text string, caller Caller, reply ReplyFunc) error {
	stripped, ok := d.registry.StripTrigger(text)
	if !ok {
		return ErrNotCommand
	}

	spec, argText := d.registry.FindSpec(stripped)
	if spec == nil {
		name, _ := splitCommand(stripped)
		return &UnknownCommandError{Name: name}
	}

	if caller.Level < spec.MinLevel {
		d.logger.Info("command refused",
			"command", spec.Name,
			"caller", caller.Name,
			"caller_level", caller.Level,
			"required_level", spec.MinLevel)
		return &PermissionDeniedError{
			Command: spec.Name,
			Level:   caller.Level,
			Minimum: spec.MinLevel,
		}
	}

	args, err := spec.Parse(argText)
	if err != nil {
		return err
	}

	d.logger.Debug("dispatching command", "command", spec.Name, "caller", caller.Name)
	return d.run(ctx, spec, &Call{Spec: spec, Args: args, Caller: caller, Reply: reply})
}

// run executes the handler with panic isolation. A panicking handler
// becomes an error on this invocation instead of taking down the event
// loop.
func (d *Dispatcher) run(ctx context.Context, spec *Spec, call *Call) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("command handler panicked",
				"command", spec.Name,
				"panic", r,
				"stack", string(debug.Stack()))
			err = fmt.Errorf("command %q: handler panicked: %v", spec.Name, r)
		}
	}()
	return spec.Handler(ctx, call)
}
