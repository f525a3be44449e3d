// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

// Package command implements the chat command layer: declarative
// command specifications, a registry that recognizes command triggers
// in message text, an argument parser with typed coercion, and a
// dispatcher that gates execution on the caller's permission level.
//
// A command invocation is message text starting with a trigger (a
// configured prefix such as "!" or a mention of the bot), followed by
// the command name and whitespace-separated arguments. The dispatcher
// resolves the name, checks permissions, parses arguments against the
// specification, and runs the handler. Permission failures are
// reported before argument errors so that an unprivileged caller
// learns nothing about a command's argument shape.
package command
