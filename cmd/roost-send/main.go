// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

// Roost-send delivers a single message with a bot account and exits.
// It is meant for cron jobs and shell scripts that want to post into
// chat without running a bot.
//
// Send to a stream:
//
//	roost-send --credentials ~/.roost/notify.ini --stream ops --topic alerts "backup finished"
//
// Send a private message:
//
//	roost-send --credentials ~/.roost/notify.ini --to user@example.com "backup finished"
//
// The message may also be piped on stdin when no positional arguments
// are given.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/roostbot/roost/lib/config"
	"github.com/roostbot/roost/lib/version"
	"github.com/roostbot/roost/messaging"
)

const sendTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		credentialsPath string
		stream          string
		topic           string
		recipients      []string
	)

	flagSet := pflag.NewFlagSet("roost-send", pflag.ContinueOnError)
	flagSet.StringVar(&credentialsPath, "credentials", "", "path to the bot credentials file (required)")
	flagSet.StringVar(&stream, "stream", "", "stream to post to")
	flagSet.StringVar(&topic, "topic", "", "topic within the stream")
	flagSet.StringSliceVar(&recipients, "to", nil, "private message recipient emails")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("roost-send")
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

	if credentialsPath == "" {
		return fmt.Errorf("--credentials is required")
	}
	if (stream == "") == (len(recipients) == 0) {
		return fmt.Errorf("exactly one of --stream or --to is required")
	}
	if stream != "" && topic == "" {
		return fmt.Errorf("--topic is required with --stream")
	}

	content := strings.Join(flagSet.Args(), " ")
	if content == "" {
		piped, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading message from stdin: %w", err)
		}
		content = strings.TrimRight(string(piped), "\n")
	}
	if content == "" {
		return fmt.Errorf("empty message")
	}

	creds, err := config.LoadCredentials(credentialsPath)
	if err != nil {
		return err
	}
	defer creds.Close()

	client, err := messaging.NewClient(messaging.ClientConfig{
		ServerURL: creds.Site,
		Email:     creds.Email,
		APIKey:    creds.APIKey,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if stream != "" {
		_, err = client.SendStreamMessage(ctx, stream, topic, content)
	} else {
		_, err = client.SendPrivateMessage(ctx, recipients, content)
	}
	return err
}
