// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/roostbot/roost/lib/secret"
)

// Credentials is one bot account's server identity, loaded from an INI
// credentials file of the form the chat server's own tooling writes:
//
//	[api]
//	email=bot@example.com
//	key=abcdef123456
//	site=https://chat.example.com
//
// The API key goes straight into a locked secret buffer and never
// lands in a plain Go string. Close the credentials when the client
// using them is gone.
type Credentials struct {
	Email  string
	Site   string
	APIKey *secret.Buffer
}

// Close releases the API key buffer.
func (c *Credentials) Close() error {
	if c.APIKey == nil {
		return nil
	}
	return c.APIKey.Close()
}

// LoadCredentials reads an INI credentials file. Only the [api] section
// is consulted; email, key, and site are all required.
func LoadCredentials(path string) (*Credentials, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: opening credentials file: %w", err)
	}
	defer file.Close()

	var (
		credentials Credentials
		section     string
		keyValue    []byte
	)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}
		if section != "api" {
			continue
		}
		name, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("config: %s: malformed line %q", path, line)
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		switch name {
		case "email":
			credentials.Email = value
		case "key":
			keyValue = []byte(value)
		case "site":
			credentials.Site = strings.TrimRight(value, "/")
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: reading credentials file: %w", err)
	}

	if credentials.Email == "" || len(keyValue) == 0 || credentials.Site == "" {
		secret.Zero(keyValue)
		return nil, fmt.Errorf("config: %s: [api] section must set email, key, and site", path)
	}

	buffer, err := secret.NewFromBytes(keyValue)
	if err != nil {
		return nil, fmt.Errorf("config: sealing API key: %w", err)
	}
	credentials.APIKey = buffer
	return &credentials, nil
}
