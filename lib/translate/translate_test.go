// Copyright 2026 The Roost Authors
// SPDX-License-Identifier: Apache-2.0

package translate

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRenderTierOrder(t *testing.T) {
	catalog := NewCatalog(
		map[string]string{
			"greeting": "shared greeting",
			"farewell": "shared farewell",
		},
		map[string]string{
			"greeting": "bot greeting",
		},
	)

	if got := catalog.Render("greeting", nil); got != "bot greeting" {
		t.Errorf("bot table not preferred: %q", got)
	}
	if got := catalog.Render("farewell", nil); got != "shared farewell" {
		t.Errorf("shared table not consulted: %q", got)
	}
	if got := catalog.Render("made.up.key", nil); got != "made.up.key" {
		t.Errorf("literal fallback broken: %q", got)
	}
}

func TestRenderBuiltinFallback(t *testing.T) {
	catalog := NewCatalog(nil, nil)
	got := catalog.Render("errors.unknown_command", map[string]string{"command": "frob"})
	if got != "Unknown command: frob" {
		t.Errorf("builtin render = %q", got)
	}
}

func TestSubstitution(t *testing.T) {
	catalog := NewCatalog(map[string]string{
		"welcome": "Hello {name}, you have {count} messages in {where}",
	}, nil)

	got := catalog.Render("welcome", map[string]string{"name": "Ada", "count": "3"})
	want := "Hello Ada, you have 3 messages in {where}"
	if got != want {
		t.Errorf("Render = %q, want %q (unknown placeholder stays literal)", got, want)
	}
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	content := `
default:
  errors.unknown_command: "Unbekannter Befehl: {command}"
bots:
  echo:
    greeting: "Hallo!"
  counter:
    greeting: "Zaehlerstand!"
`
	if err := os.WriteFile(filepath.Join(dir, "de.yaml"), []byte(content), 0o600); err != nil {
		t.Fatalf("writing language file: %v", err)
	}

	catalog, err := LoadCatalog(dir, "de", "echo")
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	if got := catalog.Render("greeting", nil); got != "Hallo!" {
		t.Errorf("bot entry = %q", got)
	}
	if got := catalog.Render("errors.unknown_command", map[string]string{"command": "x"}); got != "Unbekannter Befehl: x" {
		t.Errorf("default entry = %q", got)
	}
}

func TestLoadCatalogMissingFile(t *testing.T) {
	catalog, err := LoadCatalog(t.TempDir(), "fr", "echo")
	if err != nil {
		t.Fatalf("LoadCatalog of a missing language failed: %v", err)
	}
	if got := catalog.Render("errors.permission_denied", map[string]string{"command": "purge"}); got == "" {
		t.Error("missing language rendered an empty string")
	}
}
