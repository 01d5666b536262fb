package msgcat

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedMessages(t *testing.T) {
	c := Default()
	got, err := c.Render("session.connected", nil)
	if err != nil || got != "Connected successfully" {
		t.Fatalf("session.connected = %q, %v", got, err)
	}
	got, err = c.Render("challenge.declined", map[string]string{"Name": "Bob"})
	if err != nil || got != "Bob declined your challenge" {
		t.Fatalf("challenge.declined = %q, %v", got, err)
	}
	if _, err := c.Render("challenge.declined", map[string]string{}); err == nil {
		t.Fatalf("missing template field should fail")
	}
}

func TestTextFallsBackToKey(t *testing.T) {
	c := Default()
	if got := c.Text("nope.missing", nil); got != "nope.missing" {
		t.Fatalf("fallback = %q", got)
	}
	if got := c.Text("game.invalid_move", nil); got != "Invalid move" {
		t.Fatalf("game.invalid_move = %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("session:\n  connected: \"Welcome back\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Text("session.connected", nil); got != "Welcome back" {
		t.Fatalf("override not applied: %q", got)
	}
	if got := c.Text("search.cancelled", nil); got != "Search cancelled" {
		t.Fatalf("default lost: %q", got)
	}
}

func TestOverrideDir_DuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("game:\n  invalid_move: x\n"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}

func TestFlattenRejectsNonStrings(t *testing.T) {
	if _, err := parseYAMLToFlat([]byte("a:\n  b: 3\n")); err == nil {
		t.Fatalf("expected error for numeric leaf")
	}
}
