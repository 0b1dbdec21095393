package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope", "config.yaml"))
	if err != nil {
		t.Fatalf("a missing config file should not be an error: %v", err)
	}
	if !cfg.Output.Color {
		t.Error("color should default on")
	}
	if cfg.Output.Width != DefaultOutput.Width {
		t.Errorf("width = %d, want %d", cfg.Output.Width, DefaultOutput.Width)
	}
	if len(cfg.Stories) != 0 {
		t.Errorf("expected no overrides, got %v", cfg.Stories)
	}
}

func TestLoad_ParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
output:
  color: false
  width: 120

stories:
  token-balance:
    ratio_severe: 25
    ratio_high: 12
  cost:
    expensive_call_usd: 0.25
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Output.Color {
		t.Error("color should be off")
	}
	if cfg.Output.Width != 120 {
		t.Errorf("width = %d, want 120", cfg.Output.Width)
	}
	if cfg.Stories["token-balance"]["ratio_severe"] != 25 {
		t.Errorf("ratio_severe override = %v", cfg.Stories["token-balance"])
	}
	if cfg.Stories["cost"]["expensive_call_usd"] != 0.25 {
		t.Errorf("cost override = %v", cfg.Stories["cost"])
	}
}

func TestLoad_MalformedFileIsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("output: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("a malformed config file should be an error")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory in test environment")
	}
	got := expandPath("~/x/y")
	want := filepath.Join(home, "x", "y")
	if got != want {
		t.Errorf("expandPath = %q, want %q", got, want)
	}
	if expandPath("/abs/path") != "/abs/path" {
		t.Error("absolute paths pass through untouched")
	}
}
