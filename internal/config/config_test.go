package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"eva/internal/config"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Facilitation.DefaultMode != "enforcer" {
		t.Fatalf("unexpected default mode %q", cfg.Facilitation.DefaultMode)
	}
	if cfg.Facilitation.SpeakerAccounting != "session" {
		t.Fatalf("unexpected default accounting %q", cfg.Facilitation.SpeakerAccounting)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.Paths.APIBind != "127.0.0.1:7718" {
		t.Fatalf("unexpected api bind %q", cfg.Paths.APIBind)
	}
}

func TestLoadOverridesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[facilitation]
default_mode = "Hardcore"
default_timebox_minutes = 5

[team]
default_agents = ["EVA", "sop"]

[logging]
format = "json"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Facilitation.DefaultMode != "hardcore" {
		t.Fatalf("mode not normalized: %q", cfg.Facilitation.DefaultMode)
	}
	if cfg.Facilitation.DefaultTimeboxMinutes != 5 {
		t.Fatalf("timebox not applied: %d", cfg.Facilitation.DefaultTimeboxMinutes)
	}
	if len(cfg.Team.DefaultAgents) != 2 || cfg.Team.DefaultAgents[0] != "eva" {
		t.Fatalf("agents not normalized: %v", cfg.Team.DefaultAgents)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("unexpected format %q", cfg.Logging.Format)
	}
}

func TestLoadRejectsInvalidMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[facilitation]
default_mode = "dictator"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for unknown mode")
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path, false); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if err := config.WriteSample(path, false); err == nil {
		t.Fatal("expected error when file exists")
	}
	if err := config.WriteSample(path, true); err != nil {
		t.Fatalf("WriteSample --force failed: %v", err)
	}
}
