package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// LLM contains connection settings for the text classification capability.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Facilitation contains defaults for the scrum master engine.
type Facilitation struct {
	// DefaultMode is used when scrum_start_session omits a mode.
	DefaultMode string `toml:"default_mode"`
	// DefaultTimeboxMinutes is used when scrum_start_session omits a timebox.
	DefaultTimeboxMinutes int `toml:"default_timebox_minutes"`
	// WarnThresholdPercent is the share of the timebox at which the
	// "approaching" intervention fires.
	WarnThresholdPercent int `toml:"warn_threshold_percent"`
	// SpeakerAccounting selects how speaker timers accumulate: "session"
	// keeps one running total per speaker for the entire session, "turn"
	// resets a speaker's timer whenever the floor changes.
	SpeakerAccounting string `toml:"speaker_accounting"`
	// MaxSegmentSeconds caps the duration attributed to one finalized
	// transcript segment; deltas beyond the cap fall back to a word-count
	// estimate.
	MaxSegmentSeconds int `toml:"max_segment_seconds"`
}

// Team contains defaults for the agent team coordinator.
type Team struct {
	// DefaultAgents is the roster used when team_start omits one.
	DefaultAgents []string `toml:"default_agents"`
	// BusCapacity bounds the in-memory agent message ring per meeting.
	BusCapacity int `toml:"bus_capacity"`
}

// Session contains meeting session lifecycle settings.
type Session struct {
	// IdleTimeoutSeconds is how long a meeting session with no attached
	// connections and no active sub-sessions survives before teardown.
	IdleTimeoutSeconds int `toml:"idle_timeout_seconds"`
	// LaneBuffer sizes each meeting's serial command lane.
	LaneBuffer int `toml:"lane_buffer"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for the eva daemon.
//
// Configuration sections by subsystem:
//   - Paths: log directory and API bind address
//   - LLM: shared connection settings for the classification capability
//   - Facilitation: scrum master mode, timebox, and accounting defaults
//   - Team: agent roster defaults and bus sizing
//   - Session: meeting session idle teardown and lane sizing
//   - Logging: log format, level, and retention
type Config struct {
	Paths        Paths        `toml:"paths"`
	LLM          LLM          `toml:"llm"`
	Facilitation Facilitation `toml:"facilitation"`
	Team         Team         `toml:"team"`
	Session      Session      `toml:"session"`
	Logging      Logging      `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/eva/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The second return is the
// resolved path, the third reports whether a file existed there.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// WriteSample writes the embedded sample configuration to the given path,
// creating parent directories as needed. It refuses to overwrite an existing
// file unless force is set.
func WriteSample(path string, force bool) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if !force {
		if _, err := os.Stat(expanded); err == nil {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", expanded)
		}
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// EnsureDirectories creates the directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	return nil
}

// ExpandPath resolves ~ prefixes and relative paths to absolute paths.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", trimmed, err)
	}
	return abs, nil
}
