// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for the lecsi client.
//
// Configuration is read from ~/.lecsi/config.toml with built-in defaults
// and LECSI_* environment variable overrides on top.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete client configuration.
type Config struct {
	// Backend holds connection settings for the study-assistant API.
	Backend BackendConfig `toml:"backend"`

	// Chat holds chat behavior settings.
	Chat ChatConfig `toml:"chat"`

	// UI holds terminal UI settings.
	UI UIConfig `toml:"ui"`
}

// BackendConfig contains API connection settings.
type BackendConfig struct {
	// BaseURL is the root of the REST API, e.g. "https://api.lecsi.app".
	BaseURL string `toml:"base_url"`
	// TokenPath is the file holding the bearer token. The auth flow that
	// writes this file lives outside this client.
	TokenPath string `toml:"token_path"`
	// RequestTimeoutSecs applies to non-streaming requests.
	RequestTimeoutSecs int `toml:"request_timeout_secs"`
	// MaxRetries is the retry budget for transient request failures.
	MaxRetries int `toml:"max_retries"`
}

// ChatConfig contains chat behavior settings.
type ChatConfig struct {
	// ThinkMode enables the backend's slower, higher-quality reasoning mode
	// for outgoing messages.
	ThinkMode bool `toml:"think_mode"`
	// SessionCacheSecs is how long a fetched session list stays fresh.
	SessionCacheSecs int `toml:"session_cache_secs"`
	// StatePath is the sqlite file holding durable client state such as the
	// active session id. Empty means ~/.lecsi/state.db.
	StatePath string `toml:"state_path"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	// Theme is "dark", "light" or "auto".
	Theme string `toml:"theme"`
	// BannerSecs is how long transient error banners stay visible.
	BannerSecs int `toml:"banner_secs"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:            "https://api.lecsi.app",
			RequestTimeoutSecs: 30,
			MaxRetries:         3,
		},
		Chat: ChatConfig{
			ThinkMode:        false,
			SessionCacheSecs: 10,
		},
		UI: UIConfig{
			Theme:      "auto",
			BannerSecs: 5,
		},
	}
}

// Dir returns the lecsi configuration directory (~/.lecsi).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".lecsi"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration with the usual precedence: defaults, then
// ~/.lecsi/config.toml if present, then LECSI_* environment overrides.
// A missing config file is not an error.
func Load() (*Config, error) {
	cfg := Default()

	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Backend.TokenPath == "" {
		cfg.Backend.TokenPath = filepath.Join(dir, "token")
	}
	if cfg.Chat.StatePath == "" {
		cfg.Chat.StatePath = filepath.Join(dir, "state.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides layers LECSI_* environment variables over the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LECSI_BASE_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("LECSI_TOKEN_PATH"); v != "" {
		cfg.Backend.TokenPath = v
	}
	if v := os.Getenv("LECSI_THINK_MODE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Chat.ThinkMode = b
		}
	}
	if v := os.Getenv("LECSI_THEME"); v != "" {
		cfg.UI.Theme = v
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the configuration for values that cannot work and clamps
// out-of-range numbers back to their defaults.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return errors.New("backend.base_url must not be empty")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url %q is not a valid URL", c.Backend.BaseURL)
	}
	if c.Backend.RequestTimeoutSecs <= 0 {
		c.Backend.RequestTimeoutSecs = 30
	}
	if c.Backend.MaxRetries < 0 {
		c.Backend.MaxRetries = 0
	}
	if c.Chat.SessionCacheSecs <= 0 {
		c.Chat.SessionCacheSecs = 10
	}
	switch c.UI.Theme {
	case "dark", "light", "auto", "":
	default:
		return fmt.Errorf("ui.theme %q must be dark, light or auto", c.UI.Theme)
	}
	if c.UI.BannerSecs <= 0 {
		c.UI.BannerSecs = 5
	}
	return nil
}

// RequestTimeout returns the non-streaming request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Backend.RequestTimeoutSecs) * time.Second
}

// SessionCacheTTL returns the session list cache TTL as a duration.
func (c *Config) SessionCacheTTL() time.Duration {
	return time.Duration(c.Chat.SessionCacheSecs) * time.Second
}

// BannerDuration returns how long transient banners stay visible.
func (c *Config) BannerDuration() time.Duration {
	return time.Duration(c.UI.BannerSecs) * time.Second
}
