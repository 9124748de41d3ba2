// Package config loads and saves the per-profile TOML configuration.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Remote configures the upstream chat service.
type Remote struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
}

// Sync configures the background sync loop.
type Sync struct {
	IntervalSeconds int `toml:"interval_seconds"`
	PageSize        int `toml:"page_size"`
}

// Config represents the global ~/.cmirror/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`
	Remote         Remote `toml:"remote"`
	Sync           Sync   `toml:"sync"`
}

// Default returns a config with usable sync settings and no remote.
func Default() *Config {
	return &Config{
		Sync: Sync{
			IntervalSeconds: 300,
			PageSize:        100,
		},
	}
}

// Load reads config from the given path, filling unset sync settings with
// defaults. Returns an error if the file is missing or malformed.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if cfg.Sync.IntervalSeconds <= 0 {
		cfg.Sync.IntervalSeconds = 300
	}
	if cfg.Sync.PageSize <= 0 {
		cfg.Sync.PageSize = 100
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
