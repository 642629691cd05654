package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Config represents the global ~/.rfpgpt/config.toml, with RFPGPT_*
// environment variables taking precedence over file values.
type Config struct {
	APIBaseURL     string `toml:"api_base_url" env:"RFPGPT_API_BASE_URL"`
	DefaultProfile string `toml:"default_profile" env:"RFPGPT_PROFILE"`

	// Per-session defaults applied to newly created chat sessions.
	Persona       string `toml:"persona" env:"RFPGPT_PERSONA"`
	ResponseStyle string `toml:"response_style" env:"RFPGPT_RESPONSE_STYLE"`
	CiteSources   bool   `toml:"cite_sources" env:"RFPGPT_CITE_SOURCES"`
	FollowUps     bool   `toml:"follow_ups" env:"RFPGPT_FOLLOW_UPS"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		APIBaseURL:    "http://localhost:8080",
		Persona:       "proposal-writer",
		ResponseStyle: "detailed",
		CiteSources:   true,
		FollowUps:     true,
	}
}

// Load reads config from the given path, then applies environment overrides.
// A missing file is not an error; defaults plus environment are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
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
