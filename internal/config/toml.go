// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Environment variables that override the config file.
const (
	EnvServerURL = "TYPERACE_SERVER_URL"
	EnvNickname  = "TYPERACE_NICKNAME"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Client ClientConfig `toml:"client"`
}

// ClientConfig maps client-related settings.
type ClientConfig struct {
	ServerURL *string `toml:"server-url"`
	Nickname  *string `toml:"nickname"`
	Countdown *int    `toml:"countdown"`
	LogLevel  *string `toml:"log-level"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// ApplyEnv overrides file settings with non-empty environment variables.
func ApplyEnv(cfg *ClientConfig, lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvServerURL); ok && v != "" {
		cfg.ServerURL = &v
	}
	if v, ok := lookup(EnvNickname); ok && v != "" {
		cfg.Nickname = &v
	}
}
