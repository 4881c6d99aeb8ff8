// Package config loads the daemon's YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all daemon configuration.
type Config struct {
	SocketPath string        `yaml:"socket_path"`
	Adapter    AdapterConfig `yaml:"adapter"`
	LogLevel   string        `yaml:"log_level"`
}

// AdapterConfig selects which local controller the daemon drives.
type AdapterConfig struct {
	ID   int    `yaml:"id"`   // hci index, e.g. 0 for hci0
	Name string `yaml:"name"` // friendly name pushed to the controller at startup; empty leaves it alone
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join("/etc", "btserviced", "config.yaml")
}

// DefaultSocketPath returns the default IPC socket path.
func DefaultSocketPath() string {
	return filepath.Join(os.TempDir(), "bt-service.sock")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		SocketPath: DefaultSocketPath(),
		Adapter: AdapterConfig{
			ID: 0,
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled with
// defaults. Tilde (~) in socket_path is expanded to the user's home
// directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.SocketPath = expandTilde(cfg.SocketPath)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket_path must not be empty")
	}

	if c.Adapter.ID < 0 {
		return fmt.Errorf("adapter.id must be >= 0, got %d", c.Adapter.ID)
	}

	switch strings.ToLower(c.LogLevel) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be trace, debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
