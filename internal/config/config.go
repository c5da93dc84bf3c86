package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultRelays is used when no relay is configured.
var DefaultRelays = []string{"wss://relay.damus.io"}

// Config holds all configuration for the application.
type Config struct {
	// Port is the HTTP server port.
	Port int

	// DatabasePath is the SQLite database file.
	DatabasePath string

	// Relays are the WebSocket relay URLs to subscribe to.
	Relays []string

	// MaxDepth bounds relationship traversal in binding graphs.
	MaxDepth int

	// RefreshInterval is how often the graph snapshot is refreshed.
	RefreshInterval time.Duration

	// LogLevel is the minimum level logged.
	LogLevel slog.Level
}

// fileConfig is the optional YAML configuration file. Environment variables
// take precedence over it.
type fileConfig struct {
	Port            int      `yaml:"port"`
	DatabasePath    string   `yaml:"database_path"`
	Relays          []string `yaml:"relays"`
	MaxDepth        int      `yaml:"max_depth"`
	RefreshInterval string   `yaml:"refresh_interval"`
	LogLevel        string   `yaml:"log_level"`
}

// Load reads configuration from the file named by SCRUTINY_CONFIG, if any,
// then from environment variables, with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            3000,
		DatabasePath:    "scrutiny.db",
		Relays:          DefaultRelays,
		MaxDepth:        5,
		RefreshInterval: 30 * time.Second,
		LogLevel:        slog.LevelInfo,
	}

	if path := os.Getenv("SCRUTINY_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if p := os.Getenv("PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = port
	}

	if path := os.Getenv("SCRUTINY_DB_PATH"); path != "" {
		cfg.DatabasePath = path
	}

	if relays := os.Getenv("SCRUTINY_RELAYS"); relays != "" {
		cfg.Relays = splitList(relays)
	}

	if d := os.Getenv("SCRUTINY_MAX_DEPTH"); d != "" {
		depth, err := strconv.Atoi(d)
		if err != nil {
			return nil, fmt.Errorf("invalid SCRUTINY_MAX_DEPTH: %w", err)
		}
		cfg.MaxDepth = depth
	}

	if i := os.Getenv("SCRUTINY_REFRESH_INTERVAL"); i != "" {
		interval, err := time.ParseDuration(i)
		if err != nil {
			return nil, fmt.Errorf("invalid SCRUTINY_REFRESH_INTERVAL: %w", err)
		}
		cfg.RefreshInterval = interval
	}

	if l := os.Getenv("SCRUTINY_LOG_LEVEL"); l != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(l)); err != nil {
			return nil, fmt.Errorf("invalid SCRUTINY_LOG_LEVEL: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Port != 0 {
		c.Port = fc.Port
	}
	if fc.DatabasePath != "" {
		c.DatabasePath = fc.DatabasePath
	}
	if len(fc.Relays) > 0 {
		c.Relays = fc.Relays
	}
	if fc.MaxDepth != 0 {
		c.MaxDepth = fc.MaxDepth
	}
	if fc.RefreshInterval != "" {
		interval, err := time.ParseDuration(fc.RefreshInterval)
		if err != nil {
			return fmt.Errorf("invalid refresh_interval: %w", err)
		}
		c.RefreshInterval = interval
	}
	if fc.LogLevel != "" {
		if err := c.LogLevel.UnmarshalText([]byte(fc.LogLevel)); err != nil {
			return fmt.Errorf("invalid log_level: %w", err)
		}
	}
	return nil
}

func (c *Config) validate() error {
	if c.MaxDepth < 1 {
		return fmt.Errorf("max depth must be positive, got %d", c.MaxDepth)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", c.RefreshInterval)
	}
	for _, r := range c.Relays {
		if !strings.HasPrefix(r, "ws://") && !strings.HasPrefix(r, "wss://") {
			return fmt.Errorf("relay %q must be a ws:// or wss:// URL", r)
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
