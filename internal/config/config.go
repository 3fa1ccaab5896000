// Package config loads labsync settings from an optional YAML file and
// LABSYNC_* environment variables. Environment values win over the file;
// command-line flags are applied by the caller and win over both.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roach88/labsync/internal/inventory"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "LABSYNC_"

// Config is the complete labsync configuration.
type Config struct {
	// DB is the SQLite database path.
	DB string `yaml:"db" env:"DB"`
	// Lab scopes every sync store. Empty means no lab is assigned.
	Lab      string `yaml:"lab" env:"LAB"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
	Format   string `yaml:"format" env:"FORMAT"`
	// Validate turns on schema validation of mutations.
	Validate bool `yaml:"validate" env:"VALIDATE"`

	Server    ServerConfig     `yaml:"server" envPrefix:"SERVER_"`
	Inventory inventory.Policy `yaml:"inventory" envPrefix:"INVENTORY_"`
}

// ServerConfig configures the live view server.
type ServerConfig struct {
	Addr         string        `yaml:"addr" env:"ADDR"`
	PingInterval time.Duration `yaml:"ping_interval" env:"PING_INTERVAL"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// AllowedOrigins lists browser origins allowed besides the server's own.
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DB:       "labsync.db",
		LogLevel: "info",
		Format:   "text",
		Validate: true,
		Server: ServerConfig{
			Addr:         "127.0.0.1:8080",
			PingInterval: 30 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Inventory: inventory.DefaultPolicy,
	}
}

// Load returns the defaults overlaid with the YAML file at path (skipped
// when path is empty) and then the process environment.
func Load(path string) (Config, error) {
	return load(path, nil)
}

// load is Load with an explicit environment; nil means the process
// environment.
func load(path string, environ map[string]string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decodeYAML decodes strictly: unknown keys are errors. An empty file
// leaves cfg untouched.
func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Check reports the first invalid setting.
func (c Config) Check() error {
	if c.DB == "" {
		return fmt.Errorf("config: db is required")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("config: format must be text or json, got %q", c.Format)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("config: server.addr is required")
	}
	if c.Server.PingInterval <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("config: server timeouts must be positive")
	}
	if c.Inventory.CoverWeeks < 0 || c.Inventory.DefaultLeadTimeWeeks < 0 {
		return fmt.Errorf("config: inventory weeks must not be negative")
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log_level: %w", err)
	}
	return l, nil
}
