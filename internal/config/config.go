// Package config loads process-wide settings from the environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds the settings shared by every command.
type Config struct {
	// Project names the directory created under the user config dir when
	// DatabaseDir is unset.
	Project string `env:"EMBEDSQL_PROJECT" envDefault:"embedsql"`

	// DatabaseDir overrides the default directory for plain database names.
	DatabaseDir string `env:"EMBEDSQL_DATABASE_DIR"`

	LogLevel  string `env:"EMBEDSQL_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"EMBEDSQL_LOG_FORMAT" envDefault:"text"`
}

// Load reads Config from the process environment.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.validate()
}

// LoadFrom reads Config from environ instead of the process environment.
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Project) == "" {
		return fmt.Errorf("parse env: EMBEDSQL_PROJECT is empty")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("parse env: EMBEDSQL_LOG_FORMAT %q must be text or json", c.LogFormat)
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("parse env: EMBEDSQL_LOG_LEVEL: %w", err)
	}
	return level, nil
}

// NewLogger builds the logger described by c writing to w. Verbose forces
// debug level.
func (c Config) NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if c.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
