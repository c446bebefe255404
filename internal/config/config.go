// Package config loads dobjctl settings from the environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/roach88/dobj/internal/dobj"
)

// Config holds the settings shared by every dobjctl command. Command line
// flags take their defaults from it.
type Config struct {
	Journal        string `env:"DOBJ_JOURNAL"`
	Classes        string `env:"DOBJ_CLASSES"`
	SetWarningSize int    `env:"DOBJ_SET_WARNING_SIZE" envDefault:"2048"`
	LogLevel       string `env:"DOBJ_LOG_LEVEL"        envDefault:"info"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SetWarningSize <= 0 {
		return Config{}, fmt.Errorf("DOBJ_SET_WARNING_SIZE must be positive, got %d", cfg.SetWarningSize)
	}
	if _, err := cfg.Level(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("DOBJ_LOG_LEVEL: %w", err)
	}
	return level, nil
}

// Apply installs the process-wide settings: the set warning threshold and
// a default text logger writing to w. verbose forces debug logging.
func (c Config) Apply(w io.Writer, verbose bool) error {
	level, err := c.Level()
	if err != nil {
		return err
	}
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
	dobj.SetDefaultWarningSize(c.SetWarningSize)
	return nil
}
