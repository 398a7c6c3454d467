package logutil

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

const (
	KeyLevel  = "logging.level"
	KeyFormat = "logging.format"
)

type Config struct {
	Level  string
	Format string
}

func DefaultConfig() Config {
	return Config{Level: "warn", Format: "text"}
}

// ConfigFromViper reads logging.level and logging.format, falling back to
// DefaultConfig for unset keys.
func ConfigFromViper(v *viper.Viper) Config {
	cfg := DefaultConfig()
	if v == nil {
		return cfg
	}
	if s := strings.TrimSpace(v.GetString(KeyLevel)); s != "" {
		cfg.Level = s
	}
	if s := strings.TrimSpace(v.GetString(KeyFormat)); s != "" {
		cfg.Format = s
	}
	return cfg
}

func ParseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", raw)
}

// New builds a logger writing to w.
func New(w io.Writer, cfg Config) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q (want text or json)", cfg.Format)
}

func LoggerFromViper(v *viper.Viper, w io.Writer) (*slog.Logger, error) {
	return New(w, ConfigFromViper(v))
}
