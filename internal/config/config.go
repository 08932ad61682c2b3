// Package config loads YAML configuration files for the voxdose command line
// and builds the structured logger.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// LogLevel controls log verbosity
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// ParseLogLevel accepts a level name in any case
func ParseLogLevel(s string) (LogLevel, error) {
	l := LogLevel(strings.ToLower(strings.TrimSpace(s)))
	if !l.IsValid() {
		return "", fmt.Errorf("log level %q is invalid; valid values: debug, info, warn, error", s)
	}
	return l, nil
}

// Slog returns the slog level for l, defaulting to info
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns a text logger writing to w at the given level
func NewLogger(level LogLevel, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level.Slog()}))
}
