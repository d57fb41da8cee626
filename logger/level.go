package logger

import (
	"log/slog"
	"math"
	"strings"
)

const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError

	// LevelOff is above every emittable level; nothing passes it.
	LevelOff = slog.Level(math.MaxInt)
)

// ParseLevel maps a configured threshold to a level. A missing setting
// disables logging; an unrecognized one falls back to info.
func ParseLevel(token string, present bool) slog.Level {
	if !present {
		return LevelOff
	}
	switch strings.ToLower(token) {
	case "error":
		return LevelError
	case "warn":
		return LevelWarn
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	case "trace":
		return LevelTrace
	default:
		return LevelInfo
	}
}

// LevelName returns the emitted name of l. Levels between the named ones
// take the name of the next less severe named level.
func LevelName(l slog.Level) string {
	switch {
	case l < LevelDebug:
		return "TRACE"
	case l < LevelInfo:
		return "DEBUG"
	case l < LevelWarn:
		return "INFO"
	case l < LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}
