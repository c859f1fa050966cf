// Package debug provides the process-wide structured logger using log/slog.
package debug

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Format selects the log handler.
type Format string

const (
	// FormatText writes human readable key=value lines.
	FormatText Format = "text"
	// FormatJSON writes one JSON object per line.
	FormatJSON Format = "json"
)

// Options configures the global logger.
type Options struct {
	Format Format
	Level  string
	Writer io.Writer
}

var (
	// logger is the global logger instance
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	// level is shared by every handler created through Init
	level = new(slog.LevelVar)
	// mu protects logger
	mu sync.RWMutex
)

// FormatFromEnv reads RUST_LOG_FORMAT. Anything other than "json" yields the
// text handler.
func FormatFromEnv() Format {
	if strings.EqualFold(os.Getenv("RUST_LOG_FORMAT"), "json") {
		return FormatJSON
	}
	return FormatText
}

// Init installs the global logger. Logs always go to stderr unless a writer
// is given, since stdout carries the RPC channel.
func Init(opts Options) {
	mu.Lock()
	defer mu.Unlock()

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	level.Set(ParseLevel(opts.Level))

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if opts.Format == FormatJSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	logger = slog.New(handler)
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Enabled reports whether debug records are emitted.
func Enabled() bool {
	return level.Level() <= slog.LevelDebug
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

// With returns a logger with the given attributes
func With(args ...any) *slog.Logger {
	return Logger().With(args...)
}

// Logger returns the underlying slog.Logger instance
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}
