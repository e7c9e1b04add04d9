// Package logger provides the structured logger shared by every gateway
// component.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger so the rest of the gateway depends on one type.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// Config holds logger configuration.
type Config struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "text", "json"
}

var globalLogger *Logger

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a new Logger instance. The returned Logger's level can be
// changed at runtime via SetLevel, which the config watcher uses to react
// to a live-edited config file without restarting the process.
func New(config Config) *Logger {
	lv := &slog.LevelVar{}
	lv.Set(parseLevel(config.Level))

	opts := &slog.HandlerOptions{Level: lv}

	var handler slog.Handler
	if strings.ToLower(config.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	l := &Logger{
		Logger: slog.New(handler),
		level:  lv,
	}

	if globalLogger == nil {
		globalLogger = l
	}

	return l
}

// SetLevel changes the minimum level handled by this logger, taking effect
// for every handler already obtained from it (including ones returned by
// Component).
func (l *Logger) SetLevel(level string) {
	l.level.Set(parseLevel(level))
}

// Component returns a child logger tagged with a "component" attribute, used
// so log lines from the scanner, listener, aggregator, etc. are
// distinguishable in aggregated log output.
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// With returns a child logger with the given key/value attributes attached
// to every subsequent log line. It shadows slog.Logger.With so chained
// calls stay in terms of *Logger rather than *slog.Logger.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), level: l.level}
}

// Global returns the process-wide logger instance, creating a default
// info/text one if New was never called.
func Global() *Logger {
	if globalLogger == nil {
		return New(Config{Level: "info", Format: "text"})
	}
	return globalLogger
}

// SetGlobal installs l as the process-wide logger instance.
func SetGlobal(l *Logger) {
	globalLogger = l
}
