package logger

import (
	"log/slog"
	"os"
)

// Log is the global logger instance
var Log *slog.Logger

// level is the dynamic log level, changeable at runtime via SetLevel.
// Uses slog.LevelVar which is backed by atomic.Int64 — safe for concurrent use.
var level slog.LevelVar

// Init initializes the global logger at the given level. Log lines go to
// stderr; stdout is reserved for forwarded encoder output.
func Init(lvl slog.Level) {
	level.Set(lvl)
	Log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: &level,
	}))
}

// SetLevel changes the log level at runtime.
func SetLevel(lvl slog.Level) {
	level.Set(lvl)
}

// LevelFromVerbosity maps repeated -q/-v flags to a slog level. Zero is
// info; each -q steps toward error, each -v toward debug.
func LevelFromVerbosity(quiet, verbose int) slog.Level {
	switch n := quiet - verbose; {
	case n < 0:
		return slog.LevelDebug
	case n == 0:
		return slog.LevelInfo
	case n == 1:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	if Log != nil {
		Log.Debug(msg, args...)
	}
}

// Info logs an info message
func Info(msg string, args ...any) {
	if Log != nil {
		Log.Info(msg, args...)
	}
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	if Log != nil {
		Log.Warn(msg, args...)
	}
}

// Error logs an error message
func Error(msg string, args ...any) {
	if Log != nil {
		Log.Error(msg, args...)
	}
}
