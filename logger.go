package modlife

import (
	"io"
	"log/slog"
)

// Logger defines the interface for lifecycle logging.
// The engine uses structured logging with key-value pairs, so any
// logger with slog-style methods (including *slog.Logger) can be used:
//
//	logger.Info("module initialized", "module", "database")
//
// Implementations must not block for long; every phase transition and
// every per-module configure, initialize and finalize step is logged.
type Logger interface {
	// Info logs an informational message with optional key-value pairs.
	Info(msg string, args ...any)

	// Error logs an error message with optional key-value pairs.
	Error(msg string, args ...any)

	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, args ...any)

	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, args ...any)
}

// discardLogger is used when no logger is configured.
func discardLogger() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
