// Package zlog provides the engine's structured logging sink: a package
// level slog.Logger that call sites reach for the way the original client
// reached for fmt.Fprintf(os.Stderr, ...) to report non-fatal warnings.
package zlog

import (
	"log/slog"
	"os"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// SetLogger swaps the package logger, letting a host route engine
// diagnostics into its own handler (e.g. a TUI's off-screen log file).
func SetLogger(l *slog.Logger) {
	logger = l
}

func Warn(msg string, args ...any) {
	logger.Warn(msg, args...)
}

func Info(msg string, args ...any) {
	logger.Info(msg, args...)
}

func Error(msg string, args ...any) {
	logger.Error(msg, args...)
}
