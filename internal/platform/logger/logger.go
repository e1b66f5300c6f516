package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured JSON logger. Development
// environments log at debug so per-request gateway decisions are visible;
// everything else stays at info.
func New(environment string) *slog.Logger {
	level := slog.LevelInfo
	if environment == "dev" {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("service", "storegate")
}
