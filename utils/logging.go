package utils

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. format is "json" for structured
// output or anything else for plain text.
func NewLogger(format string) *slog.Logger {
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{})
	}
	return slog.New(handler)
}
