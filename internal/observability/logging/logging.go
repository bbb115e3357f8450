package logging

import (
	"log/slog"
	"os"
)

// ServiceInfo identifies the running service in every log line.
type ServiceInfo struct {
	Name    string
	Version string
}

// NewLogger builds the process-wide JSON logger. Callers install it with
// slog.SetDefault.
func NewLogger(level slog.Level, info ServiceInfo) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(handler).With(
		slog.String("service", info.Name),
		slog.String("version", info.Version),
	)
}
