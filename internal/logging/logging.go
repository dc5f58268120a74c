// README: Structured JSON logger setup shared by the API binary and middleware.
package logging

import (
	"log/slog"
	"os"
)

// New builds the service-wide slog logger and installs it as the default.
func New(service string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "timestamp"
			}
			return a
		},
	}).WithAttrs([]slog.Attr{
		slog.String("service", service),
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
