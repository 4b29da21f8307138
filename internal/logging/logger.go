package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithRequest returns a logger with request correlation fields attached.
// Use this for all logging within a single context retrieval.
func WithRequest(queryID, clientID string) *slog.Logger {
	return slog.With(
		"query_id", queryID,
		"client_id", clientID,
	)
}

// WithFragment returns a logger scoped to one fragment on the write path.
func WithFragment(logger *slog.Logger, fragmentID, sourceKind string) *slog.Logger {
	return logger.With(
		"fragment_id", fragmentID,
		"source_kind", sourceKind,
	)
}
