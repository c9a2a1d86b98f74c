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

// WithMemory returns a logger with memory record fields attached.
// Use this for all logging within the ingestion and retrieval pipelines.
func WithMemory(memoryID, source string) *slog.Logger {
	return slog.With(
		"memory_id", memoryID,
		"source", source,
	)
}

// WithAction returns a logger scoped to a single agent action execution.
func WithAction(logger *slog.Logger, actionType, memoryID string) *slog.Logger {
	return logger.With(
		"action_type", actionType,
		"memory_id", memoryID,
	)
}
