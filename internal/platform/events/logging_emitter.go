package events

import (
	"context"
	"encoding/json"
	"log/slog"
)

// LoggingEmitter records events without delivering them. Used when no event
// backend is configured.
type LoggingEmitter struct {
	logger *slog.Logger
}

func NewLoggingEmitter(logger *slog.Logger) *LoggingEmitter {
	return &LoggingEmitter{logger: logger}
}

func (e *LoggingEmitter) Emit(ctx context.Context, service, topic string, payload any) error {
	raw, _ := json.Marshal(payload)
	e.logger.InfoContext(ctx, "event recorded",
		"module", "events.logging_emitter",
		"layer", "adapter",
		"operation", "emit",
		"outcome", "success",
		"topic", topic,
		"target_service", service,
		"payload_bytes", len(raw),
	)
	return nil
}
