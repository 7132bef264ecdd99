package sink

import (
	"context"
	"log/slog"
)

// LogSink writes failure reports to the structured log
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger uses the default.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Report logs the failure with its full context
func (s *LogSink) Report(_ context.Context, r Report) error {
	s.logger.Error("Event processing failed",
		"event_id", r.EventID,
		"ref", r.Ref,
		"stage", r.Stage,
		"kind", r.Kind,
		"deliveries", r.Deliveries,
		"error", r.Error)
	return nil
}

var _ Sink = (*LogSink)(nil)
