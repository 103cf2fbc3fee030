package events

import (
	"context"

	"go.uber.org/zap"
)

// LogSink logs events instead of sending them anywhere. Useful for development environments.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink constructs a development-friendly sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(_ context.Context, envelope Envelope, _ []byte) error {
	s.logger.Info("stub event published",
		zap.String("event_id", envelope.EventID),
		zap.String("event_type", envelope.EventType),
		zap.String("user_id", envelope.UserID),
		zap.Time("timestamp", envelope.Timestamp),
		zap.Any("payload", envelope.Payload),
	)
	return nil
}
