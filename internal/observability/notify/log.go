package notify

import (
	"context"
	"log/slog"

	"github.com/AI-Team-Dev/jobportal/internal/ports"
)

// Log records notifications in the structured log.
type Log struct {
	logger *slog.Logger
}

// NewLog returns a log sink. A nil logger uses slog.Default.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With("component", "notification")}
}

// Deliver implements Sink.
func (l *Log) Deliver(ctx context.Context, n ports.Notification) error {
	level := slog.LevelInfo
	if n.Level == ports.LevelError {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, n.Message, "source", n.Source, "severity", string(n.Level))
	return nil
}
