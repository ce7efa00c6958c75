package audit

import (
	"context"
	"time"

	"github.com/formgrid/formgrid/pkg/observability"
)

// Logger records audit events. Implementations must be safe for concurrent
// use; callers treat recording as fire-and-forget.
type Logger interface {
	Record(ctx context.Context, event *Event)
}

// SlogLogger writes audit events to the structured log
type SlogLogger struct {
	logger *observability.Logger
}

// NewSlogLogger creates an audit logger on top of the structured logger
func NewSlogLogger(logger *observability.Logger) *SlogLogger {
	return &SlogLogger{logger: logger.WithField("component", "audit")}
}

// Record writes the event as a structured log line
func (l *SlogLogger) Record(ctx context.Context, event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	l.logger.WithFields(map[string]interface{}{
		"event_type":  string(event.Type),
		"identity_id": event.IdentityID,
		"project_id":  event.ProjectID,
		"entity_type": event.EntityType,
		"entity_id":   event.EntityID,
		"method":      event.Method,
		"path":        event.Path,
		"rule":        event.Rule,
	}).Info(ctx, event.Message)
}

// MultiLogger fans events out to several loggers
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a logger that records to all given loggers
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Record forwards the event to every underlying logger
func (l *MultiLogger) Record(ctx context.Context, event *Event) {
	for _, logger := range l.loggers {
		logger.Record(ctx, event)
	}
}

// NopLogger discards events. Useful in tests and when auditing is disabled.
type NopLogger struct{}

// Record discards the event
func (NopLogger) Record(ctx context.Context, event *Event) {}
