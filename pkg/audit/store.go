package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/formgrid/formgrid/pkg/observability"
)

// PostgresLogger persists audit events to the audit_events table. Recording
// failures are logged and swallowed; audit persistence must never fail a
// request.
type PostgresLogger struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewPostgresLogger creates a database-backed audit logger
func NewPostgresLogger(db *sql.DB, logger *observability.Logger) *PostgresLogger {
	return &PostgresLogger{db: db, logger: logger}
}

// Record inserts the event
func (l *PostgresLogger) Record(ctx context.Context, event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_events
			(timestamp, event_type, identity_id, project_id, entity_type, entity_id, method, path, rule, request_id, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := l.db.ExecContext(ctx, query,
		event.Timestamp, string(event.Type), event.IdentityID, event.ProjectID,
		event.EntityType, event.EntityID, event.Method, event.Path,
		event.Rule, event.RequestID, event.Message,
	)
	if err != nil {
		l.logger.WithError(err).WithField("event_type", string(event.Type)).
			Error(ctx, "failed to persist audit event")
	}
}
