package audit

import "time"

// EventType categorizes an audit event
type EventType string

const (
	// EventAccessDenied records a request rejected by the decision engine
	// or the membership check
	EventAccessDenied EventType = "access.denied"

	// EventAccessAdminKey records an allow via the operator admin key.
	// Admin-key use bypasses every other rule, so each use is recorded.
	EventAccessAdminKey EventType = "access.admin_key"

	// EventAccessLimited records a request rejected by the plan call ceiling
	EventAccessLimited EventType = "access.plan_limited"
)

// Event is a single audit record
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	Type       EventType `json:"event_type"`
	IdentityID string    `json:"identity_id,omitempty"`
	ProjectID  string    `json:"project_id,omitempty"`
	EntityType string    `json:"entity_type,omitempty"`
	EntityID   string    `json:"entity_id,omitempty"`
	Method     string    `json:"method,omitempty"`
	Path       string    `json:"path,omitempty"`
	Rule       string    `json:"rule,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Message    string    `json:"message,omitempty"`
}
