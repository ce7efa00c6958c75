// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// IdentityKey contains *access.Identity
	// Set by: middleware.IdentityMiddleware (pkg/middleware/identity.go)
	// Required by: enforcement middleware, handlers
	IdentityKey Key = "identity"

	// RequestIDKey contains the request ID string (UUID)
	// Set by: middleware.IdentityMiddleware
	// Used by: logger, audit trail, tracing
	RequestIDKey Key = "request_id"

	// DecisionKey contains the access.Decision rendered for the request
	// Set by: middleware.Enforcer
	// Used by: handlers that honor AssignOwner or the group filter
	DecisionKey Key = "access_decision"

	// GroupFilterKey contains []string of group IDs narrowing submission reads
	// Set by: middleware.Enforcer
	// Used by: the submission read path
	GroupFilterKey Key = "group_filter"

	// AssignOwnerKey contains a bool flagging owner assignment on writes
	// Set by: middleware.Enforcer
	// Used by: the submission and form write paths
	AssignOwnerKey Key = "assign_owner"
)

// WithIdentity adds the verified identity to the context
func WithIdentity(ctx context.Context, identity interface{}) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// WithRequestID adds the request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithDecision adds the access decision to the context
func WithDecision(ctx context.Context, decision interface{}) context.Context {
	return context.WithValue(ctx, DecisionKey, decision)
}

// WithGroupFilter adds the submission group filter to the context
func WithGroupFilter(ctx context.Context, groupIDs []string) context.Context {
	return context.WithValue(ctx, GroupFilterKey, groupIDs)
}

// WithAssignOwner flags the request for explicit owner assignment
func WithAssignOwner(ctx context.Context, assign bool) context.Context {
	return context.WithValue(ctx, AssignOwnerKey, assign)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetGroupFilter retrieves the submission group filter from context
func GetGroupFilter(ctx context.Context) []string {
	if groupIDs, ok := ctx.Value(GroupFilterKey).([]string); ok {
		return groupIDs
	}
	return nil
}

// GetAssignOwner retrieves the owner-assignment flag from context
func GetAssignOwner(ctx context.Context) bool {
	if assign, ok := ctx.Value(AssignOwnerKey).(bool); ok {
		return assign
	}
	return false
}
