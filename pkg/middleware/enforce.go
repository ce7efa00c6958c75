package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/formgrid/formgrid/pkg/access"
	"github.com/formgrid/formgrid/pkg/async"
	"github.com/formgrid/formgrid/pkg/audit"
	"github.com/formgrid/formgrid/pkg/contextkeys"
	"github.com/formgrid/formgrid/pkg/httputil"
	"github.com/formgrid/formgrid/pkg/observability"
	"github.com/formgrid/formgrid/pkg/plans"
	"github.com/formgrid/formgrid/pkg/projects"
	"github.com/formgrid/formgrid/pkg/teams"
)

// Enforcer routes every request through the decision engine and applies
// what the engine cannot decide alone: the bucket role-membership check
// (including team-membership expansion), plan gating, and call metering
type Enforcer struct {
	engine   *access.Engine
	gate     *plans.Gate
	store    projects.Store
	teams    projects.TeamStore
	metering plans.MeteringStore
	audit    audit.Logger
	logger   *observability.Logger
}

// NewEnforcer creates the enforcement middleware
func NewEnforcer(engine *access.Engine, gate *plans.Gate, store projects.Store, teamStore projects.TeamStore, metering plans.MeteringStore, auditLogger audit.Logger, logger *observability.Logger) *Enforcer {
	return &Enforcer{
		engine:   engine,
		gate:     gate,
		store:    store,
		teams:    teamStore,
		metering: metering,
		audit:    auditLogger,
		logger:   logger,
	}
}

// Handler enforces access on the wrapped routes
func (e *Enforcer) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		req := e.buildRequest(r)

		decision, err := e.engine.HasAccess(ctx, req)
		if err != nil {
			// Lookup failures deny; the response never leaks whether the
			// project exists
			e.logger.WithError(err).WithField("path", req.Path).
				Error(ctx, "access evaluation failed")
			httputil.WriteForbidden(w, "access denied")
			return
		}

		allowed := decision.Allow
		if !allowed && decision.Buckets != nil && req.Identity != nil && req.Entity != nil {
			granted := decision.Buckets.Roles(
				req.Entity.Type.ResourceType(),
				teams.ScopeForMethod(string(req.Method)),
			)
			allowed = granted.ContainsAny(req.Identity.Roles) ||
				e.teamMembershipAllows(ctx, granted, req.Identity)
		}

		if !allowed {
			e.recordDeny(ctx, req, decision.Rule)
			if req.Identity.Anonymous() {
				httputil.WriteUnauthorized(w, "authentication required")
			} else {
				httputil.WriteForbidden(w, "access denied")
			}
			return
		}

		if decision.Rule == "admin_key" {
			e.recordAdminKey(ctx, req)
		}

		if req.ProjectID != "" {
			if !e.checkPlan(ctx, w, r, req) {
				return
			}
			e.meterCall(ctx, req.ProjectID)
		}

		if decision.AssignOwner {
			ctx = contextkeys.WithAssignOwner(ctx, true)
		}
		if decision.GroupFilter != nil {
			ctx = contextkeys.WithGroupFilter(ctx, decision.GroupFilter)
		}
		ctx = contextkeys.WithDecision(ctx, decision)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// buildRequest assembles the engine request from the route variables
func (e *Enforcer) buildRequest(r *http.Request) *access.Request {
	vars := mux.Vars(r)

	req := &access.Request{
		Identity:     IdentityFromContext(r.Context()),
		Method:       access.MethodForHTTP(r.Method),
		Path:         r.URL.Path,
		ProjectID:    vars["projectID"],
		FormID:       vars["formID"],
		SubmissionID: vars["submissionID"],
		Token:        r.URL.Query().Get("token"),
	}
	req.Entity = entityFromRequest(r, vars)
	return req
}

// entityFromRequest resolves the most specific entity the route addresses.
// Collection routes (a create or list with no concrete id) keep the
// collection's own type with an empty ID instead of collapsing to
// {project, projectID}: submission list reads must keep the submission
// type so the group filter applies, and the grant outcome is identical
// either way because direct scopes span every resource type and the write
// tiers grant create on every type they cover.
func entityFromRequest(r *http.Request, vars map[string]string) *access.Entity {
	path := strings.TrimRight(r.URL.Path, "/")
	switch {
	case vars["submissionID"] != "" || strings.HasSuffix(path, "/submission"):
		return &access.Entity{Type: access.EntitySubmission, ID: vars["submissionID"]}
	case vars["actionID"] != "" || strings.HasSuffix(path, "/action"):
		return &access.Entity{Type: access.EntityAction, ID: vars["actionID"]}
	case vars["roleID"] != "" || strings.HasSuffix(path, "/role"):
		return &access.Entity{Type: access.EntityRole, ID: vars["roleID"]}
	case vars["formID"] != "" || strings.HasSuffix(path, "/form"):
		return &access.Entity{Type: access.EntityForm, ID: vars["formID"]}
	case vars["projectID"] != "":
		return &access.Entity{Type: access.EntityProject, ID: vars["projectID"]}
	}
	return nil
}

// teamMembershipAllows resolves granted IDs the identity does not claim as
// roles against the team store. A grant may name a team rather than a role;
// the identity qualifies by being a member, whether or not its role claims
// carry the team ID. Lookup failures contribute no grant.
func (e *Enforcer) teamMembershipAllows(ctx context.Context, granted teams.RoleSet, identity *access.Identity) bool {
	if e.teams == nil || identity.ID == "" {
		return false
	}

	for _, id := range granted.Sorted() {
		if containsString(identity.Roles, id) {
			continue // already rejected by the role check
		}
		team, err := e.teams.LoadTeam(ctx, id)
		if err != nil {
			if !errors.Is(err, projects.ErrTeamNotFound) {
				e.logger.WithError(err).WithField("team_id", id).
					Warn(ctx, "team lookup failed during membership check")
			}
			continue
		}
		if team.HasMember(identity.ID) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// checkPlan applies premium-action gating and the monthly call ceiling.
// Returns false when it has already written a rejection.
func (e *Enforcer) checkPlan(ctx context.Context, w http.ResponseWriter, r *http.Request, req *access.Request) bool {
	project, err := e.store.LoadProject(ctx, req.ProjectID)
	if err != nil {
		// The engine already resolved this project; a failure here is a
		// store hiccup, and plan gating degrades to permissive
		e.logger.WithError(err).WithField("project_id", req.ProjectID).
			Warn(ctx, "plan check skipped, project reload failed")
		return true
	}

	if req.Entity != nil && req.Entity.Type == access.EntityAction &&
		(req.Method == access.MethodCreate || req.Method == access.MethodUpdate) {
		if kind := r.URL.Query().Get("kind"); kind != "" && !e.gate.AllowsAction(ctx, project, kind) {
			httputil.WriteErrorMessage(w, http.StatusPaymentRequired, "action not available on current plan")
			return false
		}
	}

	if err := e.gate.CheckCallLimit(ctx, project); err != nil {
		if plans.IsLimitExceeded(err) {
			e.recordLimited(ctx, req)
			httputil.WriteTooManyRequests(w, "monthly call limit exceeded")
			return false
		}
		e.logger.WithError(err).Warn(ctx, "call limit check failed, allowing request")
	}
	return true
}

// meterCall increments the project's monthly counter without blocking the
// response
func (e *Enforcer) meterCall(ctx context.Context, projectID string) {
	async.SafeGo(ctx, 5*time.Second, "call metering", func(taskCtx context.Context) error {
		return e.metering.RecordCall(taskCtx, projectID)
	})
}

func (e *Enforcer) recordDeny(ctx context.Context, req *access.Request, rule string) {
	event := e.newEvent(ctx, req, audit.EventAccessDenied, rule, "request denied")
	async.SafeGoNoError(ctx, 5*time.Second, "audit deny", func(taskCtx context.Context) {
		e.audit.Record(taskCtx, event)
	})
}

func (e *Enforcer) recordAdminKey(ctx context.Context, req *access.Request) {
	event := e.newEvent(ctx, req, audit.EventAccessAdminKey, "admin_key", "admin key used")
	async.SafeGoNoError(ctx, 5*time.Second, "audit admin key", func(taskCtx context.Context) {
		e.audit.Record(taskCtx, event)
	})
}

func (e *Enforcer) recordLimited(ctx context.Context, req *access.Request) {
	event := e.newEvent(ctx, req, audit.EventAccessLimited, "", "monthly call limit exceeded")
	async.SafeGoNoError(ctx, 5*time.Second, "audit plan limit", func(taskCtx context.Context) {
		e.audit.Record(taskCtx, event)
	})
}

func (e *Enforcer) newEvent(ctx context.Context, req *access.Request, eventType audit.EventType, rule, message string) *audit.Event {
	event := &audit.Event{
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		ProjectID: req.ProjectID,
		Method:    string(req.Method),
		Path:      req.Path,
		Rule:      rule,
		RequestID: contextkeys.GetRequestID(ctx),
		Message:   message,
	}
	if req.Identity != nil {
		event.IdentityID = req.Identity.ID
	}
	if req.Entity != nil {
		event.EntityType = string(req.Entity.Type)
		event.EntityID = req.Entity.ID
	}
	return event
}
