package access

import (
	"context"
	"strings"

	"github.com/formgrid/formgrid/pkg/teams"
)

// Global routes any authenticated identity may hit without project context
var globalAllowedPaths = map[string]struct{}{
	"/current":         {},
	"/logout":          {},
	"/access/projects": {},
	"/billing/portal":  {},
}

// The one global route open to anonymous callers
const specPath = "/spec.json"

// projectCollectionPath is the project-creation endpoint
const projectCollectionPath = "/project"

// ruleAdminKey allows requests authenticated with the operator's pre-shared
// admin key
func (e *Engine) ruleAdminKey(ctx context.Context, st *evalState) (*Decision, error) {
	if st.req.Identity != nil && st.req.Identity.AdminKey {
		return allow(), nil
	}
	return nil, nil
}

// ruleRemotePermission maps a remote authority's permission claim directly
// to a decision. The local ACL is never consulted for a federated identity;
// its authorization lives entirely in the remote claim, so this rule always
// decides when a claim is present.
func (e *Engine) ruleRemotePermission(ctx context.Context, st *evalState) (*Decision, error) {
	if st.req.Identity == nil || st.req.Identity.Remote == "" {
		return nil, nil
	}

	switch st.req.Identity.Remote {
	case RemoteOwner, RemoteTeamAdmin:
		return allow(), nil
	case RemoteTeamWrite:
		if remoteScopedEntity(st.entity.Type) {
			return allow(), nil
		}
		return deny(), nil
	case RemoteTeamRead:
		if remoteScopedEntity(st.entity.Type) && st.method == MethodRead {
			return allow(), nil
		}
		return deny(), nil
	}
	return deny(), nil
}

func remoteScopedEntity(t EntityType) bool {
	switch t {
	case EntityProject, EntityForm, EntitySubmission, EntityRole, EntityAction:
		return true
	}
	return false
}

// ruleGlobalRoutes decides requests with no project context: project
// creation for home-project holders, a small informational allow-list for
// authenticated identities, and the public API spec for everyone else.
// This rule always decides when there is no project context.
func (e *Engine) ruleGlobalRoutes(ctx context.Context, st *evalState) (*Decision, error) {
	if st.req.ProjectID != "" {
		return nil, nil
	}

	path := normalizePath(st.req.Path)

	if st.req.Identity.Anonymous() {
		if path == specPath && st.method == MethodRead {
			return allow(), nil
		}
		return deny(), nil
	}

	if path == projectCollectionPath && st.method == MethodCreate {
		if st.req.Identity.PrimaryHolder {
			return allow(), nil
		}
		return deny(), nil
	}

	if _, ok := globalAllowedPaths[path]; ok {
		return allow(), nil
	}
	return deny(), nil
}

// rulePublicRoutes allows the intentionally public project endpoints
// regardless of ACL: the analytics report (with a token) and the current
// deployment tag (even anonymously)
func (e *Engine) rulePublicRoutes(ctx context.Context, st *evalState) (*Decision, error) {
	if st.req.ProjectID == "" || st.method != MethodRead {
		return nil, nil
	}

	path := normalizePath(st.req.Path)
	report := strings.HasSuffix(path, "/report") && st.req.Token != ""
	if !report && !strings.HasSuffix(path, "/tag/current") {
		return nil, nil
	}

	// Public routes exist only on projects that do; lookup failures abort
	if err := e.resolveProject(ctx, st); err != nil {
		return nil, err
	}
	return allow(), nil
}

// ruleStorageSigning re-targets storage-provider signing requests at the
// submission they belong to. Signing access follows submission permissions,
// not project permissions. It never decides; evaluation continues with the
// re-targeted entity.
func (e *Engine) ruleStorageSigning(ctx context.Context, st *evalState) (*Decision, error) {
	path := normalizePath(st.req.Path)
	if !strings.HasSuffix(path, "/storage/s3") && !strings.HasSuffix(path, "/storage/dropbox") {
		return nil, nil
	}

	st.entity = Entity{
		Type: EntitySubmission,
		ID:   st.req.SubmissionID,
	}
	return nil, nil
}

// ruleOwner allows the project owner unconditionally. Ownership resolves
// against the primary project, so environment projects inherit their
// owner. Writes are flagged so an explicit owner field in the payload is
// honored by the resource layer.
func (e *Engine) ruleOwner(ctx context.Context, st *evalState) (*Decision, error) {
	if st.req.ProjectID == "" || st.req.Identity.Anonymous() {
		return nil, nil
	}
	if err := e.resolveProject(ctx, st); err != nil {
		return nil, err
	}
	if st.req.Identity.ID != st.primary.OwnerID {
		return nil, nil
	}

	return &Decision{
		Allow:       true,
		AssignOwner: st.method == MethodCreate || st.method == MethodUpdate,
	}, nil
}

// ruleDefault denies, returning the merged ACL buckets so the enforcement
// layer can run its role-membership check, plus the group filter for
// submission reads on group-capable plans
func (e *Engine) ruleDefault(ctx context.Context, st *evalState) (*Decision, error) {
	decision := &Decision{Allow: false}

	if st.req.ProjectID != "" {
		if err := e.resolveProject(ctx, st); err != nil {
			return nil, err
		}
		if dups := teams.DuplicateTierRoles(st.project.Access); len(dups) > 0 {
			e.logger.WithFields(map[string]interface{}{
				"project_id": st.project.ID,
				"teams":      dups,
			}).Warn(ctx, "team granted multiple tiers, using union of grants")
		}
		decision.Buckets = teams.Resolve(st.project)

		if st.entity.Type == EntitySubmission && st.method == MethodRead &&
			st.plan.SupportsGroups() && !st.req.Identity.Anonymous() {
			decision.GroupFilter = e.groups.ResolveGroups(ctx, st.project.ID, st.req.Identity.ID, st.plan)
		}
	}

	return decision, nil
}

// normalizePath strips a trailing slash so route suffix checks are stable
func normalizePath(path string) string {
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		return strings.TrimRight(path, "/")
	}
	return path
}
