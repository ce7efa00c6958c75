package teams

import (
	"sort"

	"github.com/formgrid/formgrid/pkg/projects"
)

// ResourceType identifies the resource class an access bucket covers
type ResourceType string

const (
	ResourceProject    ResourceType = "project"
	ResourceForm       ResourceType = "form"
	ResourceSubmission ResourceType = "submission"
	ResourceRole       ResourceType = "role"
)

// Scope is one of the four CRUD scopes a bucket grants
type Scope string

const (
	ScopeCreateAll Scope = "create_all"
	ScopeReadAll   Scope = "read_all"
	ScopeUpdateAll Scope = "update_all"
	ScopeDeleteAll Scope = "delete_all"
)

// ScopeForMethod maps a CRUD verb to its _all scope. Unknown methods return
// an empty scope, which matches nothing in any bucket.
func ScopeForMethod(method string) Scope {
	switch method {
	case "create":
		return ScopeCreateAll
	case "read":
		return ScopeReadAll
	case "update":
		return ScopeUpdateAll
	case "delete":
		return ScopeDeleteAll
	}
	return ""
}

// RoleSet is a set of role (or team) identifiers
type RoleSet map[string]struct{}

// Add inserts the given role IDs into the set
func (s RoleSet) Add(roles ...string) {
	for _, r := range roles {
		if r == "" {
			continue
		}
		s[r] = struct{}{}
	}
}

// Contains reports whether the role ID is in the set
func (s RoleSet) Contains(role string) bool {
	_, ok := s[role]
	return ok
}

// ContainsAny reports whether any of the given role IDs is in the set
func (s RoleSet) ContainsAny(roles []string) bool {
	for _, r := range roles {
		if s.Contains(r) {
			return true
		}
	}
	return false
}

// Sorted returns the set's members in sorted order
func (s RoleSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// AccessBuckets maps resource type and CRUD scope to the roles granted that
// scope. Team-tier entries are expanded into the same buckets as direct
// grants, so the membership check downstream treats both uniformly.
type AccessBuckets map[ResourceType]map[Scope]RoleSet

// NewAccessBuckets returns empty buckets covering every resource × scope pair
func NewAccessBuckets() AccessBuckets {
	b := make(AccessBuckets, 4)
	for _, rt := range []ResourceType{ResourceProject, ResourceForm, ResourceSubmission, ResourceRole} {
		b[rt] = map[Scope]RoleSet{
			ScopeCreateAll: {},
			ScopeReadAll:   {},
			ScopeUpdateAll: {},
			ScopeDeleteAll: {},
		}
	}
	return b
}

// Grant adds the roles to the given resource/scope bucket
func (b AccessBuckets) Grant(rt ResourceType, scope Scope, roles ...string) {
	scopes, ok := b[rt]
	if !ok {
		return
	}
	set, ok := scopes[scope]
	if !ok {
		return
	}
	set.Add(roles...)
}

// Roles returns the role set for a resource/scope pair, never nil
func (b AccessBuckets) Roles(rt ResourceType, scope Scope) RoleSet {
	if scopes, ok := b[rt]; ok {
		if set, ok := scopes[scope]; ok {
			return set
		}
	}
	return RoleSet{}
}

// Allows reports whether any of the identity's roles holds the given
// resource/scope grant. This is the membership test the enforcement layer
// runs against the buckets the engine returns.
func (b AccessBuckets) Allows(rt ResourceType, scope Scope, identityRoles []string) bool {
	return b.Roles(rt, scope).ContainsAny(identityRoles)
}

// ExpandTeamEntries expands team-tier access entries into CRUD-scope
// buckets. Tiers are additive: team_read grants read everywhere, team_write
// adds content writes and project creation, team_admin adds project update
// and delete. Unknown entry types and empty role lists contribute nothing.
//
// A team listed under more than one tier receives the union of the tiers.
// That state violates the one-tier-per-team invariant upstream, so
// DuplicateTierRoles exists for callers that want to log it.
func ExpandTeamEntries(entries []projects.AccessEntry) AccessBuckets {
	buckets := NewAccessBuckets()

	for _, entry := range entries {
		switch entry.Type {
		case projects.AccessTeamAdmin:
			grantAdminTier(buckets, entry.Roles)
		case projects.AccessTeamWrite:
			grantWriteTier(buckets, entry.Roles)
		case projects.AccessTeamRead:
			grantReadTier(buckets, entry.Roles)
		}
	}
	return buckets
}

func grantReadTier(b AccessBuckets, roles []string) {
	b.Grant(ResourceProject, ScopeReadAll, roles...)
	b.Grant(ResourceForm, ScopeReadAll, roles...)
	b.Grant(ResourceSubmission, ScopeReadAll, roles...)
	b.Grant(ResourceRole, ScopeReadAll, roles...)
}

func grantWriteTier(b AccessBuckets, roles []string) {
	grantReadTier(b, roles)
	b.Grant(ResourceProject, ScopeCreateAll, roles...)
	for _, rt := range []ResourceType{ResourceForm, ResourceSubmission, ResourceRole} {
		b.Grant(rt, ScopeCreateAll, roles...)
		b.Grant(rt, ScopeUpdateAll, roles...)
		b.Grant(rt, ScopeDeleteAll, roles...)
	}
}

func grantAdminTier(b AccessBuckets, roles []string) {
	grantWriteTier(b, roles)
	b.Grant(ResourceProject, ScopeUpdateAll, roles...)
	b.Grant(ResourceProject, ScopeDeleteAll, roles...)
}

// MergeDirect merges a project's direct (non-team) CRUD-scope entries into
// the buckets. Direct entries apply to every resource type; entries with an
// unknown type are skipped.
func MergeDirect(b AccessBuckets, entries []projects.AccessEntry) AccessBuckets {
	for _, entry := range entries {
		if entry.IsTeamEntry() {
			continue
		}
		scope, ok := directScope(entry.Type)
		if !ok {
			continue
		}
		for _, rt := range []ResourceType{ResourceProject, ResourceForm, ResourceSubmission, ResourceRole} {
			b.Grant(rt, scope, entry.Roles...)
		}
	}
	return b
}

func directScope(entryType string) (Scope, bool) {
	switch entryType {
	case projects.AccessCreateAll:
		return ScopeCreateAll, true
	case projects.AccessReadAll:
		return ScopeReadAll, true
	case projects.AccessUpdateAll:
		return ScopeUpdateAll, true
	case projects.AccessDeleteAll:
		return ScopeDeleteAll, true
	}
	return "", false
}

// Resolve expands a project's team entries and merges its direct entries,
// producing the complete bucket set for a decision
func Resolve(p *projects.Project) AccessBuckets {
	return MergeDirect(ExpandTeamEntries(p.Access), p.Access)
}

// DuplicateTierRoles returns the role IDs that appear under more than one
// team tier in the given entries. Each team is supposed to hold exactly one
// tier per project; callers log the returned IDs rather than rejecting the
// request, since expansion unions the tiers safely.
func DuplicateTierRoles(entries []projects.AccessEntry) []string {
	tiers := make(map[string]map[string]struct{})
	for _, entry := range entries {
		if !entry.IsTeamEntry() {
			continue
		}
		for _, role := range entry.Roles {
			if role == "" {
				continue
			}
			if tiers[role] == nil {
				tiers[role] = make(map[string]struct{})
			}
			tiers[role][entry.Type] = struct{}{}
		}
	}

	var dups []string
	for role, seen := range tiers {
		if len(seen) > 1 {
			dups = append(dups, role)
		}
	}
	sort.Strings(dups)
	return dups
}
