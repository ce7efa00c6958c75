package projects

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrTeamNotFound    = errors.New("team not found")
)

// Access entry types. A project's access list mixes direct CRUD-scope grants
// with team-tier grants; both carry a list of role (or team) identifiers.
const (
	AccessCreateAll = "create_all"
	AccessReadAll   = "read_all"
	AccessUpdateAll = "update_all"
	AccessDeleteAll = "delete_all"

	AccessTeamRead  = "team_read"
	AccessTeamWrite = "team_write"
	AccessTeamAdmin = "team_admin"
)

// AccessEntry grants a CRUD scope or team tier to the listed role identifiers
type AccessEntry struct {
	Type  string   `json:"type"`
	Roles []string `json:"roles"`
}

// IsTeamEntry reports whether the entry is a team-tier grant
func (e AccessEntry) IsTeamEntry() bool {
	switch e.Type {
	case AccessTeamRead, AccessTeamWrite, AccessTeamAdmin:
		return true
	}
	return false
}

// Project represents a tenant-scoped container for forms, submissions,
// roles, and access configuration. A project is either a primary (root)
// project or an environment derived from one; environments inherit owner
// and plan from their primary.
type Project struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	OwnerID   string        `json:"owner_id"`
	Plan      string        `json:"plan,omitempty"`
	Primary   bool          `json:"primary"`
	ParentID  *string       `json:"parent_id,omitempty"` // set on environments; points at the primary project
	Access    []AccessEntry `json:"access,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	DeletedAt *time.Time    `json:"deleted_at,omitempty"`
}

// Team is a named group usable as a role-like principal in a project's
// access list. The creator is inserted into Admins at creation time.
type Team struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Name      string     `json:"name"`
	Members   []string   `json:"members"`
	Admins    []string   `json:"admins"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// HasMember reports whether the identity is a member or admin of the team
func (t *Team) HasMember(identityID string) bool {
	for _, m := range t.Members {
		if m == identityID {
			return true
		}
	}
	return t.HasAdmin(identityID)
}

// HasAdmin reports whether the identity is an admin of the team
func (t *Team) HasAdmin(identityID string) bool {
	for _, a := range t.Admins {
		if a == identityID {
			return true
		}
	}
	return false
}

// Store defines read access to project records.
// Implementations must return ErrProjectNotFound for missing or deleted
// projects so callers can distinguish absence from store failure.
type Store interface {
	// LoadProject retrieves a project by ID
	LoadProject(ctx context.Context, id string) (*Project, error)

	// LoadPrimaryProject resolves the primary (root) project for the given
	// project ID, following the environment's parent link when present
	LoadPrimaryProject(ctx context.Context, id string) (*Project, error)
}

// TeamStore defines read access to team records
type TeamStore interface {
	// LoadTeam retrieves a team by ID
	LoadTeam(ctx context.Context, id string) (*Team, error)
}
