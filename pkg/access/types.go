package access

import (
	"net/http"

	"github.com/formgrid/formgrid/pkg/teams"
)

// Method is a CRUD verb
type Method string

const (
	MethodCreate Method = "create"
	MethodRead   Method = "read"
	MethodUpdate Method = "update"
	MethodDelete Method = "delete"
)

// MethodForHTTP maps an HTTP method to its CRUD verb. Unknown methods map
// to read, the least-privileged verb.
func MethodForHTTP(httpMethod string) Method {
	switch httpMethod {
	case http.MethodPost:
		return MethodCreate
	case http.MethodPut, http.MethodPatch:
		return MethodUpdate
	case http.MethodDelete:
		return MethodDelete
	default:
		return MethodRead
	}
}

// EntityType classifies the resource a request addresses
type EntityType string

const (
	EntityProject    EntityType = "project"
	EntityForm       EntityType = "form"
	EntitySubmission EntityType = "submission"
	EntityRole       EntityType = "role"
	EntityAction     EntityType = "action"
)

// ResourceType maps an entity type onto its access bucket resource type.
// Actions share the form bucket; an action belongs to a form.
func (t EntityType) ResourceType() teams.ResourceType {
	switch t {
	case EntityProject:
		return teams.ResourceProject
	case EntityForm, EntityAction:
		return teams.ResourceForm
	case EntitySubmission:
		return teams.ResourceSubmission
	case EntityRole:
		return teams.ResourceRole
	}
	return ""
}

// Entity is the resource a request addresses
type Entity struct {
	Type EntityType `json:"type"`
	ID   string     `json:"id,omitempty"`
}

// RemotePermission is a permission claim issued by a linked remote
// authority. An identity carrying one is authorized entirely by that claim;
// the local ACL is never consulted.
type RemotePermission string

const (
	RemoteOwner     RemotePermission = "owner"
	RemoteTeamAdmin RemotePermission = "team_admin"
	RemoteTeamWrite RemotePermission = "team_write"
	RemoteTeamRead  RemotePermission = "team_read"
)

// Identity is a verified caller. Roles holds the role and team IDs attached
// to the caller's token; the enforcement layer intersects them with the
// decision's buckets.
type Identity struct {
	ID            string           `json:"id,omitempty"`
	Roles         []string         `json:"roles,omitempty"`
	AdminKey      bool             `json:"admin_key,omitempty"`
	Remote        RemotePermission `json:"remote_permission,omitempty"`
	PrimaryHolder bool             `json:"primary_holder,omitempty"`
}

// Anonymous reports whether the request carries no authenticated identity
func (i *Identity) Anonymous() bool {
	return i == nil || (i.ID == "" && !i.AdminKey)
}

// Request carries everything a decision needs. ProjectID is empty for
// global routes; Entity is nil when the request does not address a concrete
// resource.
type Request struct {
	Identity     *Identity `json:"identity,omitempty"`
	Method       Method    `json:"method"`
	Path         string    `json:"path"`
	ProjectID    string    `json:"project_id,omitempty"`
	FormID       string    `json:"form_id,omitempty"`
	SubmissionID string    `json:"submission_id,omitempty"`
	Entity       *Entity   `json:"entity,omitempty"`
	Token        string    `json:"token,omitempty"`
}

// Decision is the outcome of a single access evaluation.
//
// Allow false with populated Buckets is not a final deny: the enforcement
// layer still runs the role-membership check against the buckets. Allow
// true short-circuits that check.
type Decision struct {
	Allow       bool                `json:"allow"`
	AssignOwner bool                `json:"assign_owner,omitempty"`
	GroupFilter []string            `json:"group_filter,omitempty"`
	Buckets     teams.AccessBuckets `json:"buckets,omitempty"`

	// Rule names the rule that produced the decision
	Rule string `json:"rule,omitempty"`
}
