package plans

import (
	"errors"
	"fmt"
)

// Plan is a subscription tier controlling premium actions and monthly call
// volume
type Plan string

const (
	PlanBasic       Plan = "basic"
	PlanIndependent Plan = "independent"
	PlanTeam        Plan = "team"
	PlanCommercial  Plan = "commercial"
	PlanTrial       Plan = "trial"
)

// Known reports whether p is one of the defined plan values
func (p Plan) Known() bool {
	switch p {
	case PlanBasic, PlanIndependent, PlanTeam, PlanCommercial, PlanTrial:
		return true
	}
	return false
}

// SupportsGroups reports whether the plan enables group-scoped submission
// visibility
func (p Plan) SupportsGroups() bool {
	return p == PlanTeam || p == PlanCommercial
}

// Unlimited marks a plan with no monthly call ceiling
const Unlimited int64 = -1

// DefaultCallLimits holds the per-plan monthly call ceilings. A trial runs
// with the independent ceiling until it converts.
var DefaultCallLimits = map[Plan]int64{
	PlanBasic:       1000,
	PlanIndependent: 10000,
	PlanTeam:        250000,
	PlanCommercial:  Unlimited,
	PlanTrial:       10000,
}

// DefaultPremiumActions lists action kinds gated away from the basic plan
var DefaultPremiumActions = []string{
	"oauth",
	"ldap",
	"webhook",
	"sqlconnector",
	"office365",
	"hubspot",
	"googlesheet",
	"jira",
}

// LimitExceededError reports a project over its monthly call ceiling
type LimitExceededError struct {
	ProjectID string
	Plan      Plan
	Limit     int64
	Used      int64
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("project %s exceeded the %s plan limit of %d calls this month (used %d)",
		e.ProjectID, e.Plan, e.Limit, e.Used)
}

// IsLimitExceeded reports whether err is a call-ceiling rejection
func IsLimitExceeded(err error) bool {
	var limitErr *LimitExceededError
	return errors.As(err, &limitErr)
}
