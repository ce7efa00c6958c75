package groups

import (
	"context"
	"time"

	"github.com/formgrid/formgrid/pkg/observability"
	"github.com/formgrid/formgrid/pkg/plans"
)

// SubmissionStore aggregates the groups an identity belongs to within a
// project, per the group-assignment actions attached to the project's forms
type SubmissionStore interface {
	AggregateGroups(ctx context.Context, projectID, identityID string) ([]string, error)
}

// Resolver computes the group IDs that narrow an identity's submission
// visibility. Only plans that support group permissioning run the
// aggregation; everyone else gets no additional restriction.
type Resolver struct {
	store   SubmissionStore
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewResolver creates a group scope resolver
func NewResolver(store SubmissionStore, logger *observability.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// ResolveGroups returns the group IDs the identity may see submissions for,
// or nil when no group restriction applies.
//
// A store failure also returns nil. Group scoping narrows reads and never
// grants, so degrading to "no extra restriction" keeps the request alive
// without widening access.
func (r *Resolver) ResolveGroups(ctx context.Context, projectID, identityID string, plan plans.Plan) []string {
	if !plan.SupportsGroups() {
		return nil
	}

	start := time.Now()
	groupIDs, err := r.store.AggregateGroups(ctx, projectID, identityID)
	if r.metrics != nil {
		r.metrics.GroupAggregationDuration.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		if r.metrics != nil {
			r.metrics.GroupAggregationErrors.Inc()
		}
		r.logger.WithError(err).WithFields(map[string]interface{}{
			"project_id":  projectID,
			"identity_id": identityID,
		}).Warn(ctx, "group aggregation failed, applying no group restriction")
		return nil
	}
	return groupIDs
}
