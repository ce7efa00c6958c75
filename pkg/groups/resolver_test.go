package groups

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/formgrid/formgrid/pkg/observability"
	"github.com/formgrid/formgrid/pkg/plans"
)

type stubStore struct {
	groups []string
	err    error
	calls  int
}

func (s *stubStore) AggregateGroups(ctx context.Context, projectID, identityID string) ([]string, error) {
	s.calls++
	return s.groups, s.err
}

func newTestResolver(store SubmissionStore) *Resolver {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	return NewResolver(store, logger, metrics)
}

func TestResolveGroups(t *testing.T) {
	ctx := context.Background()

	t.Run("group-capable plans run the aggregation", func(t *testing.T) {
		store := &stubStore{groups: []string{"grp-1", "grp-2"}}
		resolver := newTestResolver(store)

		got := resolver.ResolveGroups(ctx, "proj-1", "user-1", plans.PlanTeam)
		assert.Equal(t, []string{"grp-1", "grp-2"}, got)
		assert.Equal(t, 1, store.calls)

		got = resolver.ResolveGroups(ctx, "proj-1", "user-1", plans.PlanCommercial)
		assert.Equal(t, []string{"grp-1", "grp-2"}, got)
	})

	t.Run("other plans skip the aggregation entirely", func(t *testing.T) {
		store := &stubStore{groups: []string{"grp-1"}}
		resolver := newTestResolver(store)

		for _, plan := range []plans.Plan{plans.PlanBasic, plans.PlanIndependent, plans.PlanTrial} {
			assert.Nil(t, resolver.ResolveGroups(ctx, "proj-1", "user-1", plan), "plan %s", plan)
		}
		assert.Zero(t, store.calls)
	})

	t.Run("store failure degrades to no restriction", func(t *testing.T) {
		store := &stubStore{err: errors.New("db timeout")}
		resolver := newTestResolver(store)

		assert.Nil(t, resolver.ResolveGroups(ctx, "proj-1", "user-1", plans.PlanTeam))
	})

	t.Run("no memberships yields nil", func(t *testing.T) {
		resolver := newTestResolver(&stubStore{})
		assert.Nil(t, resolver.ResolveGroups(ctx, "proj-1", "user-1", plans.PlanTeam))
	})
}
