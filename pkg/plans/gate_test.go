package plans

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formgrid/formgrid/pkg/observability"
	"github.com/formgrid/formgrid/pkg/projects"
)

// fakeMetering returns a fixed usage count or error
type fakeMetering struct {
	used     int64
	err      error
	recorded []string
}

func (f *fakeMetering) CallsThisMonth(ctx context.Context, projectID string) (int64, error) {
	return f.used, f.err
}

func (f *fakeMetering) RecordCall(ctx context.Context, projectID string) error {
	f.recorded = append(f.recorded, projectID)
	return nil
}

func newTestGate(cfg GateConfig, metering MeteringStore) *Gate {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	return NewGate(cfg, metering, logger, metrics)
}

func TestEffectivePlan(t *testing.T) {
	t.Run("nil project uses default", func(t *testing.T) {
		assert.Equal(t, PlanBasic, EffectivePlan(nil, PlanBasic))
	})

	t.Run("primary project is always commercial", func(t *testing.T) {
		p := &projects.Project{Primary: true, Plan: "basic"}
		assert.Equal(t, PlanCommercial, EffectivePlan(p, PlanBasic))
	})

	t.Run("stored plan wins when known", func(t *testing.T) {
		p := &projects.Project{Plan: "team"}
		assert.Equal(t, PlanTeam, EffectivePlan(p, PlanBasic))
	})

	t.Run("unknown stored plan falls back to default", func(t *testing.T) {
		p := &projects.Project{Plan: "platinum"}
		assert.Equal(t, PlanIndependent, EffectivePlan(p, PlanIndependent))
	})

	t.Run("empty stored plan falls back to default", func(t *testing.T) {
		p := &projects.Project{}
		assert.Equal(t, PlanBasic, EffectivePlan(p, PlanBasic))
	})
}

func TestGateAllowsAction(t *testing.T) {
	ctx := context.Background()

	t.Run("override allows everything", func(t *testing.T) {
		gate := newTestGate(GateConfig{PremiumOverride: true}, &fakeMetering{})
		p := &projects.Project{ID: "p1", Plan: "basic"}
		assert.True(t, gate.AllowsAction(ctx, p, "oauth"))
	})

	t.Run("non-basic plans allow premium actions", func(t *testing.T) {
		gate := newTestGate(GateConfig{}, &fakeMetering{})
		for _, plan := range []string{"independent", "team", "commercial", "trial"} {
			p := &projects.Project{ID: "p1", Plan: plan}
			assert.True(t, gate.AllowsAction(ctx, p, "oauth"), "plan %s", plan)
		}
	})

	t.Run("basic plan denies premium actions", func(t *testing.T) {
		gate := newTestGate(GateConfig{}, &fakeMetering{})
		p := &projects.Project{ID: "p1", Plan: "basic"}
		for _, action := range DefaultPremiumActions {
			assert.False(t, gate.AllowsAction(ctx, p, action), "action %s", action)
		}
	})

	t.Run("basic plan allows non-premium actions", func(t *testing.T) {
		gate := newTestGate(GateConfig{}, &fakeMetering{})
		p := &projects.Project{ID: "p1", Plan: "basic"}
		assert.True(t, gate.AllowsAction(ctx, p, "email"))
		assert.True(t, gate.AllowsAction(ctx, p, "save"))
	})

	t.Run("custom premium list replaces the default", func(t *testing.T) {
		gate := newTestGate(GateConfig{PremiumActions: []string{"email"}}, &fakeMetering{})
		p := &projects.Project{ID: "p1", Plan: "basic"}
		assert.False(t, gate.AllowsAction(ctx, p, "email"))
		assert.True(t, gate.AllowsAction(ctx, p, "oauth"))
	})

	t.Run("primary project is never denied", func(t *testing.T) {
		gate := newTestGate(GateConfig{}, &fakeMetering{})
		p := &projects.Project{ID: "p1", Plan: "basic", Primary: true}
		assert.True(t, gate.AllowsAction(ctx, p, "oauth"))
	})
}

func TestGateCheckCallLimit(t *testing.T) {
	ctx := context.Background()

	t.Run("nil project passes", func(t *testing.T) {
		gate := newTestGate(GateConfig{}, &fakeMetering{used: 1 << 40})
		assert.NoError(t, gate.CheckCallLimit(ctx, nil))
	})

	t.Run("bootstrap project is exempt", func(t *testing.T) {
		gate := newTestGate(GateConfig{BootstrapProject: "formgrid"}, &fakeMetering{used: 1 << 40})
		p := &projects.Project{ID: "p1", Name: "formgrid", Plan: "basic"}
		assert.NoError(t, gate.CheckCallLimit(ctx, p))
	})

	t.Run("commercial plan is unlimited", func(t *testing.T) {
		gate := newTestGate(GateConfig{}, &fakeMetering{used: 1 << 40})
		p := &projects.Project{ID: "p1", Plan: "commercial"}
		assert.NoError(t, gate.CheckCallLimit(ctx, p))
	})

	t.Run("under the ceiling passes", func(t *testing.T) {
		gate := newTestGate(GateConfig{}, &fakeMetering{used: 999})
		p := &projects.Project{ID: "p1", Plan: "basic"}
		assert.NoError(t, gate.CheckCallLimit(ctx, p))
	})

	t.Run("at the ceiling is rejected", func(t *testing.T) {
		gate := newTestGate(GateConfig{}, &fakeMetering{used: 1000})
		p := &projects.Project{ID: "p1", Plan: "basic"}

		err := gate.CheckCallLimit(ctx, p)
		require.Error(t, err)
		assert.True(t, IsLimitExceeded(err))

		var limitErr *LimitExceededError
		require.ErrorAs(t, err, &limitErr)
		assert.Equal(t, "p1", limitErr.ProjectID)
		assert.Equal(t, PlanBasic, limitErr.Plan)
		assert.Equal(t, int64(1000), limitErr.Limit)
		assert.Equal(t, int64(1000), limitErr.Used)
	})

	t.Run("custom ceiling overrides the default", func(t *testing.T) {
		gate := newTestGate(GateConfig{CallLimits: map[Plan]int64{PlanBasic: 5}}, &fakeMetering{used: 5})
		p := &projects.Project{ID: "p1", Plan: "basic"}
		assert.True(t, IsLimitExceeded(gate.CheckCallLimit(ctx, p)))
	})

	t.Run("metering failure counts as zero usage", func(t *testing.T) {
		gate := newTestGate(GateConfig{}, &fakeMetering{err: errors.New("redis down")})
		p := &projects.Project{ID: "p1", Plan: "basic"}
		assert.NoError(t, gate.CheckCallLimit(ctx, p))
	})
}
