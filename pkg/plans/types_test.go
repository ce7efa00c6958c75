package plans

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanKnown(t *testing.T) {
	for _, p := range []Plan{PlanBasic, PlanIndependent, PlanTeam, PlanCommercial, PlanTrial} {
		assert.True(t, p.Known(), "%s should be known", p)
	}
	assert.False(t, Plan("").Known())
	assert.False(t, Plan("enterprise").Known())
}

func TestPlanSupportsGroups(t *testing.T) {
	assert.True(t, PlanTeam.SupportsGroups())
	assert.True(t, PlanCommercial.SupportsGroups())
	assert.False(t, PlanBasic.SupportsGroups())
	assert.False(t, PlanIndependent.SupportsGroups())
	assert.False(t, PlanTrial.SupportsGroups())
}

func TestDefaultCallLimits(t *testing.T) {
	assert.Equal(t, int64(1000), DefaultCallLimits[PlanBasic])
	assert.Equal(t, int64(10000), DefaultCallLimits[PlanIndependent])
	assert.Equal(t, int64(250000), DefaultCallLimits[PlanTeam])
	assert.Equal(t, Unlimited, DefaultCallLimits[PlanCommercial])
	assert.Equal(t, int64(10000), DefaultCallLimits[PlanTrial])
}

func TestIsLimitExceeded(t *testing.T) {
	limitErr := &LimitExceededError{ProjectID: "p1", Plan: PlanBasic, Limit: 1000, Used: 1000}
	assert.True(t, IsLimitExceeded(limitErr))
	assert.True(t, IsLimitExceeded(fmt.Errorf("gate: %w", limitErr)))
	assert.False(t, IsLimitExceeded(errors.New("other")))
	assert.False(t, IsLimitExceeded(nil))

	assert.Contains(t, limitErr.Error(), "p1")
	assert.Contains(t, limitErr.Error(), "basic")
}
