package plans

import (
	"context"

	"github.com/formgrid/formgrid/pkg/observability"
	"github.com/formgrid/formgrid/pkg/projects"
)

// GateConfig controls plan gating behavior
type GateConfig struct {
	// DefaultPlan applies when a project's stored plan is missing or unknown
	DefaultPlan Plan

	// PremiumOverride disables premium-action gating entirely. Used for
	// trusted or self-hosted deployments.
	PremiumOverride bool

	// BootstrapProject names the platform's own project, exempt from call
	// ceilings
	BootstrapProject string

	// PremiumActions overrides the built-in premium action list when set
	PremiumActions []string

	// CallLimits overrides individual per-plan ceilings when set
	CallLimits map[Plan]int64
}

// Gate decides whether a project's plan permits premium actions and further
// API calls this month
type Gate struct {
	cfg      GateConfig
	premium  map[string]struct{}
	limits   map[Plan]int64
	metering MeteringStore
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewGate creates a plan gate using the given metering store
func NewGate(cfg GateConfig, metering MeteringStore, logger *observability.Logger, metrics *observability.Metrics) *Gate {
	if !cfg.DefaultPlan.Known() {
		cfg.DefaultPlan = PlanBasic
	}

	actions := cfg.PremiumActions
	if len(actions) == 0 {
		actions = DefaultPremiumActions
	}
	premium := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		premium[a] = struct{}{}
	}

	limits := make(map[Plan]int64, len(DefaultCallLimits))
	for plan, limit := range DefaultCallLimits {
		limits[plan] = limit
	}
	for plan, limit := range cfg.CallLimits {
		limits[plan] = limit
	}

	return &Gate{
		cfg:      cfg,
		premium:  premium,
		limits:   limits,
		metering: metering,
		logger:   logger,
		metrics:  metrics,
	}
}

// EffectivePlan resolves the plan governing a project. Primary projects are
// always commercial; unknown or missing stored plans fall back to the
// default.
func EffectivePlan(p *projects.Project, def Plan) Plan {
	if p == nil {
		return def
	}
	if p.Primary {
		return PlanCommercial
	}
	if plan := Plan(p.Plan); plan.Known() {
		return plan
	}
	return def
}

// EffectivePlan resolves the plan for a project under this gate's default
func (g *Gate) EffectivePlan(p *projects.Project) Plan {
	return EffectivePlan(p, g.cfg.DefaultPlan)
}

// AllowsAction reports whether the project's plan permits the named action
// kind. The override flag wins before any plan check; otherwise only the
// basic plan is denied premium actions. Never errors.
func (g *Gate) AllowsAction(ctx context.Context, p *projects.Project, action string) bool {
	if g.cfg.PremiumOverride {
		return true
	}

	plan := g.EffectivePlan(p)
	if plan != PlanBasic {
		return true
	}
	if _, isPremium := g.premium[action]; !isPremium {
		return true
	}

	if g.metrics != nil {
		g.metrics.PremiumDenialsTotal.WithLabelValues(string(plan), action).Inc()
	}
	g.logger.WithFields(map[string]interface{}{
		"project_id": p.ID,
		"plan":       plan,
		"action":     action,
	}).Info(ctx, "premium action denied by plan")
	return false
}

// CheckCallLimit verifies the project is under its monthly call ceiling.
// Returns *LimitExceededError when over; metering failures count as zero
// usage so an outage never blocks traffic.
func (g *Gate) CheckCallLimit(ctx context.Context, p *projects.Project) error {
	if p == nil {
		return nil
	}
	if g.cfg.BootstrapProject != "" && p.Name == g.cfg.BootstrapProject {
		return nil
	}

	plan := g.EffectivePlan(p)
	limit, ok := g.limits[plan]
	if !ok || limit == Unlimited {
		return nil
	}

	used, err := g.metering.CallsThisMonth(ctx, p.ID)
	if err != nil {
		if g.metrics != nil {
			g.metrics.MeteringErrorsTotal.Inc()
		}
		g.logger.WithError(err).WithField("project_id", p.ID).
			Warn(ctx, "metering read failed, treating usage as zero")
		return nil
	}

	if used < limit {
		return nil
	}

	if g.metrics != nil {
		g.metrics.CallLimitHitsTotal.WithLabelValues(string(plan)).Inc()
	}
	return &LimitExceededError{
		ProjectID: p.ID,
		Plan:      plan,
		Limit:     limit,
		Used:      used,
	}
}
