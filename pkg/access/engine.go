package access

import (
	"context"
	"fmt"
	"time"

	"github.com/formgrid/formgrid/pkg/groups"
	"github.com/formgrid/formgrid/pkg/observability"
	"github.com/formgrid/formgrid/pkg/plans"
	"github.com/formgrid/formgrid/pkg/projects"
)

// EngineConfig holds the engine's environment-level knobs
type EngineConfig struct {
	// DefaultPlan applies when a project's stored plan is missing or unknown
	DefaultPlan plans.Plan
}

// Engine renders access decisions. It is stateless across requests; all
// mutable state lives in the per-request evaluation, so a single Engine
// serves concurrent requests.
type Engine struct {
	projects projects.Store
	groups   *groups.Resolver
	cfg      EngineConfig
	logger   *observability.Logger
	metrics  *observability.Metrics
	rules    []rule
}

// rule is one step of the precedence chain. Returning a nil decision passes
// evaluation to the next rule.
type rule struct {
	name string
	eval func(ctx context.Context, st *evalState) (*Decision, error)
}

// evalState is the request-scoped working set shared by the rules
type evalState struct {
	req    *Request
	entity Entity // effective entity; the storage-signing rule re-targets it
	method Method

	resolved bool              // set once resolveProject has run
	project  *projects.Project // nil until resolved; nil for global routes
	primary  *projects.Project
	plan     plans.Plan
}

// NewEngine creates an access decision engine
func NewEngine(store projects.Store, groupResolver *groups.Resolver, cfg EngineConfig, logger *observability.Logger, metrics *observability.Metrics) *Engine {
	if !cfg.DefaultPlan.Known() {
		cfg.DefaultPlan = plans.PlanBasic
	}

	e := &Engine{
		projects: store,
		groups:   groupResolver,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
	}

	// Precedence order is the contract: the first rule that returns a
	// decision wins, and later rules never run.
	e.rules = []rule{
		{name: "admin_key", eval: e.ruleAdminKey},
		{name: "remote_permission", eval: e.ruleRemotePermission},
		{name: "global_routes", eval: e.ruleGlobalRoutes},
		{name: "public_routes", eval: e.rulePublicRoutes},
		{name: "storage_signing", eval: e.ruleStorageSigning},
		{name: "owner", eval: e.ruleOwner},
		{name: "default", eval: e.ruleDefault},
	}
	return e
}

// HasAccess evaluates the request against the rule chain and returns the
// decision.
//
// Project and primary-project lookups run lazily, on the first rule that
// needs them: an admin key or a remote claim decides without touching the
// store, so a store outage cannot deny those requests. Where a lookup does
// run it fails closed: the error aborts the evaluation and surfaces to the
// caller, who must deny. Group-scope resolution inside the default rule
// fails open instead, since it only narrows reads.
func (e *Engine) HasAccess(ctx context.Context, req *Request) (Decision, error) {
	start := time.Now()

	st := &evalState{
		req:    req,
		method: req.Method,
	}
	if req.Entity != nil {
		st.entity = *req.Entity
	}

	for _, r := range e.rules {
		decision, err := r.eval(ctx, st)
		if err != nil {
			if e.metrics != nil {
				e.metrics.DecisionErrors.WithLabelValues(r.name).Inc()
			}
			return Decision{}, fmt.Errorf("rule %s: %w", r.name, err)
		}
		if decision == nil {
			continue
		}

		decision.Rule = r.name
		if e.metrics != nil {
			outcome := "deny"
			if decision.Allow {
				outcome = "allow"
			}
			e.metrics.DecisionsTotal.WithLabelValues(r.name, outcome).Inc()
			e.metrics.DecisionDuration.WithLabelValues(r.name).Observe(time.Since(start).Seconds())
		}
		return *decision, nil
	}

	// Unreachable: the default rule always decides
	return Decision{}, fmt.Errorf("no rule decided the request")
}

// resolveProject loads the project, its primary, and the effective plan.
// Memoized per evaluation; a no-op for requests with no project context.
func (e *Engine) resolveProject(ctx context.Context, st *evalState) error {
	if st.resolved || st.req.ProjectID == "" {
		return nil
	}

	project, err := e.projects.LoadProject(ctx, st.req.ProjectID)
	if err != nil {
		return fmt.Errorf("load project %s: %w", st.req.ProjectID, err)
	}
	st.project = project

	primary, err := e.projects.LoadPrimaryProject(ctx, st.req.ProjectID)
	if err != nil {
		return fmt.Errorf("load primary project for %s: %w", st.req.ProjectID, err)
	}
	st.primary = primary
	st.plan = plans.EffectivePlan(primary, e.cfg.DefaultPlan)
	st.resolved = true
	return nil
}

func allow() *Decision {
	return &Decision{Allow: true}
}

func deny() *Decision {
	return &Decision{Allow: false}
}
