package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/formgrid/formgrid/pkg/plans"
)

// PlanDefinitions overrides the compiled-in plan limits and premium action
// list. Loaded from an optional YAML file:
//
//	premium_actions:
//	  - oauth
//	  - webhook
//	call_limits:
//	  basic: 1000
//	  independent: 10000
//	  team: 250000
//	  commercial: -1
type PlanDefinitions struct {
	PremiumActions []string         `yaml:"premium_actions"`
	CallLimits     map[string]int64 `yaml:"call_limits"`
}

// LoadPlanDefinitions reads plan overrides from the given YAML file. An
// empty path returns empty definitions, meaning the compiled-in defaults
// apply.
func LoadPlanDefinitions(path string) (*PlanDefinitions, error) {
	if path == "" {
		return &PlanDefinitions{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plans file %s: %w", path, err)
	}

	var defs PlanDefinitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parse plans file %s: %w", path, err)
	}

	for name := range defs.CallLimits {
		if !plans.Plan(name).Known() {
			return nil, fmt.Errorf("plans file %s: unknown plan %q", path, name)
		}
	}
	return &defs, nil
}

// Limits converts the definitions' call limits to the gate's plan map
func (d *PlanDefinitions) Limits() map[plans.Plan]int64 {
	if len(d.CallLimits) == 0 {
		return nil
	}
	limits := make(map[plans.Plan]int64, len(d.CallLimits))
	for name, limit := range d.CallLimits {
		limits[plans.Plan(name)] = limit
	}
	return limits
}
