// Package suiteplan selects which post-build test suites run for a
// given build profile. Each suite carries a predicate over the profile
// (operating system, architecture, enabled features, built modules);
// suites whose predicate is false are pruned from the plan.
package suiteplan

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/zulandar/signalbox/internal/config"
)

// Profile describes the build whose post-build suites are being planned.
type Profile struct {
	OS       string
	Arch     string
	Features []string
	Modules  []string
}

// Suite is one candidate with its compiled predicate. A nil program
// means the suite is unconditional.
type Suite struct {
	Name    string
	When    string
	program *vm.Program
}

// Plan is an ordered list of candidate suites.
type Plan struct {
	Suites []Suite
}

// Compile builds a Plan from suite configuration, compiling each
// predicate. All compile failures are reported together.
func Compile(specs []config.SuiteConfig) (*Plan, error) {
	var errs []string
	suites := make([]Suite, 0, len(specs))

	for _, spec := range specs {
		s := Suite{Name: spec.Name, When: spec.When}
		if strings.TrimSpace(spec.When) != "" {
			program, err := expr.Compile(spec.When, expr.Env(envFor(Profile{})), expr.AsBool())
			if err != nil {
				errs = append(errs, fmt.Sprintf("suite %q: compile predicate %q: %v", spec.Name, spec.When, err))
				continue
			}
			s.program = program
		}
		suites = append(suites, s)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("suiteplan: %s", strings.Join(errs, "; "))
	}
	return &Plan{Suites: suites}, nil
}

// Select returns the suites whose predicate holds for the profile, in
// plan order.
func (p *Plan) Select(profile Profile) ([]string, error) {
	var selected []string
	for _, s := range p.Suites {
		if s.program == nil {
			selected = append(selected, s.Name)
			continue
		}
		out, err := expr.Run(s.program, envFor(profile))
		if err != nil {
			return nil, fmt.Errorf("suiteplan: eval predicate for suite %q: %w", s.Name, err)
		}
		ok, isBool := out.(bool)
		if !isBool {
			return nil, fmt.Errorf("suiteplan: predicate for suite %q did not return bool (got %T)", s.Name, out)
		}
		if ok {
			selected = append(selected, s.Name)
		}
	}
	return selected, nil
}

// envFor exposes the profile to predicate expressions.
func envFor(p Profile) map[string]interface{} {
	features := p.Features
	if features == nil {
		features = []string{}
	}
	modules := p.Modules
	if modules == nil {
		modules = []string{}
	}
	return map[string]interface{}{
		"os":       p.OS,
		"arch":     p.Arch,
		"features": features,
		"modules":  modules,
	}
}
