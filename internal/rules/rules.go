// Package rules loads and validates the classification rule table.
//
// Rules are declared in YAML and compiled once at load. Each rule pairs
// a regular expression with a retry verdict and a summary template; the
// engine in internal/classify walks a log against the compiled set.
package rules

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// RuleSpec is the YAML shape of a single rule.
type RuleSpec struct {
	Name          string   `yaml:"name"`
	Pattern       string   `yaml:"pattern"`
	ShouldRetry   bool     `yaml:"should_retry"`
	Priority      int      `yaml:"priority"`
	Summary       string   `yaml:"summary"`
	ContextBefore int      `yaml:"context_before"`
	ContextAfter  int      `yaml:"context_after"`
	Suppresses    []string `yaml:"suppresses"`
}

// Rule is a compiled classification rule.
type Rule struct {
	Name          string
	Pattern       *regexp.Regexp
	ShouldRetry   bool
	Priority      int
	Summary       *template.Template
	ContextBefore int
	ContextAfter  int
	Suppresses    []string
}

// Ruleset is an ordered set of compiled rules. Order is priority
// descending, name ascending, so classification is deterministic.
type Ruleset struct {
	Rules []Rule
}

// rulesFile is the top-level YAML document.
type rulesFile struct {
	Rules []RuleSpec `yaml:"rules"`
}

// Load reads and compiles a rules file.
func Load(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}
	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rules: %s: %w", path, err)
	}
	return rs, nil
}

// Parse compiles YAML bytes into a Ruleset. All problems are collected
// and reported together rather than failing on the first one.
func Parse(data []byte) (*Ruleset, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("validation failed: at least one rule is required")
	}

	var errs []string
	seen := make(map[string]bool, len(f.Rules))
	compiled := make([]Rule, 0, len(f.Rules))

	for i, spec := range f.Rules {
		label := spec.Name
		if label == "" {
			label = fmt.Sprintf("rules[%d]", i)
			errs = append(errs, fmt.Sprintf("%s: name is required", label))
		}
		if seen[spec.Name] && spec.Name != "" {
			errs = append(errs, fmt.Sprintf("%s: duplicate name", label))
		}
		seen[spec.Name] = true

		r := Rule{
			Name:          spec.Name,
			ShouldRetry:   spec.ShouldRetry,
			Priority:      spec.Priority,
			ContextBefore: spec.ContextBefore,
			ContextAfter:  spec.ContextAfter,
			Suppresses:    spec.Suppresses,
		}

		if spec.Pattern == "" {
			errs = append(errs, fmt.Sprintf("%s: pattern is required", label))
		} else {
			re, err := regexp.Compile(spec.Pattern)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: pattern does not compile: %v", label, err))
			} else {
				r.Pattern = re
			}
		}

		if spec.Summary == "" {
			errs = append(errs, fmt.Sprintf("%s: summary is required", label))
		} else {
			tmpl, err := template.New(spec.Name).Option("missingkey=zero").Parse(spec.Summary)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: summary template: %v", label, err))
			} else {
				r.Summary = tmpl
			}
		}

		if spec.ContextBefore < 0 || spec.ContextAfter < 0 {
			errs = append(errs, fmt.Sprintf("%s: context line counts must not be negative", label))
		}

		compiled = append(compiled, r)
	}

	// Suppress references must name existing rules.
	for _, r := range compiled {
		for _, target := range r.Suppresses {
			if !seen[target] {
				errs = append(errs, fmt.Sprintf("%s: suppresses unknown rule %q", r.Name, target))
			}
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("validation failed: %s", strings.Join(errs, "; "))
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		if compiled[i].Priority != compiled[j].Priority {
			return compiled[i].Priority > compiled[j].Priority
		}
		return compiled[i].Name < compiled[j].Name
	})

	return &Ruleset{Rules: compiled}, nil
}

// Lint parses a rules file and returns every problem found, one string
// per issue. A nil slice means the file is clean.
func Lint(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}
	_, parseErr := Parse(data)
	if parseErr == nil {
		return nil, nil
	}
	msg := parseErr.Error()
	const marker = "validation failed: "
	if idx := strings.Index(msg, marker); idx >= 0 {
		return strings.Split(msg[idx+len(marker):], "; "), nil
	}
	// YAML-level failure: a single issue.
	return []string{msg}, nil
}

// Find returns the rule with the given name, or nil.
func (rs *Ruleset) Find(name string) *Rule {
	for i := range rs.Rules {
		if rs.Rules[i].Name == name {
			return &rs.Rules[i]
		}
	}
	return nil
}
