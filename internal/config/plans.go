package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPlan is assigned to new users.
const DefaultPlan = "free"

// Plan describes the site-builder quota for a subscription tier.
type Plan struct {
	Name       string   `yaml:"name"`
	MaxPages   int      `yaml:"max_pages"`
	BlockTypes []string `yaml:"block_types"`
}

// AllowsBlock reports whether the plan may use the block type.
func (p Plan) AllowsBlock(blockType string) bool {
	for _, t := range p.BlockTypes {
		if t == blockType {
			return true
		}
	}
	return false
}

// Plans indexes plans by name.
type Plans map[string]Plan

type plansFile struct {
	Plans []Plan `yaml:"plans"`
}

// DefaultPlans returns the built-in tiers used when no plans file exists.
func DefaultPlans() Plans {
	basic := []string{"text", "image", "link"}
	extended := append(append([]string{}, basic...), "gallery", "services", "contact", "embed")
	return Plans{
		"free":     {Name: "free", MaxPages: 1, BlockTypes: basic},
		"pro":      {Name: "pro", MaxPages: 5, BlockTypes: extended},
		"business": {Name: "business", MaxPages: 25, BlockTypes: extended},
	}
}

// LoadPlans reads plans from a YAML file, falling back to DefaultPlans when
// the file does not exist.
func LoadPlans(path string) (Plans, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPlans(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultPlans(), nil
		}
		return nil, fmt.Errorf("failed to read plans config: %w", err)
	}
	return ParsePlans(data)
}

// ParsePlans decodes and validates plan YAML.
func ParsePlans(data []byte) (Plans, error) {
	var file plansFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse plans config: %w", err)
	}
	plans := make(Plans, len(file.Plans))
	for _, p := range file.Plans {
		p.Name = strings.ToLower(strings.TrimSpace(p.Name))
		if p.Name == "" {
			return nil, fmt.Errorf("plan name is required")
		}
		if p.MaxPages < 0 {
			return nil, fmt.Errorf("plan %s: max_pages must not be negative", p.Name)
		}
		if _, dup := plans[p.Name]; dup {
			return nil, fmt.Errorf("plan %s defined twice", p.Name)
		}
		plans[p.Name] = p
	}
	if _, ok := plans[DefaultPlan]; !ok {
		return nil, fmt.Errorf("plan %q is required", DefaultPlan)
	}
	return plans, nil
}

// Get returns the named plan.
func (p Plans) Get(name string) (Plan, bool) {
	plan, ok := p[strings.ToLower(strings.TrimSpace(name))]
	return plan, ok
}

// Names returns plan names sorted by page quota.
func (p Plans) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return p[names[i]].MaxPages < p[names[j]].MaxPages
	})
	return names
}
