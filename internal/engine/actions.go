package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/fieldops/internal/models"
)

// ActionRules attaches extra recommendations to critical alerts.
type ActionRules struct {
	rules  []ActionRule
	logger *slog.Logger
}

// ActionRule is one entry of the rule pack.
type ActionRule struct {
	ID              string      `yaml:"id"`
	Match           ActionMatch `yaml:"match"`
	Recommendations []string    `yaml:"recommendations"`
}

// ActionMatch lists optional criteria; all set criteria must hold.
type ActionMatch struct {
	Category          string   `yaml:"category"`
	Risk              string   `yaml:"risk"`
	Location          string   `yaml:"location"`
	EquipmentContains []string `yaml:"equipment_contains"`
	SLABreach         *bool    `yaml:"sla_breach"`
	MinCustomers      int      `yaml:"min_customers"`
}

type actionRuleFile struct {
	Rules []ActionRule `yaml:"rules"`
}

// LoadActionRules reads a rule pack. A missing path yields nil rules, which
// recommend nothing.
func LoadActionRules(path string, logger *slog.Logger) (*ActionRules, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read action rules: %w", err)
	}
	var file actionRuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse action rules: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("action rules loaded", slog.String("path", path), slog.Int("rules", len(file.Rules)))
	return &ActionRules{rules: file.Rules, logger: logger}, nil
}

// Recommend returns the de-duplicated recommendations of every matching rule.
func (r *ActionRules) Recommend(fault models.EnrichedFault) []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, rule := range r.rules {
		if !rule.Match.matches(fault) {
			continue
		}
		out = appendUnique(out, rule.Recommendations...)
	}
	return out
}

func (m ActionMatch) matches(f models.EnrichedFault) bool {
	if m.Category != "" && models.ParseCategory(m.Category) != f.Fault.Category {
		return false
	}
	if m.Risk != "" && !strings.EqualFold(m.Risk, string(f.Risk)) {
		return false
	}
	if m.Location != "" && !strings.EqualFold(m.Location, f.Fault.Location) {
		return false
	}
	if m.SLABreach != nil && *m.SLABreach != f.SLABreachRisk {
		return false
	}
	if m.MinCustomers > 0 && f.Fault.CustomersAffected < m.MinCustomers {
		return false
	}
	if len(m.EquipmentContains) > 0 {
		equipment := strings.ToLower(f.Fault.EquipmentType)
		found := false
		for _, kw := range m.EquipmentContains {
			if kw != "" && strings.Contains(equipment, strings.ToLower(kw)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if v == "" {
			continue
		}
		exists := false
		for _, existing := range dst {
			if existing == v {
				exists = true
				break
			}
		}
		if !exists {
			dst = append(dst, v)
		}
	}
	return dst
}
