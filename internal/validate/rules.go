package validate

import (
	"fmt"
	"strings"

	"github.com/ppiankov/policygap/internal/model"
)

// RuleGraph checks that a rule graph is usable as extraction input:
// at least one rule, every rule identified, ids unique, categories known.
// Dependencies are not checked; the graph is assumed to be a DAG.
func RuleGraph(graph model.RuleGraph) error {
	if len(graph.Rules) == 0 {
		return fmt.Errorf("%w: rule graph has no rules", model.ErrInvalidInput)
	}

	seen := make(map[string]bool, len(graph.Rules))
	for i, rule := range graph.Rules {
		id := strings.TrimSpace(rule.RuleID)
		if id == "" {
			return fmt.Errorf("%w: rule #%d has no rule_id", model.ErrInvalidInput, i+1)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate rule_id %s", model.ErrInvalidInput, id)
		}
		seen[id] = true

		if strings.TrimSpace(rule.Text) == "" {
			return fmt.Errorf("%w: rule %s has no text", model.ErrInvalidInput, id)
		}
		if !rule.Category.Valid() {
			return fmt.Errorf("%w: rule %s has unknown category %q", model.ErrInvalidInput, id, rule.Category)
		}
	}

	return nil
}

// Taxonomy checks that a taxonomy can be used for tagging and coverage:
// every sub-category has an id and a known priority, and ids are unique.
func Taxonomy(tax model.SubCategoryTaxonomy) error {
	seen := make(map[string]bool, tax.Len())
	for i, sc := range tax.SubCategories {
		if strings.TrimSpace(sc.ID) == "" {
			return fmt.Errorf("%w: sub-category #%d has no id", model.ErrInvalidInput, i+1)
		}
		if seen[sc.ID] {
			return fmt.Errorf("%w: duplicate sub-category id %s", model.ErrInvalidInput, sc.ID)
		}
		seen[sc.ID] = true

		if !sc.Priority.Valid() {
			return fmt.Errorf("%w: sub-category %s has unknown priority %q", model.ErrInvalidInput, sc.ID, sc.Priority)
		}
	}
	return nil
}

// Scenarios checks that every scenario type is known. Empty types are allowed;
// such scenarios count toward coverage but not toward type distributions.
func Scenarios(scenarios []model.GoldenScenario) error {
	for i, s := range scenarios {
		switch s.ScenarioType {
		case "", model.ScenarioPositive, model.ScenarioNegative, model.ScenarioEdgeCase, model.ScenarioIrrelevant:
		default:
			return fmt.Errorf("%w: scenario %s has unknown scenario_type %q",
				model.ErrInvalidInput, model.ScenarioKey(s, i), s.ScenarioType)
		}
	}
	return nil
}
