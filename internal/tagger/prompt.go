package tagger

import (
	"fmt"
	"strings"

	"github.com/ppiankov/policygap/internal/model"
)

// BuildTagPrompt renders the tagging instruction for one batch. Scenarios are
// numbered from 0 within the batch. Prior tags never appear in the prompt.
func BuildTagPrompt(scenarios []model.GoldenScenario, taxonomy model.SubCategoryTaxonomy) string {
	var b strings.Builder

	b.WriteString(`Assign each test scenario to the policy sub-categories it exercises.
A scenario may test several sub-categories or none. Use only ids from the list below.

SUB-CATEGORIES:
`)
	for _, sc := range taxonomy.SubCategories {
		fmt.Fprintf(&b, "- %s: %s (%s)", sc.ID, sc.Name, sc.ParentCategory)
		if sc.Description != "" {
			fmt.Fprintf(&b, " - %s", sc.Description)
		}
		if len(sc.RelatedRuleIDs) > 0 {
			fmt.Fprintf(&b, " [rules: %s]", strings.Join(sc.RelatedRuleIDs, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString("\nSCENARIOS:\n")
	for i, s := range scenarios {
		fmt.Fprintf(&b, "Scenario [%d]: %s\n", i, oneLine(s.Description))
		if s.Context != "" {
			fmt.Fprintf(&b, "  context: %s\n", oneLine(s.Context))
		}
		if s.ScenarioType != "" {
			fmt.Fprintf(&b, "  type: %s\n", s.ScenarioType)
		}
		if len(s.TargetRuleIDs) > 0 {
			fmt.Fprintf(&b, "  target rules: %s\n", strings.Join(s.TargetRuleIDs, ", "))
		}
	}

	fmt.Fprintf(&b, "\nReturn one assignment per scenario, scenario_index 0 to %d.", len(scenarios)-1)
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
