package extract

import (
	"fmt"
	"strings"

	"github.com/ppiankov/policygap/internal/model"
)

// BuildTaxonomyPrompt renders the extraction instruction for a policy
func BuildTaxonomyPrompt(policyText string, graph model.RuleGraph, categories []model.Category) string {
	var b strings.Builder

	b.WriteString(`Break the policy below into a taxonomy of sub-categories for test coverage.

A sub-category is one atomic, testable behaviour of the policy (for example "Approval thresholds" or
"Receipt requirements"). Each sub-category must:
- have a stable id of the form SC001, SC002, ... (unique, sequential)
- have a short name and a one-sentence description of the behaviour it tests
- belong to exactly one parent category
- list the rule ids it exercises in related_rule_ids (only ids from the rule list)
- have priority high, medium or low (high = compliance-critical or money/approval related)

Every rule should appear in at least one sub-category.

POLICY:
`)
	b.WriteString(strings.TrimSpace(policyText))
	b.WriteString("\n\nRULES:\n")

	for _, r := range graph.Rules {
		fmt.Fprintf(&b, "- %s [%s]: %s\n", r.RuleID, r.Category, strings.TrimSpace(r.Text))
		if r.Condition != "" {
			fmt.Fprintf(&b, "  condition: %s\n", r.Condition)
		}
		if r.Action != "" {
			fmt.Fprintf(&b, "  action: %s\n", r.Action)
		}
	}

	if len(categories) == 0 {
		b.WriteString("\nNo categories were planned; infer sensible parent categories from the policy structure.\n")
	} else {
		b.WriteString("\nPARENT CATEGORIES (use these names as parent_category):\n")
		for _, c := range categories {
			if c.Description != "" {
				fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.Description)
			} else {
				fmt.Fprintf(&b, "- %s\n", c.Name)
			}
		}
	}

	b.WriteString("\nExplain your grouping briefly in reasoning.")
	return b.String()
}
