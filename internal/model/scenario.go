package model

import "fmt"

// ScenarioType classifies what a scenario is meant to exercise
type ScenarioType string

const (
	ScenarioPositive   ScenarioType = "positive"   // Request the policy allows
	ScenarioNegative   ScenarioType = "negative"   // Request the policy denies
	ScenarioEdgeCase   ScenarioType = "edge_case"  // Boundary of a rule
	ScenarioIrrelevant ScenarioType = "irrelevant" // Outside the policy's scope
)

// BalancedScenarioTypes is the fixed order used when picking an under-represented type
var BalancedScenarioTypes = []ScenarioType{ScenarioPositive, ScenarioNegative, ScenarioEdgeCase}

// GoldenScenario is a single synthetic test case generated against the policy.
// The coverage core only reads it, except for SubCategoryIDs which the tagger sets.
type GoldenScenario struct {
	ID              string       `json:"id,omitempty" yaml:"id,omitempty"`
	Description     string       `json:"description" yaml:"description"`
	Context         string       `json:"context,omitempty" yaml:"context,omitempty"`
	Category        string       `json:"category,omitempty" yaml:"category,omitempty"`
	ScenarioType    ScenarioType `json:"scenario_type" yaml:"scenario_type"`
	TargetRuleIDs   []string     `json:"target_rule_ids,omitempty" yaml:"target_rule_ids,omitempty"`
	ExpectedOutcome string       `json:"expected_outcome,omitempty" yaml:"expected_outcome,omitempty"`
	SubCategoryIDs  []string     `json:"sub_category_ids" yaml:"sub_category_ids"`
}

// Clone returns a deep copy of the scenario
func (s GoldenScenario) Clone() GoldenScenario {
	out := s
	out.TargetRuleIDs = cloneStrings(s.TargetRuleIDs)
	out.SubCategoryIDs = cloneStrings(s.SubCategoryIDs)
	return out
}

// WithSubCategories returns a copy of the scenario with SubCategoryIDs replaced
func (s GoldenScenario) WithSubCategories(ids []string) GoldenScenario {
	out := s.Clone()
	out.SubCategoryIDs = cloneStrings(ids)
	if out.SubCategoryIDs == nil {
		out.SubCategoryIDs = []string{}
	}
	return out
}

// HasSubCategory reports whether the scenario is tagged with the given sub-category
func (s GoldenScenario) HasSubCategory(id string) bool {
	for _, sc := range s.SubCategoryIDs {
		if sc == id {
			return true
		}
	}
	return false
}

// ScenarioKey returns the scenario's identity within a batch: its ID when set,
// otherwise its 1-based position ("S1", "S2", ...).
func ScenarioKey(s GoldenScenario, index int) string {
	if s.ID != "" {
		return s.ID
	}
	return fmt.Sprintf("S%d", index+1)
}

// CloneScenarios deep-copies a scenario list
func CloneScenarios(scenarios []GoldenScenario) []GoldenScenario {
	out := make([]GoldenScenario, len(scenarios))
	for i, s := range scenarios {
		out[i] = s.Clone()
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
