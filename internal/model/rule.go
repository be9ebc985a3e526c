package model

// RuleCategory classifies a rule extracted from the policy
type RuleCategory string

const (
	RuleCategoryConstraint RuleCategory = "constraint" // Something that must or must not happen
	RuleCategoryPermission RuleCategory = "permission" // Something that is allowed
	RuleCategoryProcedure  RuleCategory = "procedure"  // Steps that must be followed
	RuleCategoryException  RuleCategory = "exception"  // Carve-out from another rule
)

// Valid reports whether c is one of the known rule categories
func (c RuleCategory) Valid() bool {
	switch c {
	case RuleCategoryConstraint, RuleCategoryPermission, RuleCategoryProcedure, RuleCategoryException:
		return true
	}
	return false
}

// Rule is one atomic, identified normative statement extracted from a policy
type Rule struct {
	RuleID       string       `json:"rule_id" yaml:"rule_id"`                               // e.g. "R001"
	Category     RuleCategory `json:"category" yaml:"category"`                             // constraint, permission, procedure, exception
	Text         string       `json:"text" yaml:"text"`                                     // The rule as stated
	Condition    string       `json:"condition,omitempty" yaml:"condition,omitempty"`       // When the rule applies
	Action       string       `json:"action,omitempty" yaml:"action,omitempty"`             // What the rule requires
	Dependencies []string     `json:"dependencies,omitempty" yaml:"dependencies,omitempty"` // Rule ids this rule builds on (a DAG)
}

// RuleGraph is the ordered set of rules extracted from a policy.
// Acyclicity of Dependencies is assumed, not verified.
type RuleGraph struct {
	Rules []Rule `json:"rules" yaml:"rules"`
}

// Lookup returns the rule with the given id
func (g RuleGraph) Lookup(ruleID string) (Rule, bool) {
	for _, r := range g.Rules {
		if r.RuleID == ruleID {
			return r, true
		}
	}
	return Rule{}, false
}

// Category is a coarse grouping produced by the planning phase
type Category struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}
