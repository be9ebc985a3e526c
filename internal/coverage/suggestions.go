package coverage

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ppiankov/policygap/internal/model"
)

type suggestionResponse struct {
	Suggestion string `json:"suggestion" description:"One actionable sentence describing the scenarios to add"`
}

// ScenariosNeeded is how many more scenarios the template asks for:
// ceil(min * partial) - count, never below 1
func ScenariosNeeded(g Gap, thresholds model.CoverageThresholds) int {
	target := int(math.Ceil(float64(thresholds.MinScenariosPerSubCategory) * thresholds.PartialThreshold))
	if n := target - g.ScenarioCount; n > 1 {
		return n
	}
	return 1
}

// TemplateSuggestion is the suggestion used when no collaborator is available
func TemplateSuggestion(g Gap, thresholds model.CoverageThresholds) string {
	rules := "its related rules"
	if len(g.RelatedRuleIDs) > 0 {
		rules = strings.Join(g.RelatedRuleIDs, ", ")
	}
	return fmt.Sprintf("Add %d+ scenarios for '%s' (%s priority) testing %s",
		ScenariosNeeded(g, thresholds), g.SubCategoryName, strings.ToUpper(string(g.Priority)), rules)
}

// BuildSuggestionPrompt asks for one improvement suggestion for a gap
func BuildSuggestionPrompt(g Gap, thresholds model.CoverageThresholds) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A policy test suite has a coverage gap. Suggest, in one sentence, which test scenarios to add.\n\n")
	fmt.Fprintf(&b, "Sub-category: %s (%s), parent category %s\n", g.SubCategoryName, g.SubCategoryID, g.ParentCategory)
	fmt.Fprintf(&b, "Priority: %s\n", g.Priority)
	if len(g.RelatedRuleIDs) > 0 {
		fmt.Fprintf(&b, "Related rules: %s\n", strings.Join(g.RelatedRuleIDs, ", "))
	}
	fmt.Fprintf(&b, "Current coverage: %.0f%% (%s, %d scenarios, %d expected)\n",
		g.CoveragePercent, g.Status, g.ScenarioCount, thresholds.MinScenariosPerSubCategory)
	fmt.Fprintf(&b, "Scenario types so far: %s\n", FormatDistribution(g.TypeDistribution))
	b.WriteString("\nFavour scenario types that are missing, and name the rules the scenarios should exercise.")
	return b.String()
}

// FormatDistribution renders a type distribution in a stable order
func FormatDistribution(dist map[model.ScenarioType]int) string {
	if len(dist) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(dist))
	for k := range dist {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, dist[model.ScenarioType(k)])
	}
	return strings.Join(parts, ", ")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
