package coverage

import (
	"context"
	"fmt"
	"log"

	"github.com/ppiankov/policygap/internal/llm"
	"github.com/ppiankov/policygap/internal/model"
)

type draftResponse struct {
	Description string `json:"description" description:"A concrete user request or situation for the new test scenario"`
}

// Improver turns a report's gaps into requests for new scenarios
type Improver struct {
	generator llm.StructuredGenerator
	logger    *log.Logger
}

// NewImprover creates an improver. With a generator, each spec also gets a short draft.
func NewImprover(generator llm.StructuredGenerator, logger *log.Logger) *Improver {
	if logger == nil {
		logger = log.Default()
	}
	return &Improver{generator: generator, logger: logger}
}

// SuggestScenarios returns up to limit scenario specs for the highest-ranked gaps.
// Each asks for the least represented of positive, negative and edge_case.
// The output is advisory; nothing is generated here beyond an optional draft.
func (im *Improver) SuggestScenarios(ctx context.Context, report model.CoverageReport, taxonomy model.SubCategoryTaxonomy, limit int) []model.ScenarioSpec {
	specs := []model.ScenarioSpec{}
	if limit <= 0 {
		return specs
	}

	gaps := RankGaps(report, taxonomy)
	if len(gaps) > limit {
		gaps = gaps[:limit]
	}

	for _, g := range gaps {
		scenarioType := LeastRepresented(g.TypeDistribution)
		spec := model.ScenarioSpec{
			SubCategoryID:   g.SubCategoryID,
			SubCategoryName: g.SubCategoryName,
			ScenarioType:    scenarioType,
			TargetRuleIDs:   append([]string{}, g.RelatedRuleIDs...),
			Rationale: fmt.Sprintf("'%s' is %s at %.0f%% with %d scenarios (%s); add a %s scenario to balance it",
				g.SubCategoryName, g.Status, g.CoveragePercent, g.ScenarioCount, FormatDistribution(g.TypeDistribution), scenarioType),
		}

		if im.generator != nil {
			var resp draftResponse
			if err := im.generator.GenerateStructured(ctx, BuildDraftPrompt(g, scenarioType), &resp); err != nil {
				im.logger.Printf("WARNING: draft for %s skipped: %v", g.SubCategoryID, err)
			} else {
				spec.Draft = oneLine(resp.Description)
			}
		}

		specs = append(specs, spec)
	}

	return specs
}

// LeastRepresented picks the balanced scenario type with the lowest count,
// breaking ties in the order positive, negative, edge_case
func LeastRepresented(dist map[model.ScenarioType]int) model.ScenarioType {
	best := model.BalancedScenarioTypes[0]
	for _, t := range model.BalancedScenarioTypes[1:] {
		if dist[t] < dist[best] {
			best = t
		}
	}
	return best
}

// BuildDraftPrompt asks for a one-paragraph scenario description for a spec
func BuildDraftPrompt(g Gap, scenarioType model.ScenarioType) string {
	rules := "the sub-category's rules"
	if len(g.RelatedRuleIDs) > 0 {
		rules = fmt.Sprintf("rules %v", g.RelatedRuleIDs)
	}
	return fmt.Sprintf(`Write one %s test scenario for the policy sub-category '%s' (%s, parent category %s).
The scenario must exercise %s. Describe the user's request or situation in two or three sentences.
A positive scenario complies with the policy, a negative one violates it, an edge_case sits on a boundary.`,
		scenarioType, g.SubCategoryName, g.SubCategoryID, g.ParentCategory, rules)
}
