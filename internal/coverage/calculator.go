package coverage

import (
	"context"
	"log"

	"github.com/ppiankov/policygap/internal/llm"
	"github.com/ppiankov/policygap/internal/model"
	"github.com/ppiankov/policygap/internal/validate"
)

// Compute measures how well tagged scenarios cover a taxonomy. It is a pure
// function: no suggestions are produced and only invalid thresholds or an
// invalid taxonomy return an error.
func Compute(scenarios []model.GoldenScenario, taxonomy model.SubCategoryTaxonomy, thresholds model.CoverageThresholds) (model.CoverageReport, error) {
	if err := thresholds.Validate(); err != nil {
		return model.CoverageReport{}, err
	}
	if err := validate.Taxonomy(taxonomy); err != nil {
		return model.CoverageReport{}, err
	}

	order := taxonomy.Order()
	members := make([][]int, taxonomy.Len())
	untagged := 0

	for i, s := range scenarios {
		seen := make(map[string]bool, len(s.SubCategoryIDs))
		for _, id := range s.SubCategoryIDs {
			pos, known := order[id]
			if !known || seen[id] {
				continue
			}
			seen[id] = true
			members[pos] = append(members[pos], i)
		}
		if len(seen) == 0 {
			untagged++
		}
	}

	entries := make([]model.SubCategoryCoverage, taxonomy.Len())
	for pos, sc := range taxonomy.SubCategories {
		ids := make([]string, 0, len(members[pos]))
		dist := make(map[model.ScenarioType]int)
		for _, i := range members[pos] {
			ids = append(ids, model.ScenarioKey(scenarios[i], i))
			if t := scenarios[i].ScenarioType; t != "" {
				dist[t]++
			}
		}

		percent := thresholds.PercentFor(len(ids))
		entries[pos] = model.SubCategoryCoverage{
			SubCategoryID:    sc.ID,
			SubCategoryName:  sc.Name,
			ParentCategory:   sc.ParentCategory,
			Priority:         sc.Priority,
			ScenarioCount:    len(ids),
			ScenarioIDs:      ids,
			CoveragePercent:  percent,
			CoverageStatus:   thresholds.Status(percent),
			TypeDistribution: dist,
		}
	}

	report := model.NewCoverageReport(model.ReportParams{
		TotalScenarios:    len(scenarios),
		UntaggedScenarios: untagged,
		Entries:           entries,
		Thresholds:        thresholds,
	})

	gaps := GapTexts(RankGaps(report, taxonomy))
	return model.NewCoverageReport(model.ReportParams{
		TotalScenarios:    report.TotalScenarios,
		UntaggedScenarios: report.UntaggedScenarios,
		Entries:           report.SubCategoryCoverage,
		Gaps:              gaps,
		Thresholds:        thresholds,
	}), nil
}

// CalculateOptions configures Calculate
type CalculateOptions struct {
	Thresholds          model.CoverageThresholds
	GenerateSuggestions bool
}

// DefaultCalculateOptions returns default thresholds with suggestions enabled
func DefaultCalculateOptions() CalculateOptions {
	return CalculateOptions{Thresholds: model.DefaultThresholds(), GenerateSuggestions: true}
}

// Calculator computes coverage reports and, optionally, one suggestion per gap
type Calculator struct {
	generator llm.StructuredGenerator
	logger    *log.Logger
}

// NewCalculator creates a calculator. With a nil generator every suggestion is templated.
func NewCalculator(generator llm.StructuredGenerator, logger *log.Logger) *Calculator {
	if logger == nil {
		logger = log.Default()
	}
	return &Calculator{generator: generator, logger: logger}
}

// Calculate runs Compute and then, if requested, authors a suggestion for each
// gap in ranked order. A failed or empty delegated suggestion falls back to
// the template for that gap only.
func (c *Calculator) Calculate(ctx context.Context, scenarios []model.GoldenScenario, taxonomy model.SubCategoryTaxonomy, opts CalculateOptions) (model.CoverageReport, error) {
	thresholds := opts.Thresholds
	if isZeroThresholds(thresholds) {
		thresholds = model.DefaultThresholds()
	}

	report, err := Compute(scenarios, taxonomy, thresholds)
	if err != nil {
		return model.CoverageReport{}, err
	}
	if !opts.GenerateSuggestions {
		return report, nil
	}

	gaps := RankGaps(report, taxonomy)
	suggestions := make([]string, 0, len(gaps))
	for _, g := range gaps {
		suggestions = append(suggestions, c.suggest(ctx, g, thresholds))
	}

	return report.WithSuggestions(suggestions), nil
}

func (c *Calculator) suggest(ctx context.Context, g Gap, thresholds model.CoverageThresholds) string {
	if c.generator == nil {
		return TemplateSuggestion(g, thresholds)
	}

	var resp suggestionResponse
	if err := c.generator.GenerateStructured(ctx, BuildSuggestionPrompt(g, thresholds), &resp); err != nil {
		c.logger.Printf("WARNING: suggestion for %s fell back to template: %v", g.SubCategoryID, err)
		return TemplateSuggestion(g, thresholds)
	}
	text := oneLine(resp.Suggestion)
	if text == "" {
		c.logger.Printf("WARNING: suggestion for %s was empty, using template", g.SubCategoryID)
		return TemplateSuggestion(g, thresholds)
	}
	return text
}

func isZeroThresholds(t model.CoverageThresholds) bool {
	return t.CoveredThreshold == 0 && t.PartialThreshold == 0 && t.MinScenariosPerSubCategory == 0 && len(t.PriorityMultipliers) == 0
}
