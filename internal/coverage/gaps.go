package coverage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/policygap/internal/model"
)

// Gap is a sub-category that is not yet covered, with everything needed to rank and describe it
type Gap struct {
	SubCategoryID    string                     `json:"sub_category_id"`
	SubCategoryName  string                     `json:"sub_category_name"`
	ParentCategory   string                     `json:"parent_category"`
	Priority         model.Priority             `json:"priority"`
	Status           model.CoverageStatus       `json:"status"`
	CoveragePercent  float64                    `json:"coverage_percent"`
	ScenarioCount    int                        `json:"scenario_count"`
	Weight           float64                    `json:"weight"`
	RelatedRuleIDs   []string                   `json:"related_rule_ids"`
	TypeDistribution map[model.ScenarioType]int `json:"type_distribution"`
}

// String renders the gap line shown in reports
func (g Gap) String() string {
	prefix := ""
	if g.Status == model.StatusPartial {
		prefix = "partial: "
	}
	return fmt.Sprintf("%s (%s) [%s] (%s%.0f%% coverage, %d scenarios)",
		g.SubCategoryName, g.SubCategoryID, strings.ToUpper(string(g.Priority)), prefix, g.CoveragePercent, g.ScenarioCount)
}

// RankGaps returns the report's non-covered sub-categories, uncovered before
// partial and by priority weight descending within each tier. Ties keep
// taxonomy order. taxonomy supplies related rule ids; entries it does not
// know get none.
func RankGaps(report model.CoverageReport, taxonomy model.SubCategoryTaxonomy) []Gap {
	gaps := []Gap{}
	for _, e := range report.SubCategoryCoverage {
		if e.CoverageStatus == model.StatusCovered {
			continue
		}

		var rules []string
		if sc, ok := taxonomy.Lookup(e.SubCategoryID); ok {
			rules = append([]string{}, sc.RelatedRuleIDs...)
		}

		dist := make(map[model.ScenarioType]int, len(e.TypeDistribution))
		for k, v := range e.TypeDistribution {
			dist[k] = v
		}

		gaps = append(gaps, Gap{
			SubCategoryID:    e.SubCategoryID,
			SubCategoryName:  e.SubCategoryName,
			ParentCategory:   e.ParentCategory,
			Priority:         e.Priority,
			Status:           e.CoverageStatus,
			CoveragePercent:  e.CoveragePercent,
			ScenarioCount:    e.ScenarioCount,
			Weight:           report.Thresholds.Weight(e.Priority),
			RelatedRuleIDs:   rules,
			TypeDistribution: dist,
		})
	}

	sort.SliceStable(gaps, func(i, j int) bool {
		iUncovered := gaps[i].Status == model.StatusUncovered
		jUncovered := gaps[j].Status == model.StatusUncovered
		if iUncovered != jUncovered {
			return iUncovered
		}
		return gaps[i].Weight > gaps[j].Weight
	})

	return gaps
}

// GapTexts renders ranked gaps as report lines
func GapTexts(gaps []Gap) []string {
	out := make([]string, len(gaps))
	for i, g := range gaps {
		out[i] = g.String()
	}
	return out
}
