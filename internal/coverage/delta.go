package coverage

import "github.com/ppiankov/policygap/internal/model"

// ReportDelta describes how coverage moved between a baseline report and a current one
type ReportDelta struct {
	OverallBefore        float64  `json:"overall_before"`
	OverallAfter         float64  `json:"overall_after"`
	OverallDelta         float64  `json:"overall_delta"`
	ScenarioDelta        int      `json:"scenario_delta"`
	NewlyCovered         []string `json:"newly_covered"`
	Improved             []string `json:"improved"`
	Regressed            []string `json:"regressed"`
	OpenedGaps           []string `json:"opened_gaps"`
	ClosedGaps           []string `json:"closed_gaps"`
	AddedSubCategories   []string `json:"added_sub_categories"`
	RemovedSubCategories []string `json:"removed_sub_categories"`
}

var statusRank = map[model.CoverageStatus]int{
	model.StatusUncovered: 0,
	model.StatusPartial:   1,
	model.StatusCovered:   2,
}

// Compare diffs two reports by sub-category id. Lists follow the current
// report's order, then the baseline's for sub-categories that disappeared.
func Compare(baseline, current model.CoverageReport) ReportDelta {
	d := ReportDelta{
		OverallBefore:        baseline.OverallCoveragePercent,
		OverallAfter:         current.OverallCoveragePercent,
		OverallDelta:         current.OverallCoveragePercent - baseline.OverallCoveragePercent,
		ScenarioDelta:        current.TotalScenarios - baseline.TotalScenarios,
		NewlyCovered:         []string{},
		Improved:             []string{},
		Regressed:            []string{},
		OpenedGaps:           []string{},
		ClosedGaps:           []string{},
		AddedSubCategories:   []string{},
		RemovedSubCategories: []string{},
	}

	before := make(map[string]model.CoverageStatus, len(baseline.SubCategoryCoverage))
	for _, e := range baseline.SubCategoryCoverage {
		before[e.SubCategoryID] = e.CoverageStatus
	}
	inCurrent := make(map[string]bool, len(current.SubCategoryCoverage))

	for _, e := range current.SubCategoryCoverage {
		inCurrent[e.SubCategoryID] = true
		isGap := e.CoverageStatus != model.StatusCovered

		prev, existed := before[e.SubCategoryID]
		if !existed {
			d.AddedSubCategories = append(d.AddedSubCategories, e.SubCategoryID)
			if isGap {
				d.OpenedGaps = append(d.OpenedGaps, e.SubCategoryID)
			}
			continue
		}

		wasGap := prev != model.StatusCovered
		switch {
		case statusRank[e.CoverageStatus] > statusRank[prev]:
			d.Improved = append(d.Improved, e.SubCategoryID)
		case statusRank[e.CoverageStatus] < statusRank[prev]:
			d.Regressed = append(d.Regressed, e.SubCategoryID)
		}
		if wasGap && !isGap {
			d.NewlyCovered = append(d.NewlyCovered, e.SubCategoryID)
			d.ClosedGaps = append(d.ClosedGaps, e.SubCategoryID)
		}
		if !wasGap && isGap {
			d.OpenedGaps = append(d.OpenedGaps, e.SubCategoryID)
		}
	}

	for _, e := range baseline.SubCategoryCoverage {
		if inCurrent[e.SubCategoryID] {
			continue
		}
		d.RemovedSubCategories = append(d.RemovedSubCategories, e.SubCategoryID)
		if e.CoverageStatus != model.StatusCovered {
			d.ClosedGaps = append(d.ClosedGaps, e.SubCategoryID)
		}
	}

	return d
}

// Changed reports whether anything moved
func (d ReportDelta) Changed() bool {
	return d.OverallDelta != 0 || d.ScenarioDelta != 0 || len(d.Improved) > 0 || len(d.Regressed) > 0 ||
		len(d.AddedSubCategories) > 0 || len(d.RemovedSubCategories) > 0
}
