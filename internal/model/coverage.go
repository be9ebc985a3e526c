package model

import (
	"fmt"
	"math"
)

// CoverageStatus buckets a sub-category's coverage percent against thresholds
type CoverageStatus string

const (
	StatusCovered   CoverageStatus = "covered"
	StatusPartial   CoverageStatus = "partial"
	StatusUncovered CoverageStatus = "uncovered"
)

// statusEpsilon absorbs float rounding in percent/100 comparisons
const statusEpsilon = 1e-9

// CoverageThresholds configures how scenario counts map to coverage status
type CoverageThresholds struct {
	CoveredThreshold           float64              `json:"covered_threshold" yaml:"covered_threshold" mapstructure:"covered_threshold"`
	PartialThreshold           float64              `json:"partial_threshold" yaml:"partial_threshold" mapstructure:"partial_threshold"`
	MinScenariosPerSubCategory int                  `json:"min_scenarios_per_sub_category" yaml:"min_scenarios_per_sub_category" mapstructure:"min_scenarios_per_sub_category"`
	PriorityMultipliers        map[Priority]float64 `json:"priority_multipliers" yaml:"priority_multipliers" mapstructure:"priority_multipliers"`
}

// DefaultThresholds returns covered=0.8, partial=0.3, two scenarios per sub-category
func DefaultThresholds() CoverageThresholds {
	return CoverageThresholds{
		CoveredThreshold:           0.8,
		PartialThreshold:           0.3,
		MinScenariosPerSubCategory: 2,
		PriorityMultipliers: map[Priority]float64{
			PriorityHigh:   2.0,
			PriorityMedium: 1.0,
			PriorityLow:    0.5,
		},
	}
}

// Validate enforces 0 <= partial < covered <= 1 and a non-negative minimum
func (t CoverageThresholds) Validate() error {
	if t.PartialThreshold < 0 || t.PartialThreshold > 1 {
		return fmt.Errorf("%w: partial_threshold %.2f outside [0,1]", ErrInvalidInput, t.PartialThreshold)
	}
	if t.CoveredThreshold < 0 || t.CoveredThreshold > 1 {
		return fmt.Errorf("%w: covered_threshold %.2f outside [0,1]", ErrInvalidInput, t.CoveredThreshold)
	}
	if t.PartialThreshold >= t.CoveredThreshold {
		return fmt.Errorf("%w: partial_threshold %.2f must be below covered_threshold %.2f",
			ErrInvalidInput, t.PartialThreshold, t.CoveredThreshold)
	}
	if t.MinScenariosPerSubCategory < 0 {
		return fmt.Errorf("%w: min_scenarios_per_sub_category %d is negative", ErrInvalidInput, t.MinScenariosPerSubCategory)
	}
	for p, m := range t.PriorityMultipliers {
		if m < 0 {
			return fmt.Errorf("%w: priority multiplier for %s is negative", ErrInvalidInput, p)
		}
	}
	return nil
}

// PercentFor converts a scenario count into a coverage percent in [0,100].
// A zero minimum means no scenarios are required, so everything is fully covered.
func (t CoverageThresholds) PercentFor(count int) float64 {
	if t.MinScenariosPerSubCategory <= 0 {
		return 100.0
	}
	return math.Min(100.0, 100.0*float64(count)/float64(t.MinScenariosPerSubCategory))
}

// Status buckets a coverage percent
func (t CoverageThresholds) Status(percent float64) CoverageStatus {
	fraction := percent / 100.0
	switch {
	case fraction+statusEpsilon >= t.CoveredThreshold:
		return StatusCovered
	case fraction+statusEpsilon >= t.PartialThreshold:
		return StatusPartial
	default:
		return StatusUncovered
	}
}

// Weight returns the priority multiplier, 1.0 when the priority is not configured
func (t CoverageThresholds) Weight(p Priority) float64 {
	if m, ok := t.PriorityMultipliers[p]; ok {
		return m
	}
	return 1.0
}

// Clone returns a deep copy of the thresholds
func (t CoverageThresholds) Clone() CoverageThresholds {
	out := t
	if t.PriorityMultipliers != nil {
		out.PriorityMultipliers = make(map[Priority]float64, len(t.PriorityMultipliers))
		for k, v := range t.PriorityMultipliers {
			out.PriorityMultipliers[k] = v
		}
	}
	return out
}

// SubCategoryCoverage is the computed coverage of one sub-category
type SubCategoryCoverage struct {
	SubCategoryID    string               `json:"sub_category_id" yaml:"sub_category_id"`
	SubCategoryName  string               `json:"sub_category_name" yaml:"sub_category_name"`
	ParentCategory   string               `json:"parent_category" yaml:"parent_category"`
	Priority         Priority             `json:"priority" yaml:"priority"`
	ScenarioCount    int                  `json:"scenario_count" yaml:"scenario_count"`
	ScenarioIDs      []string             `json:"scenario_ids" yaml:"scenario_ids"`
	CoveragePercent  float64              `json:"coverage_percent" yaml:"coverage_percent"`
	CoverageStatus   CoverageStatus       `json:"coverage_status" yaml:"coverage_status"`
	TypeDistribution map[ScenarioType]int `json:"type_distribution" yaml:"type_distribution"`
}

func (c SubCategoryCoverage) clone() SubCategoryCoverage {
	out := c
	out.ScenarioIDs = cloneStrings(c.ScenarioIDs)
	out.TypeDistribution = make(map[ScenarioType]int, len(c.TypeDistribution))
	for k, v := range c.TypeDistribution {
		out.TypeDistribution[k] = v
	}
	return out
}

// CoverageReport is the aggregate coverage of a scenario set against a taxonomy.
// It is a value: build it with NewCoverageReport and derive variants with the
// With* methods, which never touch the receiver.
type CoverageReport struct {
	TotalScenarios         int                           `json:"total_scenarios" yaml:"total_scenarios"`
	UntaggedScenarios      int                           `json:"untagged_scenarios" yaml:"untagged_scenarios"`
	TotalSubCategories     int                           `json:"total_sub_categories" yaml:"total_sub_categories"`
	CoveredCount           int                           `json:"covered_count" yaml:"covered_count"`
	PartialCount           int                           `json:"partial_count" yaml:"partial_count"`
	UncoveredCount         int                           `json:"uncovered_count" yaml:"uncovered_count"`
	OverallCoveragePercent float64                       `json:"overall_coverage_percent" yaml:"overall_coverage_percent"`
	SubCategoryCoverage    []SubCategoryCoverage         `json:"sub_category_coverage" yaml:"sub_category_coverage"`
	Gaps                   []string                      `json:"gaps" yaml:"gaps"`
	Suggestions            []string                      `json:"suggestions" yaml:"suggestions"`
	HeatmapData            map[string]map[string]float64 `json:"heatmap_data" yaml:"heatmap_data"`
	Thresholds             CoverageThresholds            `json:"thresholds" yaml:"thresholds"`
}

// ReportParams are the inputs NewCoverageReport aggregates
type ReportParams struct {
	TotalScenarios    int
	UntaggedScenarios int
	Entries           []SubCategoryCoverage
	Gaps              []string
	Suggestions       []string
	Thresholds        CoverageThresholds
}

// NewCoverageReport aggregates per-sub-category entries into a report.
// Counts, the unweighted mean and the heatmap are all derived here.
func NewCoverageReport(p ReportParams) CoverageReport {
	r := CoverageReport{
		TotalScenarios:      p.TotalScenarios,
		UntaggedScenarios:   p.UntaggedScenarios,
		TotalSubCategories:  len(p.Entries),
		SubCategoryCoverage: make([]SubCategoryCoverage, len(p.Entries)),
		Gaps:                nonNil(p.Gaps),
		Suggestions:         nonNil(p.Suggestions),
		Thresholds:          p.Thresholds.Clone(),
	}

	sum := 0.0
	for i, e := range p.Entries {
		r.SubCategoryCoverage[i] = e.clone()
		sum += e.CoveragePercent
		switch e.CoverageStatus {
		case StatusCovered:
			r.CoveredCount++
		case StatusPartial:
			r.PartialCount++
		default:
			r.UncoveredCount++
		}
	}
	if len(p.Entries) > 0 {
		r.OverallCoveragePercent = sum / float64(len(p.Entries))
	}
	r.HeatmapData = Heatmap(r.SubCategoryCoverage)

	return r
}

// Heatmap groups entries by parent category, mapping sub-category name to percent.
// A name repeated under one parent is disambiguated with its id so every entry appears once.
func Heatmap(entries []SubCategoryCoverage) map[string]map[string]float64 {
	heatmap := make(map[string]map[string]float64)
	for _, e := range entries {
		row, ok := heatmap[e.ParentCategory]
		if !ok {
			row = make(map[string]float64)
			heatmap[e.ParentCategory] = row
		}
		row[HeatmapKey(row, e)] = e.CoveragePercent
	}
	return heatmap
}

// HeatmapKey returns the first free key for an entry in its parent's heatmap row:
// its name, then name with id, then name with id and a counter.
func HeatmapKey(row map[string]float64, e SubCategoryCoverage) string {
	key := e.SubCategoryName
	if _, taken := row[key]; !taken {
		return key
	}
	key = fmt.Sprintf("%s (%s)", e.SubCategoryName, e.SubCategoryID)
	for n := 2; ; n++ {
		if _, taken := row[key]; !taken {
			return key
		}
		key = fmt.Sprintf("%s (%s #%d)", e.SubCategoryName, e.SubCategoryID, n)
	}
}

// Entry returns the coverage entry for a sub-category id
func (r CoverageReport) Entry(id string) (SubCategoryCoverage, bool) {
	for _, e := range r.SubCategoryCoverage {
		if e.SubCategoryID == id {
			return e.clone(), true
		}
	}
	return SubCategoryCoverage{}, false
}

// WithSuggestions returns a copy of the report carrying the given suggestions
func (r CoverageReport) WithSuggestions(suggestions []string) CoverageReport {
	out := r.Clone()
	out.Suggestions = nonNil(suggestions)
	return out
}

// Clone returns a deep copy of the report
func (r CoverageReport) Clone() CoverageReport {
	return NewCoverageReport(ReportParams{
		TotalScenarios:    r.TotalScenarios,
		UntaggedScenarios: r.UntaggedScenarios,
		Entries:           r.SubCategoryCoverage,
		Gaps:              r.Gaps,
		Suggestions:       r.Suggestions,
		Thresholds:        r.Thresholds,
	})
}

// ScenarioSpec describes a scenario the generation phase should produce next
type ScenarioSpec struct {
	SubCategoryID   string       `json:"sub_category_id" yaml:"sub_category_id"`
	SubCategoryName string       `json:"sub_category_name" yaml:"sub_category_name"`
	ScenarioType    ScenarioType `json:"scenario_type" yaml:"scenario_type"`
	TargetRuleIDs   []string     `json:"target_rule_ids,omitempty" yaml:"target_rule_ids,omitempty"`
	Rationale       string       `json:"rationale" yaml:"rationale"`
	Draft           string       `json:"draft,omitempty" yaml:"draft,omitempty"`
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return cloneStrings(in)
}
