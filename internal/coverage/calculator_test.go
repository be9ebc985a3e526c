package coverage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"reflect"
	"strings"
	"testing"

	"github.com/ppiankov/policygap/internal/model"
)

// stubGenerator answers structured calls from a canned JSON payload
type stubGenerator struct {
	payload string
	err     error
	fail    string // prompts containing this fail
	calls   int
}

func (s *stubGenerator) GenerateStructured(ctx context.Context, prompt string, out any) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	if s.fail != "" && strings.Contains(prompt, s.fail) {
		return errors.New("collaborator down")
	}
	return json.Unmarshal([]byte(s.payload), out)
}

func singleTaxonomy() model.SubCategoryTaxonomy {
	tax, _ := model.NewTaxonomy([]model.SubCategory{
		{ID: "SC001", Name: "Approval thresholds", ParentCategory: "Expense Limits", RelatedRuleIDs: []string{"R001"}, Priority: model.PriorityHigh},
	}, "")
	return tax
}

func tagged(id string, scenarioType model.ScenarioType, subs ...string) model.GoldenScenario {
	return model.GoldenScenario{ID: id, Description: id, ScenarioType: scenarioType, SubCategoryIDs: subs}
}

func TestCompute_OneScenarioIsPartial(t *testing.T) {
	report, err := Compute([]model.GoldenScenario{tagged("S1", model.ScenarioPositive, "SC001")}, singleTaxonomy(), model.DefaultThresholds())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	e := report.SubCategoryCoverage[0]
	if e.CoveragePercent != 50.0 {
		t.Errorf("expected 50%%, got %.1f", e.CoveragePercent)
	}
	if e.CoverageStatus != model.StatusPartial {
		t.Errorf("expected partial, got %s", e.CoverageStatus)
	}
	if report.OverallCoveragePercent != 50.0 {
		t.Errorf("expected overall 50%%, got %.1f", report.OverallCoveragePercent)
	}
	if len(report.Gaps) != 1 || !strings.Contains(report.Gaps[0], "SC001") || !strings.Contains(report.Gaps[0], "50%") {
		t.Errorf("expected one gap mentioning SC001 and 50%%, got %v", report.Gaps)
	}
	if want := "Approval thresholds (SC001) [HIGH] (partial: 50% coverage, 1 scenarios)"; report.Gaps[0] != want {
		t.Errorf("gap text = %q, want %q", report.Gaps[0], want)
	}
	if len(report.Suggestions) != 0 {
		t.Errorf("Compute should not produce suggestions, got %v", report.Suggestions)
	}
}

func TestCompute_TwoScenariosAreCovered(t *testing.T) {
	scenarios := []model.GoldenScenario{
		tagged("S1", model.ScenarioPositive, "SC001"),
		tagged("S2", model.ScenarioEdgeCase, "SC001"),
	}

	report, err := Compute(scenarios, singleTaxonomy(), model.DefaultThresholds())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	e := report.SubCategoryCoverage[0]
	if e.CoveragePercent != 100.0 || e.CoverageStatus != model.StatusCovered {
		t.Errorf("expected 100%% covered, got %.1f %s", e.CoveragePercent, e.CoverageStatus)
	}
	wantDist := map[model.ScenarioType]int{model.ScenarioPositive: 1, model.ScenarioEdgeCase: 1}
	if !reflect.DeepEqual(e.TypeDistribution, wantDist) {
		t.Errorf("expected distribution %v, got %v", wantDist, e.TypeDistribution)
	}
	if !reflect.DeepEqual(e.ScenarioIDs, []string{"S1", "S2"}) {
		t.Errorf("unexpected scenario ids %v", e.ScenarioIDs)
	}
	if len(report.Gaps) != 0 {
		t.Errorf("expected no gaps, got %v", report.Gaps)
	}
}

func TestCompute_EmptyScenarioSet(t *testing.T) {
	tax := gapTaxonomy()
	report, err := Compute(nil, tax, model.DefaultThresholds())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if report.OverallCoveragePercent != 0 {
		t.Errorf("expected 0%% overall, got %.1f", report.OverallCoveragePercent)
	}
	if report.UncoveredCount != tax.Len() || report.TotalSubCategories != tax.Len() {
		t.Errorf("expected every sub-category uncovered, got %+v", report)
	}
	for _, e := range report.SubCategoryCoverage {
		if e.CoverageStatus != model.StatusUncovered {
			t.Errorf("%s: expected uncovered, got %s", e.SubCategoryID, e.CoverageStatus)
		}
		if e.ScenarioIDs == nil || e.TypeDistribution == nil {
			t.Errorf("%s: expected empty, non-nil collections", e.SubCategoryID)
		}
	}
}

func TestCompute_CountsAndUntagged(t *testing.T) {
	scenarios := []model.GoldenScenario{
		tagged("", model.ScenarioPositive, "A", "A", "C"), // duplicate id counted once
		tagged("", model.ScenarioNegative),
		tagged("", model.ScenarioNegative, "SC999"), // only unknown ids
		tagged("", model.ScenarioNegative, "B"),
	}

	report, err := Compute(scenarios, gapTaxonomy(), model.DefaultThresholds())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if report.TotalScenarios != 4 {
		t.Errorf("expected 4 total scenarios, got %d", report.TotalScenarios)
	}
	if report.UntaggedScenarios != 2 {
		t.Errorf("expected 2 untagged scenarios, got %d", report.UntaggedScenarios)
	}
	a, _ := report.Entry("A")
	if a.ScenarioCount != 1 || !reflect.DeepEqual(a.ScenarioIDs, []string{"S1"}) {
		t.Errorf("expected A to count S1 once, got %+v", a)
	}
	if report.CoveredCount+report.PartialCount+report.UncoveredCount != report.TotalSubCategories {
		t.Error("status counts do not sum to total")
	}
}

func TestCompute_EmptyTypeCountsButIsNotDistributed(t *testing.T) {
	scenarios := []model.GoldenScenario{
		tagged("S1", "", "SC001"),
		tagged("S2", model.ScenarioNegative, "SC001"),
	}
	report, err := Compute(scenarios, singleTaxonomy(), model.DefaultThresholds())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	e := report.SubCategoryCoverage[0]
	if e.ScenarioCount != 2 || e.CoverageStatus != model.StatusCovered {
		t.Errorf("expected both scenarios to count, got %d (%s)", e.ScenarioCount, e.CoverageStatus)
	}
	want := map[model.ScenarioType]int{model.ScenarioNegative: 1}
	if !reflect.DeepEqual(e.TypeDistribution, want) {
		t.Errorf("expected %v, got %v", want, e.TypeDistribution)
	}
}

func TestCompute_StatusMonotonicInCount(t *testing.T) {
	thresholds := []model.CoverageThresholds{
		model.DefaultThresholds(),
		{CoveredThreshold: 0.9, PartialThreshold: 0.5, MinScenariosPerSubCategory: 5},
		{CoveredThreshold: 0.4, PartialThreshold: 0.0, MinScenariosPerSubCategory: 3},
		{CoveredThreshold: 1.0, PartialThreshold: 0.2, MinScenariosPerSubCategory: 0},
	}
	rank := map[model.CoverageStatus]int{model.StatusUncovered: 0, model.StatusPartial: 1, model.StatusCovered: 2}

	for _, th := range thresholds {
		prev := -1
		var scenarios []model.GoldenScenario
		for n := 0; n <= 12; n++ {
			report, err := Compute(scenarios, singleTaxonomy(), th)
			if err != nil {
				t.Fatalf("Compute failed: %v", err)
			}
			r := rank[report.SubCategoryCoverage[0].CoverageStatus]
			if r < prev {
				t.Errorf("thresholds %+v: status regressed at %d scenarios", th, n)
			}
			prev = r
			scenarios = append(scenarios, tagged("", model.ScenarioPositive, "SC001"))
		}
	}
}

func TestCompute_InvalidInput(t *testing.T) {
	bad := model.DefaultThresholds()
	bad.PartialThreshold = 0.9
	if _, err := Compute(nil, singleTaxonomy(), bad); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for inverted thresholds, got %v", err)
	}

	dup := model.SubCategoryTaxonomy{SubCategories: []model.SubCategory{{ID: "X", Priority: model.PriorityLow}, {ID: "X", Priority: model.PriorityLow}}}
	if _, err := Compute(nil, dup, model.DefaultThresholds()); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for duplicate ids, got %v", err)
	}
}

func TestCalculator_TemplatedSuggestions(t *testing.T) {
	calc := NewCalculator(nil, nil)

	report, err := calc.Calculate(context.Background(), nil, gapTaxonomy(), DefaultCalculateOptions())
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	if len(report.Suggestions) != len(report.Gaps) {
		t.Fatalf("expected one suggestion per gap, got %d for %d gaps", len(report.Suggestions), len(report.Gaps))
	}
	if want := "Add 1+ scenarios for 'Alpha' (HIGH priority) testing R001"; report.Suggestions[0] != want {
		t.Errorf("suggestion = %q, want %q", report.Suggestions[0], want)
	}
}

func TestCalculator_DelegatedSuggestionsDegradePerGap(t *testing.T) {
	gen := &stubGenerator{payload: `{"suggestion": "Add a   negative scenario\nfor Alpha."}`, fail: "(C)"}
	var logs bytes.Buffer
	calc := NewCalculator(gen, log.New(&logs, "", 0))

	report, err := calc.Calculate(context.Background(), nil, gapTaxonomy(), DefaultCalculateOptions())
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	// Ranked: A, C, B
	if report.Suggestions[0] != "Add a negative scenario for Alpha." {
		t.Errorf("expected delegated text, got %q", report.Suggestions[0])
	}
	if !strings.HasPrefix(report.Suggestions[1], "Add 1+ scenarios for 'Gamma'") {
		t.Errorf("expected template fallback for the failed gap, got %q", report.Suggestions[1])
	}
	if !strings.Contains(logs.String(), "C fell back to template") {
		t.Errorf("expected fallback to be logged, got %q", logs.String())
	}
	if gen.calls != 3 {
		t.Errorf("expected one call per gap, got %d", gen.calls)
	}
}

func TestCalculator_SuggestionsDisabled(t *testing.T) {
	gen := &stubGenerator{payload: `{"suggestion": "x"}`}
	report, err := NewCalculator(gen, nil).Calculate(context.Background(), nil, gapTaxonomy(), CalculateOptions{})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if len(report.Suggestions) != 0 || gen.calls != 0 {
		t.Errorf("expected no suggestions and no calls, got %v (%d calls)", report.Suggestions, gen.calls)
	}
	if report.Thresholds.MinScenariosPerSubCategory != 2 {
		t.Errorf("expected zero options to fall back to default thresholds, got %+v", report.Thresholds)
	}
}

func TestScenariosNeeded(t *testing.T) {
	th := model.DefaultThresholds()
	th.MinScenariosPerSubCategory = 10

	tests := []struct {
		count int
		want  int
	}{
		{0, 3}, // ceil(10 * 0.3) = 3
		{1, 2},
		{3, 1}, // floored at 1
		{7, 1},
	}
	for _, tt := range tests {
		if got := ScenariosNeeded(Gap{ScenarioCount: tt.count}, th); got != tt.want {
			t.Errorf("ScenariosNeeded(count=%d) = %d, want %d", tt.count, got, tt.want)
		}
	}
}
