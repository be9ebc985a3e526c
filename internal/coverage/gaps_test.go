package coverage

import (
	"reflect"
	"testing"

	"github.com/ppiankov/policygap/internal/model"
)

// gapTaxonomy: A uncovered/high, B partial/high, C uncovered/low once one scenario targets B
func gapTaxonomy() model.SubCategoryTaxonomy {
	tax, _ := model.NewTaxonomy([]model.SubCategory{
		{ID: "A", Name: "Alpha", ParentCategory: "P", RelatedRuleIDs: []string{"R001"}, Priority: model.PriorityHigh},
		{ID: "B", Name: "Beta", ParentCategory: "P", RelatedRuleIDs: []string{"R002"}, Priority: model.PriorityHigh},
		{ID: "C", Name: "Gamma", ParentCategory: "Q", RelatedRuleIDs: []string{"R003"}, Priority: model.PriorityLow},
	}, "")
	return tax
}

func TestRankGaps_UncoveredBeforePartialThenWeight(t *testing.T) {
	scenarios := []model.GoldenScenario{tagged("S1", model.ScenarioPositive, "B")}

	report, err := Compute(scenarios, gapTaxonomy(), model.DefaultThresholds())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	gaps := RankGaps(report, gapTaxonomy())
	var ids []string
	for _, g := range gaps {
		ids = append(ids, g.SubCategoryID)
	}
	if !reflect.DeepEqual(ids, []string{"A", "C", "B"}) {
		t.Errorf("expected gap order A, C, B; got %v", ids)
	}

	want := []string{
		"Alpha (A) [HIGH] (0% coverage, 0 scenarios)",
		"Gamma (C) [LOW] (0% coverage, 0 scenarios)",
		"Beta (B) [HIGH] (partial: 50% coverage, 1 scenarios)",
	}
	if !reflect.DeepEqual(report.Gaps, want) {
		t.Errorf("gap texts:\n got %v\nwant %v", report.Gaps, want)
	}
	if !reflect.DeepEqual(gaps[0].RelatedRuleIDs, []string{"R001"}) {
		t.Errorf("expected related rules from taxonomy, got %v", gaps[0].RelatedRuleIDs)
	}
}

func TestRankGaps_TiesKeepTaxonomyOrder(t *testing.T) {
	tax, _ := model.NewTaxonomy([]model.SubCategory{
		{ID: "Z", Name: "Zulu", Priority: model.PriorityMedium},
		{ID: "Y", Name: "Yankee", Priority: model.PriorityMedium},
		{ID: "X", Name: "X-ray", Priority: model.PriorityMedium},
	}, "")

	report, _ := Compute(nil, tax, model.DefaultThresholds())
	gaps := RankGaps(report, tax)

	for i, want := range []string{"Z", "Y", "X"} {
		if gaps[i].SubCategoryID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, gaps[i].SubCategoryID)
		}
	}
}

func TestRankGaps_MissingMultiplierWeighsOne(t *testing.T) {
	th := model.DefaultThresholds()
	delete(th.PriorityMultipliers, model.PriorityLow) // low now weighs 1.0, above medium's 0.9
	th.PriorityMultipliers[model.PriorityMedium] = 0.9

	tax, _ := model.NewTaxonomy([]model.SubCategory{
		{ID: "M", Name: "Medium", Priority: model.PriorityMedium},
		{ID: "L", Name: "Low", Priority: model.PriorityLow},
	}, "")

	report, _ := Compute(nil, tax, th)
	gaps := RankGaps(report, tax)
	if gaps[0].SubCategoryID != "L" || gaps[0].Weight != 1.0 {
		t.Errorf("expected L first with weight 1.0, got %+v", gaps[0])
	}
}
