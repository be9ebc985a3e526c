package tagger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ppiankov/policygap/internal/model"
)

func sampleTaxonomy() model.SubCategoryTaxonomy {
	tax, _ := model.NewTaxonomy([]model.SubCategory{
		{ID: "SC001", Name: "Amount thresholds", ParentCategory: "Approvals", RelatedRuleIDs: []string{"R001"}, Priority: model.PriorityHigh},
		{ID: "SC002", Name: "Time constraints", ParentCategory: "Timing", RelatedRuleIDs: []string{"R002"}, Priority: model.PriorityMedium},
		{ID: "SC003", Name: "Shared approvals", ParentCategory: "Approvals", RelatedRuleIDs: []string{"R001", "R002"}, Priority: model.PriorityLow},
	}, "")
	return tax
}

func sampleScenarios() []model.GoldenScenario {
	return []model.GoldenScenario{
		{ID: "S1", Description: "A $600 dinner", ScenarioType: model.ScenarioPositive, TargetRuleIDs: []string{"R001"}},
		{ID: "S2", Description: "Late submission", ScenarioType: model.ScenarioNegative, TargetRuleIDs: []string{"R002"}},
		{ID: "S3", Description: "Weather question", ScenarioType: model.ScenarioIrrelevant},
	}
}

func TestTagHeuristic(t *testing.T) {
	tagged := TagHeuristic(sampleScenarios(), sampleTaxonomy())

	want := [][]string{{"SC001", "SC003"}, {"SC002", "SC003"}, {}}
	for i, s := range tagged {
		if !reflect.DeepEqual(s.SubCategoryIDs, want[i]) {
			t.Errorf("scenario %d: expected %v, got %v", i, want[i], s.SubCategoryIDs)
		}
	}
}

func TestTagHeuristic_IdempotentAndPure(t *testing.T) {
	scenarios := sampleScenarios()
	scenarios[0].SubCategoryIDs = []string{"stale"}
	tax := sampleTaxonomy()

	once := TagHeuristic(scenarios, tax)
	twice := TagHeuristic(once, tax)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("heuristic tagging is not idempotent:\n%v\n%v", once, twice)
	}
	if scenarios[0].SubCategoryIDs[0] != "stale" {
		t.Error("input scenario was mutated")
	}
}

func TestTagger_HeuristicWithoutGenerator(t *testing.T) {
	tagger := New(nil, DefaultOptions(), nil)
	if tagger.Delegated() {
		t.Fatal("auto strategy without a generator should be heuristic")
	}

	tagged, err := tagger.Tag(context.Background(), sampleScenarios(), sampleTaxonomy())
	if err != nil {
		t.Fatalf("Tag failed: %v", err)
	}
	if len(tagged) != 3 || len(tagged[0].SubCategoryIDs) != 2 {
		t.Errorf("unexpected tagging: %+v", tagged)
	}
}

func TestTagger_Empty(t *testing.T) {
	tagged, err := New(nil, DefaultOptions(), nil).Tag(context.Background(), nil, sampleTaxonomy())
	if err != nil || tagged == nil || len(tagged) != 0 {
		t.Errorf("expected empty non-nil result, got %v, %v", tagged, err)
	}
}

func TestTagger_InvalidInput(t *testing.T) {
	ctx := context.Background()

	if _, err := New(nil, Options{Strategy: StrategyLLM}, nil).Tag(ctx, sampleScenarios(), sampleTaxonomy()); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for llm strategy without a generator, got %v", err)
	}

	bad := sampleScenarios()
	bad[0].ScenarioType = "sideways"
	if _, err := New(nil, DefaultOptions(), nil).Tag(ctx, bad, sampleTaxonomy()); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown scenario type, got %v", err)
	}

	if _, err := ParseStrategy("magic"); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown strategy, got %v", err)
	}
}

var scenarioLine = regexp.MustCompile(`Scenario \[(\d+)\]: (.*)`)

// fakeGenerator answers tagging prompts deterministically from scenario descriptions
type fakeGenerator struct {
	tags  map[string][]string // description -> ids
	fail  string              // prompts containing this fail
	calls int32
	mu    sync.Mutex
	seen  []string
}

func (f *fakeGenerator) GenerateStructured(ctx context.Context, prompt string, out any) error {
	atomic.AddInt32(&f.calls, 1)
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.seen = append(f.seen, prompt)
	f.mu.Unlock()

	if f.fail != "" && strings.Contains(prompt, f.fail) {
		return fmt.Errorf("%w: provider unavailable", model.ErrCollaborator)
	}

	var resp tagResponse
	for _, m := range scenarioLine.FindAllStringSubmatch(prompt, -1) {
		var idx int
		fmt.Sscanf(m[1], "%d", &idx)
		ids, ok := f.tags[m[2]]
		if !ok {
			continue // omitted from the response
		}
		resp.Assignments = append(resp.Assignments, tagAssignment{ScenarioIndex: idx, SubCategoryIDs: ids})
	}

	data, _ := json.Marshal(resp)
	return json.Unmarshal(data, out)
}

func TestTagger_DelegatedMergesBatchesByIndex(t *testing.T) {
	var scenarios []model.GoldenScenario
	tags := map[string][]string{}
	for i := 0; i < 25; i++ {
		desc := fmt.Sprintf("scenario number %02d", i)
		scenarios = append(scenarios, model.GoldenScenario{Description: desc})
		// Reverse taxonomy order on purpose
		switch i % 3 {
		case 0:
			tags[desc] = []string{"SC003", "SC001"}
		case 1:
			tags[desc] = []string{"SC002", "SC002"}
		}
	}

	gen := &fakeGenerator{tags: tags}
	tagger := New(gen, Options{BatchSize: 4, Concurrency: 3}, nil)

	tagged, err := tagger.Tag(context.Background(), scenarios, sampleTaxonomy())
	if err != nil {
		t.Fatalf("Tag failed: %v", err)
	}

	if calls := atomic.LoadInt32(&gen.calls); calls != 7 {
		t.Errorf("expected 7 batches of at most 4, got %d calls", calls)
	}
	for i, s := range tagged {
		var want []string
		switch i % 3 {
		case 0:
			want = []string{"SC001", "SC003"}
		case 1:
			want = []string{"SC002"}
		default:
			want = []string{}
		}
		if s.Description != scenarios[i].Description {
			t.Fatalf("scenario %d out of order: %q", i, s.Description)
		}
		if !reflect.DeepEqual(s.SubCategoryIDs, want) {
			t.Errorf("scenario %d: expected %v, got %v", i, want, s.SubCategoryIDs)
		}
	}

	again, err := tagger.Tag(context.Background(), tagged, sampleTaxonomy())
	if err != nil {
		t.Fatalf("re-tag failed: %v", err)
	}
	if !reflect.DeepEqual(again, tagged) {
		t.Error("delegated tagging with a deterministic collaborator is not idempotent")
	}
}

func TestTagger_DropsUnknownIDs(t *testing.T) {
	gen := &fakeGenerator{tags: map[string][]string{"A $600 dinner": {"SC001", "SC999"}}}
	var logs bytes.Buffer
	tagger := New(gen, Options{Strategy: StrategyLLM}, log.New(&logs, "", 0))

	tagged, err := tagger.Tag(context.Background(), sampleScenarios()[:1], sampleTaxonomy())
	if err != nil {
		t.Fatalf("Tag failed: %v", err)
	}
	if !reflect.DeepEqual(tagged[0].SubCategoryIDs, []string{"SC001"}) {
		t.Errorf("expected SC999 to be dropped, got %v", tagged[0].SubCategoryIDs)
	}
	if !strings.Contains(logs.String(), "SC999") {
		t.Errorf("expected dropped id to be logged, got %q", logs.String())
	}
}

func TestResolve_OutOfRangeIndex(t *testing.T) {
	order := sampleTaxonomy().Order()
	ids, anomalies := resolve(tagResponse{Assignments: []tagAssignment{
		{ScenarioIndex: 5, SubCategoryIDs: []string{"SC001"}},
		{ScenarioIndex: 0, SubCategoryIDs: []string{"SC002"}},
		{ScenarioIndex: 0, SubCategoryIDs: []string{"SC001"}},
	}}, 2, order)

	if !reflect.DeepEqual(ids[0], []string{"SC001", "SC002"}) {
		t.Errorf("expected merged, ordered ids, got %v", ids[0])
	}
	if ids[1] == nil || len(ids[1]) != 0 {
		t.Errorf("expected omitted scenario to get an empty list, got %v", ids[1])
	}
	if len(anomalies) != 1 || anomalies[0].Kind != model.AnomalyUnknownScenario {
		t.Errorf("expected one unknown_scenario anomaly, got %v", anomalies)
	}
}

func TestTagger_PartialResultOnBatchFailure(t *testing.T) {
	scenarios := sampleScenarios()
	scenarios[1].SubCategoryIDs = []string{"SC002"} // prior tag survives a failed batch

	gen := &fakeGenerator{
		tags: map[string][]string{"A $600 dinner": {"SC001"}, "Weather question": {}},
		fail: "Late submission",
	}
	tagger := New(gen, Options{Strategy: StrategyLLM, BatchSize: 1, Concurrency: 2}, nil)

	tagged, err := tagger.Tag(context.Background(), scenarios, sampleTaxonomy())
	if !errors.Is(err, model.ErrCollaborator) {
		t.Fatalf("expected ErrCollaborator, got %v", err)
	}
	if len(tagged) != 3 {
		t.Fatalf("expected a full partial result, got %d scenarios", len(tagged))
	}
	if !reflect.DeepEqual(tagged[0].SubCategoryIDs, []string{"SC001"}) {
		t.Errorf("completed batch lost its tags: %v", tagged[0].SubCategoryIDs)
	}
	if !reflect.DeepEqual(tagged[1].SubCategoryIDs, []string{"SC002"}) {
		t.Errorf("failed batch should keep prior tags, got %v", tagged[1].SubCategoryIDs)
	}

	tagged[1].SubCategoryIDs[0] = "mutated"
	if scenarios[1].SubCategoryIDs[0] != "SC002" {
		t.Error("partial result aliases the input scenario")
	}
}

func TestTagger_FailedBatchDropsStalePriorIDs(t *testing.T) {
	scenarios := sampleScenarios()
	scenarios[1].SubCategoryIDs = []string{"SC002", "SC404"}

	gen := &fakeGenerator{
		tags: map[string][]string{"A $600 dinner": {"SC001"}, "Weather question": {}},
		fail: "Late submission",
	}
	var logs bytes.Buffer
	tagger := New(gen, Options{Strategy: StrategyLLM, BatchSize: 1, Concurrency: 2}, log.New(&logs, "", 0))

	tagged, err := tagger.Tag(context.Background(), scenarios, sampleTaxonomy())
	if !errors.Is(err, model.ErrCollaborator) {
		t.Fatalf("expected ErrCollaborator, got %v", err)
	}
	if !reflect.DeepEqual(tagged[1].SubCategoryIDs, []string{"SC002"}) {
		t.Errorf("expected only known prior ids, got %v", tagged[1].SubCategoryIDs)
	}
	if !strings.Contains(logs.String(), "SC404") {
		t.Errorf("expected dropped prior id to be logged, got %q", logs.String())
	}
	if !reflect.DeepEqual(scenarios[1].SubCategoryIDs, []string{"SC002", "SC404"}) {
		t.Error("input scenario was mutated")
	}
}

func TestTagger_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scenarios := sampleScenarios()
	gen := &fakeGenerator{tags: map[string][]string{}}
	tagged, err := New(gen, Options{Strategy: StrategyLLM, BatchSize: 1}, nil).Tag(ctx, scenarios, sampleTaxonomy())

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(tagged) != len(scenarios) {
		t.Fatalf("expected every scenario back, got %d", len(tagged))
	}
	for i, s := range tagged {
		if s.Description != scenarios[i].Description || len(s.SubCategoryIDs) != 0 {
			t.Errorf("scenario %d should be an untouched copy, got %+v", i, s)
		}
	}
}

func TestBuildTagPrompt(t *testing.T) {
	scenarios := sampleScenarios()
	scenarios[0].SubCategoryIDs = []string{"SC002"}
	prompt := BuildTagPrompt(scenarios, sampleTaxonomy())

	for _, want := range []string{"SC001: Amount thresholds (Approvals)", "[rules: R001, R002]", "Scenario [2]: Weather question", "scenario_index 0 to 2"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
