package tagger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ppiankov/policygap/internal/model"
	"github.com/ppiankov/policygap/internal/worker"
)

// tagResponse is the structured target of one delegated batch
type tagResponse struct {
	Assignments []tagAssignment `json:"assignments" description:"One entry per scenario in the batch"`
}

type tagAssignment struct {
	ScenarioIndex  int      `json:"scenario_index" description:"Index of the scenario as shown in the prompt"`
	SubCategoryIDs []string `json:"sub_category_ids" description:"Ids of every sub-category the scenario tests; empty if none"`
}

type batchRange struct {
	start, end int
}

func (t *Tagger) tagDelegated(ctx context.Context, scenarios []model.GoldenScenario, taxonomy model.SubCategoryTaxonomy) ([]model.GoldenScenario, error) {
	var batches []batchRange
	for start := 0; start < len(scenarios); start += t.opts.BatchSize {
		end := start + t.opts.BatchSize
		if end > len(scenarios) {
			end = len(scenarios)
		}
		batches = append(batches, batchRange{start, end})
	}

	order := taxonomy.Order()

	// Each batch writes only its own index range
	assigned := make([][]string, len(scenarios))
	tagged := make([]bool, len(scenarios))

	errs := worker.NewBatch(t.opts.Concurrency).Run(ctx, len(batches), func(ctx context.Context, b int) error {
		r := batches[b]
		var resp tagResponse
		if err := t.generator.GenerateStructured(ctx, BuildTagPrompt(scenarios[r.start:r.end], taxonomy), &resp); err != nil {
			return err
		}

		ids, anomalies := resolve(resp, r.end-r.start, order)
		for _, a := range anomalies {
			t.logger.Printf("WARNING: tagging batch %d: %s", b+1, a)
		}
		for i, scenarioIDs := range ids {
			assigned[r.start+i] = scenarioIDs
			tagged[r.start+i] = true
		}
		return nil
	})

	out := make([]model.GoldenScenario, len(scenarios))
	for i, s := range scenarios {
		if tagged[i] {
			out[i] = s.WithSubCategories(assigned[i])
			continue
		}
		kept, dropped := knownIDs(s.SubCategoryIDs, order)
		for _, id := range dropped {
			t.logger.Printf("WARNING: untagged scenario %s: %s", model.ScenarioKey(s, i), model.Anomaly{
				Kind:    model.AnomalyUnknownSubCategory,
				Subject: id,
				Detail:  "dropped from prior tags",
			})
		}
		if len(dropped) > 0 {
			out[i] = s.WithSubCategories(kept)
		} else {
			out[i] = s.Clone()
		}
	}

	var failures []error
	unrun := 0
	for b, err := range errs {
		switch {
		case err == nil:
		case ctx.Err() != nil && errors.Is(err, ctx.Err()):
			unrun++
		case errors.Is(err, model.ErrCollaborator):
			failures = append(failures, fmt.Errorf("batch %d (scenarios %d-%d): %w", b+1, batches[b].start+1, batches[b].end, err))
		default:
			failures = append(failures, fmt.Errorf("batch %d (scenarios %d-%d): %w: %w", b+1, batches[b].start+1, batches[b].end, model.ErrCollaborator, err))
		}
	}
	if unrun > 0 {
		failures = append(failures, fmt.Errorf("%d of %d tagging batches not completed: %w", unrun, len(batches), ctx.Err()))
	}

	if len(failures) > 0 {
		return out, errors.Join(failures...)
	}
	return out, nil
}

// knownIDs splits prior tags into those present in the taxonomy and the rest
func knownIDs(ids []string, order map[string]int) (kept, dropped []string) {
	kept = make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := order[id]; ok {
			kept = append(kept, id)
		} else {
			dropped = append(dropped, id)
		}
	}
	return kept, dropped
}

// resolve maps a batch response onto per-scenario id lists. Scenarios the
// response omits get an empty list; unknown ids and out-of-range indices are
// dropped and reported.
func resolve(resp tagResponse, batchLen int, order map[string]int) ([][]string, []model.Anomaly) {
	var anomalies []model.Anomaly
	sets := make([]map[string]bool, batchLen)

	for _, a := range resp.Assignments {
		if a.ScenarioIndex < 0 || a.ScenarioIndex >= batchLen {
			anomalies = append(anomalies, model.Anomaly{
				Kind:    model.AnomalyUnknownScenario,
				Subject: fmt.Sprintf("index %d", a.ScenarioIndex),
				Detail:  fmt.Sprintf("batch has %d scenarios", batchLen),
			})
			continue
		}
		if sets[a.ScenarioIndex] == nil {
			sets[a.ScenarioIndex] = make(map[string]bool)
		}
		for _, id := range a.SubCategoryIDs {
			if _, known := order[id]; !known {
				anomalies = append(anomalies, model.Anomaly{
					Kind:    model.AnomalyUnknownSubCategory,
					Subject: id,
					Detail:  fmt.Sprintf("dropped from scenario index %d", a.ScenarioIndex),
				})
				continue
			}
			sets[a.ScenarioIndex][id] = true
		}
	}

	out := make([][]string, batchLen)
	for i, set := range sets {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(a, b int) bool { return order[ids[a]] < order[ids[b]] })
		out[i] = ids
	}
	return out, anomalies
}
