package extract

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/ppiankov/policygap/internal/llm"
	"github.com/ppiankov/policygap/internal/model"
	"github.com/ppiankov/policygap/internal/validate"
)

// Extractor derives a sub-category taxonomy from a policy and its rule graph
type Extractor struct {
	generator llm.StructuredGenerator
	logger    *log.Logger
}

// NewExtractor creates an extractor. A nil generator makes every Extract fail
// with model.ErrCollaborator; there is no local fallback.
func NewExtractor(generator llm.StructuredGenerator, logger *log.Logger) *Extractor {
	if logger == nil {
		logger = log.Default()
	}
	return &Extractor{generator: generator, logger: logger}
}

// taxonomyResponse is the structured target handed to the generator
type taxonomyResponse struct {
	SubCategories []model.SubCategory `json:"sub_categories" description:"Atomic, testable sub-categories covering every rule"`
	Reasoning     string              `json:"reasoning" description:"Why the policy was organised this way"`
}

// Extract asks the collaborator for a taxonomy in one structured call and
// repairs the result locally. Returned sub-categories have unique ids and
// valid priorities.
func (e *Extractor) Extract(ctx context.Context, policyText string, graph model.RuleGraph, categories []model.Category) (model.SubCategoryTaxonomy, error) {
	if strings.TrimSpace(policyText) == "" {
		return model.SubCategoryTaxonomy{}, fmt.Errorf("%w: policy text is empty", model.ErrInvalidInput)
	}
	if err := validate.RuleGraph(graph); err != nil {
		return model.SubCategoryTaxonomy{}, err
	}
	if e.generator == nil {
		return model.SubCategoryTaxonomy{}, fmt.Errorf("%w: no structured generator configured for taxonomy extraction", model.ErrCollaborator)
	}

	var resp taxonomyResponse
	if err := e.generator.GenerateStructured(ctx, BuildTaxonomyPrompt(policyText, graph, categories), &resp); err != nil {
		if !errors.Is(err, model.ErrCollaborator) {
			err = fmt.Errorf("%w: %w", model.ErrCollaborator, err)
		}
		return model.SubCategoryTaxonomy{}, fmt.Errorf("extract taxonomy: %w", err)
	}

	if len(resp.SubCategories) == 0 {
		return model.SubCategoryTaxonomy{}, fmt.Errorf("extract taxonomy: %w: collaborator returned no sub-categories", model.ErrCollaborator)
	}

	tax, anomalies := Repair(resp.SubCategories, strings.TrimSpace(resp.Reasoning))
	for _, a := range anomalies {
		e.logger.Printf("WARNING: taxonomy repair: %s", a)
	}

	return tax, nil
}

// Repair normalises raw sub-categories: priorities outside high/medium/low
// become medium, missing ids get the next free SCnnn, and repeated ids keep
// their first occurrence.
func Repair(raw []model.SubCategory, reasoning string) (model.SubCategoryTaxonomy, []model.Anomaly) {
	var anomalies []model.Anomaly

	subs := make([]model.SubCategory, len(raw))
	var identified model.SubCategoryTaxonomy
	for i, sc := range raw {
		sc.ID = strings.TrimSpace(sc.ID)
		sc.Name = strings.TrimSpace(sc.Name)
		sc.ParentCategory = strings.TrimSpace(sc.ParentCategory)
		sc.RelatedRuleIDs = trimAll(sc.RelatedRuleIDs)

		p, err := model.ParsePriority(string(sc.Priority))
		if err != nil {
			anomalies = append(anomalies, model.Anomaly{
				Kind:    model.AnomalyInvalidPriority,
				Subject: sc.ID,
				Detail:  fmt.Sprintf("%q replaced with medium", sc.Priority),
			})
			p = model.PriorityMedium
		}
		sc.Priority = p

		subs[i] = sc
		if sc.ID != "" {
			identified.SubCategories = append(identified.SubCategories, model.SubCategory{ID: sc.ID})
		}
	}

	for i := range subs {
		if subs[i].ID != "" {
			continue
		}
		id := identified.NextID()
		identified.SubCategories = append(identified.SubCategories, model.SubCategory{ID: id})
		subs[i].ID = id
		anomalies = append(anomalies, model.Anomaly{
			Kind:    model.AnomalyMissingID,
			Subject: id,
			Detail:  fmt.Sprintf("assigned to %q", subs[i].Name),
		})
	}

	tax, dups := model.NewTaxonomy(subs, reasoning)
	return tax, append(anomalies, dups...)
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
