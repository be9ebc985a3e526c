package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/ppiankov/policygap/internal/coverage"
	"github.com/ppiankov/policygap/internal/extract"
	"github.com/ppiankov/policygap/internal/llm"
	"github.com/ppiankov/policygap/internal/model"
	"github.com/ppiankov/policygap/internal/tagger"
)

// Pipeline runs extract → tag → calculate → improve
type Pipeline struct {
	fetcher    *Fetcher
	extractor  *extract.Extractor
	tagger     *tagger.Tagger
	calculator *coverage.Calculator
	improver   *coverage.Improver
	config     *model.Config
	logger     *log.Logger
}

// NewPipeline wires the components for cfg. generator may be nil, in which
// case taxonomy extraction is unavailable and tagging is heuristic.
func NewPipeline(cfg *model.Config, generator llm.StructuredGenerator, logger *log.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = log.Default()
	}

	opts, err := tagger.OptionsFromModel(cfg.Tagging)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		fetcher:    NewFetcher(cfg.HTTP),
		extractor:  extract.NewExtractor(generator, logger),
		tagger:     tagger.New(generator, opts, logger),
		calculator: coverage.NewCalculator(generator, logger),
		improver:   coverage.NewImprover(generator, logger),
		config:     cfg,
		logger:     logger,
	}, nil
}

// Input is everything a run consumes
type Input struct {
	PolicySource string                     // file path or URL; needed only when Taxonomy is nil
	Rules        model.RuleGraph            // needed only when Taxonomy is nil
	Categories   []model.Category           // optional planning hints for extraction
	Scenarios    []model.GoldenScenario     // scenarios to measure
	Taxonomy     *model.SubCategoryTaxonomy // skips extraction when set
}

// Result is the outcome of a run. Report is nil when coverage was disabled
// because no taxonomy could be produced.
type Result struct {
	Policy    *Policy                   `json:"policy,omitempty"`
	Taxonomy  model.SubCategoryTaxonomy `json:"taxonomy"`
	Scenarios []model.GoldenScenario    `json:"scenarios"`
	Report    *model.CoverageReport     `json:"report,omitempty"`
	Specs     []model.ScenarioSpec      `json:"specs"`
	Warnings  []string                  `json:"warnings"`
}

// Run executes the full loop. Invalid input is returned as an error; a
// failed taxonomy extraction disables coverage with a warning instead.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	result := &Result{Scenarios: model.CloneScenarios(in.Scenarios), Specs: []model.ScenarioSpec{}, Warnings: []string{}}

	// 1. Taxonomy
	if in.Taxonomy != nil {
		result.Taxonomy = in.Taxonomy.Clone()
	} else {
		if in.PolicySource == "" {
			return nil, fmt.Errorf("%w: a policy source or a taxonomy is required", model.ErrInvalidInput)
		}
		policy, err := p.fetcher.LoadPolicy(ctx, in.PolicySource)
		if err != nil {
			return nil, err
		}
		result.Policy = &policy

		tax, err := p.extractor.Extract(ctx, policy.Text, in.Rules, in.Categories)
		switch {
		case errors.Is(err, model.ErrInvalidInput):
			return nil, err
		case err != nil:
			p.warn(result, "taxonomy extraction failed, coverage disabled: %v", err)
			return result, nil
		}
		result.Taxonomy = tax
	}

	// 2. Tagging
	tagged, err := p.tagger.Tag(ctx, in.Scenarios, result.Taxonomy)
	if err != nil {
		if errors.Is(err, model.ErrInvalidInput) || tagged == nil {
			return nil, fmt.Errorf("tag scenarios: %w", err)
		}
		p.warn(result, "tagging incomplete, some scenarios keep their previous tags: %v", err)
	}
	result.Scenarios = tagged

	// 3. Coverage
	report, err := p.calculator.Calculate(ctx, tagged, result.Taxonomy, coverage.CalculateOptions{
		Thresholds:          p.config.Coverage.Thresholds,
		GenerateSuggestions: p.config.Coverage.GenerateSuggestions,
	})
	if err != nil {
		return nil, fmt.Errorf("calculate coverage: %w", err)
	}
	result.Report = &report

	// 4. Improvement plan
	result.Specs = p.improver.SuggestScenarios(ctx, report, result.Taxonomy, p.config.Coverage.MaxSuggestions)

	return result, nil
}

func (p *Pipeline) warn(result *Result, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	result.Warnings = append(result.Warnings, msg)
	p.logger.Printf("WARNING: %s", msg)
}
