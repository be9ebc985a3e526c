package tagger

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ppiankov/policygap/internal/llm"
	"github.com/ppiankov/policygap/internal/model"
	"github.com/ppiankov/policygap/internal/validate"
)

// Strategy selects how scenarios are mapped to sub-categories
type Strategy string

const (
	StrategyAuto      Strategy = "auto"      // Delegated when a generator is configured, heuristic otherwise
	StrategyHeuristic Strategy = "heuristic" // Rule-id intersection only
	StrategyLLM       Strategy = "llm"       // Delegated; requires a generator
)

// ParseStrategy normalises a strategy name; empty means auto
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StrategyAuto, nil
	case StrategyAuto, StrategyHeuristic, StrategyLLM:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown tagging strategy %q (want auto, heuristic or llm)", model.ErrInvalidInput, s)
	}
}

// Options configures a Tagger
type Options struct {
	Strategy    Strategy
	BatchSize   int // Scenarios per delegated call
	Concurrency int // Delegated calls in flight
}

// DefaultOptions returns auto strategy, batches of 8, 4 concurrent calls
func DefaultOptions() Options {
	return Options{Strategy: StrategyAuto, BatchSize: 8, Concurrency: 4}
}

// OptionsFromModel converts the application tagging config
func OptionsFromModel(cfg model.TaggingConfig) (Options, error) {
	strategy, err := ParseStrategy(cfg.Strategy)
	if err != nil {
		return Options{}, err
	}
	return Options{Strategy: strategy, BatchSize: cfg.BatchSize, Concurrency: cfg.Concurrency}, nil
}

// Tagger assigns sub-category ids to scenarios
type Tagger struct {
	generator llm.StructuredGenerator
	opts      Options
	logger    *log.Logger
}

// New creates a tagger. generator may be nil.
func New(generator llm.StructuredGenerator, opts Options, logger *log.Logger) *Tagger {
	defaults := DefaultOptions()
	if opts.Strategy == "" {
		opts.Strategy = defaults.Strategy
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaults.BatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaults.Concurrency
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Tagger{generator: generator, opts: opts, logger: logger}
}

// Delegated reports whether Tag will call the generator
func (t *Tagger) Delegated() bool {
	switch t.opts.Strategy {
	case StrategyHeuristic:
		return false
	case StrategyLLM:
		return true
	default:
		return t.generator != nil
	}
}

// Tag returns copies of scenarios with SubCategoryIDs set; inputs are never
// mutated. On a delegated failure the usable partial result is returned
// together with the error: tagged batches carry their new ids, the rest keep
// those prior ids that exist in taxonomy. Ids outside taxonomy never survive.
func (t *Tagger) Tag(ctx context.Context, scenarios []model.GoldenScenario, taxonomy model.SubCategoryTaxonomy) ([]model.GoldenScenario, error) {
	if err := validate.Taxonomy(taxonomy); err != nil {
		return nil, err
	}
	if err := validate.Scenarios(scenarios); err != nil {
		return nil, err
	}
	if len(scenarios) == 0 {
		return []model.GoldenScenario{}, nil
	}

	if !t.Delegated() {
		return TagHeuristic(scenarios, taxonomy), nil
	}
	if t.generator == nil {
		return nil, fmt.Errorf("%w: llm tagging strategy requires a configured provider", model.ErrInvalidInput)
	}
	if taxonomy.Len() == 0 {
		// Nothing to choose from; no call needed
		return tagAll(scenarios, nil), nil
	}

	return t.tagDelegated(ctx, scenarios, taxonomy)
}

// TagHeuristic tags each scenario with every sub-category whose related rules
// intersect its target rules, in taxonomy order. It is pure and idempotent.
func TagHeuristic(scenarios []model.GoldenScenario, taxonomy model.SubCategoryTaxonomy) []model.GoldenScenario {
	out := make([]model.GoldenScenario, len(scenarios))
	for i, s := range scenarios {
		targets := make(map[string]bool, len(s.TargetRuleIDs))
		for _, id := range s.TargetRuleIDs {
			targets[id] = true
		}

		ids := []string{}
		for _, sc := range taxonomy.SubCategories {
			for _, ruleID := range sc.RelatedRuleIDs {
				if targets[ruleID] {
					ids = append(ids, sc.ID)
					break
				}
			}
		}
		out[i] = s.WithSubCategories(ids)
	}
	return out
}

func tagAll(scenarios []model.GoldenScenario, ids []string) []model.GoldenScenario {
	out := make([]model.GoldenScenario, len(scenarios))
	for i, s := range scenarios {
		out[i] = s.WithSubCategories(ids)
	}
	return out
}
