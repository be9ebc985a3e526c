package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/ppiankov/policygap/internal/coverage"
	"github.com/ppiankov/policygap/internal/model"
	"github.com/ppiankov/policygap/internal/pipeline"
	"github.com/ppiankov/policygap/internal/render"
	"github.com/ppiankov/policygap/internal/store"
	"github.com/ppiankov/policygap/internal/tagger"
	"github.com/ppiankov/policygap/internal/validate"
)

// CalculateTool handles the coverage_calculate MCP tool.
type CalculateTool struct {
	store      *store.Store
	tagger     *tagger.Tagger
	calculator *coverage.Calculator
	renderer   *render.Renderer
	coverage   model.CoverageConfig
}

// NewCalculateTool creates a CalculateTool.
func NewCalculateTool(s *store.Store, tg *tagger.Tagger, calc *coverage.Calculator, r *render.Renderer, cfg model.CoverageConfig) *CalculateTool {
	return &CalculateTool{store: s, tagger: tg, calculator: calc, renderer: r, coverage: cfg}
}

// Definition returns the MCP tool definition for coverage_calculate.
func (t *CalculateTool) Definition() mcp.Tool {
	return mcp.NewTool("coverage_calculate",
		mcp.WithDescription(
			"Measure how a set of golden test scenarios covers a policy's sub-category taxonomy. "+
				"Pass stored ids or inline YAML/JSON documents. The report is stored and its id returned "+
				"for coverage_report, coverage_gaps, coverage_suggest and coverage_compare.",
		),
		mcp.WithString("taxonomy_id",
			mcp.Description("Id of a stored taxonomy"),
		),
		mcp.WithString("taxonomy",
			mcp.Description("Inline taxonomy: {sub_categories: [...], reasoning: ...} or a bare list"),
		),
		mcp.WithString("scenario_set_id",
			mcp.Description("Id of a stored scenario set"),
		),
		mcp.WithString("scenarios",
			mcp.Description("Inline scenarios: {scenarios: [...]} or a bare list"),
		),
		mcp.WithString("label",
			mcp.Description("Label stored with the report, e.g. a suite version"),
		),
		mcp.WithBoolean("tag",
			mcp.Description("Tag the scenarios against the taxonomy before measuring (default: true)"),
		),
		mcp.WithBoolean("suggestions",
			mcp.Description("Attach improvement suggestions to the report (default: from config)"),
		),
	)
}

// Handle processes the coverage_calculate tool call.
func (t *CalculateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taxID, tax, err := t.resolveTaxonomy(ctx, req)
	if err != nil {
		return errorResult("load taxonomy", err), nil
	}
	setID, scenarios, err := t.resolveScenarios(ctx, req)
	if err != nil {
		return errorResult("load scenarios", err), nil
	}
	inputScenarios := scenarios

	var warnings []string
	if boolArg(req, "tag", true) {
		tagged, err := t.tagger.Tag(ctx, scenarios, tax)
		if err != nil {
			if tagged == nil {
				return errorResult("tag scenarios", err), nil
			}
			warnings = append(warnings, fmt.Sprintf("tagging incomplete: %v", err))
		}
		scenarios = tagged
	}

	report, err := t.calculator.Calculate(ctx, scenarios, tax, coverage.CalculateOptions{
		Thresholds:          t.coverage.Thresholds,
		GenerateSuggestions: boolArg(req, "suggestions", t.coverage.GenerateSuggestions),
	})
	if err != nil {
		return errorResult("calculate coverage", err), nil
	}

	// Inline inputs are stored only after the report is computed
	if taxID == "" {
		if taxID, err = t.store.SaveTaxonomy(ctx, req.GetString("label", ""), tax); err != nil {
			return errorResult("save taxonomy", err), nil
		}
	}
	if setID == "" {
		if setID, err = t.store.SaveScenarioSet(ctx, req.GetString("label", ""), inputScenarios); err != nil {
			return errorResult("save scenarios", err), nil
		}
	}

	reportID, err := t.store.SaveReport(ctx, store.SaveReportParams{
		Label:         req.GetString("label", ""),
		TaxonomyID:    taxID,
		ScenarioSetID: setID,
		Report:        report,
	})
	if err != nil {
		return errorResult("save report", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Report id: %s\n", reportID)
	fmt.Fprintf(&b, "Taxonomy id: %s\nScenario set id: %s\n\n", taxID, setID)
	for _, w := range warnings {
		fmt.Fprintf(&b, "WARNING: %s\n", w)
	}
	b.WriteString(t.renderer.Summary(report))
	return mcp.NewToolResultText(b.String()), nil
}

// resolveTaxonomy loads a stored taxonomy or validates an inline one.
// The id is empty for inline input.
func (t *CalculateTool) resolveTaxonomy(ctx context.Context, req mcp.CallToolRequest) (string, model.SubCategoryTaxonomy, error) {
	if id := req.GetString("taxonomy_id", ""); id != "" {
		rec, err := t.store.GetTaxonomy(ctx, id)
		return rec.ID, rec.Taxonomy, err
	}
	inline := req.GetString("taxonomy", "")
	if inline == "" {
		return "", model.SubCategoryTaxonomy{}, fmt.Errorf("%w: 'taxonomy_id' or 'taxonomy' is required", model.ErrInvalidInput)
	}
	tax, err := pipeline.ParseTaxonomy([]byte(inline), "taxonomy")
	if err != nil {
		return "", model.SubCategoryTaxonomy{}, err
	}
	if err := validate.Taxonomy(tax); err != nil {
		return "", model.SubCategoryTaxonomy{}, err
	}
	return "", tax, nil
}

func (t *CalculateTool) resolveScenarios(ctx context.Context, req mcp.CallToolRequest) (string, []model.GoldenScenario, error) {
	if id := req.GetString("scenario_set_id", ""); id != "" {
		rec, err := t.store.GetScenarioSet(ctx, id)
		return rec.ID, rec.Scenarios, err
	}
	inline := req.GetString("scenarios", "")
	if inline == "" {
		return "", nil, fmt.Errorf("%w: 'scenario_set_id' or 'scenarios' is required", model.ErrInvalidInput)
	}
	scenarios, err := pipeline.ParseScenarios([]byte(inline), "scenarios")
	if err != nil {
		return "", nil, err
	}
	if err := validate.Scenarios(scenarios); err != nil {
		return "", nil, err
	}
	return "", scenarios, nil
}
