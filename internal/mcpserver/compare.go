package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/ppiankov/policygap/internal/coverage"
	"github.com/ppiankov/policygap/internal/render"
	"github.com/ppiankov/policygap/internal/store"
)

// CompareTool handles the coverage_compare MCP tool.
type CompareTool struct {
	store    *store.Store
	renderer *render.Renderer
}

// NewCompareTool creates a CompareTool.
func NewCompareTool(s *store.Store, r *render.Renderer) *CompareTool {
	return &CompareTool{store: s, renderer: r}
}

// Definition returns the MCP tool definition for coverage_compare.
func (t *CompareTool) Definition() mcp.Tool {
	return mcp.NewTool("coverage_compare",
		mcp.WithDescription(
			"Compare two stored reports: overall change, sub-categories that improved or regressed, "+
				"and gaps opened or closed since the baseline.",
		),
		mcp.WithString("baseline_id",
			mcp.Required(),
			mcp.Description("Id of the earlier report"),
		),
		mcp.WithString("current_id",
			mcp.Description("Id of the later report (default: the most recent report)"),
		),
	)
}

// Handle processes the coverage_compare tool call.
func (t *CompareTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	baselineID := req.GetString("baseline_id", "")
	if baselineID == "" {
		return mcp.NewToolResultError("'baseline_id' is required"), nil
	}

	baseline, err := t.store.GetReport(ctx, baselineID)
	if err != nil {
		return errorResult("load baseline", err), nil
	}
	current, err := loadReport(ctx, t.store, req.GetString("current_id", ""))
	if err != nil {
		return errorResult("load current report", err), nil
	}

	delta := coverage.Compare(baseline.Report, current.Report)
	header := fmt.Sprintf("Baseline %s (%s) -> current %s (%s)\n\n", baseline.ID, labelOr(baseline.Label), current.ID, labelOr(current.Label))
	return mcp.NewToolResultText(header + t.renderer.Delta(delta)), nil
}
