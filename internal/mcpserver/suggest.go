package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/ppiankov/policygap/internal/coverage"
	"github.com/ppiankov/policygap/internal/render"
	"github.com/ppiankov/policygap/internal/store"
)

// SuggestTool handles the coverage_suggest MCP tool.
type SuggestTool struct {
	store        *store.Store
	improver     *coverage.Improver
	renderer     *render.Renderer
	defaultLimit int
}

// NewSuggestTool creates a SuggestTool.
func NewSuggestTool(s *store.Store, im *coverage.Improver, r *render.Renderer, defaultLimit int) *SuggestTool {
	return &SuggestTool{store: s, improver: im, renderer: r, defaultLimit: defaultLimit}
}

// Definition returns the MCP tool definition for coverage_suggest.
func (t *SuggestTool) Definition() mcp.Tool {
	return mcp.NewTool("coverage_suggest",
		mcp.WithDescription(
			"Plan the next scenarios to generate: one spec per top-ranked gap, "+
				"asking for the least represented scenario type.",
		),
		mcp.WithString("report_id",
			mcp.Description("Report id (default: the most recent report)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max specs (default: coverage.max_suggestions)"),
		),
	)
}

// Handle processes the coverage_suggest tool call.
func (t *SuggestTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rec, err := loadReport(ctx, t.store, req.GetString("report_id", ""))
	if err != nil {
		return errorResult("load report", err), nil
	}
	tax, err := taxonomyFor(ctx, t.store, rec)
	if err != nil {
		return errorResult("load taxonomy", err), nil
	}

	specs := t.improver.SuggestScenarios(ctx, rec.Report, tax, intArg(req, "limit", t.defaultLimit))
	return mcp.NewToolResultText(t.renderer.Specs(specs)), nil
}
