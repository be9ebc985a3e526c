package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/ppiankov/policygap/internal/store"
)

// RunsTool handles the coverage_runs MCP tool.
type RunsTool struct {
	store *store.Store
}

// NewRunsTool creates a RunsTool.
func NewRunsTool(s *store.Store) *RunsTool {
	return &RunsTool{store: s}
}

// Definition returns the MCP tool definition for coverage_runs.
func (t *RunsTool) Definition() mcp.Tool {
	return mcp.NewTool("coverage_runs",
		mcp.WithDescription("List stored coverage reports, newest first."),
		mcp.WithNumber("limit",
			mcp.Description("Max reports (default: 20)"),
		),
	)
}

// Handle processes the coverage_runs tool call.
func (t *RunsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runs, err := t.store.ListReports(ctx, intArg(req, "limit", 20))
	if err != nil {
		return errorResult("list reports", err), nil
	}
	if len(runs) == 0 {
		return mcp.NewToolResultText("No reports stored yet. Run coverage_calculate first."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d reports:\n\n", len(runs))
	for _, r := range runs {
		fmt.Fprintf(&b, "- %s  %s  %-12s %3.0f%%  %d gaps  %d scenarios\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04"), labelOr(r.Label), r.OverallCoveragePercent, r.GapCount, r.TotalScenarios)
	}
	return mcp.NewToolResultText(b.String()), nil
}
