package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/ppiankov/policygap/internal/coverage"
	"github.com/ppiankov/policygap/internal/store"
)

// GapsTool handles the coverage_gaps MCP tool.
type GapsTool struct {
	store *store.Store
}

// NewGapsTool creates a GapsTool.
func NewGapsTool(s *store.Store) *GapsTool {
	return &GapsTool{store: s}
}

// Definition returns the MCP tool definition for coverage_gaps.
func (t *GapsTool) Definition() mcp.Tool {
	return mcp.NewTool("coverage_gaps",
		mcp.WithDescription(
			"List the coverage gaps of a stored report, uncovered first and then by priority weight.",
		),
		mcp.WithString("report_id",
			mcp.Description("Report id (default: the most recent report)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max gaps (default: all)"),
		),
	)
}

// Handle processes the coverage_gaps tool call.
func (t *GapsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rec, err := loadReport(ctx, t.store, req.GetString("report_id", ""))
	if err != nil {
		return errorResult("load report", err), nil
	}
	tax, err := taxonomyFor(ctx, t.store, rec)
	if err != nil {
		return errorResult("load taxonomy", err), nil
	}

	gaps := coverage.RankGaps(rec.Report, tax)
	if len(gaps) == 0 {
		return mcp.NewToolResultText("No coverage gaps."), nil
	}
	if limit := intArg(req, "limit", 0); limit > 0 && limit < len(gaps) {
		gaps = gaps[:limit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d gaps in report %s:\n\n", len(gaps), rec.ID)
	for i, g := range gaps {
		fmt.Fprintf(&b, "G%d. %s\n", i+1, g)
		if len(g.RelatedRuleIDs) > 0 {
			fmt.Fprintf(&b, "    rules: %s\n", strings.Join(g.RelatedRuleIDs, ", "))
		}
		fmt.Fprintf(&b, "    needs: %d+ scenarios; types so far: %s\n",
			coverage.ScenariosNeeded(g, rec.Report.Thresholds), coverage.FormatDistribution(g.TypeDistribution))
	}
	return mcp.NewToolResultText(b.String()), nil
}
