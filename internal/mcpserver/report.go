package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/ppiankov/policygap/internal/render"
	"github.com/ppiankov/policygap/internal/store"
)

// ReportTool handles the coverage_report MCP tool.
type ReportTool struct {
	store    *store.Store
	renderer *render.Renderer
}

// NewReportTool creates a ReportTool.
func NewReportTool(s *store.Store, r *render.Renderer) *ReportTool {
	return &ReportTool{store: s, renderer: r}
}

// Definition returns the MCP tool definition for coverage_report.
func (t *ReportTool) Definition() mcp.Tool {
	return mcp.NewTool("coverage_report",
		mcp.WithDescription(
			"Show a stored coverage report as a summary, a Markdown document with a heatmap, or JSON.",
		),
		mcp.WithString("report_id",
			mcp.Description("Report id (default: the most recent report)"),
		),
		mcp.WithString("format",
			mcp.Description("summary (default), markdown or json"),
		),
	)
}

// Handle processes the coverage_report tool call.
func (t *ReportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rec, err := loadReport(ctx, t.store, req.GetString("report_id", ""))
	if err != nil {
		return errorResult("load report", err), nil
	}

	switch format := req.GetString("format", "summary"); format {
	case "summary":
		header := fmt.Sprintf("Report %s (%s) created %s\n\n", rec.ID, labelOr(rec.Label), rec.CreatedAt.Format("2006-01-02 15:04:05"))
		return mcp.NewToolResultText(header + t.renderer.Summary(rec.Report) + "\n" + t.renderer.Table(rec.Report)), nil
	case "markdown":
		md, err := t.renderer.Markdown(rec.Report)
		if err != nil {
			return errorResult("render markdown", err), nil
		}
		return mcp.NewToolResultText(md), nil
	case "json":
		data, err := render.JSON(rec)
		if err != nil {
			return errorResult("encode report", err), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown format %q (want summary, markdown or json)", format)), nil
	}
}

func labelOr(label string) string {
	if label == "" {
		return "unlabelled"
	}
	return label
}
