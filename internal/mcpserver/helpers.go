// Package mcpserver exposes coverage analysis over the Model Context Protocol.
//
// Each tool follows the same shape:
// - A struct holding its dependencies, built by a constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// Tool failures are reported as error results, never as Go errors, so the
// calling agent can read and react to them.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/ppiankov/policygap/internal/model"
	"github.com/ppiankov/policygap/internal/store"
)

// intArg extracts an integer argument, returning defaultVal if the key is
// missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// loadReport resolves a report id, or the most recent report when id is empty
func loadReport(ctx context.Context, s *store.Store, id string) (store.ReportRecord, error) {
	if id == "" {
		return s.LatestReport(ctx)
	}
	return s.GetReport(ctx, id)
}

// taxonomyFor returns the taxonomy a report was computed against. Reports
// saved without one rank gaps without related rule ids.
func taxonomyFor(ctx context.Context, s *store.Store, rec store.ReportRecord) (model.SubCategoryTaxonomy, error) {
	if rec.TaxonomyID == "" {
		return model.SubCategoryTaxonomy{}, nil
	}
	tr, err := s.GetTaxonomy(ctx, rec.TaxonomyID)
	if err != nil {
		return model.SubCategoryTaxonomy{}, err
	}
	return tr.Taxonomy, nil
}

func errorResult(action string, err error) *mcp.CallToolResult {
	if errors.Is(err, store.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", action, err))
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", action, err))
}
