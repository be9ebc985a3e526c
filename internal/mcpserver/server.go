package mcpserver

import (
	"log"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ppiankov/policygap/internal/coverage"
	"github.com/ppiankov/policygap/internal/llm"
	"github.com/ppiankov/policygap/internal/model"
	"github.com/ppiankov/policygap/internal/render"
	"github.com/ppiankov/policygap/internal/store"
	"github.com/ppiankov/policygap/internal/tagger"
)

// Deps are the shared dependencies every tool draws from.
// Generator may be nil: tagging is then heuristic and suggestions templated.
type Deps struct {
	Store     *store.Store
	Generator llm.StructuredGenerator
	Config    *model.Config
	Logger    *log.Logger
	Version   string
}

// New builds the MCP server with every coverage tool registered.
// Logs must not go to stdout, which carries the protocol.
func New(deps Deps) (*server.MCPServer, error) {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}

	opts, err := tagger.OptionsFromModel(deps.Config.Tagging)
	if err != nil {
		return nil, err
	}
	renderer, err := render.NewRenderer(render.Options{IncludeFooter: deps.Config.Output.IncludeFooter})
	if err != nil {
		return nil, err
	}

	tg := tagger.New(deps.Generator, opts, logger)
	calc := coverage.NewCalculator(deps.Generator, logger)
	improver := coverage.NewImprover(deps.Generator, logger)

	s := server.NewMCPServer(
		"policygap",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions),
	)

	calculate := NewCalculateTool(deps.Store, tg, calc, renderer, deps.Config.Coverage)
	s.AddTool(calculate.Definition(), calculate.Handle)

	report := NewReportTool(deps.Store, renderer)
	s.AddTool(report.Definition(), report.Handle)

	gaps := NewGapsTool(deps.Store)
	s.AddTool(gaps.Definition(), gaps.Handle)

	suggest := NewSuggestTool(deps.Store, improver, renderer, deps.Config.Coverage.MaxSuggestions)
	s.AddTool(suggest.Definition(), suggest.Handle)

	compare := NewCompareTool(deps.Store, renderer)
	s.AddTool(compare.Definition(), compare.Handle)

	runs := NewRunsTool(deps.Store)
	s.AddTool(runs.Definition(), runs.Handle)

	return s, nil
}

// ServeStdio blocks serving s over stdin/stdout
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

const serverInstructions = `policygap measures how golden test scenarios cover a policy's sub-category taxonomy.

Typical loop:
1. coverage_calculate with a taxonomy and the current scenarios; keep the returned report id.
2. coverage_gaps to see what is uncovered or thin, highest priority first.
3. coverage_suggest to get one scenario spec per top gap, then write those scenarios.
4. coverage_calculate again with the new scenarios, and coverage_compare against the first report.

coverage_runs lists stored reports; coverage_report renders one as a summary, Markdown or JSON.`
