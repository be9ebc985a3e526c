package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ppiankov/policygap/internal/llm"
	"github.com/ppiankov/policygap/internal/model"
	"github.com/ppiankov/policygap/internal/render"
	"github.com/ppiankov/policygap/internal/store"
)

// logger carries library warnings; stdout is reserved for results
var logger = log.New(os.Stderr, "", 0)

// progress prints a status line on stderr when --verbose is set
func progress(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// commandContext is cancelled on interrupt or after timeout (0 means none)
func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// newGenerator builds the structured generator, or nil when no provider is configured
func newGenerator(cfg *model.Config) (llm.StructuredGenerator, error) {
	gen, err := llm.NewGenerator(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("configure LLM: %w", err)
	}
	if gen == nil {
		progress("LLM disabled: heuristic tagging, templated suggestions")
	} else {
		progress("✓ LLM: %s %s", cfg.LLM.Provider, cfg.LLM.Model)
	}
	return gen, nil
}

// newRenderer honours output.color against the real stdout
func newRenderer(cfg *model.Config, out io.Writer) (*render.Renderer, error) {
	mode, err := render.ParseColorMode(cfg.Output.Color)
	if err != nil {
		return nil, err
	}
	var useColor bool
	if f, ok := out.(*os.File); ok {
		useColor = render.UseColor(mode, f.Fd())
	} else {
		useColor = mode == render.ColorAlways
	}
	return render.NewRenderer(render.Options{Color: useColor, IncludeFooter: cfg.Output.IncludeFooter})
}

func openStore(cfg *model.Config) (*store.Store, error) {
	s, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	progress("✓ Run store: %s", cfg.Storage.Path)
	return s, nil
}

// writeReportFiles writes the optional JSON and Markdown outputs
func writeReportFiles(r *render.Renderer, report model.CoverageReport, jsonPath, mdPath string) error {
	if jsonPath != "" {
		if err := r.RenderJSON(report, jsonPath); err != nil {
			return fmt.Errorf("write JSON report: %w", err)
		}
		progress("✓ JSON report: %s", jsonPath)
	}
	if mdPath != "" {
		if err := r.RenderMarkdown(report, mdPath); err != nil {
			return fmt.Errorf("write Markdown report: %w", err)
		}
		progress("✓ Markdown report: %s", mdPath)
	}
	return nil
}
