package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/policygap/internal/coverage"
	"github.com/ppiankov/policygap/internal/model"
	"github.com/ppiankov/policygap/internal/pipeline"
	"github.com/ppiankov/policygap/internal/store"
	"github.com/spf13/cobra"
)

var (
	improveTaxonomy string
	improveLimit    int
	improveOut      string
	improveTimeout  time.Duration
)

// improveCmd represents the improve command
var improveCmd = &cobra.Command{
	Use:   "improve [report]",
	Short: "Plan the next scenarios to generate from a coverage report",
	Long: `Improve turns the highest-ranked gaps of a report into scenario specs:
one per gap, asking for the least represented of positive, negative and
edge_case. With an LLM provider configured each spec also gets a draft.

The report is a JSON file written by 'coverage --json', a stored report id,
or, when omitted, the most recent stored report.

Example:
  policygap improve report.json --taxonomy taxonomy.yaml
  policygap improve --limit 10 -o specs.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImprove,
}

func init() {
	rootCmd.AddCommand(improveCmd)

	improveCmd.Flags().StringVar(&improveTaxonomy, "taxonomy", "", "taxonomy file; supplies related rule ids (default: the stored report's taxonomy)")
	improveCmd.Flags().IntVar(&improveLimit, "limit", 0, "max specs (default: coverage.max_suggestions)")
	improveCmd.Flags().StringVarP(&improveOut, "output", "o", "", "write specs as YAML to this file")
	improveCmd.Flags().DurationVar(&improveTimeout, "timeout", 5*time.Minute, "overall timeout")
}

func runImprove(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(improveTimeout)
	defer cancel()

	ref := ""
	if len(args) == 1 {
		ref = args[0]
	}
	loaded, err := resolveReport(ctx, cfg, ref)
	if err != nil {
		return err
	}

	tax := loaded.taxonomy
	if improveTaxonomy != "" {
		if tax, err = pipeline.LoadTaxonomy(improveTaxonomy); err != nil {
			return err
		}
	}

	limit := improveLimit
	if limit <= 0 {
		limit = cfg.Coverage.MaxSuggestions
	}

	gen, err := newGenerator(cfg)
	if err != nil {
		return err
	}
	specs := coverage.NewImprover(gen, logger).SuggestScenarios(ctx, loaded.report, tax, limit)

	if improveOut != "" {
		if err := pipeline.WriteYAML(improveOut, map[string]any{"specs": specs}); err != nil {
			return err
		}
		progress("✓ Wrote %d specs to %s", len(specs), improveOut)
	}

	r, err := newRenderer(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), r.Specs(specs))
	return nil
}

// loadedReport is a report from a file or the run store
type loadedReport struct {
	ref      string
	label    string
	report   model.CoverageReport
	taxonomy model.SubCategoryTaxonomy
}

// resolveReport loads ref as a report file when it exists on disk, otherwise
// as a stored report id; an empty ref means the most recent stored report.
func resolveReport(ctx context.Context, cfg *model.Config, ref string) (loadedReport, error) {
	if ref != "" {
		if _, err := os.Stat(ref); err == nil {
			report, err := pipeline.LoadReport(ref)
			if err != nil {
				return loadedReport{}, err
			}
			return loadedReport{ref: ref, label: ref, report: report}, nil
		}
	}

	s, err := openStore(cfg)
	if err != nil {
		return loadedReport{}, err
	}
	defer func() { _ = s.Close() }()

	var rec store.ReportRecord
	if ref == "" {
		rec, err = s.LatestReport(ctx)
	} else {
		rec, err = s.GetReport(ctx, ref)
	}
	if err != nil {
		return loadedReport{}, fmt.Errorf("load report: %w", err)
	}

	loaded := loadedReport{ref: rec.ID, label: rec.Label, report: rec.Report}
	if rec.TaxonomyID != "" {
		tr, err := s.GetTaxonomy(ctx, rec.TaxonomyID)
		if err != nil {
			return loadedReport{}, err
		}
		loaded.taxonomy = tr.Taxonomy
	}
	return loaded, nil
}
