package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/policygap/internal/model"
	"github.com/ppiankov/policygap/internal/pipeline"
	"github.com/ppiankov/policygap/internal/store"
	"github.com/spf13/cobra"
)

var (
	runPolicy     string
	runRules      string
	runCategories string
	runScenarios  string
	runTaxonomy   string
	runJSON       string
	runMD         string
	runSpecs      string
	runSave       bool
	runLabel      string
	runTimeout    time.Duration
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Extract, tag, measure and plan in one pass",
	Long: `Run executes the whole loop:
- Derive a taxonomy from the policy and its rules (skipped with --taxonomy)
- Tag the scenarios with sub-categories
- Measure coverage and rank the gaps
- Plan the scenarios to generate next

If the taxonomy cannot be extracted, coverage is disabled with a warning.

Example:
  policygap run --policy policy.md --rules rules.yaml --scenarios scenarios.yaml --llm-provider openai
  policygap run --taxonomy taxonomy.yaml --scenarios scenarios.yaml --md report.md --save --label nightly`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runPolicy, "policy", "", "policy file or URL")
	runCmd.Flags().StringVar(&runRules, "rules", "", "rule graph file (YAML or JSON)")
	runCmd.Flags().StringVar(&runCategories, "categories", "", "planned categories file (optional)")
	runCmd.Flags().StringVar(&runScenarios, "scenarios", "", "scenarios file (YAML or JSON)")
	runCmd.Flags().StringVar(&runTaxonomy, "taxonomy", "", "existing taxonomy file; skips extraction")
	runCmd.Flags().StringVar(&runJSON, "json", "", "output JSON path (optional)")
	runCmd.Flags().StringVar(&runMD, "md", "", "output Markdown path (optional)")
	runCmd.Flags().StringVar(&runSpecs, "specs", "", "write scenario specs as YAML (optional)")
	runCmd.Flags().BoolVar(&runSave, "save", false, "store the taxonomy, scenarios and report in the run store")
	runCmd.Flags().StringVar(&runLabel, "label", "", "label for the stored report")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 15*time.Minute, "overall timeout")
	_ = runCmd.MarkFlagRequired("scenarios")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(runTimeout)
	defer cancel()

	in := pipeline.Input{PolicySource: runPolicy}
	if in.Scenarios, err = pipeline.LoadScenarios(runScenarios); err != nil {
		return err
	}
	if runTaxonomy != "" {
		tax, err := pipeline.LoadTaxonomy(runTaxonomy)
		if err != nil {
			return err
		}
		in.Taxonomy = &tax
	} else {
		if runPolicy == "" || runRules == "" {
			return fmt.Errorf("--policy and --rules are required unless --taxonomy is given")
		}
		if in.Rules, err = pipeline.LoadRules(runRules); err != nil {
			return err
		}
		if runCategories != "" {
			if in.Categories, err = pipeline.LoadCategories(runCategories); err != nil {
				return err
			}
		}
	}

	gen, err := newGenerator(cfg)
	if err != nil {
		return err
	}
	p, err := pipeline.NewPipeline(cfg, gen, logger)
	if err != nil {
		return err
	}

	progress("⚙️  Running pipeline on %d scenarios...", len(in.Scenarios))
	result, err := p.Run(ctx, in)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	if result.Report == nil {
		// Already logged as a warning; nothing to measure
		return nil
	}
	progress("✓ Taxonomy: %d sub-categories", result.Taxonomy.Len())

	out := cmd.OutOrStdout()
	r, err := newRenderer(cfg, out)
	if err != nil {
		return err
	}
	fmt.Fprint(out, r.Summary(*result.Report))
	if len(result.Specs) > 0 {
		fmt.Fprintln(out, "\nNext scenarios:")
		fmt.Fprint(out, r.Specs(result.Specs))
	}

	if err := writeReportFiles(r, *result.Report, runJSON, runMD); err != nil {
		return err
	}
	if runSpecs != "" {
		if err := pipeline.WriteYAML(runSpecs, map[string]any{"specs": result.Specs}); err != nil {
			return err
		}
	}

	if runSave {
		return saveRun(ctx, cfg, result)
	}
	return nil
}

func saveRun(ctx context.Context, cfg *model.Config, result *pipeline.Result) error {
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	name := runTaxonomy
	if result.Policy != nil {
		name = result.Policy.Source
	}
	taxID, err := s.SaveTaxonomy(ctx, name, result.Taxonomy)
	if err != nil {
		return err
	}
	setID, err := s.SaveScenarioSet(ctx, runScenarios, result.Scenarios)
	if err != nil {
		return err
	}
	id, err := s.SaveReport(ctx, store.SaveReportParams{Label: runLabel, TaxonomyID: taxID, ScenarioSetID: setID, Report: *result.Report})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Stored report %s\n", id)
	return nil
}
