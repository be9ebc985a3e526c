package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/policygap/internal/coverage"
	"github.com/ppiankov/policygap/internal/pipeline"
	"github.com/ppiankov/policygap/internal/store"
	"github.com/ppiankov/policygap/internal/tagger"
	"github.com/spf13/cobra"
)

var (
	covTaxonomy      string
	covScenarios     string
	covJSON          string
	covMD            string
	covNoTag         bool
	covNoSuggestions bool
	covTable         bool
	covHeatmap       bool
	covSave          bool
	covLabel         string
	covTimeout       time.Duration
)

// coverageCmd represents the coverage command
var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Measure scenario coverage of a taxonomy",
	Long: `Coverage counts the scenarios tagged with each sub-category, turns the
counts into coverage percentages against coverage.thresholds, and ranks the
gaps: uncovered first, then by priority weight.

Scenarios are tagged first unless --no-tag is given, in which case their
existing sub_category_ids are measured as they are.

Example:
  policygap coverage --taxonomy taxonomy.yaml --scenarios scenarios.yaml
  policygap coverage --taxonomy taxonomy.yaml --scenarios tagged.yaml --no-tag --heatmap
  policygap coverage --taxonomy taxonomy.yaml --scenarios scenarios.yaml --json report.json --md report.md --save --label v2`,
	Args: cobra.NoArgs,
	RunE: runCoverage,
}

func init() {
	rootCmd.AddCommand(coverageCmd)

	coverageCmd.Flags().StringVar(&covTaxonomy, "taxonomy", "", "taxonomy file (YAML or JSON)")
	coverageCmd.Flags().StringVar(&covScenarios, "scenarios", "", "scenarios file (YAML or JSON)")
	coverageCmd.Flags().StringVar(&covJSON, "json", "", "output JSON path (optional)")
	coverageCmd.Flags().StringVar(&covMD, "md", "", "output Markdown path (optional)")
	coverageCmd.Flags().BoolVar(&covNoTag, "no-tag", false, "measure existing tags without re-tagging")
	coverageCmd.Flags().BoolVar(&covNoSuggestions, "no-suggestions", false, "skip improvement suggestions")
	coverageCmd.Flags().BoolVar(&covTable, "table", false, "print the per-sub-category table")
	coverageCmd.Flags().BoolVar(&covHeatmap, "heatmap", false, "print the heatmap")
	coverageCmd.Flags().BoolVar(&covSave, "save", false, "store the report in the run store")
	coverageCmd.Flags().StringVar(&covLabel, "label", "", "label for the stored report, e.g. a suite version")
	coverageCmd.Flags().DurationVar(&covTimeout, "timeout", 10*time.Minute, "overall timeout")
	_ = coverageCmd.MarkFlagRequired("taxonomy")
	_ = coverageCmd.MarkFlagRequired("scenarios")
}

func runCoverage(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(covTimeout)
	defer cancel()

	tax, err := pipeline.LoadTaxonomy(covTaxonomy)
	if err != nil {
		return err
	}
	scenarios, err := pipeline.LoadScenarios(covScenarios)
	if err != nil {
		return err
	}

	gen, err := newGenerator(cfg)
	if err != nil {
		return err
	}

	if !covNoTag {
		opts, err := tagger.OptionsFromModel(cfg.Tagging)
		if err != nil {
			return err
		}
		tagged, err := tagger.New(gen, opts, logger).Tag(ctx, scenarios, tax)
		if err != nil {
			if tagged == nil {
				return fmt.Errorf("tagging failed: %w", err)
			}
			fmt.Fprintf(os.Stderr, "WARNING: tagging incomplete, some scenarios keep their previous tags: %v\n", err)
		}
		scenarios = tagged
		progress("✓ Tagged %d scenarios", len(scenarios))
	}

	report, err := coverage.NewCalculator(gen, logger).Calculate(ctx, scenarios, tax, coverage.CalculateOptions{
		Thresholds:          cfg.Coverage.Thresholds,
		GenerateSuggestions: cfg.Coverage.GenerateSuggestions && !covNoSuggestions,
	})
	if err != nil {
		return fmt.Errorf("coverage failed: %w", err)
	}

	out := cmd.OutOrStdout()
	r, err := newRenderer(cfg, out)
	if err != nil {
		return err
	}
	fmt.Fprint(out, r.Summary(report))
	if covTable {
		fmt.Fprintln(out)
		fmt.Fprint(out, r.Table(report))
	}
	if covHeatmap {
		fmt.Fprintln(out)
		fmt.Fprint(out, r.Heatmap(report))
	}

	if err := writeReportFiles(r, report, covJSON, covMD); err != nil {
		return err
	}

	if covSave {
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		taxID, err := s.SaveTaxonomy(ctx, covTaxonomy, tax)
		if err != nil {
			return err
		}
		setID, err := s.SaveScenarioSet(ctx, covScenarios, scenarios)
		if err != nil {
			return err
		}
		id, err := s.SaveReport(ctx, store.SaveReportParams{Label: covLabel, TaxonomyID: taxID, ScenarioSetID: setID, Report: report})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Stored report %s\n", id)
	}

	return nil
}
