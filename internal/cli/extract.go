package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/policygap/internal/extract"
	"github.com/ppiankov/policygap/internal/model"
	"github.com/ppiankov/policygap/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	extractRules      string
	extractCategories string
	extractOut        string
	extractSave       bool
	extractTimeout    time.Duration
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <policy>",
	Short: "Derive a sub-category taxonomy from a policy and its rules",
	Long: `Extract asks the configured LLM to break a policy into atomic, testable
sub-categories grouped under parent categories, each linked to the rules it
exercises and given a priority.

The policy may be a local file (text, Markdown or HTML) or an http(s) URL.

Example:
  policygap extract policy.md --rules rules.yaml -o taxonomy.yaml --llm-provider openai
  policygap extract https://example.com/expenses --rules rules.yaml --categories categories.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVar(&extractRules, "rules", "", "rule graph file (YAML or JSON)")
	extractCmd.Flags().StringVar(&extractCategories, "categories", "", "planned categories file (optional)")
	extractCmd.Flags().StringVarP(&extractOut, "output", "o", "", "write the taxonomy to this file instead of stdout")
	extractCmd.Flags().BoolVar(&extractSave, "save", false, "store the taxonomy in the run store")
	extractCmd.Flags().DurationVar(&extractTimeout, "timeout", 5*time.Minute, "overall timeout")
	_ = extractCmd.MarkFlagRequired("rules")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(extractTimeout)
	defer cancel()

	graph, err := pipeline.LoadRules(extractRules)
	if err != nil {
		return err
	}
	var categories []model.Category
	if extractCategories != "" {
		if categories, err = pipeline.LoadCategories(extractCategories); err != nil {
			return err
		}
	}

	gen, err := newGenerator(cfg)
	if err != nil {
		return err
	}
	if gen == nil {
		return fmt.Errorf("taxonomy extraction needs an LLM provider (set --llm-provider or llm.provider)")
	}

	progress("⚙️  Loading policy: %s", args[0])
	policy, err := pipeline.NewFetcher(cfg.HTTP).LoadPolicy(ctx, args[0])
	if err != nil {
		return err
	}
	if policy.Truncated {
		fmt.Fprintf(os.Stderr, "WARNING: policy truncated at %d bytes\n", cfg.HTTP.MaxBodyBytes)
	}

	progress("⚙️  Extracting taxonomy from %d rules...", len(graph.Rules))
	tax, err := extract.NewExtractor(gen, logger).Extract(ctx, policy.Text, graph, categories)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}
	progress("✓ Extracted %d sub-categories", tax.Len())

	if extractSave {
		if err := saveTaxonomy(ctx, cfg, policy.Source, tax); err != nil {
			return err
		}
	}

	return emitYAML(cmd, extractOut, tax)
}

func saveTaxonomy(ctx context.Context, cfg *model.Config, name string, tax model.SubCategoryTaxonomy) error {
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	id, err := s.SaveTaxonomy(ctx, name, tax)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Stored taxonomy %s\n", id)
	return nil
}

// emitYAML writes v to path, or to stdout when path is empty
func emitYAML(cmd *cobra.Command, path string, v any) error {
	if path != "" {
		if err := pipeline.WriteYAML(path, v); err != nil {
			return err
		}
		progress("✓ Wrote %s", path)
		return nil
	}
	return pipeline.EncodeYAML(cmd.OutOrStdout(), v)
}
