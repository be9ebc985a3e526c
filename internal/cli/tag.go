package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/policygap/internal/pipeline"
	"github.com/ppiankov/policygap/internal/tagger"
	"github.com/spf13/cobra"
)

var (
	tagTaxonomy  string
	tagScenarios string
	tagOut       string
	tagStrategy  string
	tagTimeout   time.Duration
)

// tagCmd represents the tag command
var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Tag scenarios with the sub-categories they exercise",
	Long: `Tag maps each golden scenario to the taxonomy's sub-categories.

Strategies:
  heuristic  sub-categories whose related rules intersect the scenario's target rules
  llm        the configured LLM assigns sub-categories in batches
  auto       llm when a provider is configured, heuristic otherwise (default)

Example:
  policygap tag --taxonomy taxonomy.yaml --scenarios scenarios.yaml -o tagged.yaml
  policygap tag --taxonomy taxonomy.yaml --scenarios scenarios.yaml --strategy heuristic`,
	Args: cobra.NoArgs,
	RunE: runTag,
}

func init() {
	rootCmd.AddCommand(tagCmd)

	tagCmd.Flags().StringVar(&tagTaxonomy, "taxonomy", "", "taxonomy file (YAML or JSON)")
	tagCmd.Flags().StringVar(&tagScenarios, "scenarios", "", "scenarios file (YAML or JSON)")
	tagCmd.Flags().StringVarP(&tagOut, "output", "o", "", "write tagged scenarios to this file instead of stdout")
	tagCmd.Flags().StringVar(&tagStrategy, "strategy", "", "tagging strategy: auto, heuristic, llm (default: tagging.strategy)")
	tagCmd.Flags().DurationVar(&tagTimeout, "timeout", 10*time.Minute, "overall timeout")
	_ = tagCmd.MarkFlagRequired("taxonomy")
	_ = tagCmd.MarkFlagRequired("scenarios")
}

func runTag(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if tagStrategy != "" {
		cfg.Tagging.Strategy = tagStrategy
	}
	ctx, cancel := commandContext(tagTimeout)
	defer cancel()

	tax, err := pipeline.LoadTaxonomy(tagTaxonomy)
	if err != nil {
		return err
	}
	scenarios, err := pipeline.LoadScenarios(tagScenarios)
	if err != nil {
		return err
	}

	opts, err := tagger.OptionsFromModel(cfg.Tagging)
	if err != nil {
		return err
	}
	gen, err := newGenerator(cfg)
	if err != nil {
		return err
	}
	tg := tagger.New(gen, opts, logger)

	progress("⚙️  Tagging %d scenarios against %d sub-categories...", len(scenarios), tax.Len())
	tagged, err := tg.Tag(ctx, scenarios, tax)
	if err != nil {
		if tagged == nil {
			return fmt.Errorf("tagging failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "WARNING: tagging incomplete, some scenarios keep their previous tags: %v\n", err)
	}

	untagged := 0
	for _, s := range tagged {
		if len(s.SubCategoryIDs) == 0 {
			untagged++
		}
	}
	progress("✓ Tagged %d scenarios (%d untagged)", len(tagged), untagged)

	return emitYAML(cmd, tagOut, map[string]any{"scenarios": tagged})
}
