package cli

import (
	"fmt"

	"github.com/ppiankov/policygap/internal/coverage"
	"github.com/ppiankov/policygap/internal/render"
	"github.com/spf13/cobra"
)

var compareJSON bool

// compareCmd represents the compare command
var compareCmd = &cobra.Command{
	Use:   "compare <baseline> [current]",
	Short: "Compare two coverage reports",
	Long: `Compare shows how coverage moved between a baseline and a current report:
the overall change, sub-categories newly covered, improved or regressed, and
gaps opened or closed.

Each report is a JSON file or a stored report id; current defaults to the
most recent stored report.

Example:
  policygap compare baseline.json report.json
  policygap compare 2f6c1a0e-...`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)
	compareCmd.Flags().BoolVar(&compareJSON, "json", false, "print the delta as JSON")
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(0)
	defer cancel()

	baseline, err := resolveReport(ctx, cfg, args[0])
	if err != nil {
		return fmt.Errorf("baseline: %w", err)
	}
	currentRef := ""
	if len(args) == 2 {
		currentRef = args[1]
	}
	current, err := resolveReport(ctx, cfg, currentRef)
	if err != nil {
		return fmt.Errorf("current: %w", err)
	}

	delta := coverage.Compare(baseline.report, current.report)
	out := cmd.OutOrStdout()

	if compareJSON {
		data, err := render.JSON(delta)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}

	r, err := newRenderer(cfg, out)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Baseline: %s\nCurrent:  %s\n\n", baseline.label, current.label)
	fmt.Fprint(out, r.Delta(delta))
	return nil
}
