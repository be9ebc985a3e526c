package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runsLimit int

// runsCmd represents the runs command
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored coverage reports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(0)
		defer cancel()

		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		runs, err := s.ListReports(ctx, runsLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(out, "No reports stored yet. Use 'policygap coverage --save' or 'policygap run --save'.")
			return nil
		}
		fmt.Fprintf(out, "%-36s  %-16s  %-16s  %8s  %5s  %9s\n", "ID", "Created", "Label", "Coverage", "Gaps", "Scenarios")
		for _, r := range runs {
			fmt.Fprintf(out, "%-36s  %-16s  %-16s  %7.0f%%  %5d  %9d\n",
				r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Label, r.OverallCoveragePercent, r.GapCount, r.TotalScenarios)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "max reports to list")
}
