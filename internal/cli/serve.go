package cli

import (
	"fmt"

	"github.com/ppiankov/policygap/internal/mcpserver"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve coverage tools over MCP (stdio)",
	Long: `Serve exposes coverage_calculate, coverage_report, coverage_gaps,
coverage_suggest, coverage_compare and coverage_runs as Model Context Protocol
tools on stdin/stdout, backed by the run store.

Example MCP client entry:
  {"command": "policygap", "args": ["serve"]}`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		gen, err := newGenerator(cfg)
		if err != nil {
			return err
		}

		srv, err := mcpserver.New(mcpserver.Deps{
			Store:     s,
			Generator: gen,
			Config:    cfg,
			Logger:    logger,
			Version:   Version,
		})
		if err != nil {
			return fmt.Errorf("creating server: %w", err)
		}

		return mcpserver.ServeStdio(srv)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
