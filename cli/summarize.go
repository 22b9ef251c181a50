package main

import (
	"github.com/spf13/cobra"

	"github.com/Octogonapus/GalaxyBenchmark/report"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Print every metrics record as CSV",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return report.Summarize(cmd.Context(), settings.MetricsDir, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
}
