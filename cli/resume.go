package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Octogonapus/GalaxyBenchmark/benchmark"
)

var resumeCmd = &cobra.Command{
	Use:   "resume [invocation id...]",
	Short: "Wait for persisted invocations and collect their job metrics",
	Long:  "Resume picks up invocations that were written to the invocations directory by an interrupted run. Without ids, every persisted invocation is resumed.",
	RunE:  resumeInvocations,
}

var (
	resumeRun     string
	resumeJobConf string
	resumeForce   bool
)

func init() {
	resumeCmd.Flags().StringVar(&workflowCloud, "cloud", "", "Profile the invocations ran on")
	resumeCmd.Flags().StringVar(&resumeRun, "run", "", "Run label recorded with the metrics")
	resumeCmd.Flags().StringVar(&resumeJobConf, "job-conf", "", "Job configuration label recorded with the metrics")
	resumeCmd.Flags().BoolVar(&resumeForce, "force", false, "Collect jobs that already have metrics again")
	rootCmd.AddCommand(resumeCmd)
}

func resumeInvocations(cmd *cobra.Command, args []string) error {
	runner, err := newRunner(cmd, true)
	if err != nil {
		return err
	}
	defer writeMetrics()

	labels := benchmark.Labels{Run: resumeRun, Cloud: workflowCloud, JobConf: resumeJobConf}
	rep, err := runner.Resume(cmd.Context(), args, labels, resumeForce)
	if err != nil {
		return err
	}
	for _, e := range rep.Errors {
		slog.Error("resume error", slog.String("error", e))
	}
	slog.Info("resume complete", slog.Int("invocations", len(rep.Invocations)), slog.Int("records", rep.Records))
	return nil
}
