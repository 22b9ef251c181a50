package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	benchmarkorchestrator "github.com/Octogonapus/GalaxyBenchmark/benchmark_orchestrator"
	"github.com/Octogonapus/GalaxyBenchmark/config"
	"github.com/Octogonapus/GalaxyBenchmark/galaxy"
	"github.com/Octogonapus/GalaxyBenchmark/profile"
)

var experimentCmd = &cobra.Command{
	Use:   "experiment",
	Short: "Run benchmark experiments",
}

var experimentRunCmd = &cobra.Command{
	Use:   "run <benchmark.yml>",
	Short: "Run every workflow of a benchmark on every cloud and job configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runExperiment,
}

var experimentProgress bool

func init() {
	experimentRunCmd.Flags().BoolVar(&experimentProgress, "progress", true, "Show a progress bar")
	experimentCmd.AddCommand(experimentRunCmd)
	rootCmd.AddCommand(experimentCmd)
}

func runExperiment(cmd *cobra.Command, args []string) error {
	def, err := config.LoadBenchmarkDefinition(args[0])
	if err != nil {
		return err
	}
	profiles, err := profile.Load(settings.Profiles)
	if err != nil {
		return err
	}
	defer writeMetrics()

	ctx := cmd.Context()
	orch := benchmarkorchestrator.NewOrchestrator(&benchmarkorchestrator.OrchestratorInput{
		Profiles: profiles,
		NewService: func(pctx *profile.Context) (galaxy.Service, error) {
			return connect(ctx, pctx)
		},
		NewDeployer: func(pctx *profile.Context) (benchmarkorchestrator.Deployer, error) {
			return newDeployer(pctx)
		},
		OpenStore:    openStore,
		RulesDir:     settings.RulesDir,
		InputSource:  settings.InputSource,
		WaitTimeout:  settings.WaitTimeout,
		PollInterval: settings.PollInterval,
		Metrics:      metrics,
		Progress:     experimentProgress,
	})
	rep, err := orch.Run(ctx, def)
	if err != nil {
		return err
	}
	logExperiment(rep)
	return nil
}

func logExperiment(rep *benchmarkorchestrator.Report) {
	skipped := 0
	for _, u := range rep.Units {
		if u.Skipped != "" {
			skipped++
		}
	}
	errs := rep.Errors()
	for _, e := range errs {
		slog.Error("experiment error", slog.String("experiment_id", rep.ExperimentID), slog.String("error", e))
	}
	slog.Info("experiment finished", slog.String("experiment_id", rep.ExperimentID), slog.Int("units", len(rep.Units)), slog.Int("skipped", skipped), slog.Int("errors", len(errs)))
}
