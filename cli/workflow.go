package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Octogonapus/GalaxyBenchmark/benchmark"
	"github.com/Octogonapus/GalaxyBenchmark/config"
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Run, validate or translate workflow definitions against one server",
}

var workflowRunCmd = &cobra.Command{
	Use:   "run <workflows.yml>",
	Short: "Invoke every run of every workflow definition and collect job metrics",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflows,
}

var workflowValidateCmd = &cobra.Command{
	Use:   "validate <workflows.yml>",
	Short: "Check that every workflow, input and dataset resolves on the server",
	Args:  cobra.ExactArgs(1),
	RunE:  validateWorkflows,
}

var workflowTranslateCmd = &cobra.Command{
	Use:   "translate <workflows.yml>",
	Short: "Print the definitions with workflow and dataset ids replaced by names",
	Args:  cobra.ExactArgs(1),
	RunE:  translateWorkflows,
}

var (
	workflowCloud   string
	workflowRun     string
	workflowJobConf string
)

func init() {
	for _, c := range []*cobra.Command{workflowRunCmd, workflowValidateCmd, workflowTranslateCmd} {
		c.Flags().StringVar(&workflowCloud, "cloud", "", "Profile to use (default: the default_server and api_key settings)")
		workflowCmd.AddCommand(c)
	}
	workflowRunCmd.Flags().StringVar(&workflowRun, "run", "", "Run label recorded with the metrics")
	workflowRunCmd.Flags().StringVar(&workflowJobConf, "job-conf", "", "Job configuration label recorded with the metrics")
	rootCmd.AddCommand(workflowCmd)
}

func newRunner(cmd *cobra.Command, needStore bool) (*benchmark.Runner, error) {
	var err error
	in := &benchmark.RunnerInput{
		InputSource:  settings.InputSource,
		WaitTimeout:  settings.WaitTimeout,
		PollInterval: settings.PollInterval,
		Metrics:      metrics,
	}
	if needStore {
		if in.Store, err = openStore(); err != nil {
			return nil, err
		}
	}
	pctx, err := activeContext(workflowCloud)
	if err != nil {
		return nil, err
	}
	if in.Service, err = connect(cmd.Context(), pctx); err != nil {
		return nil, err
	}
	return benchmark.NewRunner(in), nil
}

func runWorkflows(cmd *cobra.Command, args []string) error {
	defs, err := config.LoadWorkflowDefinitions(args[0])
	if err != nil {
		return err
	}
	runner, err := newRunner(cmd, true)
	if err != nil {
		return err
	}
	defer writeMetrics()

	labels := benchmark.Labels{Run: workflowRun, Cloud: workflowCloud, JobConf: workflowJobConf}
	rep, err := runner.RunWorkflows(cmd.Context(), defs, labels)
	if err != nil {
		return err
	}
	for _, e := range rep.Errors {
		slog.Error("run error", slog.String("error", e))
	}
	return nil
}

func validateWorkflows(cmd *cobra.Command, args []string) error {
	defs, err := config.LoadWorkflowDefinitions(args[0])
	if err != nil {
		return err
	}
	runner, err := newRunner(cmd, false)
	if err != nil {
		return err
	}
	problems := runner.Validate(cmd.Context(), defs)
	if len(problems) > 0 {
		return fmt.Errorf("%s has %d problem(s)", args[0], len(problems))
	}
	return nil
}

func translateWorkflows(cmd *cobra.Command, args []string) error {
	defs, err := config.LoadWorkflowDefinitions(args[0])
	if err != nil {
		return err
	}
	runner, err := newRunner(cmd, false)
	if err != nil {
		return err
	}
	runner.Translate(cmd.Context(), defs)
	return config.WriteWorkflowDefinitions(cmd.OutOrStdout(), defs)
}
