package benchmarkorchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/Octogonapus/GalaxyBenchmark/benchmark"
	"github.com/Octogonapus/GalaxyBenchmark/config"
	"github.com/Octogonapus/GalaxyBenchmark/galaxy"
	"github.com/Octogonapus/GalaxyBenchmark/helm"
	"github.com/Octogonapus/GalaxyBenchmark/observability"
	"github.com/Octogonapus/GalaxyBenchmark/profile"
	"github.com/Octogonapus/GalaxyBenchmark/store"
)

// WorkUnit is one entry of the iteration plan: run Run of every workflow in WorkflowConf on Cloud under JobConf.
// The indexes tell apart repeated names in the benchmark definition.
type WorkUnit struct {
	Cloud        string
	CloudIndex   int
	JobConf      string
	JobConfIndex int
	Run          int
	WorkflowConf string
}

// Plan expands a benchmark definition into its work units, cloud by cloud, then job configuration, run and
// workflow file.
func Plan(def *config.BenchmarkDefinition) []WorkUnit {
	units := []WorkUnit{}
	for ci, cloud := range def.Clouds {
		for ji, conf := range def.JobConfigs {
			for n := range def.Runs {
				for _, wf := range def.BenchmarkConfs {
					units = append(units, WorkUnit{
						Cloud:        cloud,
						CloudIndex:   ci,
						JobConf:      conf,
						JobConfIndex: ji,
						Run:          n,
						WorkflowConf: wf,
					})
				}
			}
		}
	}
	return units
}

type ProfileProvider interface {
	Activate(cloud string) (*profile.Context, error)
}

type Deployer interface {
	Apply(ctx context.Context, configPath string) error
}

type OrchestratorInput struct {
	Profiles    ProfileProvider
	NewService  func(*profile.Context) (galaxy.Service, error)
	NewDeployer func(*profile.Context) (Deployer, error)

	// Called once the workflow files are loaded, before any remote call.
	OpenStore func() (*store.Store, error)

	RulesDir     string
	InputSource  string
	WaitTimeout  time.Duration
	PollInterval time.Duration
	Metrics      *observability.Metrics

	// Draw a progress bar over the work units.
	Progress bool
}

type UnitResult struct {
	Unit WorkUnit

	// Why the unit did not run. Empty if it ran.
	Skipped string

	Report *benchmark.RunReport
}

type Report struct {
	ExperimentID string
	Units        []*UnitResult
}

// Orchestrator runs a benchmark definition strictly sequentially.
type Orchestrator struct {
	input *OrchestratorInput
}

func NewOrchestrator(input *OrchestratorInput) *Orchestrator {
	return &Orchestrator{input: input}
}

// Per-cloud state while consuming the plan.
type cloudState struct {
	index    int
	skip     string
	runner   *benchmark.Runner
	deployer Deployer

	confIndex int
	confSkip  string
}

// Run executes every unit of the plan. All workflow files are loaded before the store is opened, so a missing
// file aborts the experiment without side effects. An unusable store aborts it before any remote call. Clouds and job configurations that can't be prepared are
// skipped. Only a missing file or cancellation returns an error.
func (o *Orchestrator) Run(ctx context.Context, def *config.BenchmarkDefinition) (*Report, error) {
	workflows := map[string][]*config.WorkflowDefinition{}
	for _, path := range def.BenchmarkConfs {
		if _, ok := workflows[path]; ok {
			continue
		}
		defs, err := config.LoadWorkflowDefinitions(path)
		if err != nil {
			return nil, err
		}
		workflows[path] = defs
	}
	st, err := o.input.OpenStore()
	if err != nil {
		return nil, err
	}

	rep := &Report{ExperimentID: uuid.NewString()}
	logger := observability.WithExperiment(slog.Default(), rep.ExperimentID)
	plan := Plan(def)
	logger.Info("starting experiment", slog.Int("units", len(plan)), slog.Int("clouds", len(def.Clouds)), slog.Int("runs", def.Runs))

	var p *progressbar.ProgressBar
	if o.input.Progress {
		p = progressbar.Default(int64(len(plan)), "Benchmarking:")
	} else {
		p = progressbar.DefaultSilent(int64(len(plan)))
	}
	defer p.Finish()

	var cs *cloudState
	for _, unit := range plan {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if cs == nil || cs.index != unit.CloudIndex {
			cs = o.enterCloud(observability.WithCloud(logger, unit.Cloud), st, unit)
		}
		if cs.skip == "" && cs.confIndex != unit.JobConfIndex {
			cs.confIndex = unit.JobConfIndex
			cs.confSkip = o.applyJobConf(ctx, observability.WithJobConf(observability.WithCloud(logger, unit.Cloud), unit.JobConf), cs.deployer, unit.JobConf)
		}

		res := &UnitResult{Unit: unit, Skipped: cs.skip}
		if res.Skipped == "" {
			res.Skipped = cs.confSkip
		}
		rep.Units = append(rep.Units, res)
		if res.Skipped != "" {
			o.input.Metrics.IncSkipped(res.Skipped)
			p.Add(1)
			continue
		}

		labels := benchmark.Labels{Run: strconv.Itoa(unit.Run), Cloud: unit.Cloud, JobConf: unit.JobConf}
		logger.Info("running workflows", slog.String("cloud", unit.Cloud), slog.String("job_conf", unit.JobConf), slog.Int("run", unit.Run), slog.String("workflows", unit.WorkflowConf))
		runRep, err := cs.runner.RunWorkflows(ctx, workflows[unit.WorkflowConf], labels)
		res.Report = runRep
		p.Add(1)
		if err != nil {
			return rep, err
		}
	}
	logger.Info("experiment complete", slog.Int("units", len(rep.Units)))
	return rep, nil
}

func (o *Orchestrator) enterCloud(logger *slog.Logger, st *store.Store, unit WorkUnit) *cloudState {
	cs := &cloudState{index: unit.CloudIndex, confIndex: -1}
	pctx, err := o.input.Profiles.Activate(unit.Cloud)
	if errors.Is(err, profile.ErrNoProfile) {
		logger.Warn("no profile found", slog.String("cloud", unit.Cloud))
		cs.skip = "no_profile"
		return cs
	}
	if err != nil {
		logger.Error("unable to set the profile", slog.String("cloud", unit.Cloud), slog.String("error", err.Error()))
		cs.skip = "profile"
		return cs
	}
	if pctx.Kubeconfig == "" {
		logger.Error("no kubeconfig set", slog.String("cloud", unit.Cloud))
		cs.skip = "no_kubeconfig"
		return cs
	}

	svc, err := o.input.NewService(pctx)
	if err != nil {
		logger.Error("can't connect to the server", slog.String("cloud", unit.Cloud), slog.String("server", pctx.ServerURL), slog.String("error", err.Error()))
		cs.skip = "server"
		return cs
	}
	cs.deployer, err = o.input.NewDeployer(pctx)
	if err != nil {
		logger.Error("can't prepare the deployment", slog.String("cloud", unit.Cloud), slog.String("error", err.Error()))
		cs.skip = "deployer"
		return cs
	}
	cs.runner = benchmark.NewRunner(&benchmark.RunnerInput{
		Service:      svc,
		Store:        st,
		InputSource:  o.input.InputSource,
		WaitTimeout:  o.input.WaitTimeout,
		PollInterval: o.input.PollInterval,
		Metrics:      o.input.Metrics,
	})
	logger.Info("benchmarking cloud", slog.String("cloud", unit.Cloud), slog.String("server", svc.ServerURL()))
	return cs
}

// applyJobConf returns the reason to skip the job configuration's units, or "" if it was applied.
func (o *Orchestrator) applyJobConf(ctx context.Context, logger *slog.Logger, d Deployer, name string) string {
	path := config.JobConfigPath(o.input.RulesDir, name)
	err := d.Apply(ctx, path)
	if errors.Is(err, helm.ErrNotFound) {
		logger.Warn("job conf not found", slog.String("job_conf", name), slog.String("path", path))
		return "job_conf_not_found"
	}
	if err != nil {
		logger.Error("applying job conf failed", slog.String("job_conf", name), slog.String("error", err.Error()))
		return "job_conf"
	}
	return ""
}

// Errors returns every non-fatal failure recorded while running the units.
func (r *Report) Errors() []string {
	errs := []string{}
	for _, u := range r.Units {
		if u.Report == nil {
			continue
		}
		for _, e := range u.Report.Errors {
			errs = append(errs, fmt.Sprintf("%s/%s run %d: %s", u.Unit.Cloud, u.Unit.JobConf, u.Unit.Run, e))
		}
	}
	return errs
}
