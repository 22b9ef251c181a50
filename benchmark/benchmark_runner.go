package benchmark

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Octogonapus/GalaxyBenchmark/config"
	"github.com/Octogonapus/GalaxyBenchmark/galaxy"
	"github.com/Octogonapus/GalaxyBenchmark/observability"
	"github.com/Octogonapus/GalaxyBenchmark/store"
)

type RunnerInput struct {
	Service      galaxy.Service
	Store        *store.Store
	InputSource  string
	WaitTimeout  time.Duration
	PollInterval time.Duration
	Metrics      *observability.Metrics
}

// Runner drives workflow definitions through build, wait and collect against one server.
type Runner struct {
	svc       galaxy.Service
	store     *store.Store
	builder   *Builder
	waiter    *Waiter
	collector *Collector
	metrics   *observability.Metrics
}

// RunReport summarizes what a call to the Runner did. Errors holds one message per non-fatal failure.
type RunReport struct {
	Invocations []string
	Records     int
	Errors      []string
}

func (r *RunReport) fail(err error) {
	r.Errors = append(r.Errors, err.Error())
}

func NewRunner(input *RunnerInput) *Runner {
	return &Runner{
		svc:   input.Service,
		store: input.Store,
		builder: NewBuilder(&BuilderInput{
			Service:     input.Service,
			Store:       input.Store,
			InputSource: input.InputSource,
		}),
		waiter:    NewWaiter(input.Service, input.WaitTimeout, input.PollInterval),
		collector: NewCollector(input.Service, input.Store),
		metrics:   input.Metrics,
	}
}

// RunWorkflows invokes every run of every definition in order, waiting for each invocation and collecting its
// jobs before starting the next. Validation errors and remote faults skip the affected run and are reported.
// Only context cancellation stops the loop early.
func (r *Runner) RunWorkflows(ctx context.Context, defs []*config.WorkflowDefinition, labels Labels) (*RunReport, error) {
	rep := &RunReport{}
	for _, def := range defs {
		for i, run := range def.Runs {
			if err := ctx.Err(); err != nil {
				return rep, err
			}
			err := r.runOne(ctx, def, run, i+1, labels, rep)
			if err == nil {
				continue
			}
			rep.fail(err)
			var verr *ValidationError
			if errors.As(err, &verr) {
				r.metrics.IncFailure("validation")
				slog.Error("skipping run", slog.String("workflow", def.WorkflowID), slog.Int("run", i+1), slog.String("error", err.Error()))
				if verr.Kind == "workflow" {
					break
				}
				continue
			}
			if ctx.Err() != nil {
				return rep, ctx.Err()
			}
			var terr *galaxy.TimeoutError
			if errors.As(err, &terr) {
				r.metrics.IncFailure("timeout")
			} else {
				r.metrics.IncFailure("remote")
			}
			slog.Error("run failed", slog.String("workflow", def.WorkflowID), slog.Int("run", i+1), slog.String("error", err.Error()))
		}
	}
	slog.Info("benchmarking run complete", slog.Int("invocations", len(rep.Invocations)), slog.Int("records", rep.Records), slog.Int("errors", len(rep.Errors)))
	return rep, nil
}

func (r *Runner) runOne(ctx context.Context, def *config.WorkflowDefinition, run config.RunSpec, ordinal int, labels Labels, rep *RunReport) error {
	inv, err := r.builder.BuildAndTrigger(ctx, def, run, ordinal, labels)
	if inv != nil {
		rep.Invocations = append(rep.Invocations, inv.ID)
		r.metrics.IncInvocation(labels.Cloud, labels.JobConf)
	}
	if err != nil {
		return err
	}
	return r.finish(ctx, inv, labels, false, rep)
}

// finish waits for the jobs of inv and writes each job's record right after its wait. Collection is not cancelled
// with ctx, so jobs that finished before an interrupt keep their records.
func (r *Runner) finish(ctx context.Context, inv *galaxy.Invocation, labels Labels, force bool, rep *RunReport) error {
	collectCtx := context.WithoutCancel(ctx)
	_, err := r.waiter.WaitEach(ctx, inv, func(done *galaxy.Invocation, job *JobOutcome) {
		switch {
		case job.Err != nil && ctx.Err() != nil:
			return
		case job.Err == nil:
			r.metrics.IncJob(job.State)
		case job.TimedOut():
			r.metrics.IncJob("timeout")
			rep.fail(job.Err)
			return
		default:
			r.metrics.IncJob("fault")
			rep.fail(job.Err)
			return
		}
		written, err := r.collector.CollectJob(collectCtx, done, job, labels, force)
		if err != nil {
			slog.Error("collecting metrics failed", slog.String("job", job.JobID), slog.String("error", err.Error()))
			return
		}
		if written {
			r.metrics.IncRecord()
			rep.Records++
		}
	})
	return err
}

// Resume waits for and collects the jobs of invocations that were persisted by an earlier, interrupted run. With
// no ids every persisted invocation is resumed. Jobs that already have a record are skipped unless force is set;
// labels only apply to the records written now.
func (r *Runner) Resume(ctx context.Context, ids []string, labels Labels, force bool) (*RunReport, error) {
	if len(ids) == 0 {
		var err error
		ids, err = r.store.InvocationIDs()
		if err != nil {
			return nil, err
		}
	}
	rep := &RunReport{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		var inv galaxy.Invocation
		if err := r.store.LoadInvocation(id, &inv); err != nil {
			slog.Error("can't load invocation", slog.String("invocation", id), slog.String("error", err.Error()))
			rep.fail(err)
			continue
		}
		if !force && r.collected(ctx, id) {
			slog.Info("invocation already collected", slog.String("invocation", id))
			continue
		}
		rep.Invocations = append(rep.Invocations, id)
		if err := r.finish(ctx, &inv, labels, force, rep); err != nil {
			slog.Error("resuming invocation failed", slog.String("invocation", id), slog.String("error", err.Error()))
			rep.fail(err)
		}
	}
	return rep, nil
}

// collected reports whether every job of the invocation already has a metrics record. It needs the current
// step list, which the persisted creation response usually lacks.
func (r *Runner) collected(ctx context.Context, id string) bool {
	inv, err := r.svc.ShowInvocation(ctx, id)
	if err != nil || !galaxy.IsInvocationTerminal(inv.State) {
		return false
	}
	jobs := 0
	for _, step := range inv.Steps {
		if step.JobID == "" {
			continue
		}
		jobs++
		if !r.store.HasMetrics(step.JobID) {
			return false
		}
	}
	return jobs > 0
}
