package benchmark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Octogonapus/GalaxyBenchmark/galaxy"
)

const (
	DefaultWaitTimeout  = 24 * time.Hour
	DefaultPollInterval = 10 * time.Second
)

// JobOutcome is the result of waiting on one job. Exactly one of State and Err is set.
type JobOutcome struct {
	JobID string
	State string
	Err   error
}

func (o *JobOutcome) TimedOut() bool {
	var te *galaxy.TimeoutError
	return errors.As(o.Err, &te)
}

type CompletedInvocation struct {
	Invocation *galaxy.Invocation
	Jobs       []*JobOutcome
}

// Waiter blocks until an invocation and each of its jobs is terminal.
type Waiter struct {
	svc      galaxy.Service
	timeout  time.Duration
	interval time.Duration
}

// NewWaiter returns a Waiter using the given bound and poll interval. Zero values use the defaults.
func NewWaiter(svc galaxy.Service, timeout, interval time.Duration) *Waiter {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Waiter{svc: svc, timeout: timeout, interval: interval}
}

// Wait waits for the invocation to be scheduled and then for every step that has a job. A job whose wait fails or
// times out is logged and recorded in its outcome without affecting the other jobs.
func (w *Waiter) Wait(ctx context.Context, inv *galaxy.Invocation) (*CompletedInvocation, error) {
	return w.WaitEach(ctx, inv, nil)
}

// WaitEach is Wait, calling each with every job outcome as soon as that job's wait returns and before the next
// job is waited on.
func (w *Waiter) WaitEach(ctx context.Context, inv *galaxy.Invocation, each func(done *galaxy.Invocation, job *JobOutcome)) (*CompletedInvocation, error) {
	slog.Info("waiting for invocation", slog.String("invocation", inv.ID))
	done, err := w.svc.WaitForInvocation(ctx, inv.ID, w.timeout, w.interval)
	if err != nil {
		return nil, fmt.Errorf("waiting for invocation %s failed: %w", inv.ID, err)
	}
	if done.State != galaxy.InvocationStateScheduled {
		slog.Warn("invocation did not schedule", slog.String("invocation", inv.ID), slog.String("state", done.State))
	}

	completed := &CompletedInvocation{Invocation: done}
	for _, step := range done.Steps {
		if step.JobID == "" {
			continue
		}
		slog.Info("waiting for job", slog.String("job", step.JobID), slog.String("server", w.svc.ServerURL()))
		state, err := w.svc.WaitForJob(ctx, step.JobID, w.timeout, w.interval)
		outcome := &JobOutcome{JobID: step.JobID, State: state, Err: err}
		if err != nil {
			outcome.State = ""
			if outcome.TimedOut() {
				slog.Error("timed out waiting for job", slog.String("job", step.JobID), slog.String("error", err.Error()))
			} else {
				slog.Error("waiting for job failed", slog.String("job", step.JobID), slog.String("error", err.Error()))
			}
		} else if state != galaxy.JobStateOK {
			slog.Warn("job finished unsuccessfully", slog.String("job", step.JobID), slog.String("state", state))
		}
		completed.Jobs = append(completed.Jobs, outcome)
		if each != nil {
			each(done, outcome)
		}

		if ctx.Err() != nil {
			return completed, ctx.Err()
		}
	}
	return completed, nil
}
