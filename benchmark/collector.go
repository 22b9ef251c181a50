package benchmark

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Octogonapus/GalaxyBenchmark/galaxy"
	"github.com/Octogonapus/GalaxyBenchmark/report"
	"github.com/Octogonapus/GalaxyBenchmark/store"
)

// JobRef identifies a job that reached a terminal state and the context it ran in.
type JobRef struct {
	JobID      string
	WorkflowID string
	HistoryID  string
	Status     string
	Labels     Labels
}

// Collector fetches the full detail of finished jobs and writes one metrics record per job.
type Collector struct {
	svc   galaxy.Service
	store *store.Store
}

func NewCollector(svc galaxy.Service, st *store.Store) *Collector {
	return &Collector{svc: svc, store: st}
}

// Collect writes the metrics record of ref.JobID, replacing any earlier record of the same job.
func (c *Collector) Collect(ctx context.Context, ref JobRef) (*report.JobMetricsRecord, error) {
	detail, err := c.svc.ShowJob(ctx, ref.JobID, true)
	if err != nil {
		return nil, fmt.Errorf("fetching job %s failed: %w", ref.JobID, err)
	}
	rec := &report.JobMetricsRecord{
		Run:        ref.Labels.Run,
		Cloud:      ref.Labels.Cloud,
		JobConf:    ref.Labels.JobConf,
		WorkflowID: ref.WorkflowID,
		HistoryID:  ref.HistoryID,
		Metrics:    detail,
		Status:     ref.Status,
		Server:     c.svc.ServerURL(),
	}
	path, err := c.store.SaveMetrics(ref.JobID, rec)
	if err != nil {
		return nil, fmt.Errorf("saving metrics for job %s failed: %w", ref.JobID, err)
	}
	slog.Info("wrote metrics", slog.String("job", ref.JobID), slog.String("path", path))
	return rec, nil
}

// CollectJob writes the record of a job whose wait finished. A job that already has a record keeps it unless
// force is set. It reports whether a record was written.
func (c *Collector) CollectJob(ctx context.Context, inv *galaxy.Invocation, job *JobOutcome, labels Labels, force bool) (bool, error) {
	if job.Err != nil {
		return false, nil
	}
	if !force && c.store.HasMetrics(job.JobID) {
		slog.Info("metrics already collected", slog.String("job", job.JobID))
		return false, nil
	}
	_, err := c.Collect(ctx, JobRef{
		JobID:      job.JobID,
		WorkflowID: inv.WorkflowID,
		HistoryID:  inv.HistoryID,
		Status:     job.State,
		Labels:     labels,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
