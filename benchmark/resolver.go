package benchmark

import (
	"context"
	"log/slog"

	"github.com/Octogonapus/GalaxyBenchmark/galaxy"
)

// Resolution is the outcome of resolving a reference: either Found with the remote id, or not found.
type Resolution struct {
	ID    string
	Found bool
}

func found(id string) Resolution {
	return Resolution{ID: id, Found: true}
}

var notFound = Resolution{}

// Resolver maps workflow and dataset references, which may be remote ids or names, to remote ids.
type Resolver struct {
	svc galaxy.Service
}

func NewResolver(svc galaxy.Service) *Resolver {
	return &Resolver{svc: svc}
}

// ResolveWorkflow treats ref as a workflow id first and falls back to the published workflows named ref. The
// first match wins when several share the name.
func (r *Resolver) ResolveWorkflow(ctx context.Context, ref string) Resolution {
	if ref == "" {
		return notFound
	}
	wf, err := r.svc.ShowWorkflow(ctx, ref)
	if err == nil && wf.ID != "" {
		return found(wf.ID)
	}
	if err != nil {
		slog.Debug("workflow id lookup failed", slog.String("ref", ref), slog.String("error", err.Error()))
	}

	wfs, err := r.svc.ListWorkflows(ctx, ref, true)
	if err != nil {
		slog.Debug("workflow name lookup failed", slog.String("ref", ref), slog.String("error", err.Error()))
		return notFound
	}
	if len(wfs) == 0 {
		slog.Warn("no workflow matches", slog.String("ref", ref))
		return notFound
	}
	if len(wfs) > 1 {
		slog.Debug("several workflows share the name, using the first", slog.String("ref", ref), slog.Int("matches", len(wfs)))
	}
	return found(wfs[0].ID)
}

// ResolveDataset treats ref as a dataset id first and falls back to the datasets named ref.
func (r *Resolver) ResolveDataset(ctx context.Context, ref string) Resolution {
	if ref == "" {
		return notFound
	}
	ds, err := r.svc.ShowDataset(ctx, ref)
	if err == nil && ds.ID != "" {
		return found(ds.ID)
	}
	if err != nil {
		slog.Debug("dataset id lookup failed", slog.String("ref", ref), slog.String("error", err.Error()))
	}

	dss, err := r.svc.ListDatasets(ctx, ref)
	if err != nil {
		slog.Debug("dataset name lookup failed", slog.String("ref", ref), slog.String("error", err.Error()))
		return notFound
	}
	if len(dss) == 0 {
		slog.Warn("no dataset matches", slog.String("ref", ref))
		return notFound
	}
	return found(dss[0].ID)
}
