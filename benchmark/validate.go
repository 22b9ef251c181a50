package benchmark

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Octogonapus/GalaxyBenchmark/config"
)

// Validate resolves every reference in defs without invoking anything and returns every problem found. Unlike
// BuildAndTrigger it does not stop at the first problem of a definition. Remote faults while looking up input
// slots are returned as well.
func (r *Runner) Validate(ctx context.Context, defs []*config.WorkflowDefinition) []error {
	problems := []error{}
	for _, def := range defs {
		res := r.builder.resolver.ResolveWorkflow(ctx, def.WorkflowID)
		if !res.Found {
			err := &ValidationError{Kind: "workflow", Ref: def.WorkflowID, Reason: "no workflow with this id or name"}
			slog.Error("workflow does not exist on this server", slog.String("workflow", def.WorkflowID), slog.String("server", r.svc.ServerURL()))
			problems = append(problems, err)
			continue
		}
		slog.Info("workflow resolved", slog.String("workflow", def.WorkflowID), slog.String("id", res.ID))

		before := len(problems)
		specs := append([]config.InputSpec{}, def.ReferenceData...)
		for _, run := range def.Runs {
			specs = append(specs, run.Inputs...)
		}
		for _, spec := range specs {
			slot, dsID, err := r.builder.bind(ctx, res.ID, spec)
			if err != nil {
				var verr *ValidationError
				if errors.As(err, &verr) {
					slog.Error("invalid input specification", slog.String("input", spec.Name), slog.String("dataset", spec.DatasetID), slog.String("error", err.Error()))
				} else {
					slog.Error("input lookup failed", slog.String("input", spec.Name), slog.String("error", err.Error()))
				}
				problems = append(problems, err)
				continue
			}
			slog.Info("input resolved", slog.String("input", spec.Name), slog.String("slot", slot), slog.String("dataset", spec.DatasetID), slog.String("id", dsID))
		}

		if len(problems) == before {
			slog.Info("workflow configuration is valid and can be executed on this server", slog.String("workflow", def.WorkflowID))
		} else {
			slog.Warn("workflow configuration has problems that must be corrected before it can be used", slog.String("workflow", def.WorkflowID), slog.Int("problems", len(problems)-before))
		}
	}
	return problems
}

// Translate rewrites workflow and dataset ids in defs to their names so that the definitions can be used on
// another server. References that can't be looked up are left as they are.
func (r *Runner) Translate(ctx context.Context, defs []*config.WorkflowDefinition) {
	for _, def := range defs {
		wf, err := r.svc.ShowWorkflow(ctx, def.WorkflowID)
		if err != nil || wf.Name == "" {
			slog.Warn("unable to translate workflow id", slog.String("workflow", def.WorkflowID))
		} else {
			def.WorkflowID = wf.Name
		}
		for i := range def.ReferenceData {
			r.translateDataset(ctx, &def.ReferenceData[i])
		}
		for i := range def.Runs {
			for j := range def.Runs[i].Inputs {
				r.translateDataset(ctx, &def.Runs[i].Inputs[j])
			}
		}
	}
}

func (r *Runner) translateDataset(ctx context.Context, spec *config.InputSpec) {
	ds, err := r.svc.ShowDataset(ctx, spec.DatasetID)
	if err != nil || ds.Name == "" {
		slog.Warn("could not translate dataset id", slog.String("dataset", spec.DatasetID))
		return
	}
	spec.DatasetID = ds.Name
}
