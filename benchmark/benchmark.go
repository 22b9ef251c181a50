// Package benchmark turns workflow definitions into remote invocations, waits for their jobs and records the
// metrics of every job.
package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Octogonapus/GalaxyBenchmark/config"
	"github.com/Octogonapus/GalaxyBenchmark/galaxy"
	"github.com/Octogonapus/GalaxyBenchmark/store"
)

const DefaultInputSource = "hda"

// Labels identify the experiment unit that produced an invocation. They are empty for ad hoc runs.
type Labels struct {
	Run     string
	Cloud   string
	JobConf string
}

func (l Labels) IsZero() bool {
	return l == Labels{}
}

// Prefix is prepended to history names so that histories of different units stay distinguishable.
func (l Labels) Prefix() string {
	if l.IsZero() {
		return ""
	}
	return strings.Join([]string{l.Run, l.Cloud, l.JobConf}, " ")
}

// ValidationError reports a reference in a workflow definition that does not resolve on the server. It aborts
// only the run or definition it belongs to.
type ValidationError struct {
	Kind   string
	Ref    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Kind, e.Ref, e.Reason)
}

// HistoryName computes the name of the history an invocation writes into. ordinal is the 1-based position of
// run within the definition.
func HistoryName(def *config.WorkflowDefinition, workflowID string, run config.RunSpec, ordinal int, labels Labels) string {
	base := def.HistoryBaseName
	if base == "" {
		base = workflowID
	}
	suffix := run.HistoryName
	if suffix == "" {
		suffix = "run " + strconv.Itoa(ordinal)
	}
	name := base + " " + suffix
	if prefix := labels.Prefix(); prefix != "" {
		name = prefix + " " + name
	}
	return name
}

type BuilderInput struct {
	Service galaxy.Service
	Store   *store.Store

	// The src recorded for every bound dataset. DefaultInputSource when empty.
	InputSource string
}

// Builder binds a run's inputs to the workflow's input slots and triggers the invocation.
type Builder struct {
	svc         galaxy.Service
	store       *store.Store
	resolver    *Resolver
	inputSource string
}

func NewBuilder(input *BuilderInput) *Builder {
	src := input.InputSource
	if src == "" {
		src = DefaultInputSource
	}
	return &Builder{
		svc:         input.Service,
		store:       input.Store,
		resolver:    NewResolver(input.Service),
		inputSource: src,
	}
}

// BuildAndTrigger invokes def's workflow for run and persists the invocation before returning it. Nothing is
// invoked unless the workflow, every input slot and every dataset resolve.
func (b *Builder) BuildAndTrigger(ctx context.Context, def *config.WorkflowDefinition, run config.RunSpec, ordinal int, labels Labels) (*galaxy.Invocation, error) {
	res := b.resolver.ResolveWorkflow(ctx, def.WorkflowID)
	if !res.Found {
		return nil, &ValidationError{Kind: "workflow", Ref: def.WorkflowID, Reason: "no workflow with this id or name"}
	}
	wfID := res.ID

	inputs := map[string]galaxy.InvocationInput{}
	specs := append(append([]config.InputSpec{}, def.ReferenceData...), run.Inputs...)
	for _, spec := range specs {
		slot, dsID, err := b.bind(ctx, wfID, spec)
		if err != nil {
			return nil, err
		}
		inputs[slot] = galaxy.InvocationInput{ID: dsID, Src: b.inputSource}
	}

	historyName := HistoryName(def, wfID, run, ordinal, labels)
	slog.Info("invoking workflow", slog.String("workflow", wfID), slog.String("history", historyName), slog.Int("inputs", len(inputs)))
	inv, err := b.svc.InvokeWorkflow(ctx, wfID, inputs, historyName)
	if err != nil {
		return nil, fmt.Errorf("invoking workflow %s failed: %w", wfID, err)
	}

	var record any = inv
	if len(inv.Raw) > 0 {
		record = json.RawMessage(inv.Raw)
	}
	path, err := b.store.SaveInvocation(inv.ID, record)
	if err != nil {
		slog.Error("invocation was created but could not be saved", slog.String("invocation", inv.ID), slog.String("error", err.Error()))
		return inv, fmt.Errorf("saving invocation %s failed: %w", inv.ID, err)
	}
	slog.Info("wrote invocation", slog.String("invocation", inv.ID), slog.String("path", path))
	return inv, nil
}

// bind returns the slot a spec fills and the dataset bound to it. A label matching several slots binds the first.
func (b *Builder) bind(ctx context.Context, workflowID string, spec config.InputSpec) (string, string, error) {
	slots, err := b.svc.WorkflowInputs(ctx, workflowID, spec.Name)
	if err != nil {
		return "", "", fmt.Errorf("looking up input %q of workflow %s failed: %w", spec.Name, workflowID, err)
	}
	if len(slots) == 0 {
		return "", "", &ValidationError{Kind: "input", Ref: spec.Name, Reason: "workflow " + workflowID + " has no input with this label"}
	}
	ds := b.resolver.ResolveDataset(ctx, spec.DatasetID)
	if !ds.Found {
		return "", "", &ValidationError{Kind: "dataset", Ref: spec.DatasetID, Reason: "no dataset with this id or name"}
	}
	slog.Debug("bound input", slog.String("input", spec.Name), slog.String("slot", slots[0]), slog.String("dataset", ds.ID))
	return slots[0], ds.ID, nil
}
