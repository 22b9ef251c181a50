// Package galaxytest provides an in-memory galaxy.Service for tests.
package galaxytest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Octogonapus/GalaxyBenchmark/galaxy"
)

type InvokeCall struct {
	WorkflowID  string
	Inputs      map[string]galaxy.InvocationInput
	HistoryName string
}

// Fake is a galaxy.Service backed by maps. Invocations complete immediately with one step per entry in
// StepJobs (an empty job id models a step without a job). Errors can be injected per operation and id.
type Fake struct {
	mu sync.Mutex

	URL       string
	Workflows []*galaxy.Workflow
	Datasets  []*galaxy.Dataset
	Jobs      map[string]map[string]any

	// Job ids attached to the steps of every new invocation, in step order.
	StepJobs []string

	// Errors returned by the named operation for the given id, e.g. "WaitForJob" -> "j2" -> err.
	Errors map[string]map[string]error

	Invocations []*galaxy.Invocation
	InvokeCalls []InvokeCall
	JobWaits    []string
	JobShows    []string

	// Called at the start of every WaitForJob, outside the lock.
	BeforeJobWait func(id string)
}

func NewFake() *Fake {
	return &Fake{
		URL:    "https://galaxy.test",
		Jobs:   map[string]map[string]any{},
		Errors: map[string]map[string]error{},
	}
}

func (f *Fake) Fail(op, id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Errors[op] == nil {
		f.Errors[op] = map[string]error{}
	}
	f.Errors[op][id] = err
}

func (f *Fake) injected(op, id string) error {
	if byID, ok := f.Errors[op]; ok {
		return byID[id]
	}
	return nil
}

func (f *Fake) ServerURL() string {
	return f.URL
}

func (f *Fake) ShowWorkflow(ctx context.Context, id string) (*galaxy.Workflow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected("ShowWorkflow", id); err != nil {
		return nil, err
	}
	for _, wf := range f.Workflows {
		if wf.ID == id {
			return wf, nil
		}
	}
	return nil, fmt.Errorf("workflow %s: %w", id, galaxy.ErrNotFound)
}

func (f *Fake) ListWorkflows(ctx context.Context, name string, published bool) ([]*galaxy.Workflow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected("ListWorkflows", name); err != nil {
		return nil, err
	}
	out := []*galaxy.Workflow{}
	for _, wf := range f.Workflows {
		if wf.Name == name {
			out = append(out, wf)
		}
	}
	return out, nil
}

func (f *Fake) WorkflowInputs(ctx context.Context, workflowID, label string) ([]string, error) {
	wf, err := f.ShowWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return galaxy.MatchInputs(wf, label), nil
}

func (f *Fake) InvokeWorkflow(ctx context.Context, workflowID string, inputs map[string]galaxy.InvocationInput, historyName string) (*galaxy.Invocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected("InvokeWorkflow", workflowID); err != nil {
		return nil, err
	}
	f.InvokeCalls = append(f.InvokeCalls, InvokeCall{WorkflowID: workflowID, Inputs: inputs, HistoryName: historyName})

	n := len(f.Invocations) + 1
	inv := &galaxy.Invocation{
		ID:         fmt.Sprintf("inv%d", n),
		WorkflowID: workflowID,
		HistoryID:  fmt.Sprintf("hist%d", n),
		State:      galaxy.InvocationStateNew,
	}
	for i, jobID := range f.StepJobs {
		inv.Steps = append(inv.Steps, galaxy.InvocationStep{ID: fmt.Sprintf("%s-s%d", inv.ID, i), OrderIndex: i, JobID: jobID})
	}
	raw, err := json.Marshal(inv)
	if err != nil {
		return nil, err
	}
	inv.Raw = raw
	f.Invocations = append(f.Invocations, inv)

	created := *inv
	created.Steps = nil
	return &created, nil
}

func (f *Fake) ShowDataset(ctx context.Context, id string) (*galaxy.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected("ShowDataset", id); err != nil {
		return nil, err
	}
	for _, ds := range f.Datasets {
		if ds.ID == id {
			return ds, nil
		}
	}
	return nil, fmt.Errorf("dataset %s: %w", id, galaxy.ErrNotFound)
}

func (f *Fake) ListDatasets(ctx context.Context, name string) ([]*galaxy.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected("ListDatasets", name); err != nil {
		return nil, err
	}
	out := []*galaxy.Dataset{}
	for _, ds := range f.Datasets {
		if ds.Name == name {
			out = append(out, ds)
		}
	}
	return out, nil
}

func (f *Fake) ShowInvocation(ctx context.Context, id string) (*galaxy.Invocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected("ShowInvocation", id); err != nil {
		return nil, err
	}
	for _, inv := range f.Invocations {
		if inv.ID == id {
			done := *inv
			done.State = galaxy.InvocationStateScheduled
			return &done, nil
		}
	}
	return nil, fmt.Errorf("invocation %s: %w", id, galaxy.ErrNotFound)
}

func (f *Fake) WaitForInvocation(ctx context.Context, id string, timeout, interval time.Duration) (*galaxy.Invocation, error) {
	f.mu.Lock()
	err := f.injected("WaitForInvocation", id)
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.ShowInvocation(ctx, id)
}

func (f *Fake) WaitForJob(ctx context.Context, id string, timeout, interval time.Duration) (string, error) {
	if f.BeforeJobWait != nil {
		f.BeforeJobWait(id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.JobWaits = append(f.JobWaits, id)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := f.injected("WaitForJob", id); err != nil {
		return "", err
	}
	if job, ok := f.Jobs[id]; ok {
		if state, ok := job["state"].(string); ok {
			return state, nil
		}
	}
	return galaxy.JobStateOK, nil
}

func (f *Fake) ShowJob(ctx context.Context, id string, full bool) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.JobShows = append(f.JobShows, id)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.injected("ShowJob", id); err != nil {
		return nil, err
	}
	job, ok := f.Jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, galaxy.ErrNotFound)
	}
	return job, nil
}

// Job builds a job detail map in the shape the server returns for full=true.
func Job(id, toolID, state string, metrics map[string]string) map[string]any {
	jm := []any{}
	for name, value := range metrics {
		jm = append(jm, map[string]any{"name": name, "raw_value": value, "plugin": "core"})
	}
	return map[string]any{
		"id":          id,
		"tool_id":     toolID,
		"state":       state,
		"job_metrics": jm,
	}
}
