package benchmark

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Octogonapus/GalaxyBenchmark/config"
	"github.com/Octogonapus/GalaxyBenchmark/galaxy"
	"github.com/Octogonapus/GalaxyBenchmark/galaxy/galaxytest"
	"github.com/Octogonapus/GalaxyBenchmark/store"
)

func newFake() *galaxytest.Fake {
	fake := galaxytest.NewFake()
	fake.Workflows = []*galaxy.Workflow{{
		ID:   "wf1",
		Name: "dna",
		Inputs: map[string]galaxy.WorkflowInput{
			"0": {Label: "Reference genome"},
			"1": {Label: "Forward"},
			"2": {Label: "Reverse"},
		},
	}}
	fake.Datasets = []*galaxy.Dataset{
		{ID: "d1", Name: "hg38.fa"},
		{ID: "d2", Name: "SRR1_1.fastq"},
		{ID: "d3", Name: "SRR1_2.fastq"},
		{ID: "d4", Name: "hg19.fa"},
	}
	return fake
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "invocations"), filepath.Join(dir, "metrics"))
	require.NoError(t, err)
	return st
}

func definition() *config.WorkflowDefinition {
	return &config.WorkflowDefinition{
		WorkflowID:      "dna",
		HistoryBaseName: "exp1",
		ReferenceData:   []config.InputSpec{{Name: "Reference genome", DatasetID: "hg38.fa"}},
		Runs: []config.RunSpec{{
			Inputs: []config.InputSpec{
				{Name: "Forward", DatasetID: "SRR1_1.fastq"},
				{Name: "Reverse", DatasetID: "d3"},
			},
		}},
	}
}

func TestHistoryName(t *testing.T) {
	def := definition()
	assert.Equal(t, "exp1 run 1", HistoryName(def, "wf1", def.Runs[0], 1, Labels{}))
	assert.Equal(t, "exp1 paired", HistoryName(def, "wf1", config.RunSpec{HistoryName: "paired"}, 3, Labels{}))

	def.HistoryBaseName = ""
	assert.Equal(t, "wf1 run 2", HistoryName(def, "wf1", config.RunSpec{}, 2, Labels{}))
	assert.Equal(t, "0 aws 4x8 wf1 run 2", HistoryName(def, "wf1", config.RunSpec{}, 2, Labels{Run: "0", Cloud: "aws", JobConf: "4x8"}))
}

func TestBuildAndTrigger(t *testing.T) {
	fake := newFake()
	st := newStore(t)
	b := NewBuilder(&BuilderInput{Service: fake, Store: st})

	inv, err := b.BuildAndTrigger(context.Background(), definition(), definition().Runs[0], 1, Labels{})
	require.NoError(t, err)

	require.Len(t, fake.InvokeCalls, 1)
	call := fake.InvokeCalls[0]
	assert.Equal(t, "wf1", call.WorkflowID)
	assert.Equal(t, "exp1 run 1", call.HistoryName)
	assert.Equal(t, map[string]galaxy.InvocationInput{
		"0": {ID: "d1", Src: "hda"},
		"1": {ID: "d2", Src: "hda"},
		"2": {ID: "d3", Src: "hda"},
	}, call.Inputs)

	var saved map[string]any
	require.NoError(t, st.LoadInvocation(inv.ID, &saved))
	assert.Equal(t, inv.ID, saved["id"])
	assert.Equal(t, "wf1", saved["workflow_id"])
}

func TestBuildAndTriggerRunInputShadowsReferenceData(t *testing.T) {
	fake := newFake()
	b := NewBuilder(&BuilderInput{Service: fake, Store: newStore(t), InputSource: "ld"})
	def := definition()
	run := config.RunSpec{Inputs: []config.InputSpec{{Name: "Reference genome", DatasetID: "hg19.fa"}}}

	_, err := b.BuildAndTrigger(context.Background(), def, run, 1, Labels{})
	require.NoError(t, err)
	assert.Equal(t, map[string]galaxy.InvocationInput{"0": {ID: "d4", Src: "ld"}}, fake.InvokeCalls[0].Inputs)
}

func TestBuildAndTriggerInputMapIsPerRun(t *testing.T) {
	fake := newFake()
	b := NewBuilder(&BuilderInput{Service: fake, Store: newStore(t)})
	def := definition()
	def.ReferenceData = nil

	_, err := b.BuildAndTrigger(context.Background(), def, config.RunSpec{Inputs: []config.InputSpec{{Name: "Forward", DatasetID: "d2"}}}, 1, Labels{})
	require.NoError(t, err)
	_, err = b.BuildAndTrigger(context.Background(), def, config.RunSpec{Inputs: []config.InputSpec{{Name: "Reverse", DatasetID: "d3"}}}, 2, Labels{})
	require.NoError(t, err)

	require.Len(t, fake.InvokeCalls, 2)
	assert.Equal(t, map[string]galaxy.InvocationInput{"2": {ID: "d3", Src: "hda"}}, fake.InvokeCalls[1].Inputs)
}

func TestBuildAndTriggerUnresolvedWorkflow(t *testing.T) {
	fake := newFake()
	b := NewBuilder(&BuilderInput{Service: fake, Store: newStore(t)})
	def := definition()
	def.WorkflowID = "rna"

	_, err := b.BuildAndTrigger(context.Background(), def, def.Runs[0], 1, Labels{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "workflow", verr.Kind)
	assert.Equal(t, "rna", verr.Ref)
	assert.Empty(t, fake.InvokeCalls)
}

func TestBuildAndTriggerUnresolvedDataset(t *testing.T) {
	fake := newFake()
	st := newStore(t)
	b := NewBuilder(&BuilderInput{Service: fake, Store: st})
	def := definition()
	def.Runs[0].Inputs[1].DatasetID = "SRR9_2.fastq"

	_, err := b.BuildAndTrigger(context.Background(), def, def.Runs[0], 1, Labels{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "dataset", verr.Kind)
	assert.Equal(t, "SRR9_2.fastq", verr.Ref)
	assert.Empty(t, fake.InvokeCalls)

	ids, err := st.InvocationIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestBuildAndTriggerUnknownInputLabel(t *testing.T) {
	fake := newFake()
	b := NewBuilder(&BuilderInput{Service: fake, Store: newStore(t)})
	def := definition()
	def.Runs[0].Inputs[0].Name = "Forward reads"

	_, err := b.BuildAndTrigger(context.Background(), def, def.Runs[0], 1, Labels{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "input", verr.Kind)
	assert.Equal(t, "Forward reads", verr.Ref)
	assert.Empty(t, fake.InvokeCalls)
}

func TestBuildAndTriggerInvokeFault(t *testing.T) {
	fake := newFake()
	fake.Fail("InvokeWorkflow", "wf1", errors.New("bad gateway"))
	b := NewBuilder(&BuilderInput{Service: fake, Store: newStore(t)})

	_, err := b.BuildAndTrigger(context.Background(), definition(), definition().Runs[0], 1, Labels{})
	require.Error(t, err)
	var verr *ValidationError
	assert.False(t, errors.As(err, &verr))
}

func TestBuildAndTriggerStorageFailureKeepsInvocation(t *testing.T) {
	fake := newFake()
	st := newStore(t)
	require.NoError(t, os.RemoveAll(st.InvocationsDir))
	require.NoError(t, os.WriteFile(st.InvocationsDir, []byte("occupied"), 0o644))
	b := NewBuilder(&BuilderInput{Service: fake, Store: st})

	inv, err := b.BuildAndTrigger(context.Background(), definition(), definition().Runs[0], 1, Labels{})
	require.Error(t, err)
	require.NotNil(t, inv)
	assert.Equal(t, "inv1", inv.ID)
}

func TestWaiterSkipsStepsWithoutJobs(t *testing.T) {
	fake := newFake()
	fake.StepJobs = []string{"", "j1", ""}
	inv, err := fake.InvokeWorkflow(context.Background(), "wf1", nil, "h")
	require.NoError(t, err)

	completed, err := NewWaiter(fake, time.Second, time.Millisecond).Wait(context.Background(), inv)
	require.NoError(t, err)
	require.Len(t, completed.Jobs, 1)
	assert.Equal(t, "j1", completed.Jobs[0].JobID)
	assert.Equal(t, []string{"j1"}, fake.JobWaits)
}

func TestWaiterContinuesAfterJobFailure(t *testing.T) {
	fake := newFake()
	fake.StepJobs = []string{"j1", "j2", "j3"}
	fake.Jobs["j3"] = galaxytest.Job("j3", "cat1", galaxy.JobStateError, nil)
	fake.Fail("WaitForJob", "j1", &galaxy.TimeoutError{Kind: "job", ID: "j1", Timeout: time.Second, LastState: "running"})
	fake.Fail("WaitForJob", "j2", &galaxy.APIError{Method: "GET", Path: "/api/jobs/j2", StatusCode: 502})
	inv, err := fake.InvokeWorkflow(context.Background(), "wf1", nil, "h")
	require.NoError(t, err)

	completed, err := NewWaiter(fake, 0, 0).Wait(context.Background(), inv)
	require.NoError(t, err)
	require.Len(t, completed.Jobs, 3)

	assert.True(t, completed.Jobs[0].TimedOut())
	assert.Error(t, completed.Jobs[1].Err)
	assert.False(t, completed.Jobs[1].TimedOut())
	assert.NoError(t, completed.Jobs[2].Err)
	assert.Equal(t, galaxy.JobStateError, completed.Jobs[2].State)
	assert.Equal(t, []string{"j1", "j2", "j3"}, fake.JobWaits)
}

func TestWaiterInvocationFault(t *testing.T) {
	fake := newFake()
	inv, err := fake.InvokeWorkflow(context.Background(), "wf1", nil, "h")
	require.NoError(t, err)
	fake.Fail("WaitForInvocation", inv.ID, &galaxy.TimeoutError{Kind: "invocation", ID: inv.ID})

	_, err = NewWaiter(fake, 0, 0).Wait(context.Background(), inv)
	var te *galaxy.TimeoutError
	assert.ErrorAs(t, err, &te)
}

func TestCollectIsIdempotent(t *testing.T) {
	fake := newFake()
	fake.Jobs["j1"] = galaxytest.Job("j1", "toolshed.g2.bx.psu.edu/repos/devteam/bwa/bwa_mem/0.7.17.1", "ok", map[string]string{"runtime_seconds": "42"})
	st := newStore(t)
	c := NewCollector(fake, st)
	ref := JobRef{JobID: "j1", WorkflowID: "wf1", HistoryID: "h1", Status: "ok", Labels: Labels{Run: "0", Cloud: "aws", JobConf: "4x8"}}

	rec, err := c.Collect(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "https://galaxy.test", rec.Server)
	first, err := os.ReadFile(st.MetricsPath("j1"))
	require.NoError(t, err)

	_, err = c.Collect(context.Background(), ref)
	require.NoError(t, err)
	second, err := os.ReadFile(st.MetricsPath("j1"))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	entries, err := os.ReadDir(st.MetricsDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	var saved map[string]any
	require.NoError(t, json.Unmarshal(first, &saved))
	assert.Equal(t, "0", saved["run"])
	assert.Equal(t, "aws", saved["cloud"])
	assert.Equal(t, "4x8", saved["job_conf"])
	assert.Equal(t, "ok", saved["status"])
	assert.Equal(t, "j1", saved["metrics"].(map[string]any)["id"])
}

func TestCollectFault(t *testing.T) {
	fake := newFake()
	st := newStore(t)
	_, err := NewCollector(fake, st).Collect(context.Background(), JobRef{JobID: "ghost"})
	assert.ErrorIs(t, err, galaxy.ErrNotFound)
	assert.False(t, st.HasMetrics("ghost"))
}
