package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadBenchmarkDefinition(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bench.yml", `
cloud:
  - aws
  - gcp
runs: 3
job_configs: [4x8, 8x16]
benchmark_confs:
  - workflows/dna.yml
`)
	def, err := LoadBenchmarkDefinition(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"aws", "gcp"}, def.Clouds)
	assert.Equal(t, 3, def.Runs)
	assert.Equal(t, []string{"4x8", "8x16"}, def.JobConfigs)
	assert.Equal(t, []string{"workflows/dna.yml"}, def.BenchmarkConfs)
}

func TestLoadBenchmarkDefinitionMissing(t *testing.T) {
	_, err := LoadBenchmarkDefinition(filepath.Join(t.TempDir(), "nope.yml"))
	require.ErrorIs(t, err, ErrConfigNotFound)
	assert.Contains(t, err.Error(), "nope.yml")
}

func TestLoadBenchmarkDefinitionInvalid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bench.yml", "runs: 2\njob_configs: [a]\nbenchmark_confs: [w.yml]\n")
	_, err := LoadBenchmarkDefinition(path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConfigNotFound)
	assert.Contains(t, err.Error(), "Clouds")
}

func TestLoadWorkflowDefinitions(t *testing.T) {
	path := writeFile(t, t.TempDir(), "wf.yml", `
- workflow_id: dna-named
  history_base_name: exp1
  reference_data:
    - name: Reference genome
      dataset_id: hg38.fa
  runs:
    - history_name: paired
      inputs:
        - name: Forward
          dataset_id: SRR1_1.fastq
        - name: Reverse
          dataset_id: 12345
    - inputs:
        - name: Forward
          dataset_id: SRR2_1.fastq
`)
	defs, err := LoadWorkflowDefinitions(path)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	def := defs[0]
	assert.Equal(t, "dna-named", def.WorkflowID)
	assert.Equal(t, "exp1", def.HistoryBaseName)
	assert.Equal(t, []InputSpec{{Name: "Reference genome", DatasetID: "hg38.fa"}}, def.ReferenceData)
	require.Len(t, def.Runs, 2)
	assert.Equal(t, "paired", def.Runs[0].HistoryName)
	assert.Equal(t, "12345", def.Runs[0].Inputs[1].DatasetID)
	assert.Equal(t, "", def.Runs[1].HistoryName)
}

func TestLoadWorkflowDefinitionsRequiresWorkflowID(t *testing.T) {
	path := writeFile(t, t.TempDir(), "wf.yml", "- runs: []\n")
	_, err := LoadWorkflowDefinitions(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WorkflowID")
}

func TestLoadWorkflowDefinitionsRequiresInputFields(t *testing.T) {
	path := writeFile(t, t.TempDir(), "wf.yml", `
- workflow_id: wf
  runs:
    - inputs:
        - name: Forward
`)
	_, err := LoadWorkflowDefinitions(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DatasetID")
}

func TestWriteWorkflowDefinitionsRoundTrip(t *testing.T) {
	defs := []*WorkflowDefinition{{
		WorkflowID: "wf",
		Runs:       []RunSpec{{Inputs: []InputSpec{{Name: "in", DatasetID: "ds"}}}},
	}}
	var buf bytes.Buffer
	require.NoError(t, WriteWorkflowDefinitions(&buf, defs))
	assert.NotContains(t, buf.String(), "history_base_name")

	path := writeFile(t, t.TempDir(), "wf.yml", buf.String())
	back, err := LoadWorkflowDefinitions(path)
	require.NoError(t, err)
	assert.Equal(t, defs, back)
}

func TestJobConfigPath(t *testing.T) {
	assert.Equal(t, filepath.Join("rules", "4x8.yml"), JobConfigPath("rules", "4x8"))
}

func TestLoadSettingsDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	s, err := LoadSettings("")
	require.NoError(t, err)
	assert.Equal(t, "invocations", s.InvocationsDir)
	assert.Equal(t, "metrics", s.MetricsDir)
	assert.Equal(t, "rules", s.RulesDir)
	assert.Equal(t, DefaultServer, s.DefaultServer)
	assert.Equal(t, 10*time.Second, s.PollInterval)
	assert.Equal(t, 24*time.Hour, s.WaitTimeout)
	assert.Equal(t, "galaxy", s.Helm.Release)
}

func TestLoadSettingsFileAndEnv(t *testing.T) {
	path := writeFile(t, t.TempDir(), "abm.yaml", `
metrics_dir: out/metrics
poll_interval: 2s
helm:
  namespace: gxy
`)
	t.Setenv("ABM_RULES_DIR", "/etc/rules")
	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "out/metrics", s.MetricsDir)
	assert.Equal(t, 2*time.Second, s.PollInterval)
	assert.Equal(t, "gxy", s.Helm.Namespace)
	assert.Equal(t, "/etc/rules", s.RulesDir)
}

func TestLoadSettingsRejectsBadIntervals(t *testing.T) {
	path := writeFile(t, t.TempDir(), "abm.yaml", "poll_interval: 1m\nwait_timeout: 1s\n")
	_, err := LoadSettings(path)
	assert.Error(t, err)
}
