package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("debug", "json", &buf)
	require.NoError(t, err)

	WithJobConf(WithCloud(WithExperiment(logger, "exp-1"), "aws"), "4x8").Debug("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "exp-1", line["experiment_id"])
	assert.Equal(t, "aws", line["cloud"])
	assert.Equal(t, "4x8", line["job_conf"])
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("warn", "text", &buf)
	require.NoError(t, err)
	logger.Info("dropped")
	assert.Empty(t, buf.String())
	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNewLoggerRejectsBadInput(t *testing.T) {
	_, err := NewLogger("loud", "text", &bytes.Buffer{})
	assert.Error(t, err)
	_, err = NewLogger("info", "xml", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestWithHelpersIgnoreEmpty(t *testing.T) {
	assert.Nil(t, WithExperiment(nil, "x"))
	logger, err := NewLogger("info", "text", &bytes.Buffer{})
	require.NoError(t, err)
	assert.Same(t, logger, WithCloud(logger, ""))
}

func TestMetricsCountAndWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.IncInvocation("aws", "4x8")
	m.IncInvocation("aws", "4x8")
	m.IncJob("ok")
	m.IncRecord()
	m.IncSkipped("no_profile")
	m.IncFailure("validation")

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			values[f.GetName()] += metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 2.0, values["abm_invocations_total"])
	assert.Equal(t, 1.0, values["abm_jobs_total"])
	assert.Equal(t, 1.0, values["abm_metrics_records_total"])

	path := filepath.Join(t.TempDir(), "abm.prom")
	require.NoError(t, m.WriteTextfile(path))
	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(buf), `abm_invocations_total{cloud="aws",job_conf="4x8"} 2`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.IncInvocation("a", "b")
	m.IncJob("ok")
	m.IncRecord()
	m.IncSkipped("x")
	m.IncFailure("x")
	assert.NoError(t, m.WriteTextfile("/nonexistent/path"))
}
