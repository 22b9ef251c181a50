package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts what happened during an experiment. A nil *Metrics records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	invocations *prometheus.CounterVec
	jobs        *prometheus.CounterVec
	records     prometheus.Counter
	skipped     *prometheus.CounterVec
	failures    *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "abm_invocations_total",
			Help: "Workflow invocations triggered.",
		}, []string{"cloud", "job_conf"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "abm_jobs_total",
			Help: "Jobs waited on, by terminal state.",
		}, []string{"state"}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "abm_metrics_records_total",
			Help: "Job metrics records written.",
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "abm_units_skipped_total",
			Help: "Experiment units skipped, by reason.",
		}, []string{"reason"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "abm_failures_total",
			Help: "Failures by type.",
		}, []string{"type"}),
	}
	m.registry.MustRegister(m.invocations, m.jobs, m.records, m.skipped, m.failures)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) IncInvocation(cloud, jobConf string) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(cloud, jobConf).Inc()
}

// IncJob counts a job wait outcome. state is the terminal state, or "timeout" / "fault".
func (m *Metrics) IncJob(state string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(state).Inc()
}

func (m *Metrics) IncRecord() {
	if m == nil {
		return
	}
	m.records.Inc()
}

func (m *Metrics) IncSkipped(reason string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncFailure(kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}

// WriteTextfile writes the current counters in the text exposition format, for node_exporter's textfile
// collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
