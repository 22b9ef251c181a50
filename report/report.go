// Package report defines the per-job metrics record and renders a directory of them as CSV.
package report

import (
	"strings"

	"github.com/Octogonapus/GalaxyBenchmark/config"
)

// DefaultServer is reported for records written before the server was recorded.
const DefaultServer = config.DefaultServer

// RecognizedMetrics are the job metrics projected into CSV columns, in column order. Any other metric is dropped.
var RecognizedMetrics = []string{
	"galaxy_slots",
	"galaxy_memory_mb",
	"runtime_seconds",
	"cpuacct.usage",
	"memory.limit_in_bytes",
	"memory.max_usage_in_bytes",
	"memory.soft_limit_in_bytes",
}

var Header = []string{
	"Run",
	"Cloud",
	"Job Conf",
	"Workflow",
	"History",
	"Server",
	"Tool",
	"Tool Version",
	"State",
	"Slots",
	"Memory",
	"Runtime (Sec)",
	"CPU",
	"Memory Limit (Bytes)",
	"Memory Max usage (Bytes)",
	"Memory Soft Limit",
}

// The first metric column, after run..state.
const metricsOffset = 9

// JobMetricsRecord is written once per completed job to metrics/{job_id}.json.
type JobMetricsRecord struct {
	Run        string `json:"run"`
	Cloud      string `json:"cloud"`
	JobConf    string `json:"job_conf"`
	WorkflowID string `json:"workflow_id"`
	HistoryID  string `json:"history_id"`

	// Full job detail as returned by the server, including job_metrics.
	Metrics map[string]any `json:"metrics"`

	// Terminal state returned by the job wait.
	Status string `json:"status"`
	Server string `json:"server"`
}

// SplitToolID splits a tool shed id such as toolshed.g2.bx.psu.edu/repos/devteam/bwa/bwa_mem/0.7.17.1 into
// the tool name and version, taken from the last two path segments. Built-in tools have no slashes, in which
// case the whole id is the tool and fallbackVersion is the version.
func SplitToolID(id, fallbackVersion string) (string, string) {
	parts := strings.Split(id, "/")
	if len(parts) < 2 {
		return id, fallbackVersion
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}
