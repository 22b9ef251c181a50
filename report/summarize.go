package report

import (
	"context"
	_ "embed"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/alitto/pond"
	"github.com/mitchellh/mapstructure"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed record_schema.json
var recordSchemaJSON []byte

var recordSchema *gojsonschema.Schema

func init() {
	var err error
	recordSchema, err = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(recordSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("invalid embedded record schema: %v", err))
	}
}

// MalformedRecordError is returned when a metrics file is not a valid JobMetricsRecord.
type MalformedRecordError struct {
	Path   string
	Errors []string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed metrics record %s: %s", e.Path, strings.Join(e.Errors, "; "))
}

type jobMetric struct {
	Name     string `mapstructure:"name"`
	RawValue string `mapstructure:"raw_value"`
}

type summaryRecord struct {
	Run        string `mapstructure:"run"`
	Cloud      string `mapstructure:"cloud"`
	JobConf    string `mapstructure:"job_conf"`
	WorkflowID string `mapstructure:"workflow_id"`
	HistoryID  string `mapstructure:"history_id"`
	Server     string `mapstructure:"server"`
	Metrics    struct {
		ToolID      string      `mapstructure:"tool_id"`
		ToolVersion string      `mapstructure:"tool_version"`
		State       string      `mapstructure:"state"`
		JobMetrics  []jobMetric `mapstructure:"job_metrics"`
	} `mapstructure:"metrics"`
}

// ReadRow parses one metrics file into a CSV row.
func ReadRow(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &MalformedRecordError{Path: path, Errors: []string{err.Error()}}
	}

	result, err := recordSchema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validating %s failed: %w", path, err)
	}
	if !result.Valid() {
		errs := []string{}
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return nil, &MalformedRecordError{Path: path, Errors: errs}
	}

	rec := &summaryRecord{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           rec,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(doc); err != nil {
		return nil, &MalformedRecordError{Path: path, Errors: []string{err.Error()}}
	}
	return rec.row(), nil
}

func (r *summaryRecord) row() []string {
	row := make([]string, len(Header))
	row[0] = r.Run
	row[1] = r.Cloud
	row[2] = r.JobConf
	row[3] = r.WorkflowID
	row[4] = r.HistoryID
	row[5] = r.Server
	if row[5] == "" {
		row[5] = DefaultServer
	}
	row[6], row[7] = SplitToolID(r.Metrics.ToolID, r.Metrics.ToolVersion)
	row[8] = r.Metrics.State
	for _, m := range r.Metrics.JobMetrics {
		if i := slices.Index(RecognizedMetrics, m.Name); i >= 0 {
			row[metricsOffset+i] = m.RawValue
		}
	}
	return row
}

// Summarize writes the header and one row per metrics record in dir to w. Records are listed in directory
// order. Any malformed record fails the whole summary and nothing is written.
func Summarize(ctx context.Context, dir string, w io.Writer) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("listing metrics failed: %w", err)
	}
	paths := []string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	slog.Debug("summarizing metrics", slog.String("dir", dir), slog.Int("records", len(paths)))

	rows := make([][]string, len(paths))
	if len(paths) > 0 {
		workers := min(runtime.NumCPU(), len(paths))
		pool := pond.New(workers, len(paths), pond.MinWorkers(workers))
		defer pool.StopAndWait()
		group, _ := pool.GroupContext(ctx)
		for i, path := range paths {
			group.Submit(func() error {
				row, err := ReadRow(path)
				if err != nil {
					return err
				}
				rows[i] = row
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return err
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing summary failed: %w", err)
	}
	return nil
}
