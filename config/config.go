// Package config holds the typed benchmark and workflow definitions and loads them from YAML files.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned (wrapped with the path) when a definition file does not exist.
var ErrConfigNotFound = errors.New("configuration not found")

// InputSpec binds a dataset to a workflow input slot. It is used for both reference data and run inputs.
type InputSpec struct {
	Name      string `mapstructure:"name" yaml:"name" validate:"required"`
	DatasetID string `mapstructure:"dataset_id" yaml:"dataset_id" validate:"required"`
}

type RunSpec struct {
	HistoryName string      `mapstructure:"history_name" yaml:"history_name,omitempty"`
	Inputs      []InputSpec `mapstructure:"inputs" yaml:"inputs" validate:"dive"`
}

type WorkflowDefinition struct {
	WorkflowID      string      `mapstructure:"workflow_id" yaml:"workflow_id" validate:"required"`
	HistoryBaseName string      `mapstructure:"history_base_name" yaml:"history_base_name,omitempty"`
	ReferenceData   []InputSpec `mapstructure:"reference_data" yaml:"reference_data,omitempty" validate:"dive"`
	Runs            []RunSpec   `mapstructure:"runs" yaml:"runs" validate:"dive"`
}

type BenchmarkDefinition struct {
	Clouds         []string `mapstructure:"cloud" yaml:"cloud" validate:"required,min=1,dive,required"`
	Runs           int      `mapstructure:"runs" yaml:"runs" validate:"gte=0"`
	JobConfigs     []string `mapstructure:"job_configs" yaml:"job_configs" validate:"required,min=1,dive,required"`
	BenchmarkConfs []string `mapstructure:"benchmark_confs" yaml:"benchmark_confs" validate:"required,min=1,dive,required"`
}

// JobConfigPath maps a job configuration name to its rules file.
func JobConfigPath(rulesDir, name string) string {
	return filepath.Join(rulesDir, name+".yml")
}

func LoadBenchmarkDefinition(path string) (*BenchmarkDefinition, error) {
	var raw map[string]any
	if err := readYAML(path, &raw); err != nil {
		return nil, err
	}
	def := &BenchmarkDefinition{}
	if err := decode(raw, def); err != nil {
		return nil, fmt.Errorf("can't convert %s to a benchmark definition: %w", path, err)
	}
	if err := validator.New().Struct(def); err != nil {
		return nil, fmt.Errorf("invalid benchmark definition %s: %w", path, err)
	}
	return def, nil
}

func LoadWorkflowDefinitions(path string) ([]*WorkflowDefinition, error) {
	var raw []any
	if err := readYAML(path, &raw); err != nil {
		return nil, err
	}
	defs := []*WorkflowDefinition{}
	if err := decode(raw, &defs); err != nil {
		return nil, fmt.Errorf("can't convert %s to workflow definitions: %w", path, err)
	}
	validate := validator.New()
	for i, def := range defs {
		if def == nil {
			return nil, fmt.Errorf("invalid workflow definition %s: entry %d is empty", path, i)
		}
		if err := validate.Struct(def); err != nil {
			return nil, fmt.Errorf("invalid workflow definition %s (entry %d): %w", path, i, err)
		}
	}
	return defs, nil
}

// WriteWorkflowDefinitions encodes defs in the same YAML layout LoadWorkflowDefinitions reads.
func WriteWorkflowDefinitions(w io.Writer, defs []*WorkflowDefinition) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(defs); err != nil {
		return err
	}
	return enc.Close()
}

func readYAML(path string, out any) error {
	buf, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	} else if err != nil {
		return err
	}
	if err := yaml.Unmarshal(buf, out); err != nil {
		return fmt.Errorf("parsing %s failed: %w", path, err)
	}
	return nil
}

func decode(in any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}
