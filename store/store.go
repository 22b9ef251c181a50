package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Octogonapus/GalaxyBenchmark/util"
)

// StorageError reports a store directory that cannot be used because something other than a directory occupies
// its path.
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("can not use %s as a store directory: %v", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

var errNotADirectory = errors.New("path exists and is not a directory")

// Store is the on-disk layout for invocation and metrics records. Records are keyed by the invocation id and job
// id respectively and there is exactly one writer.
type Store struct {
	InvocationsDir string
	MetricsDir     string
}

// Open makes sure both directories exist, creating them when missing.
func Open(invocationsDir, metricsDir string) (*Store, error) {
	for _, dir := range []string{invocationsDir, metricsDir} {
		if err := ensureDir(dir); err != nil {
			return nil, err
		}
	}
	return &Store{InvocationsDir: invocationsDir, MetricsDir: metricsDir}, nil
}

func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return &StorageError{Path: dir, Err: errNotADirectory}
		}
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return &StorageError{Path: dir, Err: err}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &StorageError{Path: dir, Err: err}
	}
	slog.Debug("created store directory", slog.String("path", dir))
	return nil
}

func (s *Store) InvocationPath(id string) string {
	return filepath.Join(s.InvocationsDir, id+".json")
}

func (s *Store) MetricsPath(jobID string) string {
	return filepath.Join(s.MetricsDir, jobID+".json")
}

// SaveInvocation writes the invocation response. A json.RawMessage is written verbatim (re-indented only).
func (s *Store) SaveInvocation(id string, v any) (string, error) {
	if id == "" {
		return "", fmt.Errorf("invocation has no id")
	}
	path := s.InvocationPath(id)
	if err := util.WriteJSONAtomic(path, v); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Store) LoadInvocation(id string, v any) error {
	buf, err := os.ReadFile(s.InvocationPath(id))
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, v)
}

// InvocationIDs lists every persisted invocation id in directory order.
func (s *Store) InvocationIDs() ([]string, error) {
	return listKeys(s.InvocationsDir)
}

// SaveMetrics writes the record for jobID, replacing any previous record for the same job.
func (s *Store) SaveMetrics(jobID string, v any) (string, error) {
	if jobID == "" {
		return "", fmt.Errorf("job has no id")
	}
	path := s.MetricsPath(jobID)
	if err := util.WriteJSONAtomic(path, v); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Store) HasMetrics(jobID string) bool {
	_, err := os.Stat(s.MetricsPath(jobID))
	return err == nil
}

func listKeys(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	keys := []string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	return keys, nil
}
