// Package observability sets up structured logging and the counters recorded while an experiment runs.
package observability

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// NewLogger returns a text or JSON logger writing to w at the given level.
func NewLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func WithExperiment(logger *slog.Logger, experimentID string) *slog.Logger {
	if logger == nil || experimentID == "" {
		return logger
	}
	return logger.With("experiment_id", experimentID)
}

func WithCloud(logger *slog.Logger, cloud string) *slog.Logger {
	if logger == nil || cloud == "" {
		return logger
	}
	return logger.With("cloud", cloud)
}

func WithJobConf(logger *slog.Logger, jobConf string) *slog.Logger {
	if logger == nil || jobConf == "" {
		return logger
	}
	return logger.With("job_conf", jobConf)
}
