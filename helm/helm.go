// Package helm applies job configuration rules to the Galaxy deployment with helm.
package helm

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/Octogonapus/GalaxyBenchmark/target"
	"github.com/Octogonapus/GalaxyBenchmark/util"
)

// ErrNotFound is returned by Apply when the job configuration file does not exist.
var ErrNotFound = errors.New("job configuration not found")

type DeployerInput struct {
	Target     target.Target
	Binary     string
	Release    string
	Chart      string
	Namespace  string
	Kubeconfig string

	// Where files are copied on a remote target.
	RemoteDir string
}

type Deployer struct {
	input *DeployerInput
}

func NewDeployer(input *DeployerInput) *Deployer {
	if input.Binary == "" {
		input.Binary = "helm"
	}
	if input.RemoteDir == "" {
		input.RemoteDir = "/tmp/abm"
	}
	return &Deployer{input: input}
}

// Apply upgrades the release with the values in configPath, keeping every other value as deployed.
func (d *Deployer) Apply(ctx context.Context, configPath string) error {
	if _, err := os.Stat(configPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", configPath, ErrNotFound)
		}
		return err
	}

	values, err := d.stage(configPath)
	if err != nil {
		return fmt.Errorf("copying %s to the deployment host failed: %w", configPath, err)
	}
	args := []string{"upgrade", d.input.Release, d.input.Chart, "-n", d.input.Namespace, "--reuse-values"}
	if d.input.Kubeconfig != "" {
		kube, err := d.stage(d.input.Kubeconfig)
		if err != nil {
			return fmt.Errorf("copying kubeconfig to the deployment host failed: %w", err)
		}
		args = append(args, "--kubeconfig", kube)
	}
	args = append(args, "-f", values)

	cmd := target.Command(d.input.Binary, args...)
	slog.Debug("applying job configuration", slog.String("command", cmd))
	out, err := d.input.Target.RunCommand(ctx, cmd)
	if err != nil {
		slog.Error("helm upgrade failed", slog.String("rules", configPath), slog.String("output", string(out)), slog.String("error", err.Error()))
		return fmt.Errorf("helm upgrade with %s failed: %w", configPath, err)
	}
	slog.Info("applied job configuration", slog.String("rules", configPath), slog.String("helm", util.LastNonEmptyLine(out)))
	return nil
}

// stage makes a local file readable on the target and returns its path there.
func (d *Deployer) stage(local string) (string, error) {
	if !d.input.Target.Remote() {
		return local, nil
	}
	f, err := os.Open(local)
	if err != nil {
		return "", err
	}
	defer f.Close()
	remote := path.Join(d.input.RemoteDir, filepath.Base(local))
	if err := d.input.Target.CopyFileTo(f, remote); err != nil {
		return "", err
	}
	return remote, nil
}
