package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Octogonapus/GalaxyBenchmark/galaxy"
	"github.com/Octogonapus/GalaxyBenchmark/helm"
	"github.com/Octogonapus/GalaxyBenchmark/profile"
	"github.com/Octogonapus/GalaxyBenchmark/target"
)

// activeContext selects the profile for cloud, or the default server and key from the settings when cloud is empty.
func activeContext(cloud string) (*profile.Context, error) {
	if cloud == "" {
		return &profile.Context{ServerURL: settings.DefaultServer, APIKey: settings.APIKey}, nil
	}
	profiles, err := profile.Load(settings.Profiles)
	if err != nil {
		return nil, err
	}
	return profiles.Activate(cloud)
}

func connect(ctx context.Context, pctx *profile.Context) (galaxy.Service, error) {
	client, err := galaxy.NewClient(&galaxy.ClientInput{ServerURL: pctx.ServerURL, APIKey: pctx.APIKey})
	if err != nil {
		return nil, err
	}
	v, err := client.CheckVersion(ctx, galaxy.MinimumServerVersion)
	if err != nil {
		return nil, fmt.Errorf("checking %s failed: %w", pctx.ServerURL, err)
	}
	slog.Info("connected", slog.String("server", client.ServerURL()), slog.String("version", v.String()))
	return client, nil
}

func newDeployer(pctx *profile.Context) (*helm.Deployer, error) {
	var tgt target.Target = &target.LocalTarget{}
	if pctx.SSH != nil {
		sshTarget, err := target.NewSSHTarget(pctx.SSH.Host, pctx.SSH.Port, pctx.SSH.User, profile.ExpandHome(pctx.SSH.KeyFile))
		if err != nil {
			return nil, err
		}
		tgt = sshTarget
	}
	return helm.NewDeployer(&helm.DeployerInput{
		Target:     tgt,
		Binary:     settings.Helm.Binary,
		Release:    settings.Helm.Release,
		Chart:      settings.Helm.Chart,
		Namespace:  settings.Helm.Namespace,
		Kubeconfig: pctx.Kubeconfig,
	}), nil
}
