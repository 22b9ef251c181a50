// Package profile loads the per-cloud connection profiles and turns one of them into an explicit execution
// context for the rest of the tool.
package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ErrNoProfile is returned by Activate for a cloud that has no profile.
var ErrNoProfile = errors.New("no profile")

// SSHConfig describes a jump host on which helm runs when the cluster is not reachable locally.
type SSHConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	User    string `mapstructure:"user"`
	KeyFile string `mapstructure:"key_file"`
}

type Profile struct {
	URL  string     `mapstructure:"url"`
	Key  string     `mapstructure:"key"`
	Kube string     `mapstructure:"kube"`
	SSH  *SSHConfig `mapstructure:"ssh"`
}

// Context is everything needed to talk to one cloud's server and cluster.
type Context struct {
	Cloud      string
	ServerURL  string
	APIKey     string
	Kubeconfig string
	SSH        *SSHConfig
}

// Profiles maps cloud names to their profile.
type Profiles map[string]*Profile

// Load reads a profile file of the form
//
//	aws:
//	  url: https://galaxy.example.org/galaxy
//	  key: <api key>
//	  kube: ~/.kube/configs/aws
func Load(path string) (Profiles, error) {
	path = ExpandHome(path)
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profiles failed: %w", err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(buf, &raw); err != nil {
		return nil, fmt.Errorf("can't parse profiles %s: %w", path, err)
	}
	profiles := Profiles{}
	for name, v := range raw {
		p := &Profile{}
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			ErrorUnused:      true,
			Result:           p,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(v); err != nil {
			return nil, fmt.Errorf("invalid profile %s: %w", name, err)
		}
		profiles[name] = p
	}
	return profiles, nil
}

func (p Profiles) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Activate returns the context for cloud. The kubeconfig may be empty, callers decide whether they need one.
func (p Profiles) Activate(cloud string) (*Context, error) {
	prof, ok := p[cloud]
	if !ok || prof == nil {
		return nil, fmt.Errorf("%w for %s", ErrNoProfile, cloud)
	}
	if prof.URL == "" {
		return nil, fmt.Errorf("profile %s has no url", cloud)
	}
	ctx := &Context{
		Cloud:     cloud,
		ServerURL: prof.URL,
		APIKey:    prof.Key,
		SSH:       prof.SSH,
	}
	if prof.Kube != "" {
		ctx.Kubeconfig = ExpandHome(prof.Kube)
	}
	return ctx, nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
