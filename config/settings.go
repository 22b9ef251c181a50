package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultServer       = "https://iu1.usegvl.org/galaxy"
	DefaultPollInterval = 10 * time.Second
	DefaultWaitTimeout  = 24 * time.Hour
)

type HelmSettings struct {
	Release   string `mapstructure:"release"`
	Chart     string `mapstructure:"chart"`
	Namespace string `mapstructure:"namespace"`
	Binary    string `mapstructure:"binary"`
}

type ArchiveSettings struct {
	Bucket      string `mapstructure:"bucket"`
	Prefix      string `mapstructure:"prefix"`
	Region      string `mapstructure:"region"`
	Concurrency int    `mapstructure:"concurrency"`
}

type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Settings are the tool-wide knobs. They come from an optional config file and ABM_* environment variables.
type Settings struct {
	Profiles        string          `mapstructure:"profiles"`
	InvocationsDir  string          `mapstructure:"invocations_dir"`
	MetricsDir      string          `mapstructure:"metrics_dir"`
	RulesDir        string          `mapstructure:"rules_dir"`
	DefaultServer   string          `mapstructure:"default_server"`
	APIKey          string          `mapstructure:"api_key"`
	InputSource     string          `mapstructure:"input_source"`
	PollInterval    time.Duration   `mapstructure:"poll_interval"`
	WaitTimeout     time.Duration   `mapstructure:"wait_timeout"`
	MetricsTextfile string          `mapstructure:"metrics_textfile"`
	Helm            HelmSettings    `mapstructure:"helm"`
	Archive         ArchiveSettings `mapstructure:"archive"`
	Log             LogSettings     `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	v.SetDefault("profiles", filepath.Join(home, ".abm", "profile.yml"))
	v.SetDefault("invocations_dir", "invocations")
	v.SetDefault("metrics_dir", "metrics")
	v.SetDefault("rules_dir", "rules")
	v.SetDefault("default_server", DefaultServer)
	v.SetDefault("api_key", "")
	v.SetDefault("input_source", "hda")
	v.SetDefault("poll_interval", DefaultPollInterval)
	v.SetDefault("wait_timeout", DefaultWaitTimeout)
	v.SetDefault("metrics_textfile", "")
	v.SetDefault("helm.release", "galaxy")
	v.SetDefault("helm.chart", "anvil/galaxy")
	v.SetDefault("helm.namespace", "galaxy")
	v.SetDefault("helm.binary", "helm")
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.prefix", "abm")
	v.SetDefault("archive.region", "")
	v.SetDefault("archive.concurrency", 8)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadSettings reads path when it is non-empty; otherwise an abm.yaml in the working directory is used if present.
func LoadSettings(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("ABM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("abm")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading settings failed: %w", err)
		}
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("decoding settings failed: %w", err)
	}
	if s.PollInterval <= 0 {
		return nil, fmt.Errorf("poll_interval must be positive, got %s", s.PollInterval)
	}
	if s.WaitTimeout < s.PollInterval {
		return nil, fmt.Errorf("wait_timeout (%s) must not be shorter than poll_interval (%s)", s.WaitTimeout, s.PollInterval)
	}
	return s, nil
}
