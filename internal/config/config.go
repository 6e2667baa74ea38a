// Package config loads graft.yaml, the optional per-project configuration.
//
// GRAFT_* environment variables override the file (dots become underscores,
// so GRAFT_BACKUPS_MAX_AGE_DAYS overrides backups.max_age_days). Built-in
// defaults fill in whatever neither sets.
package config

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"
	"github.com/jakoblorz/go-graft/internal/project"
	"github.com/spf13/viper"
)

const (
	DefaultMaxAgeDays = 7
	DefaultLogLevel   = "info"
)

type Config struct {
	Host    HostConfig    `mapstructure:"host"`
	Anchors []Anchor      `mapstructure:"anchors"`
	Backups BackupsConfig `mapstructure:"backups"`
	Scripts ScriptsConfig `mapstructure:"scripts"`
	Log     LogConfig     `mapstructure:"log"`
}

type HostConfig struct {
	// Version is the host application's version, checked against module host constraints
	Version string `mapstructure:"version"`
}

// Anchor is an expected (file, anchor) pair the doctor verifies.
type Anchor struct {
	File   string `mapstructure:"file"`
	Anchor string `mapstructure:"anchor"`
}

type BackupsConfig struct {
	MaxAgeDays int `mapstructure:"max_age_days"`
}

type ScriptsConfig struct {
	// Enabled allows manifests' postInstall/preRemove scripts to run
	Enabled bool `mapstructure:"enabled"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads graft.yaml from the project root. A project without the file
// gets the defaults.
func Load(p *project.Project) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("host.version", "")
	v.SetDefault("backups.max_age_days", DefaultMaxAgeDays)
	v.SetDefault("scripts.enabled", false)
	v.SetDefault("log.level", DefaultLogLevel)

	v.SetEnvPrefix("GRAFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fsys := p.FileSystem()
	if path := p.ConfigPath(); fsys.Exists(path) {
		data, err := fsys.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", project.ConfigFileName, err)
		}
		if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", project.ConfigFileName, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", project.ConfigFileName, err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// HostVersion parses host.version. It returns nil when unset.
func (c *Config) HostVersion() (*semver.Version, error) {
	if strings.TrimSpace(c.Host.Version) == "" {
		return nil, nil
	}
	return semver.NewVersion(c.Host.Version)
}

func validateConfig(cfg *Config) error {
	if _, err := cfg.HostVersion(); err != nil {
		return fmt.Errorf("host.version: %w", err)
	}

	for i, a := range cfg.Anchors {
		if strings.TrimSpace(a.File) == "" {
			return fmt.Errorf("anchors[%d]: file is required", i)
		}
		if a.Anchor == "" {
			return fmt.Errorf("anchors[%d]: anchor is required", i)
		}
		if filepath.IsAbs(a.File) {
			return fmt.Errorf("anchors[%d]: file should be relative to the project root: %s", i, a.File)
		}
	}

	if cfg.Backups.MaxAgeDays < 0 {
		return fmt.Errorf("backups.max_age_days must not be negative, got %d", cfg.Backups.MaxAgeDays)
	}

	if _, err := log.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	return nil
}
