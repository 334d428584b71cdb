// Package config loads dispatch configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/marcus/dispatch/internal/logging"
	"github.com/marcus/dispatch/internal/schedule"
)

// Config holds all dispatch configuration.
type Config struct {
	Engine  EngineConfig      `mapstructure:"engine"`
	Paths   PathsConfig       `mapstructure:"paths"`
	Windows []schedule.Window `mapstructure:"windows"`
	Logging logging.Config    `mapstructure:"logging"`
}

// EngineConfig tunes the orchestration engine.
type EngineConfig struct {
	AutoAccept        bool          `mapstructure:"auto_accept"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	CompletionTimeout time.Duration `mapstructure:"completion_timeout"`
	GraceSleep        time.Duration `mapstructure:"grace_sleep"`
	HistoryLimit      int           `mapstructure:"history_limit"`
	DryRun            bool          `mapstructure:"dry_run"`
}

// PathsConfig locates the engine's on-disk state.
type PathsConfig struct {
	Calibration string `mapstructure:"calibration"`
	Database    string `mapstructure:"database"`
	Spool       string `mapstructure:"spool"`
}

// GlobalConfigPath returns the default config file location.
func GlobalConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "dispatch", "config.yaml")
}

// DefaultSpoolDir returns the default spool directory.
func DefaultSpoolDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "dispatch", "spool")
}

// Load reads configuration from path ("" uses the global location) and
// the DISPATCH_* environment. A missing config file is not an error; the
// defaults stand.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("dispatch")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = GlobalConfigPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No file: run on defaults.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.auto_accept", false)
	v.SetDefault("engine.poll_interval", "500ms")
	v.SetDefault("engine.completion_timeout", "30s")
	v.SetDefault("engine.grace_sleep", "2s")
	v.SetDefault("engine.history_limit", 200)
	v.SetDefault("engine.dry_run", false)

	v.SetDefault("paths.calibration", "")
	v.SetDefault("paths.database", "")
	v.SetDefault("paths.spool", DefaultSpoolDir())

	def := logging.DefaultConfig()
	v.SetDefault("logging.level", def.Level)
	v.SetDefault("logging.path", def.Path)
	v.SetDefault("logging.format", def.Format)
	v.SetDefault("logging.retentiondays", def.RetentionDays)
}
