// Package config loads studiosync configuration from a YAML file with
// environment variable overrides, and watches the file for changes so
// the autosync toggle can be flipped without a restart.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full studiosync configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Autosync  AutosyncConfig  `mapstructure:"autosync"`
	Replicas  ReplicasConfig  `mapstructure:"replicas"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Log       LogConfig       `mapstructure:"log"`
}

// DatabaseConfig locates the local SQLite store.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// AutosyncConfig controls the debounced sync scheduler.
type AutosyncConfig struct {
	// Enabled turns automatic change-triggered syncs on. User-initiated
	// syncs work regardless.
	Enabled bool `mapstructure:"enabled"`

	// Debounce is the quiet window after the last change before an
	// automatic sync fires.
	Debounce time.Duration `mapstructure:"debounce"`
}

// ReplicasConfig holds the two replica endpoints in write order. An
// empty URL leaves that replica uninitialized; syncs are skipped until
// both are set.
type ReplicasConfig struct {
	Primary   string        `mapstructure:"primary"`
	Secondary string        `mapstructure:"secondary"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// DashboardConfig controls the monitoring WebSocket server.
type DashboardConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LogConfig controls rotating file logging for the serve command. An
// empty file logs to stderr only.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "studiosync.db")
	v.SetDefault("autosync.enabled", false)
	v.SetDefault("autosync.debounce", 5*time.Minute)
	v.SetDefault("replicas.timeout", 30*time.Second)
	v.SetDefault("dashboard.enabled", false)
	v.SetDefault("dashboard.port", 8080)
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}

// Load reads configuration from the given file. A missing file is not an
// error: defaults and STUDIOSYNC_* environment overrides still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("STUDIOSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, missing := err.(viper.ConfigFileNotFoundError); !missing && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
