package config

import (
	"fmt"
	"strings"

	"github.com/lucid-vigil/warden/pkg/purge"
	"github.com/spf13/viper"
)

// Config is the top-level configuration struct for the console.
// Tags are used by Viper to map YAML keys to struct fields.
type Config struct {
	LogLevel     string         `mapstructure:"log_level"`
	APIPort      string         `mapstructure:"api_port"`
	DataDir      string         `mapstructure:"data_dir"`
	PlaybookFile string         `mapstructure:"playbook_file"`
	EventBuffer  int            `mapstructure:"event_buffer"`
	Dispatch     DispatchConfig `mapstructure:"dispatch"`
	Retention    purge.Policy   `mapstructure:"retention"`
	Workers      []WorkerConfig `mapstructure:"workers"`
}

// DispatchConfig controls whether decided commands actually leave the
// console, and whether lock-class commands may fire without a human.
type DispatchConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	AllowAutoLock bool `mapstructure:"allow_auto_lock"`
}

// WorkerConfig defines one scheduled background worker: its name, whether
// it is enabled, and its run interval.
type WorkerConfig struct {
	Name     string `mapstructure:"name"`
	Enabled  bool   `mapstructure:"enabled"`
	Interval string `mapstructure:"interval"`
}

// GetWorkerConfig returns the configuration for a named worker, or nil if
// it is not configured.
func (c *Config) GetWorkerConfig(name string) *WorkerConfig {
	for i := range c.Workers {
		if c.Workers[i].Name == name {
			return &c.Workers[i]
		}
	}
	return nil
}

// LoadConfig reads the configuration from a YAML file (config.yaml) and
// environment variables. Defaults keep the console safe out of the box:
// dispatch is off until explicitly enabled.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/warden/")

	v.SetDefault("log_level", "info")
	v.SetDefault("api_port", "8080")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("playbook_file", "")
	v.SetDefault("event_buffer", 256)
	v.SetDefault("dispatch.enabled", false)
	v.SetDefault("dispatch.allow_auto_lock", true)
	v.SetDefault("retention.retention_days", 30)
	v.SetDefault("retention.keep_critical", true)

	v.SetEnvPrefix("WARDEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Config file not found, using defaults and environment variables.")
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Retention.RetentionDays < 1 {
		return nil, fmt.Errorf("retention.retention_days must be at least 1, got %d", cfg.Retention.RetentionDays)
	}

	return &cfg, nil
}
