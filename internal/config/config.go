package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the scheduler daemon's full configuration, loaded from a
// config file (if present), overridable by environment variables.
type Config struct {
	Scheduler SchedulerConfig
	Metrics   MetricsConfig
	LogLevel  string
}

// SchedulerConfig controls worker count, admission-controller limits, and
// idle-wait tuning for the scheduling loop.
type SchedulerConfig struct {
	NumWorkers       int
	MinAdd           int64
	MaxAdd           int64
	MaxDelete        int64
	MaxCount         int64
	IdleWaitInterval time.Duration
}

// MetricsConfig controls the Prometheus scrape endpoint cmd/threadmanagerd
// exposes.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from ./config.yaml (or /etc/threadmanager) with
// environment variable overrides under the THREADMANAGER_ prefix, falling
// back to defaults when no config file is present.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/threadmanager")

	setDefaults()

	viper.SetEnvPrefix("THREADMANAGER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	// Scheduler defaults. MinAdd/MaxAdd/MaxDelete follow the spec's
	// recommended 10/100/100; MaxCount of 0 means unconstrained.
	viper.SetDefault("scheduler.numworkers", 4)
	viper.SetDefault("scheduler.minadd", 10)
	viper.SetDefault("scheduler.maxadd", 100)
	viper.SetDefault("scheduler.maxdelete", 100)
	viper.SetDefault("scheduler.maxcount", 0)
	viper.SetDefault("scheduler.idlewaitinterval", 5*time.Millisecond)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	// Logging defaults
	viper.SetDefault("loglevel", "info")
}
