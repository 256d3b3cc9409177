// Package config loads application configuration from file and
// environment. All tunables are injected through fx; nothing in this
// package holds mutable global state.
package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	envPrefix  = "HABITS"
	configName = "habitsd"
)

// DatabaseConfig selects the gorm dialector and connection string.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// EngineConfig bounds the reconciliation engine's transaction attempts.
type EngineConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
}

// QuotaConfig holds the default limits stamped onto newly created
// quota records. Existing records keep the limits they were created
// with; raises happen out of band.
type QuotaConfig struct {
	MaxTransactions        int64 `mapstructure:"max_transactions"`
	MaxDeletedTransactions int64 `mapstructure:"max_deleted_transactions"`
	MaxProperties          int64 `mapstructure:"max_properties"`
	MaxDeletedProperties   int64 `mapstructure:"max_deleted_properties"`
}

// ResetConfig controls the deleted-counter reset worker.
type ResetConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

// TracingConfig configures the OTLP exporter.
type TracingConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	ExporterEndpoint string  `mapstructure:"exporter_endpoint"`
	ExporterProtocol string  `mapstructure:"exporter_protocol"`
	SamplingRatio    float64 `mapstructure:"sampling_ratio"`
}

type Config struct {
	Environment string         `mapstructure:"environment"`
	ServiceName string         `mapstructure:"service_name"`
	Database    DatabaseConfig `mapstructure:"database"`
	Engine      EngineConfig   `mapstructure:"engine"`
	Quota       QuotaConfig    `mapstructure:"quota"`
	Reset       ResetConfig    `mapstructure:"reset"`
	Tracing     TracingConfig  `mapstructure:"tracing"`
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// Load reads config/habitsd.yaml (when present), applies HABITS_*
// environment overrides and returns the resulting Config. The config
// file is watched so operators get a log line when a restart is needed
// to pick up changes.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, err
		}
	} else {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			// Config is handed out by value at startup; a changed file
			// only takes effect after a restart.
			log.Printf("config file changed, restart to apply: %s", e.Name)
		})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("service_name", "habits-restapi")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:habits.db")

	v.SetDefault("engine.max_attempts", 3)
	v.SetDefault("engine.attempt_timeout", 5*time.Second)
	v.SetDefault("engine.retry_backoff", 50*time.Millisecond)

	v.SetDefault("quota.max_transactions", 1000)
	v.SetDefault("quota.max_deleted_transactions", 1000)
	v.SetDefault("quota.max_properties", 100)
	v.SetDefault("quota.max_deleted_properties", 100)

	v.SetDefault("reset.interval", 24*time.Hour)
	v.SetDefault("reset.batch_size", 500)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter_protocol", "grpc")
	v.SetDefault("tracing.sampling_ratio", 0.1)
}
