// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Network NetworkConfig `mapstructure:"network" yaml:"network"`
	Audit   AuditConfig   `mapstructure:"audit" yaml:"audit"`
}

// LoggerConfig controls the structured logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`

	// File output with rotation. Empty LogFile disables it.
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// ColorConfig maps log levels to terminal colors for the console encoder.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig controls the headless browser process.
type BrowserConfig struct {
	Headless     bool     `mapstructure:"headless" yaml:"headless"`
	DisableCache bool     `mapstructure:"disable_cache" yaml:"disable_cache"`
	ChromePath   string   `mapstructure:"chrome_path" yaml:"chrome_path"`
	Args         []string `mapstructure:"args" yaml:"args"`
}

// NetworkConfig controls page-load and remote-call timing.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	// CallTimeout bounds a single remote round trip (node resolution,
	// style fetch, in-page evaluation).
	CallTimeout time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"`
}

// AuditConfig controls the enrichment run itself.
type AuditConfig struct {
	// EnrichmentBudget caps cumulative time spent on source-rule
	// resolutions per run.
	EnrichmentBudget time.Duration `mapstructure:"enrichment_budget" yaml:"enrichment_budget"`
	// Concurrency is the number of targets audited in parallel. Each
	// target gets its own tab, scheduler, cache, and budget.
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency"`
	Output      string `mapstructure:"output" yaml:"output"` // report path, "-" for stdout
	Format      string `mapstructure:"format" yaml:"format"` // "json"
}

// SetDefaults registers every default value on v. Called before reading
// the config file so that a missing file still yields a working setup.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "sightline-cli")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_cache", false)

	v.SetDefault("network.navigation_timeout", 45*time.Second)
	v.SetDefault("network.post_load_wait", 2*time.Second)
	v.SetDefault("network.call_timeout", 10*time.Second)

	v.SetDefault("audit.enrichment_budget", 5000*time.Millisecond)
	v.SetDefault("audit.concurrency", 2)
	v.SetDefault("audit.output", "-")
	v.SetDefault("audit.format", "json")
}

// Load reads configuration from the given file (or the default search
// path when file is empty), layered under SIGHTLINE_* environment
// overrides, and unmarshals the result.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("SIGHTLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars carry the day.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
