// File: internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutConfigFile(t *testing.T) {
	v := viper.New()
	// Point at an empty directory so no stray config.yaml is picked up.
	v.AddConfigPath(t.TempDir())

	cfg, err := Load(v, "")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 5000*time.Millisecond, cfg.Audit.EnrichmentBudget)
	assert.Equal(t, 2, cfg.Audit.Concurrency)
	assert.Equal(t, "-", cfg.Audit.Output)
	assert.Equal(t, 10*time.Second, cfg.Network.CallTimeout)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
logger:
  level: debug
  format: json
browser:
  headless: false
audit:
  enrichment_budget: 1s
  concurrency: 4
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, time.Second, cfg.Audit.EnrichmentBudget)
	assert.Equal(t, 4, cfg.Audit.Concurrency)
	// Untouched sections keep their defaults.
	assert.Equal(t, 45*time.Second, cfg.Network.NavigationTimeout)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("SIGHTLINE_LOGGER_LEVEL", "warn")

	v := viper.New()
	v.AddConfigPath(t.TempDir())
	cfg, err := Load(v, "")
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Logger.Level)
}

func TestLoad_MalformedFileFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logger: [not: valid"), 0o644))

	_, err := Load(viper.New(), path)
	assert.Error(t, err)
}
