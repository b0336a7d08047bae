package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/deal-scout/internal/learn"
	"github.com/sells-group/deal-scout/internal/scoring"
	"github.com/sells-group/deal-scout/internal/training"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.False(t, cfg.Server.LazyBackgroundTrain)
	assert.Equal(t, "data/startup_data.csv", cfg.Data.Path)
	assert.Equal(t, "cache", cfg.Cache.Dir)
	assert.True(t, cfg.Bootstrap.Fast)
	assert.Equal(t, training.DefaultBootstrapRows, cfg.Bootstrap.Rows)
	assert.False(t, cfg.Precompute.Disable)
	assert.Equal(t, 0, cfg.Precompute.MaxRows)

	def := training.DefaultOptions()
	assert.True(t, cfg.Training.CacheModels)
	assert.False(t, cfg.Training.ForceRetrain)
	assert.InDelta(t, def.TestSize, cfg.Training.TestSize, 0.001)
	assert.Equal(t, def.Folds, cfg.Training.Folds)
	assert.Equal(t, def.Seed, cfg.Training.Seed)
	assert.Equal(t, learn.Families, cfg.Training.Families)

	assert.Equal(t, scoring.DefaultTempering(), cfg.Tempering)
	assert.False(t, cfg.Monitoring.Enabled)
	assert.Equal(t, 24, cfg.Monitoring.LookbackWindowHours)
	assert.InDelta(t, 0.25, cfg.Monitoring.FailureRateThreshold, 0.001)
	assert.NoError(t, cfg.Validate("serve"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: none
log:
  level: debug
  format: console
server:
  port: 9090
training:
  families: [logistic_regression, random_forest]
precompute:
  max_rows: 250
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "none", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []learn.Family{learn.FamilyLogistic, learn.FamilyRandomForest}, cfg.Training.Families)
	assert.Equal(t, 250, cfg.Precompute.MaxRows)
	// Defaults still apply for unset values
	assert.Equal(t, 8, cfg.Precompute.Workers)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("SCOUT_STORE_DRIVER", "none")
	t.Setenv("SCOUT_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "none", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("SCOUT_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadLegacyEnvNames(t *testing.T) {
	chdirTemp(t)

	t.Setenv("PRECOMPUTE_DISABLE", "true")
	t.Setenv("PRECOMPUTE_MAX_ROWS", "500")
	t.Setenv("CACHE_MODELS", "false")
	t.Setenv("FORCE_RETRAIN", "true")
	t.Setenv("BOOTSTRAP_FAST", "false")
	t.Setenv("LAZY_BACKGROUND_TRAIN", "true")
	t.Setenv("PROB_TEMPER_ENABLE", "false")
	t.Setenv("PROB_TEMPER_T", "1.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Precompute.Disable)
	assert.Equal(t, 500, cfg.Precompute.MaxRows)
	assert.False(t, cfg.Training.CacheModels)
	assert.True(t, cfg.Training.ForceRetrain)
	assert.False(t, cfg.Bootstrap.Fast)
	assert.True(t, cfg.Server.LazyBackgroundTrain)
	assert.False(t, cfg.Tempering.Enabled)
	assert.InDelta(t, 1.5, cfg.Tempering.Temperature, 0.001)
}

func TestLoadPrefixedEnvBeatsLegacy(t *testing.T) {
	chdirTemp(t)

	t.Setenv("SCOUT_PRECOMPUTE_MAX_ROWS", "10")
	t.Setenv("PRECOMPUTE_MAX_ROWS", "500")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Precompute.MaxRows)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Server.Port = 8000
	cfg.Server.AnalyzeRPS = 5
	cfg.Server.AnalyzeBurst = 10
	cfg.Training = training.DefaultOptions()
	cfg.Tempering = scoring.DefaultTempering()
	cfg.Precompute.Workers = 4
	return cfg
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	// Port only matters when serving.
	assert.NoError(t, cfg.Validate("train"))
}

func TestValidateTempering(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero temperature", func(c *Config) { c.Tempering.Temperature = 0 }, "tempering.temperature must be > 0"},
		{"weight above one", func(c *Config) { c.Tempering.Weight = 1.5 }, "tempering.weight"},
		{"negative strength", func(c *Config) { c.Tempering.Strength = -0.1 }, "tempering.strength"},
		{"prior above one", func(c *Config) { c.Tempering.Prior = 2 }, "tempering.prior"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate("score")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateTempering_Disabled(t *testing.T) {
	cfg := validDefaults()
	cfg.Tempering.Enabled = false
	cfg.Tempering.Temperature = 0
	cfg.Tempering.Weight = 1.5

	assert.NoError(t, cfg.Validate("score"))
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateTraining(t *testing.T) {
	cfg := validDefaults()
	cfg.Training.TestSize = 1
	cfg.Training.Folds = 1
	cfg.Training.Families = []learn.Family{"quantum"}

	err := cfg.Validate("train")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "training.test_size")
	assert.Contains(t, err.Error(), "training.folds must be >= 2")
	assert.Contains(t, err.Error(), "unknown family quantum")

	// Training settings are not checked for export.
	assert.NoError(t, cfg.Validate("export"))
}

func TestValidatePrecompute(t *testing.T) {
	cfg := validDefaults()
	cfg.Precompute.Workers = 0
	cfg.Precompute.MaxRows = -1

	err := cfg.Validate("precompute")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "precompute.workers must be >= 1")
	assert.Contains(t, err.Error(), "precompute.max_rows must be >= 0")
}

func TestValidateStore(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	err := cfg.Validate("runs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be one of")

	cfg.Store.Driver = "postgres"
	err = cfg.Validate("runs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/scout"
	assert.NoError(t, cfg.Validate("runs"))
}

func TestValidateMonitoring(t *testing.T) {
	cfg := validDefaults()
	cfg.Monitoring.Enabled = true
	cfg.Monitoring.FailureRateThreshold = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring.failure_rate_threshold")

	cfg.Monitoring.FailureRateThreshold = 0.5
	assert.NoError(t, cfg.Validate("serve"))
}
