package config

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/deal-scout/internal/learn"
	"github.com/sells-group/deal-scout/internal/scoring"
	"github.com/sells-group/deal-scout/internal/store"
	"github.com/sells-group/deal-scout/internal/training"
)

// Config holds the full application configuration.
type Config struct {
	Log        LogConfig         `yaml:"log" mapstructure:"log"`
	Store      store.Options     `yaml:"store" mapstructure:"store"`
	Server     ServerConfig      `yaml:"server" mapstructure:"server"`
	Data       DataConfig        `yaml:"data" mapstructure:"data"`
	Cache      CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Training   training.Options  `yaml:"training" mapstructure:"training"`
	Precompute PrecomputeConfig  `yaml:"precompute" mapstructure:"precompute"`
	Tempering  scoring.Tempering `yaml:"tempering" mapstructure:"tempering"`
	Bootstrap  BootstrapConfig   `yaml:"bootstrap" mapstructure:"bootstrap"`
	Monitoring MonitoringConfig  `yaml:"monitoring" mapstructure:"monitoring"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	// AnalyzeRPS and AnalyzeBurst limit the full-mode analyze endpoints.
	AnalyzeRPS   float64 `yaml:"analyze_rps" mapstructure:"analyze_rps"`
	AnalyzeBurst int     `yaml:"analyze_burst" mapstructure:"analyze_burst"`
	// LazyBackgroundTrain defers the upgrade worker to the first request.
	LazyBackgroundTrain bool `yaml:"lazy_background_train" mapstructure:"lazy_background_train"`
}

// DataConfig locates the company dataset.
type DataConfig struct {
	Path          string `yaml:"path" mapstructure:"path"`
	SyntheticRows int    `yaml:"synthetic_rows" mapstructure:"synthetic_rows"`
	SyntheticSeed uint64 `yaml:"synthetic_seed" mapstructure:"synthetic_seed"`
}

// CacheConfig locates persisted artifacts and precompute results.
type CacheConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// PrecomputeConfig configures dataset-wide precompute.
type PrecomputeConfig struct {
	Disable      bool `yaml:"disable" mapstructure:"disable"`
	MaxRows      int  `yaml:"max_rows" mapstructure:"max_rows"`
	ForceRefresh bool `yaml:"force_refresh" mapstructure:"force_refresh"`
	Workers      int  `yaml:"workers" mapstructure:"workers"`
}

// BootstrapConfig configures the startup set.
type BootstrapConfig struct {
	// Fast publishes a synthetic bootstrap set before the full pipeline runs.
	Fast bool   `yaml:"fast" mapstructure:"fast"`
	Rows int    `yaml:"rows" mapstructure:"rows"`
	Seed uint64 `yaml:"seed" mapstructure:"seed"`
}

// MonitoringConfig configures the background health checker.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	// StaleModelHours alerts when no training run completed within the
	// window. Zero disables the check.
	StaleModelHours int `yaml:"stale_model_hours" mapstructure:"stale_model_hours"`
}

// legacyEnv maps config keys to the unprefixed variable names older
// deployments set.
var legacyEnv = map[string]string{
	"precompute.disable":           "PRECOMPUTE_DISABLE",
	"precompute.max_rows":          "PRECOMPUTE_MAX_ROWS",
	"training.cache_models":        "CACHE_MODELS",
	"training.force_retrain":       "FORCE_RETRAIN",
	"bootstrap.fast":               "BOOTSTRAP_FAST",
	"server.lazy_background_train": "LAZY_BACKGROUND_TRAIN",
	"tempering.enabled":            "PROB_TEMPER_ENABLE",
	"tempering.temperature":        "PROB_TEMPER_T",
	"tempering.prior":              "PROB_TEMPER_PRIOR",
	"tempering.weight":             "PROB_TEMPER_WEIGHT",
	"tempering.strength":           "PROB_TEMPER_STRENGTH",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := "SCOUT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", legacy)
		}
	}

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "cache/deal-scout.db")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.analyze_rps", 5.0)
	v.SetDefault("server.analyze_burst", 10)
	v.SetDefault("server.lazy_background_train", false)
	v.SetDefault("data.path", "data/startup_data.csv")
	v.SetDefault("data.synthetic_rows", 1000)
	v.SetDefault("data.synthetic_seed", 42)
	v.SetDefault("cache.dir", "cache")

	t := training.DefaultOptions()
	v.SetDefault("training.cache_models", t.CacheModels)
	v.SetDefault("training.force_retrain", t.ForceRetrain)
	v.SetDefault("training.test_size", t.TestSize)
	v.SetDefault("training.folds", t.Folds)
	v.SetDefault("training.seed", t.Seed)
	v.SetDefault("training.tune_threshold", t.TuneThreshold)
	v.SetDefault("training.families", familyNames(t.Families))
	v.SetDefault("training.regressor_trees", t.RegressorTrees)
	v.SetDefault("training.regressor_depth", t.RegressorDepth)

	v.SetDefault("precompute.disable", false)
	v.SetDefault("precompute.max_rows", 0)
	v.SetDefault("precompute.force_refresh", false)
	v.SetDefault("precompute.workers", 8)

	tp := scoring.DefaultTempering()
	v.SetDefault("tempering.enabled", tp.Enabled)
	v.SetDefault("tempering.temperature", tp.Temperature)
	v.SetDefault("tempering.prior", tp.Prior)
	v.SetDefault("tempering.weight", tp.Weight)
	v.SetDefault("tempering.strength", tp.Strength)

	v.SetDefault("bootstrap.fast", true)
	v.SetDefault("bootstrap.rows", training.DefaultBootstrapRows)
	v.SetDefault("bootstrap.seed", 42)

	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.stale_model_hours", 0)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func familyNames(fams []learn.Family) []string {
	out := make([]string, len(fams))
	for i, f := range fams {
		out[i] = string(f)
	}
	return out
}

// Modes accepted by Validate.
var Modes = []string{"serve", "train", "score", "precompute", "export", "generate", "runs"}

// Validate checks value ranges for the given command mode and returns every
// problem at once.
func (c *Config) Validate(mode string) error {
	if !slices.Contains(Modes, mode) {
		return eris.Errorf("config: unknown mode %q", mode)
	}

	var errs []string

	// Tempering knobs only matter when tempering is on.
	if c.Tempering.Enabled {
		if c.Tempering.Temperature <= 0 {
			errs = append(errs, "tempering.temperature must be > 0")
		}
		if c.Tempering.Weight < 0 || c.Tempering.Weight > 1 {
			errs = append(errs, "tempering.weight must be between 0 and 1")
		}
		if c.Tempering.Strength < 0 || c.Tempering.Strength > 1 {
			errs = append(errs, "tempering.strength must be between 0 and 1")
		}
		if c.Tempering.Prior < 0 || c.Tempering.Prior > 1 {
			errs = append(errs, "tempering.prior must be between 0 and 1")
		}
	}
	if !slices.Contains(store.Drivers, strings.ToLower(c.Store.Driver)) {
		errs = append(errs, "store.driver must be one of "+strings.Join(store.Drivers, ", "))
	}
	if strings.EqualFold(c.Store.Driver, "postgres") && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required for the postgres driver")
	}

	switch mode {
	case "serve", "train":
		if c.Training.TestSize <= 0 || c.Training.TestSize >= 1 {
			errs = append(errs, "training.test_size must be between 0 and 1 (exclusive)")
		}
		if c.Training.Folds < 2 {
			errs = append(errs, "training.folds must be >= 2")
		}
		for _, f := range c.Training.Families {
			if !slices.Contains(learn.Families, f) {
				errs = append(errs, "training.families: unknown family "+string(f))
			}
		}
	}

	switch mode {
	case "serve", "precompute":
		if c.Precompute.Workers < 1 {
			errs = append(errs, "precompute.workers must be >= 1")
		}
		if c.Precompute.MaxRows < 0 {
			errs = append(errs, "precompute.max_rows must be >= 0")
		}
	}

	if mode == "serve" {
		if c.Monitoring.Enabled && (c.Monitoring.FailureRateThreshold <= 0 || c.Monitoring.FailureRateThreshold > 1) {
			errs = append(errs, "monitoring.failure_rate_threshold must be between 0 and 1")
		}
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.AnalyzeRPS <= 0 || c.Server.AnalyzeBurst < 1 {
			errs = append(errs, "server.analyze_rps and server.analyze_burst must be positive")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
