package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/habit-ml/internal/engine"
	"github.com/miradorstack/habit-ml/internal/utils"
	"github.com/miradorstack/habit-ml/internal/validation"
)

// Storage backends.
const (
	StorageFile = "file"
	StorageGCS  = "gcs"
)

// Config captures every setting of the habit-ml pipeline. Components receive the section
// they need; nothing reads configuration globally.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Features   FeaturesConfig   `yaml:"features"`
	Training   TrainingConfig   `yaml:"training"`
	Storage    StorageConfig    `yaml:"storage"`
	Validation ValidationConfig `yaml:"validation"`
	Database   DatabaseConfig   `yaml:"database"`
	Cache      CacheConfig      `yaml:"cache"`
	Events     EventsConfig     `yaml:"events"`
	Advice     AdviceConfig     `yaml:"advice"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// FeaturesConfig controls feature engineering.
type FeaturesConfig struct {
	IncludeCorrelations bool `yaml:"includeCorrelations"`
	Workers             int  `yaml:"workers"`
}

// TrainingConfig controls dataset preparation and the classifier.
type TrainingConfig struct {
	LabelColumn        string        `yaml:"labelColumn"`
	TestFraction       float64       `yaml:"testFraction"`
	ValidationFraction float64       `yaml:"validationFraction"`
	Balance            string        `yaml:"balance"`
	LookbackDays       int           `yaml:"lookbackDays"`
	Params             engine.Params `yaml:"params"`
}

// StorageConfig selects where model artifacts live.
type StorageConfig struct {
	Backend   string `yaml:"backend"`
	Dir       string `yaml:"dir"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	ModelName string `yaml:"modelName"`
}

// ValidationConfig controls the post-training deployment gates.
type ValidationConfig struct {
	Enabled           bool `yaml:"enabled"`
	validation.Config `yaml:",inline"`
}

// DatabaseConfig configures the Postgres training data source.
type DatabaseConfig struct {
	DSN          string        `yaml:"dsn"`
	MaxConns     int32         `yaml:"maxConns"`
	QueryTimeout time.Duration `yaml:"queryTimeout"`
}

// CacheConfig controls Redis-backed caching of habit scores.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	ScoreTTL     time.Duration `yaml:"scoreTTL"`
}

// EventsConfig controls model lifecycle notifications.
type EventsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// AdviceConfig controls rule-pack loading for recommendations.
type AdviceConfig struct {
	RulesPath string `yaml:"rulesPath"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("HABIT_ML_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without reading files or the environment.
func Default() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info", JSON: false},
		Features: FeaturesConfig{IncludeCorrelations: true, Workers: 4},
		Training: TrainingConfig{
			LabelColumn:        "maintained",
			TestFraction:       0.2,
			ValidationFraction: 0.1,
			Balance:            "none",
			LookbackDays:       365,
			Params:             engine.DefaultParams(),
		},
		Storage: StorageConfig{
			Backend:   StorageFile,
			Dir:       "models",
			ModelName: "habit_success_model",
		},
		Validation: ValidationConfig{Enabled: true, Config: validation.DefaultConfig()},
		Database: DatabaseConfig{
			MaxConns:     4,
			QueryTimeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			ScoreTTL:     15 * time.Minute,
		},
		Events: EventsConfig{Exchange: "events"},
		Advice: AdviceConfig{RulesPath: "configs/advice/default.yaml"},
	}
}

// Validate rejects settings no component can honour.
func (c Config) Validate() error {
	const op = "config.Validate"
	t := c.Training
	if t.TestFraction <= 0 || t.TestFraction >= 1 {
		return utils.ConfigError(op, "training.testFraction must be in (0, 1), got %v", t.TestFraction)
	}
	if t.ValidationFraction < 0 || t.ValidationFraction >= 1 {
		return utils.ConfigError(op, "training.validationFraction must be in [0, 1), got %v", t.ValidationFraction)
	}
	switch t.Balance {
	case "", "none", "undersample", "oversample":
	default:
		return utils.ConfigError(op, "training.balance %q is not one of none, undersample, oversample", t.Balance)
	}
	if err := t.Params.Validate(); err != nil {
		return err
	}
	switch c.Storage.Backend {
	case StorageFile:
	case StorageGCS:
		if c.Storage.Bucket == "" {
			return utils.ConfigError(op, "storage.bucket is required for the gcs backend")
		}
	default:
		return utils.ConfigError(op, "unknown storage backend %q", c.Storage.Backend)
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return utils.ConfigError(op, "cache.addr is required when the cache is enabled")
	}
	if c.Events.Enabled && c.Events.URL == "" {
		return utils.ConfigError(op, "events.url is required when events are enabled")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HABIT_ML_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("HABIT_ML_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("HABIT_ML_METRICS_ADDRESS"); v != "" {
		cfg.Metrics.Address = v
	}
	if v := os.Getenv("HABIT_ML_FEATURE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Features.Workers = n
		}
	}
	if v := os.Getenv("HABIT_ML_TEST_FRACTION"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Training.TestFraction = f
		}
	}
	if v := os.Getenv("HABIT_ML_VALIDATION_FRACTION"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Training.ValidationFraction = f
		}
	}
	if v := os.Getenv("HABIT_ML_BALANCE"); v != "" {
		cfg.Training.Balance = v
	}
	if v := os.Getenv("HABIT_ML_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Training.Params.Seed = seed
		}
	}
	if v := os.Getenv("HABIT_ML_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("HABIT_ML_STORAGE_DIR"); v != "" {
		cfg.Storage.Dir = v
	}
	if v := os.Getenv("HABIT_ML_GCS_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("HABIT_ML_GCS_PREFIX"); v != "" {
		cfg.Storage.Prefix = v
	}
	if v := os.Getenv("HABIT_ML_VALIDATION_ENABLED"); v != "" {
		cfg.Validation.Enabled = parseBool(v)
	}
	if v := os.Getenv("HABIT_ML_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("HABIT_ML_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("HABIT_ML_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("HABIT_ML_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("HABIT_ML_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("HABIT_ML_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("HABIT_ML_CACHE_TLS"); parseBool(v) {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("HABIT_ML_CACHE_SCORE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.ScoreTTL = d
		}
	}
	if v := os.Getenv("HABIT_ML_EVENTS_URL"); v != "" {
		cfg.Events.URL = v
		cfg.Events.Enabled = true
	}
	if v := os.Getenv("HABIT_ML_EVENTS_EXCHANGE"); v != "" {
		cfg.Events.Exchange = v
	}
	if v := os.Getenv("HABIT_ML_ADVICE_RULES_PATH"); v != "" {
		cfg.Advice.RulesPath = v
	}
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
