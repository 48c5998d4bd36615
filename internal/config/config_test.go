package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/habit-ml/internal/utils"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HABIT_ML_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 0.2, cfg.Training.TestFraction)
	assert.Equal(t, 0.1, cfg.Training.ValidationFraction)
	assert.Equal(t, 6, cfg.Training.Params.MaxDepth)
	assert.EqualValues(t, 42, cfg.Training.Params.Seed)
	assert.Equal(t, StorageFile, cfg.Storage.Backend)
	assert.Equal(t, 0.82, cfg.Validation.Thresholds.ROCAUC)
	assert.Equal(t, 100*time.Millisecond, cfg.Validation.MaxP95Latency)
	assert.True(t, cfg.Features.IncludeCorrelations)
}

func TestLoadYAMLWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
training:
  testFraction: 0.25
  params:
    maxDepth: 4
    numRounds: 50
storage:
  backend: gcs
  bucket: habit-models
validation:
  enabled: false
  thresholds:
    rocAuc: 0.9
`)
	t.Setenv("HABIT_ML_SEED", "7")
	t.Setenv("HABIT_ML_GCS_PREFIX", "prod")
	t.Setenv("HABIT_ML_CACHE_SCORE_TTL", "1m")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 0.25, cfg.Training.TestFraction)
	assert.Equal(t, 4, cfg.Training.Params.MaxDepth)
	assert.Equal(t, 50, cfg.Training.Params.NumRounds)
	assert.Equal(t, 0.1, cfg.Training.Params.LearningRate, "unset params keep their defaults")
	assert.EqualValues(t, 7, cfg.Training.Params.Seed)
	assert.Equal(t, "habit-models", cfg.Storage.Bucket)
	assert.Equal(t, "prod", cfg.Storage.Prefix)
	assert.False(t, cfg.Validation.Enabled)
	assert.Equal(t, 0.9, cfg.Validation.Thresholds.ROCAUC)
	assert.Equal(t, 0.8, cfg.Validation.Thresholds.Accuracy)
	assert.Equal(t, time.Minute, cfg.Cache.ScoreTTL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cases := map[string]func(*Config){
		"test fraction":       func(c *Config) { c.Training.TestFraction = 1 },
		"validation fraction": func(c *Config) { c.Training.ValidationFraction = -0.1 },
		"balance":             func(c *Config) { c.Training.Balance = "smote" },
		"params":              func(c *Config) { c.Training.Params.MaxDepth = 0 },
		"backend":             func(c *Config) { c.Storage.Backend = "s3" },
		"gcs bucket":          func(c *Config) { c.Storage.Backend = StorageGCS },
		"cache addr":          func(c *Config) { c.Cache.Enabled = true },
		"events url":          func(c *Config) { c.Events.Enabled = true },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		err := cfg.Validate()
		assert.True(t, errors.Is(err, utils.ErrInvalidConfig), "%s: %v", name, err)
	}
}

func TestLoadFailsValidation(t *testing.T) {
	path := writeConfig(t, "training:\n  testFraction: 0\n")
	_, err := Load(path)
	assert.True(t, errors.Is(err, utils.ErrInvalidConfig))
}
