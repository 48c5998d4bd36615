package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/miradorstack/habit-ml/internal/advice"
	"github.com/miradorstack/habit-ml/internal/cache"
	"github.com/miradorstack/habit-ml/internal/config"
	"github.com/miradorstack/habit-ml/internal/events"
	"github.com/miradorstack/habit-ml/internal/features"
	"github.com/miradorstack/habit-ml/internal/models"
	"github.com/miradorstack/habit-ml/internal/predictor"
	"github.com/miradorstack/habit-ml/internal/registry"
	"github.com/miradorstack/habit-ml/internal/repo"
	"github.com/miradorstack/habit-ml/internal/utils"
)

// HabitInput is the JSON document accepted by --input.
type HabitInput struct {
	Habits   []models.HabitRecord          `json:"habits"`
	Contexts map[string]models.UserContext `json:"contexts,omitempty"`
}

func readHabitInput(path string) (HabitInput, error) {
	var in HabitInput
	data, err := os.ReadFile(path)
	if err != nil {
		return in, fmt.Errorf("read input: %w", err)
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return in, utils.InputError("cli.readHabitInput", "decode %s: %v", path, err)
	}
	return in, nil
}

func (in HabitInput) userContext(userID string) *models.UserContext {
	if uc, ok := in.Contexts[userID]; ok {
		return &uc
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseReference(value string) (time.Time, error) {
	if value == "" {
		return time.Now(), nil
	}
	return utils.ParseTimestamp(value)
}

func newEngineer(cfg *config.Config) *features.Engineer {
	engineer := features.NewEngineer()
	if !cfg.Features.IncludeCorrelations {
		engineer = engineer.WithoutCorrelations()
	}
	return engineer
}

func newPredictor(cfg *config.Config, logger *slog.Logger) *predictor.Predictor {
	return predictor.New(logger, cfg.Training.Params, nil)
}

func trainOptions(cfg *config.Config) predictor.TrainOptions {
	return predictor.TrainOptions{
		LabelColumn:        cfg.Training.LabelColumn,
		TestFraction:       cfg.Training.TestFraction,
		ValidationFraction: cfg.Training.ValidationFraction,
	}
}

// openStore returns the configured artifact store and a release function.
func openStore(ctx context.Context, cfg *config.Config) (registry.Store, func(), error) {
	switch cfg.Storage.Backend {
	case config.StorageGCS:
		store, err := registry.NewGCSStore(ctx, cfg.Storage.Bucket, cfg.Storage.Prefix)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		store, err := registry.NewFileStore(cfg.Storage.Dir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}

func loadModel(ctx context.Context, cfg *config.Config, logger *slog.Logger, name string) (*predictor.Predictor, func(), error) {
	store, release, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	pred := newPredictor(cfg, logger)
	if err := pred.Load(ctx, store, name); err != nil {
		release()
		return nil, nil, err
	}
	return pred, release, nil
}

// openCache falls back to the noop provider when Redis is unreachable.
func openCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) cache.Provider {
	if !cfg.Cache.Enabled {
		return cache.NoopProvider{}
	}
	provider, err := cache.NewRedisProvider(ctx, cache.RedisConfig{
		Addr:         cfg.Cache.Addr,
		Username:     cfg.Cache.Username,
		Password:     cfg.Cache.Password,
		DB:           cfg.Cache.DB,
		DialTimeout:  cfg.Cache.DialTimeout,
		ReadTimeout:  cfg.Cache.ReadTimeout,
		WriteTimeout: cfg.Cache.WriteTimeout,
		MaxRetries:   cfg.Cache.MaxRetries,
		TLS:          cfg.Cache.TLS,
	})
	if err != nil {
		logger.Warn("score cache unavailable", slog.Any("error", err))
		return cache.NoopProvider{}
	}
	return provider
}

// openPublisher falls back to the noop publisher when the broker is unreachable.
func openPublisher(cfg *config.Config, logger *slog.Logger) events.Publisher {
	if !cfg.Events.Enabled {
		return events.Noop{}
	}
	pub, err := events.NewAMQPPublisher(cfg.Events.URL, cfg.Events.Exchange)
	if err != nil {
		logger.Warn("event publisher unavailable", slog.Any("error", err))
		return events.Noop{}
	}
	return pub
}

func openRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*repo.HabitRepository, func(), error) {
	if cfg.Database.DSN == "" {
		return nil, nil, utils.ConfigError("cli.openRepository", "database.dsn is required")
	}
	pool, err := repo.NewPool(ctx, cfg.Database.DSN, cfg.Database.MaxConns, logger)
	if err != nil {
		return nil, nil, err
	}
	return repo.NewHabitRepository(pool, logger, cfg.Database.QueryTimeout), pool.Close, nil
}

func newRules(cfg *config.Config, logger *slog.Logger) (*advice.RuleEngine, error) {
	return advice.NewRuleEngine(cfg.Advice.RulesPath, logger)
}
