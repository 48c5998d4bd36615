package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"time"

	"github.com/miradorstack/habit-ml/internal/advice"
	"github.com/miradorstack/habit-ml/internal/cache"
	"github.com/miradorstack/habit-ml/internal/features"
	"github.com/miradorstack/habit-ml/internal/metrics"
	"github.com/miradorstack/habit-ml/internal/models"
	"github.com/miradorstack/habit-ml/internal/predictor"
	"github.com/miradorstack/habit-ml/internal/utils"
)

// HabitSource loads a user's active habits for scoring.
type HabitSource interface {
	ActiveHabitsForUser(ctx context.Context, userID string, since time.Time) ([]models.HabitRecord, *models.UserContext, error)
}

// ScoringService turns raw habit history into cached success scores with recommendations.
type ScoringService struct {
	logger    *slog.Logger
	engineer  *features.Engineer
	predictor *predictor.Predictor
	rules     *advice.RuleEngine
	cache     cache.Provider
	ttl       time.Duration
	source    HabitSource
	lookback  time.Duration
	latencies *utils.LatencyTracker
}

// NewScoringService constructs the scoring facade. A nil provider disables caching.
func NewScoringService(logger *slog.Logger, engineer *features.Engineer, pred *predictor.Predictor, rules *advice.RuleEngine, provider cache.Provider, ttl time.Duration) *ScoringService {
	if logger == nil {
		logger = slog.Default()
	}
	if engineer == nil {
		engineer = features.NewEngineer()
	}
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	return &ScoringService{
		logger:    logger,
		engineer:  engineer,
		predictor: pred,
		rules:     rules,
		cache:     provider,
		ttl:       ttl,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// WithHabitSource enables ScoreUser, loading history from lookback before the reference time.
func (s *ScoringService) WithHabitSource(source HabitSource, lookback time.Duration) *ScoringService {
	s.source = source
	s.lookback = lookback
	return s
}

// ScoreHabit scores a single habit as of reference.
func (s *ScoringService) ScoreHabit(ctx context.Context, record models.HabitRecord, userCtx *models.UserContext, reference time.Time) (models.HabitScore, error) {
	if s.predictor == nil {
		return models.HabitScore{}, utils.ConfigError("services.ScoreHabit", "predictor not configured")
	}
	meta, err := s.predictor.Metadata()
	if err != nil {
		return models.HabitScore{}, err
	}

	key, err := scoreKey(meta.ModelID, record, userCtx, reference)
	if err != nil {
		return models.HabitScore{}, err
	}
	if score, ok := s.cached(ctx, key); ok {
		return score, nil
	}

	start := time.Now()
	score, err := s.compute(record, userCtx, reference, meta.ModelID)
	duration := time.Since(start)
	if err != nil {
		metrics.ObservePrediction(duration, metrics.OutcomeError)
		return models.HabitScore{}, err
	}
	metrics.ObservePrediction(duration, metrics.OutcomeSuccess)
	s.latencies.Observe(duration)
	if count := s.latencies.Count(); count >= 100 && count%100 == 0 {
		s.logger.Info("scoring latency", slog.Duration("p95", s.latencies.Percentile(95)), slog.Int("samples", count))
	}

	s.store(ctx, key, score)
	return score, nil
}

// ScoreUser scores every active habit of userID. It requires a habit source.
func (s *ScoringService) ScoreUser(ctx context.Context, userID string, reference time.Time) ([]models.HabitScore, error) {
	if s.source == nil {
		return nil, utils.ConfigError("services.ScoreUser", "habit source not configured")
	}
	records, userCtx, err := s.source.ActiveHabitsForUser(ctx, userID, reference.Add(-s.lookback))
	if err != nil {
		return nil, fmt.Errorf("load habits for user %s: %w", userID, err)
	}
	scores := make([]models.HabitScore, 0, len(records))
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score, err := s.ScoreHabit(ctx, record, userCtx, reference)
		if err != nil {
			return nil, fmt.Errorf("score habit %s: %w", record.ID, err)
		}
		scores = append(scores, score)
	}
	return scores, nil
}

// LatencyP95 returns the current p95 scoring latency.
func (s *ScoringService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}

func (s *ScoringService) compute(record models.HabitRecord, userCtx *models.UserContext, reference time.Time, modelID string) (models.HabitScore, error) {
	v, err := s.engineer.Compute(record, userCtx, reference)
	if err != nil {
		return models.HabitScore{}, err
	}
	prob, err := s.predictor.PredictSuccessProbability(v)
	if err != nil {
		return models.HabitScore{}, err
	}
	risk := predictor.RiskCategory(prob)
	return models.HabitScore{
		HabitID:            record.ID,
		UserID:             record.UserID,
		ModelID:            modelID,
		SuccessProbability: prob,
		RiskCategory:       risk,
		Recommendations:    s.rules.Recommend(risk, v),
	}, nil
}

func (s *ScoringService) cached(ctx context.Context, key string) (models.HabitScore, bool) {
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("score cache read failed", slog.String("key", key), slog.Any("error", err))
		}
		metrics.ObserveCache(false)
		return models.HabitScore{}, false
	}
	var score models.HabitScore
	if err := json.Unmarshal(data, &score); err != nil {
		s.logger.Warn("score cache entry corrupt", slog.String("key", key), slog.Any("error", err))
		metrics.ObserveCache(false)
		return models.HabitScore{}, false
	}
	metrics.ObserveCache(true)
	return score, true
}

func (s *ScoringService) store(ctx context.Context, key string, score models.HabitScore) {
	data, err := json.Marshal(score)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		s.logger.Warn("score cache write failed", slog.String("key", key), slog.Any("error", err))
	}
}

// scoreKey addresses a score by model, habit, reference day and a digest of every input the
// features read, so any new event or context log misses the cache.
func scoreKey(modelID string, record models.HabitRecord, userCtx *models.UserContext, reference time.Time) (string, error) {
	h := fnv.New64a()
	enc := json.NewEncoder(h)
	if err := enc.Encode(record); err != nil {
		return "", fmt.Errorf("digest habit %s: %w", record.ID, err)
	}
	if err := enc.Encode(userCtx); err != nil {
		return "", fmt.Errorf("digest user context for habit %s: %w", record.ID, err)
	}
	return fmt.Sprintf("habit-ml:score:%s:%s:%s:%016x", modelID, record.ID, reference.UTC().Format("20060102"), h.Sum64()), nil
}
