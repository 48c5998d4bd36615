package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/habit-ml/internal/advice"
	"github.com/miradorstack/habit-ml/internal/cache"
	"github.com/miradorstack/habit-ml/internal/dataset"
	"github.com/miradorstack/habit-ml/internal/engine"
	"github.com/miradorstack/habit-ml/internal/features"
	"github.com/miradorstack/habit-ml/internal/models"
	"github.com/miradorstack/habit-ml/internal/predictor"
	"github.com/miradorstack/habit-ml/internal/utils"
)

var reference = time.Date(2024, 6, 15, 20, 0, 0, 0, time.UTC)

type memoryCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	gets   int
	sets   int
	getErr error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return v, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	m.data[key] = value
	return nil
}

func (m *memoryCache) Close() error { return nil }

type habitSourceStub struct {
	records []models.HabitRecord
	since   time.Time
	err     error
}

func (h *habitSourceStub) ActiveHabitsForUser(_ context.Context, _ string, since time.Time) ([]models.HabitRecord, *models.UserContext, error) {
	h.since = since
	return h.records, nil, h.err
}

func trainedPredictor(t *testing.T) *predictor.Predictor {
	t.Helper()
	rng := rand.New(rand.NewSource(5))
	ds := dataset.Dataset{LabelColumn: dataset.LabelColumn}
	for i := 0; i < 300; i++ {
		label := i % 2
		v := features.Vector{}
		for _, name := range features.ModelFeatureNames() {
			v[name] = rng.Float64()
		}
		v[features.CompletionRate7d] = 0.5*float64(label) + 0.5*rng.Float64()
		ds.Rows = append(ds.Rows, dataset.Row{HabitID: fmt.Sprintf("h-%d", i), UserID: "u", Features: v, Label: label})
	}
	p := predictor.New(utils.DiscardLogger(), engine.DefaultParams(), nil)
	_, err := p.Train(context.Background(), ds, predictor.DefaultTrainOptions())
	require.NoError(t, err)
	return p
}

func habit(id string, checkIns int) models.HabitRecord {
	rec := models.HabitRecord{
		ID:                  id,
		UserID:              "user-1",
		CreatedAt:           reference.AddDate(0, 0, -45).Format(time.RFC3339),
		TargetFrequencyDays: 1,
		IsActive:            true,
	}
	for i := 0; i < checkIns; i++ {
		day := reference.AddDate(0, 0, -i)
		rec.CheckIns = append(rec.CheckIns, models.Event{
			Timestamp: time.Date(day.Year(), day.Month(), day.Day(), 7, 30, 0, 0, time.UTC).Format(time.RFC3339),
		})
	}
	return rec
}

func newService(t *testing.T, provider cache.Provider) *ScoringService {
	t.Helper()
	rules, err := advice.NewRuleEngine("", utils.DiscardLogger())
	require.NoError(t, err)
	return NewScoringService(utils.DiscardLogger(), features.NewEngineer(), trainedPredictor(t), rules, provider, time.Hour)
}

func TestScoreHabitCachesResult(t *testing.T) {
	store := newMemoryCache()
	svc := newService(t, store)

	first, err := svc.ScoreHabit(context.Background(), habit("h1", 10), nil, reference)
	require.NoError(t, err)
	assert.Equal(t, "h1", first.HabitID)
	assert.NotEmpty(t, first.ModelID)
	assert.GreaterOrEqual(t, first.SuccessProbability, 0.0)
	assert.LessOrEqual(t, first.SuccessProbability, 1.0)
	assert.Equal(t, predictor.RiskCategory(first.SuccessProbability), first.RiskCategory)
	assert.Equal(t, advice.Defaults(first.RiskCategory), first.Recommendations)
	assert.Equal(t, 1, store.sets)

	second, err := svc.ScoreHabit(context.Background(), habit("h1", 10), nil, reference)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.sets, "cache hit must not recompute")

	// a new check-in invalidates the entry
	_, err = svc.ScoreHabit(context.Background(), habit("h1", 11), nil, reference)
	require.NoError(t, err)
	assert.Equal(t, 2, store.sets)
}

func TestScoreHabitCacheKeyCoversEveryInput(t *testing.T) {
	store := newMemoryCache()
	svc := newService(t, store)
	ctx := context.Background()

	base := habit("h1", 10)
	_, err := svc.ScoreHabit(ctx, base, nil, reference)
	require.NoError(t, err)
	require.Equal(t, 1, store.sets)

	streak := habit("h1", 10)
	streak.CurrentStreak = 9

	reminded := habit("h1", 10)
	reminded.Reminders = []models.Reminder{{Timestamp: reference.AddDate(0, 0, -1).Format(time.RFC3339), Responded: true}}

	partner := "user-2"
	partnered := habit("h1", 10)
	partnered.AccountabilityPartnerID = &partner
	partnered.PartnerMessages = []models.Event{{Timestamp: reference.AddDate(0, 0, -2).Format(time.RFC3339)}}

	for _, rec := range []models.HabitRecord{streak, reminded, partnered} {
		_, err := svc.ScoreHabit(ctx, rec, nil, reference)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, store.sets, "changed habit history must recompute")

	userCtx := &models.UserContext{
		UserID:   "user-1",
		MoodLogs: []models.ScoreLog{{Timestamp: reference.AddDate(0, 0, -1).Format(time.RFC3339), Score: 2}},
	}
	_, err = svc.ScoreHabit(ctx, base, userCtx, reference)
	require.NoError(t, err)
	assert.Equal(t, 5, store.sets, "mood logs must recompute")

	userCtx.SleepLogs = []models.ScoreLog{{Timestamp: reference.AddDate(0, 0, -1).Format(time.RFC3339), Score: 8}}
	_, err = svc.ScoreHabit(ctx, base, userCtx, reference)
	require.NoError(t, err)
	assert.Equal(t, 6, store.sets, "sleep logs must recompute")

	_, err = svc.ScoreHabit(ctx, habit("h1", 10), nil, reference)
	require.NoError(t, err)
	assert.Equal(t, 6, store.sets, "identical inputs must hit")
}

func TestScoreHabitCacheErrorFallsThrough(t *testing.T) {
	store := newMemoryCache()
	store.getErr = errors.New("connection refused")
	svc := newService(t, store)

	score, err := svc.ScoreHabit(context.Background(), habit("h1", 5), nil, reference)
	require.NoError(t, err)
	assert.Equal(t, "h1", score.HabitID)
}

func TestScoreHabitInvalidRecord(t *testing.T) {
	svc := newService(t, nil)
	rec := habit("bad", 3)
	rec.CreatedAt = "yesterday"

	_, err := svc.ScoreHabit(context.Background(), rec, nil, reference)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrInvalidInput))
}

func TestScoreHabitUntrained(t *testing.T) {
	svc := NewScoringService(nil, nil, predictor.New(nil, engine.DefaultParams(), nil), nil, nil, 0)
	_, err := svc.ScoreHabit(context.Background(), habit("h1", 3), nil, reference)
	assert.True(t, errors.Is(err, utils.ErrNotTrained))
}

func TestScoreUser(t *testing.T) {
	svc := newService(t, cache.NoopProvider{})

	_, err := svc.ScoreUser(context.Background(), "user-1", reference)
	assert.True(t, errors.Is(err, utils.ErrInvalidConfig))

	source := &habitSourceStub{records: []models.HabitRecord{habit("a", 2), habit("b", 20)}}
	svc.WithHabitSource(source, 90*24*time.Hour)

	scores, err := svc.ScoreUser(context.Background(), "user-1", reference)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, "a", scores[0].HabitID)
	assert.Equal(t, "b", scores[1].HabitID)
	assert.Equal(t, reference.AddDate(0, 0, -90), source.since)
	assert.Greater(t, svc.LatencyP95(), time.Duration(0))

	source.err = errors.New("db down")
	_, err = svc.ScoreUser(context.Background(), "user-1", reference)
	assert.ErrorIs(t, err, source.err)
}
