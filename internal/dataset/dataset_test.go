package dataset

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/habit-ml/internal/features"
	"github.com/miradorstack/habit-ml/internal/models"
	"github.com/miradorstack/habit-ml/internal/utils"
)

var reference = time.Date(2024, 6, 15, 20, 0, 0, 0, time.UTC)

func habit(id string, active, completed bool, checkIns int) models.HabitRecord {
	rec := models.HabitRecord{
		ID:        id,
		UserID:    "user-" + id,
		CreatedAt: reference.AddDate(0, 0, -30).Format(time.RFC3339),
		IsActive:  active,
		Completed: completed,
	}
	for i := 1; i <= checkIns; i++ {
		rec.CheckIns = append(rec.CheckIns, models.Event{Timestamp: reference.AddDate(0, 0, -i).Format(time.RFC3339)})
	}
	return rec
}

func TestBuildPreservesOrderAndLabels(t *testing.T) {
	records := make([]models.HabitRecord, 0, 40)
	for i := 0; i < 40; i++ {
		records = append(records, habit(fmt.Sprintf("h%02d", i), i%3 == 0, i%5 == 0, i%7))
	}

	ds, err := NewBuilder(utils.DiscardLogger(), nil, 8).Build(context.Background(), records, nil, reference)
	require.NoError(t, err)
	require.Equal(t, LabelColumn, ds.LabelColumn)
	require.Len(t, ds.Rows, len(records))

	for i, row := range ds.Rows {
		rec := records[i]
		assert.Equal(t, rec.ID, row.HabitID)
		assert.Equal(t, rec.UserID, row.UserID)
		want := 0
		if rec.IsActive || rec.Completed {
			want = 1
		}
		assert.Equal(t, want, row.Label, "habit %s", rec.ID)
		assert.Equal(t, float64(i%7), row.Features[features.TotalCheckIns])
	}
}

func TestBuildUsesUserContext(t *testing.T) {
	rec := habit("h1", true, false, 6)
	userCtx := models.UserContext{UserID: rec.UserID}
	for day := 1; day <= 10; day++ {
		score := 2.0
		if day <= 6 {
			score = 9
		}
		userCtx.MoodLogs = append(userCtx.MoodLogs, models.ScoreLog{
			Timestamp: reference.AddDate(0, 0, -day).Format(time.RFC3339),
			Score:     score,
		})
	}

	ds, err := NewBuilder(nil, nil, 1).Build(context.Background(), []models.HabitRecord{rec},
		map[string]models.UserContext{rec.UserID: userCtx}, reference)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, ds.Rows[0].Features[features.MoodCorrelation], 1e-9)
}

func TestBuildFailsWithOffendingHabit(t *testing.T) {
	bad := habit("broken", true, false, 1)
	bad.CheckIns = append(bad.CheckIns, models.Event{Timestamp: "yesterday"})
	records := []models.HabitRecord{habit("ok", true, false, 2), bad}

	_, err := NewBuilder(nil, nil, 2).Build(context.Background(), records, nil, reference)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrInvalidInput))
	assert.Contains(t, err.Error(), "broken")
}

func TestBuildEmptyInput(t *testing.T) {
	ds, err := NewBuilder(nil, nil, 4).Build(context.Background(), nil, nil, reference)
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Len())
	assert.Equal(t, 0.0, ds.PositiveRatio())
}

func labelled(labels ...int) Dataset {
	ds := Dataset{LabelColumn: LabelColumn}
	for i, y := range labels {
		ds.Rows = append(ds.Rows, Row{
			HabitID:  fmt.Sprintf("h%d", i),
			Features: features.Vector{features.StreakLength: float64(i)},
			Label:    y,
		})
	}
	return ds
}

func TestBalanceUndersample(t *testing.T) {
	ds := labelled(1, 1, 1, 1, 1, 1, 0, 0)
	out, err := Balance(ds, BalanceUndersample, 42)
	require.NoError(t, err)
	require.Equal(t, 4, out.Len())
	assert.Equal(t, 2, out.Positives())

	prev := -1.0
	for _, r := range out.Rows {
		streak := r.Features[features.StreakLength]
		assert.Greater(t, streak, prev, "undersampling must keep input order")
		prev = streak
	}
}

func TestBalanceOversample(t *testing.T) {
	ds := labelled(0, 0, 0, 0, 0, 1)
	out, err := Balance(ds, BalanceOversample, 42)
	require.NoError(t, err)
	require.Equal(t, 10, out.Len())
	assert.Equal(t, 5, out.Positives())
	assert.Equal(t, ds.Rows, out.Rows[:ds.Len()])
}

func TestBalanceEdgeCases(t *testing.T) {
	single := labelled(1, 1, 1)
	out, err := Balance(single, BalanceUndersample, 1)
	require.NoError(t, err)
	assert.Equal(t, single, out)

	_, err = Balance(single, "smote", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrInvalidConfig))
}

func TestDescribe(t *testing.T) {
	ds := labelled(1, 0, 0, 0)
	s := Describe(ds)

	assert.Equal(t, 4, s.Rows)
	assert.Equal(t, 1, s.Positives)
	assert.Equal(t, 3, s.Negatives)
	assert.InDelta(t, 0.25, s.MinorityRatio, 1e-12)

	streak := s.Features[features.StreakLength]
	assert.InDelta(t, 1.5, streak.Mean, 1e-12)
	assert.Equal(t, 0.0, streak.Min)
	assert.Equal(t, 3.0, streak.Max)
	assert.InDelta(t, 1.2909944487, streak.Std, 1e-9)
}

func TestStratifiedSplit(t *testing.T) {
	labels := make([]int, 0, 100)
	for i := 0; i < 100; i++ {
		if i < 30 {
			labels = append(labels, 1)
		} else {
			labels = append(labels, 0)
		}
	}

	keep, held := StratifiedSplit(labels, 0.2, 42)
	require.Len(t, held, 20)
	require.Len(t, keep, 80)

	heldPositives := 0
	seen := make(map[int]bool, len(labels))
	for _, idx := range held {
		heldPositives += labels[idx]
		seen[idx] = true
	}
	assert.Equal(t, 6, heldPositives)
	for _, idx := range keep {
		assert.False(t, seen[idx], "index %d in both sets", idx)
	}

	keep2, held2 := StratifiedSplit(labels, 0.2, 42)
	assert.Equal(t, keep, keep2)
	assert.Equal(t, held, held2)
}

func TestStratifiedSplitKeepsEveryClass(t *testing.T) {
	keep, held := StratifiedSplit([]int{1, 0, 0, 0}, 0.9, 7)
	assert.Len(t, held, 2)
	assert.ElementsMatch(t, []int{0, 1, 2, 3}, append(append([]int(nil), keep...), held...))
	assert.Contains(t, keep, 0)
}
