package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/habit-ml/internal/dataset"
	"github.com/miradorstack/habit-ml/internal/features"
	"github.com/miradorstack/habit-ml/internal/models"
	"github.com/miradorstack/habit-ml/internal/utils"
)

func goodMetrics() *models.TrainingMetrics {
	return &models.TrainingMetrics{Accuracy: 0.9, Precision: 0.85, Recall: 0.8, F1Score: 0.82, ROCAUC: 0.93}
}

func balancedImportance() map[string]float64 {
	return map[string]float64{"a": 0.2, "b": 0.2, "c": 0.2, "d": 0.2, "e": 0.2}
}

func findCheck(t *testing.T, r Report, name string) Check {
	t.Helper()
	for _, c := range r.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %s not in report", name)
	return Check{}
}

func TestValidatePassesHealthyModel(t *testing.T) {
	v := New(utils.DiscardLogger(), DefaultConfig())
	report := v.Validate(Input{
		Metrics:           goodMetrics(),
		FeatureImportance: balancedImportance(),
		ModelSizeBytes:    2 << 20,
		Latency:           &utils.LatencySummary{Samples: 10, P95: 3 * time.Millisecond},
		Data:              &dataset.Summary{Rows: 100, MinorityRatio: 0.4},
	})
	assert.True(t, report.Passed)
	assert.Len(t, report.Checks, 5)
	assert.Empty(t, report.Issues())
}

func TestValidatePerformanceThresholds(t *testing.T) {
	m := goodMetrics()
	m.Recall = 0.69
	m.ROCAUC = 0.82

	report := New(utils.DiscardLogger(), DefaultConfig()).Validate(Input{Metrics: m})
	require.False(t, report.Passed)
	check := findCheck(t, report, CheckPerformance)
	require.Len(t, check.Issues, 1)
	assert.Contains(t, check.Issues[0], "recall")
}

func TestValidateLatencyAndSize(t *testing.T) {
	report := New(utils.DiscardLogger(), DefaultConfig()).Validate(Input{
		Latency:        &utils.LatencySummary{Samples: 5, P95: 150 * time.Millisecond},
		ModelSizeBytes: 51 << 20,
	})
	assert.False(t, report.Passed)
	assert.False(t, findCheck(t, report, CheckLatency).Passed)
	assert.False(t, findCheck(t, report, CheckModelSize).Passed)
}

func TestAdvisoryChecksDoNotFailReport(t *testing.T) {
	report := New(utils.DiscardLogger(), DefaultConfig()).Validate(Input{
		Metrics:           goodMetrics(),
		FeatureImportance: map[string]float64{"a": 0.6, "b": 0.3, "c": 0.095, "d": 0.005},
		Data:              &dataset.Summary{Rows: 100, MinorityRatio: 0.05},
	})
	assert.True(t, report.Passed)

	fi := findCheck(t, report, CheckFeatureImportance)
	assert.False(t, fi.Passed)
	assert.True(t, fi.Advisory)
	assert.Len(t, fi.Issues, 2)
	assert.Contains(t, fi.Issues[0], "d")

	dq := findCheck(t, report, CheckDataQuality)
	assert.False(t, dq.Passed)
	assert.Contains(t, dq.Issues[0], "5.00%")
}

type fakeScorer struct {
	calls int
	err   error
}

func (f *fakeScorer) PredictSuccessProbability(features.Vector) (float64, error) {
	f.calls++
	return 0.5, f.err
}

func TestMeasureLatency(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LatencySamples = 25
	v := New(utils.DiscardLogger(), cfg)

	scorer := &fakeScorer{}
	summary, err := v.MeasureLatency(scorer, []features.Vector{{}, {}})
	require.NoError(t, err)
	assert.Equal(t, 25, summary.Samples)
	assert.Equal(t, 25, scorer.calls)

	_, err = v.MeasureLatency(&fakeScorer{err: utils.ErrNotTrained}, []features.Vector{{}})
	assert.True(t, errors.Is(err, utils.ErrNotTrained))

	_, err = v.MeasureLatency(scorer, nil)
	assert.True(t, errors.Is(err, utils.ErrInvalidInput))
}
