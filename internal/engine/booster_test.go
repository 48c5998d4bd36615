package engine

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/miradorstack/habit-ml/internal/utils"
)

// separable returns rows whose label is decided by column 0; column 1 is weakly informative
// and column 2 is noise.
func separable(n int, seed int64) Matrix {
	rng := rand.New(rand.NewSource(seed))
	m := Matrix{Rows: make([][]float64, n), Labels: make([]float64, n)}
	for i := 0; i < n; i++ {
		label := float64(i % 2)
		signal := label*2 - 1
		m.Rows[i] = []float64{
			signal + rng.NormFloat64()*0.2,
			signal*0.3 + rng.NormFloat64(),
			rng.NormFloat64(),
		}
		m.Labels[i] = label
	}
	return m
}

// noise returns labels that are independent of every column.
func noise(n int, seed int64) Matrix {
	rng := rand.New(rand.NewSource(seed))
	m := Matrix{Rows: make([][]float64, n), Labels: make([]float64, n)}
	for i := 0; i < n; i++ {
		m.Rows[i] = []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		m.Labels[i] = float64(rng.Intn(2))
	}
	m.Labels[0], m.Labels[1] = 0, 1
	return m
}

func predictAll(b *Booster, m Matrix) []float64 {
	probs := make([]float64, m.Len())
	for i, row := range m.Rows {
		probs[i] = b.PredictProba(row)
	}
	return probs
}

func TestFitLearnsSeparableData(t *testing.T) {
	train := separable(800, 1)
	test := separable(200, 2)

	booster, err := Fit(context.Background(), DefaultParams(), train, nil, utils.DiscardLogger())
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	ev := Evaluate(test.Labels, predictAll(booster, test), 0.5)
	if ev.Accuracy < 0.95 {
		t.Fatalf("expected accuracy >= 0.95, got %f", ev.Accuracy)
	}
	if ev.ROCAUC < 0.95 {
		t.Fatalf("expected roc auc >= 0.95, got %f", ev.ROCAUC)
	}
	if len(booster.Trees) != DefaultParams().NumRounds {
		t.Fatalf("expected %d trees without validation, got %d", DefaultParams().NumRounds, len(booster.Trees))
	}
}

func TestFitIsDeterministic(t *testing.T) {
	train := separable(300, 3)
	a, err := Fit(context.Background(), DefaultParams(), train, nil, utils.DiscardLogger())
	if err != nil {
		t.Fatalf("fit a: %v", err)
	}
	b, err := Fit(context.Background(), DefaultParams(), train, nil, utils.DiscardLogger())
	if err != nil {
		t.Fatalf("fit b: %v", err)
	}
	for i, row := range train.Rows {
		if a.PredictMargin(row) != b.PredictMargin(row) {
			t.Fatalf("row %d: margins differ between identical fits", i)
		}
	}
}

func TestEarlyStoppingTruncatesToBestRound(t *testing.T) {
	params := DefaultParams()
	params.NumRounds = 300
	params.EarlyStoppingRounds = 5
	train := noise(400, 4)
	valid := noise(200, 5)

	booster, err := Fit(context.Background(), params, train, &valid, utils.DiscardLogger())
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if len(booster.Trees) != booster.BestIteration+1 {
		t.Fatalf("expected %d trees, got %d", booster.BestIteration+1, len(booster.Trees))
	}
	if len(booster.Trees) >= params.NumRounds {
		t.Fatalf("expected early stopping before %d rounds", params.NumRounds)
	}
}

func TestFeatureImportanceFavoursSignal(t *testing.T) {
	booster, err := Fit(context.Background(), DefaultParams(), separable(600, 6), nil, utils.DiscardLogger())
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	importance := booster.FeatureImportance()
	total := 0.0
	for _, v := range importance {
		if v < 0 {
			t.Fatalf("negative importance %v", importance)
		}
		total += v
	}
	if math.Abs(total-1) > 1e-9 {
		t.Fatalf("importance should sum to 1, got %f", total)
	}
	if importance[0] <= importance[2] {
		t.Fatalf("expected signal column to outrank noise: %v", importance)
	}
}

func TestFitRejectsBadInput(t *testing.T) {
	single := Matrix{Rows: [][]float64{{1}, {2}, {3}}, Labels: []float64{1, 1, 1}}
	if _, err := Fit(context.Background(), DefaultParams(), single, nil, nil); !errors.Is(err, utils.ErrInvalidInput) {
		t.Fatalf("expected single-class error, got %v", err)
	}

	ragged := Matrix{Rows: [][]float64{{1, 2}, {3}}, Labels: []float64{0, 1}}
	if _, err := Fit(context.Background(), DefaultParams(), ragged, nil, nil); !errors.Is(err, utils.ErrInvalidInput) {
		t.Fatalf("expected ragged matrix error, got %v", err)
	}

	nonBinary := Matrix{Rows: [][]float64{{1}, {3}}, Labels: []float64{0, 2}}
	if _, err := Fit(context.Background(), DefaultParams(), nonBinary, nil, nil); !errors.Is(err, utils.ErrInvalidInput) {
		t.Fatalf("expected non-binary label error, got %v", err)
	}

	params := DefaultParams()
	params.Subsample = 0
	if _, err := Fit(context.Background(), params, separable(10, 1), nil, nil); !errors.Is(err, utils.ErrInvalidConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestFitHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Fit(ctx, DefaultParams(), separable(50, 1), nil, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCheckDetectsWidthMismatch(t *testing.T) {
	booster, err := Fit(context.Background(), DefaultParams(), separable(100, 8), nil, nil)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if err := booster.Check(3); err != nil {
		t.Fatalf("unexpected check failure: %v", err)
	}
	if err := booster.Check(4); !errors.Is(err, utils.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}
