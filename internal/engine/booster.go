package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"github.com/miradorstack/habit-ml/internal/utils"
)

// Matrix is a dense row-major design matrix with binary labels.
type Matrix struct {
	Rows   [][]float64
	Labels []float64
}

// Len reports the number of rows.
func (m Matrix) Len() int { return len(m.Rows) }

// Booster is a trained additive ensemble of regression trees over the logistic link.
type Booster struct {
	Params        Params  `json:"params"`
	NumFeatures   int     `json:"num_features"`
	BaseMargin    float64 `json:"base_margin"`
	Trees         []Tree  `json:"trees"`
	BestIteration int     `json:"best_iteration"`
}

// Fit trains a booster on train. When valid is non-empty and EarlyStoppingRounds is set,
// training stops once validation log-loss has not improved for that many rounds and the
// ensemble is truncated to the best round.
func Fit(ctx context.Context, params Params, train Matrix, valid *Matrix, logger *slog.Logger) (*Booster, error) {
	const op = "engine.Fit"
	if logger == nil {
		logger = slog.Default()
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	width, err := checkMatrix(op, train)
	if err != nil {
		return nil, err
	}
	positives := 0.0
	for _, y := range train.Labels {
		positives += y
	}
	if positives == 0 || positives == float64(train.Len()) {
		return nil, utils.InputError(op, "training labels contain a single class")
	}
	useValid := valid != nil && valid.Len() > 0 && params.EarlyStoppingRounds > 0
	if useValid {
		vw, err := checkMatrix(op, *valid)
		if err != nil {
			return nil, err
		}
		if vw != width {
			return nil, utils.InputError(op, "validation width %d does not match training width %d", vw, width)
		}
	}

	prior := clampProbability(positives / float64(train.Len()))
	booster := &Booster{
		Params:      params,
		NumFeatures: width,
		BaseMargin:  math.Log(prior / (1 - prior)),
	}

	rng := rand.New(rand.NewSource(params.Seed))
	n := train.Len()
	margins := filled(n, booster.BaseMargin)
	grad := make([]float64, n)
	hess := make([]float64, n)

	var validMargins []float64
	if useValid {
		validMargins = filled(valid.Len(), booster.BaseMargin)
	}
	bestLoss := math.Inf(1)
	bestRound := 0

	builder := &treeBuilder{params: params, x: train.Rows, grad: grad, hess: hess}
	for round := 0; round < params.NumRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		for i, m := range margins {
			p := sigmoid(m)
			grad[i] = p - train.Labels[i]
			hess[i] = math.Max(p*(1-p), 1e-16)
		}
		builder.features = sampleColumns(rng, width, params.ColsampleByTree)
		tree := builder.build(sampleRows(rng, n, params.Subsample))
		booster.Trees = append(booster.Trees, tree)

		for i, row := range train.Rows {
			margins[i] += tree.predict(row)
		}

		if !useValid {
			continue
		}
		probs := make([]float64, len(validMargins))
		for i, row := range valid.Rows {
			validMargins[i] += tree.predict(row)
			probs[i] = sigmoid(validMargins[i])
		}
		loss := LogLoss(valid.Labels, probs)
		if loss < bestLoss {
			bestLoss = loss
			bestRound = round
		}
		if round%10 == 0 {
			logger.Debug("boosting round", "round", round, "valid_logloss", loss)
		}
		if round-bestRound >= params.EarlyStoppingRounds {
			logger.Debug("early stopping", "round", round, "best_round", bestRound, "best_logloss", bestLoss)
			break
		}
	}

	if useValid {
		booster.Trees = booster.Trees[:bestRound+1]
		booster.BestIteration = bestRound
	} else {
		booster.BestIteration = len(booster.Trees) - 1
	}
	return booster, nil
}

// PredictMargin returns the raw log-odds for row.
func (b *Booster) PredictMargin(row []float64) float64 {
	margin := b.BaseMargin
	for _, t := range b.Trees {
		margin += t.predict(row)
	}
	return margin
}

// PredictProba returns the probability of the positive class for row.
func (b *Booster) PredictProba(row []float64) float64 {
	return sigmoid(b.PredictMargin(row))
}

// FeatureImportance returns the average split gain per feature, normalised to sum to 1.
// Features never used in a split score 0. A booster without splits returns all zeros.
func (b *Booster) FeatureImportance() []float64 {
	gain := make([]float64, b.NumFeatures)
	count := make([]float64, b.NumFeatures)
	for _, t := range b.Trees {
		for _, n := range t.Nodes {
			if n.Leaf {
				continue
			}
			gain[n.Feature] += n.Gain
			count[n.Feature]++
		}
	}
	total := 0.0
	for i := range gain {
		if count[i] > 0 {
			gain[i] /= count[i]
		}
		total += gain[i]
	}
	if total > 0 {
		for i := range gain {
			gain[i] /= total
		}
	}
	return gain
}

// Check verifies the booster's structure against the expected feature width.
func (b *Booster) Check(width int) error {
	const op = "engine.Booster.Check"
	if b.NumFeatures != width {
		return utils.NewAppError(op, fmt.Sprintf("model expects %d features, metadata lists %d", b.NumFeatures, width), utils.ErrSchemaMismatch)
	}
	for ti, t := range b.Trees {
		if len(t.Nodes) == 0 {
			return utils.InputError(op, "tree %d has no nodes", ti)
		}
		for ni, n := range t.Nodes {
			if n.Leaf {
				continue
			}
			if n.Feature < 0 || n.Feature >= width || n.Left <= ni || n.Right <= ni || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return utils.InputError(op, "tree %d node %d is malformed", ti, ni)
			}
		}
	}
	return nil
}

func checkMatrix(op string, m Matrix) (int, error) {
	if m.Len() == 0 {
		return 0, utils.InputError(op, "matrix has no rows")
	}
	if len(m.Labels) != m.Len() {
		return 0, utils.InputError(op, "%d rows but %d labels", m.Len(), len(m.Labels))
	}
	width := len(m.Rows[0])
	if width == 0 {
		return 0, utils.InputError(op, "matrix has no columns")
	}
	for i, row := range m.Rows {
		if len(row) != width {
			return 0, utils.InputError(op, "row %d has %d columns, expected %d", i, len(row), width)
		}
		if y := m.Labels[i]; y != 0 && y != 1 {
			return 0, utils.InputError(op, "row %d has non-binary label %v", i, y)
		}
	}
	return width, nil
}

func sampleRows(rng *rand.Rand, n int, fraction float64) []int {
	rows := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if fraction >= 1 || rng.Float64() < fraction {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		for i := 0; i < n; i++ {
			rows = append(rows, i)
		}
	}
	return rows
}

func sampleColumns(rng *rand.Rand, width int, fraction float64) []int {
	k := int(math.Round(fraction * float64(width)))
	if k < 1 {
		k = 1
	}
	cols := rng.Perm(width)[:k]
	sort.Ints(cols)
	return cols
}

func filled(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func clampProbability(p float64) float64 {
	const eps = 1e-6
	return math.Min(math.Max(p, eps), 1-eps)
}
