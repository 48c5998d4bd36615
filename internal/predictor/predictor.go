package predictor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/habit-ml/internal/dataset"
	"github.com/miradorstack/habit-ml/internal/engine"
	"github.com/miradorstack/habit-ml/internal/features"
	"github.com/miradorstack/habit-ml/internal/models"
	"github.com/miradorstack/habit-ml/internal/utils"
)

// State tracks where a Predictor is in its lifecycle.
type State int

const (
	StateUntrained State = iota
	StateTrained
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateTrained:
		return "trained"
	case StateLoaded:
		return "loaded"
	default:
		return "untrained"
	}
}

// TrainOptions selects the label and the held-out partitions.
type TrainOptions struct {
	LabelColumn        string  `yaml:"labelColumn"`
	TestFraction       float64 `yaml:"testFraction"`
	ValidationFraction float64 `yaml:"validationFraction"`
}

// DefaultTrainOptions holds out 20% for testing and 10% of the remainder for early stopping.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		LabelColumn:        dataset.LabelColumn,
		TestFraction:       0.2,
		ValidationFraction: 0.1,
	}
}

// Validate checks the partition fractions.
func (o TrainOptions) Validate() error {
	const op = "predictor.TrainOptions.Validate"
	if o.TestFraction <= 0 || o.TestFraction >= 1 {
		return utils.ConfigError(op, "test fraction must be in (0, 1), got %v", o.TestFraction)
	}
	if o.ValidationFraction < 0 || o.ValidationFraction >= 1 {
		return utils.ConfigError(op, "validation fraction must be in [0, 1), got %v", o.ValidationFraction)
	}
	return nil
}

// Predictor trains, applies and persists the habit success classifier. Predictions may run
// concurrently; Train and Load take the write lock and replace the model wholesale.
type Predictor struct {
	mu sync.RWMutex

	logger       *slog.Logger
	params       engine.Params
	featureNames []string
	now          func() time.Time

	state      State
	booster    *engine.Booster
	importance map[string]float64
	metadata   models.ModelMetadata
}

// New constructs an untrained Predictor over featureNames, defaulting to
// features.ModelFeatureNames.
func New(logger *slog.Logger, params engine.Params, featureNames []string) *Predictor {
	if logger == nil {
		logger = slog.Default()
	}
	if len(featureNames) == 0 {
		featureNames = features.ModelFeatureNames()
	}
	return &Predictor{
		logger:       logger,
		params:       params,
		featureNames: append([]string(nil), featureNames...),
		now:          time.Now,
	}
}

// State reports the lifecycle state.
func (p *Predictor) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// FeatureNames returns the ordered feature contract of the current model.
func (p *Predictor) FeatureNames() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.featureNames...)
}

// Metadata returns the current model's metadata.
func (p *Predictor) Metadata() (models.ModelMetadata, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.state == StateUntrained {
		return models.ModelMetadata{}, notTrained("predictor.Metadata")
	}
	return p.metadata, nil
}

// Train fits a new model on ds and evaluates it on a stratified held-out test partition.
// Early stopping uses a stratified validation partition carved from the training rows.
// On success the previous model, if any, is replaced.
func (p *Predictor) Train(ctx context.Context, ds dataset.Dataset, opts TrainOptions) (models.TrainingMetrics, error) {
	const op = "predictor.Train"
	if err := opts.Validate(); err != nil {
		return models.TrainingMetrics{}, err
	}
	if ds.Len() == 0 {
		return models.TrainingMetrics{}, utils.InputError(op, "dataset is empty")
	}

	names := p.FeatureNames()
	labelColumn := opts.LabelColumn
	if labelColumn == "" {
		labelColumn = ds.LabelColumn
	}
	for _, name := range names {
		if name == labelColumn {
			return models.TrainingMetrics{}, utils.ConfigError(op, "label column %q is also a feature", labelColumn)
		}
	}

	labels, err := extractLabels(ds, labelColumn)
	if err != nil {
		return models.TrainingMetrics{}, err
	}
	positives := 0
	for _, y := range labels {
		positives += y
	}
	if positives == 0 || positives == len(labels) {
		return models.TrainingMetrics{}, utils.InputError(op, "label %q has a single class across %d rows", labelColumn, len(labels))
	}

	rows := make([][]float64, ds.Len())
	for i, r := range ds.Rows {
		if rows[i], err = r.Features.Ordered(names); err != nil {
			return models.TrainingMetrics{}, fmt.Errorf("habit %s: %w", r.HabitID, err)
		}
	}

	trainIdx, testIdx := dataset.StratifiedSplit(labels, opts.TestFraction, p.params.Seed)
	if err := checkPartition(op, "test", labels, testIdx); err != nil {
		return models.TrainingMetrics{}, err
	}
	var validIdx []int
	if opts.ValidationFraction > 0 {
		keep, held := dataset.StratifiedSplit(pick(labels, trainIdx), opts.ValidationFraction, p.params.Seed)
		if len(held) == 0 {
			return models.TrainingMetrics{}, utils.InputError(op,
				"validation fraction %v of %d training rows leaves an empty validation partition", opts.ValidationFraction, len(trainIdx))
		}
		validIdx = remap(trainIdx, held)
		trainIdx = remap(trainIdx, keep)
	}
	if err := checkPartition(op, "training", labels, trainIdx); err != nil {
		return models.TrainingMetrics{}, err
	}

	train := matrix(rows, labels, trainIdx)
	var valid *engine.Matrix
	if len(validIdx) > 0 {
		m := matrix(rows, labels, validIdx)
		valid = &m
	}
	test := matrix(rows, labels, testIdx)

	booster, err := engine.Fit(ctx, p.params, train, valid, p.logger)
	if err != nil {
		return models.TrainingMetrics{}, fmt.Errorf("%s: %w", op, err)
	}

	probs := make([]float64, test.Len())
	for i, row := range test.Rows {
		probs[i] = booster.PredictProba(row)
	}
	ev := engine.Evaluate(test.Labels, probs, 0.5)

	trainPositives := 0.0
	for _, y := range train.Labels {
		trainPositives += y
	}
	metrics := models.TrainingMetrics{
		Accuracy:           ev.Accuracy,
		Precision:          ev.Precision,
		Recall:             ev.Recall,
		F1Score:            ev.F1,
		ROCAUC:             ev.ROCAUC,
		TrainingSamples:    train.Len(),
		ValidationSamples:  len(validIdx),
		TestSamples:        test.Len(),
		PositiveClassRatio: trainPositives / float64(train.Len()),
		BestIteration:      booster.BestIteration,
	}

	importance := importanceMap(names, booster.FeatureImportance())
	p.mu.Lock()
	defer p.mu.Unlock()
	p.booster = booster
	p.featureNames = names
	p.importance = importance
	p.metadata = models.ModelMetadata{
		ModelID:           uuid.NewString(),
		TrainedAt:         p.now().UTC(),
		FeatureNames:      append([]string(nil), names...),
		Metrics:           metrics,
		FeatureImportance: importance,
	}
	p.state = StateTrained

	p.logger.Info("model trained",
		"model_id", p.metadata.ModelID,
		"trees", len(booster.Trees),
		"training_samples", metrics.TrainingSamples,
		"test_samples", metrics.TestSamples,
		"roc_auc", metrics.ROCAUC)
	return metrics, nil
}

// extractLabels reads the dataset label, or a 0/1 feature when labelColumn names one.
func extractLabels(ds dataset.Dataset, labelColumn string) ([]int, error) {
	const op = "predictor.Train"
	labels := make([]int, ds.Len())
	for i, r := range ds.Rows {
		if labelColumn == ds.LabelColumn {
			labels[i] = r.Label
		} else {
			v, ok := r.Features[labelColumn]
			if !ok {
				return nil, utils.NewAppError(op, fmt.Sprintf("habit %s: label column %q missing", r.HabitID, labelColumn), utils.ErrSchemaMismatch)
			}
			labels[i] = int(v)
			if float64(labels[i]) != v {
				labels[i] = -1
			}
		}
		if labels[i] != 0 && labels[i] != 1 {
			return nil, utils.InputError(op, "habit %s: label %q is not binary", r.HabitID, labelColumn)
		}
	}
	return labels, nil
}

// checkPartition requires idx to hold rows of both classes.
func checkPartition(op, partition string, labels []int, idx []int) error {
	positives := 0
	for _, i := range idx {
		positives += labels[i]
	}
	if positives == 0 || positives == len(idx) {
		return utils.InputError(op, "%s partition has %d rows with %d positives; both classes are required", partition, len(idx), positives)
	}
	return nil
}

func matrix(rows [][]float64, labels []int, idx []int) engine.Matrix {
	m := engine.Matrix{Rows: make([][]float64, len(idx)), Labels: make([]float64, len(idx))}
	for i, j := range idx {
		m.Rows[i] = rows[j]
		m.Labels[i] = float64(labels[j])
	}
	return m
}

func pick(labels []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = labels[j]
	}
	return out
}

// remap translates positions within base back to dataset indices.
func remap(base []int, positions []int) []int {
	out := make([]int, len(positions))
	for i, pos := range positions {
		out[i] = base[pos]
	}
	return out
}

func importanceMap(names []string, values []float64) map[string]float64 {
	out := make(map[string]float64, len(names))
	for i, name := range names {
		out[name] = values[i]
	}
	return out
}

func notTrained(op string) error {
	return utils.NewAppError(op, "model not trained or loaded", utils.ErrNotTrained)
}
