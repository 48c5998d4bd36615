package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/miradorstack/habit-ml/internal/dataset"
	"github.com/miradorstack/habit-ml/internal/events"
	"github.com/miradorstack/habit-ml/internal/features"
	"github.com/miradorstack/habit-ml/internal/metrics"
	"github.com/miradorstack/habit-ml/internal/models"
	"github.com/miradorstack/habit-ml/internal/predictor"
	"github.com/miradorstack/habit-ml/internal/registry"
	"github.com/miradorstack/habit-ml/internal/validation"
)

// TrainingSource loads raw habit history created on or after since.
type TrainingSource interface {
	LoadTrainingData(ctx context.Context, since time.Time) ([]models.HabitRecord, map[string]models.UserContext, error)
}

// Options controls a training run.
type Options struct {
	Train        predictor.TrainOptions
	Balance      string
	Seed         int64
	ModelName    string
	LookbackDays int
}

// Result summarises a completed run.
type Result struct {
	Name    string                 `json:"name"`
	Metrics models.TrainingMetrics `json:"metrics"`
	Data    dataset.Summary        `json:"data"`
	Report  *validation.Report     `json:"validation,omitempty"`
}

// Pipeline orchestrates dataset building, training, persistence, validation and
// notification.
type Pipeline struct {
	logger    *slog.Logger
	builder   *dataset.Builder
	predictor *predictor.Predictor
	store     registry.Store
	validator *validation.Validator
	publisher events.Publisher
	opts      Options
	now       func() time.Time
}

// NewPipeline constructs a training pipeline. A nil validator skips validation and a nil
// publisher disables notifications.
func NewPipeline(
	logger *slog.Logger,
	builder *dataset.Builder,
	pred *predictor.Predictor,
	store registry.Store,
	validator *validation.Validator,
	publisher events.Publisher,
	opts Options,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if builder == nil {
		builder = dataset.NewBuilder(logger, features.NewEngineer(), 1)
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Pipeline{
		logger:    logger,
		builder:   builder,
		predictor: pred,
		store:     store,
		validator: validator,
		publisher: publisher,
		opts:      opts,
		now:       time.Now,
	}
}

// Run trains, saves and optionally validates a model from records as of the current time.
func (p *Pipeline) Run(ctx context.Context, records []models.HabitRecord, contexts map[string]models.UserContext) (Result, error) {
	start := time.Now()
	res, err := p.run(ctx, records, contexts)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
	}
	metrics.ObserveTraining(time.Since(start), outcome)
	return res, err
}

// TrainFromSource loads the lookback window from source and runs the pipeline on it.
func (p *Pipeline) TrainFromSource(ctx context.Context, source TrainingSource) (Result, error) {
	since := p.now().AddDate(0, 0, -p.opts.LookbackDays)
	records, contexts, err := source.LoadTrainingData(ctx, since)
	if err != nil {
		metrics.ObserveTraining(0, metrics.OutcomeError)
		return Result{}, fmt.Errorf("load training data: %w", err)
	}
	p.logger.Info("training data loaded", slog.Int("habits", len(records)), slog.Int("users", len(contexts)), slog.Time("since", since))
	return p.Run(ctx, records, contexts)
}

func (p *Pipeline) run(ctx context.Context, records []models.HabitRecord, contexts map[string]models.UserContext) (Result, error) {
	if p.predictor == nil || p.store == nil {
		return Result{}, fmt.Errorf("training pipeline requires a predictor and a model store")
	}
	reference := p.now()

	ds, err := p.builder.Build(ctx, records, contexts, reference)
	if err != nil {
		return Result{}, err
	}
	ds, err = dataset.Balance(ds, p.opts.Balance, p.opts.Seed)
	if err != nil {
		return Result{}, err
	}
	summary := dataset.Describe(ds)
	p.logger.Info("training dataset ready",
		slog.Int("rows", summary.Rows),
		slog.Int("positives", summary.Positives),
		slog.Float64("positive_ratio", summary.PositiveRatio),
		slog.String("balance", p.opts.Balance),
	)

	trained, err := p.predictor.Train(ctx, ds, p.opts.Train)
	if err != nil {
		return Result{}, fmt.Errorf("train model: %w", err)
	}
	metrics.SetModelMetrics(trained)
	p.logger.Info("model metrics",
		slog.Float64("accuracy", trained.Accuracy),
		slog.Float64("precision", trained.Precision),
		slog.Float64("recall", trained.Recall),
		slog.Float64("f1_score", trained.F1Score),
		slog.Float64("roc_auc", trained.ROCAUC),
	)

	name := registry.Versioned(p.opts.ModelName, reference)
	if err := p.predictor.Save(ctx, p.store, name); err != nil {
		return Result{}, fmt.Errorf("save model %s: %w", name, err)
	}

	res := Result{Name: name, Metrics: trained, Data: summary}
	var validated *bool
	if p.validator != nil {
		report, err := p.validate(ctx, name, ds, summary, trained)
		if err != nil {
			return res, fmt.Errorf("validate model %s: %w", name, err)
		}
		res.Report = &report
		validated = &report.Passed
	}

	p.announce(ctx, name, validated, reference)
	return res, nil
}

func (p *Pipeline) validate(ctx context.Context, name string, ds dataset.Dataset, summary dataset.Summary, trained models.TrainingMetrics) (validation.Report, error) {
	meta, err := p.predictor.Metadata()
	if err != nil {
		return validation.Report{}, err
	}
	samples := make([]features.Vector, 0, len(ds.Rows))
	for _, row := range ds.Rows {
		samples = append(samples, row.Features)
	}
	latency, err := p.validator.MeasureLatency(p.predictor, samples)
	if err != nil {
		return validation.Report{}, err
	}
	size, err := registry.ArtifactSize(ctx, p.store, registry.ModelArtifact(name))
	if err != nil {
		return validation.Report{}, err
	}
	return p.validator.Validate(validation.Input{
		Metrics:           &trained,
		FeatureImportance: meta.FeatureImportance,
		ModelSizeBytes:    size,
		Latency:           &latency,
		Data:              &summary,
	}), nil
}

// announce publishes model.trained. The model is already saved, so failures are logged only.
func (p *Pipeline) announce(ctx context.Context, name string, validated *bool, at time.Time) {
	meta, err := p.predictor.Metadata()
	if err != nil {
		return
	}
	event := events.NewModelTrained(name, meta, validated, at)
	if err := p.publisher.Publish(ctx, events.RoutingModelTrained, event); err != nil {
		p.logger.Warn("publish model.trained failed", slog.String("name", name), slog.Any("error", err))
	}
}
