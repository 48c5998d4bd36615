package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/miradorstack/habit-ml/internal/models"
)

const (
	// OutcomeSuccess labels successful training runs and predictions.
	OutcomeSuccess = "success"
	// OutcomeError labels failed runs (dataset, training or storage issues).
	OutcomeError = "error"

	// CacheHit and CacheMiss label score cache lookups.
	CacheHit  = "hit"
	CacheMiss = "miss"
)

var (
	trainingRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "habit_ml",
			Name:      "training_runs_total",
			Help:      "Total number of training runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	trainingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "habit_ml",
			Name:      "training_seconds",
			Help:      "End-to-end training run latency in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	modelMetric = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "habit_ml",
			Name:      "model_metric",
			Help:      "Test-set metrics of the most recently trained model.",
		},
		[]string{"metric"},
	)

	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "habit_ml",
			Name:      "predictions_total",
			Help:      "Total number of habit scores produced, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	predictionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "habit_ml",
			Name:      "prediction_seconds",
			Help:      "Habit scoring latency in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
	)

	scoreCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "habit_ml",
			Name:      "score_cache_total",
			Help:      "Score cache lookups, partitioned by result.",
		},
		[]string{"result"},
	)
)

// Register attaches habit-ml collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		trainingRunsTotal,
		trainingDurationSeconds,
		modelMetric,
		predictionsTotal,
		predictionDurationSeconds,
		scoreCacheTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveTraining records a training run duration and outcome label.
func ObserveTraining(duration time.Duration, outcome string) {
	trainingRunsTotal.WithLabelValues(normaliseOutcome(outcome)).Inc()
	trainingDurationSeconds.Observe(nonNegative(duration).Seconds())
}

// SetModelMetrics publishes the test-set metrics of a freshly trained model.
func SetModelMetrics(m models.TrainingMetrics) {
	for name, value := range m.AsMap() {
		modelMetric.WithLabelValues(name).Set(value)
	}
}

// ObservePrediction records a scoring duration and outcome label.
func ObservePrediction(duration time.Duration, outcome string) {
	predictionsTotal.WithLabelValues(normaliseOutcome(outcome)).Inc()
	predictionDurationSeconds.Observe(nonNegative(duration).Seconds())
}

// ObserveCache counts a score cache lookup.
func ObserveCache(hit bool) {
	result := CacheMiss
	if hit {
		result = CacheHit
	}
	scoreCacheTotal.WithLabelValues(result).Inc()
}

func normaliseOutcome(outcome string) string {
	if outcome != OutcomeError {
		return OutcomeSuccess
	}
	return outcome
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
