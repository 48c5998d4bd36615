package validation

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/miradorstack/habit-ml/internal/dataset"
	"github.com/miradorstack/habit-ml/internal/features"
	"github.com/miradorstack/habit-ml/internal/models"
	"github.com/miradorstack/habit-ml/internal/utils"
)

// Check names reported by the validator.
const (
	CheckPerformance       = "performance"
	CheckLatency           = "latency"
	CheckFeatureImportance = "feature_importance"
	CheckModelSize         = "model_size"
	CheckDataQuality       = "data_quality"
)

// Thresholds are the minimum acceptable test-set metrics.
type Thresholds struct {
	Accuracy  float64 `yaml:"accuracy"`
	Precision float64 `yaml:"precision"`
	Recall    float64 `yaml:"recall"`
	F1Score   float64 `yaml:"f1Score"`
	ROCAUC    float64 `yaml:"rocAuc"`
}

func (t Thresholds) asMap() map[string]float64 {
	return map[string]float64{
		"accuracy":  t.Accuracy,
		"precision": t.Precision,
		"recall":    t.Recall,
		"f1_score":  t.F1Score,
		"roc_auc":   t.ROCAUC,
	}
}

// Config controls deployment gates.
type Config struct {
	Thresholds           Thresholds    `yaml:"thresholds"`
	MaxP95Latency        time.Duration `yaml:"maxP95Latency"`
	MaxModelSizeBytes    int64         `yaml:"maxModelSizeBytes"`
	MinFeatureImportance float64       `yaml:"minFeatureImportance"`
	MaxTop3Importance    float64       `yaml:"maxTop3Importance"`
	MinMinorityRatio     float64       `yaml:"minMinorityRatio"`
	LatencySamples       int           `yaml:"latencySamples"`
}

// DefaultConfig returns the habit success model gates.
func DefaultConfig() Config {
	return Config{
		Thresholds: Thresholds{
			Accuracy:  0.80,
			Precision: 0.75,
			Recall:    0.70,
			F1Score:   0.72,
			ROCAUC:    0.82,
		},
		MaxP95Latency:        100 * time.Millisecond,
		MaxModelSizeBytes:    50 << 20,
		MinFeatureImportance: 0.01,
		MaxTop3Importance:    0.8,
		MinMinorityRatio:     0.10,
		LatencySamples:       200,
	}
}

// Check is the outcome of one validation step. Advisory checks report issues without
// failing the report.
type Check struct {
	Name     string   `json:"name"`
	Passed   bool     `json:"passed"`
	Advisory bool     `json:"advisory,omitempty"`
	Issues   []string `json:"issues,omitempty"`
}

// Report aggregates every check that had input to run on.
type Report struct {
	Passed bool    `json:"passed"`
	Checks []Check `json:"checks"`
}

// Issues flattens the issues of every check.
func (r Report) Issues() []string {
	var out []string
	for _, c := range r.Checks {
		for _, issue := range c.Issues {
			out = append(out, c.Name+": "+issue)
		}
	}
	return out
}

// Input carries the artefacts of a training run. Nil or zero members skip their check.
type Input struct {
	Metrics           *models.TrainingMetrics
	FeatureImportance map[string]float64
	ModelSizeBytes    int64
	Latency           *utils.LatencySummary
	Data              *dataset.Summary
}

// Validator checks a trained model against deployment gates.
type Validator struct {
	cfg    Config
	logger *slog.Logger
}

// New constructs a Validator.
func New(logger *slog.Logger, cfg Config) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{cfg: cfg, logger: logger}
}

// Validate runs every check with available input and logs the outcome.
func (v *Validator) Validate(in Input) Report {
	var checks []Check
	if in.Metrics != nil {
		checks = append(checks, v.performance(*in.Metrics))
	}
	if in.Latency != nil {
		checks = append(checks, v.latency(*in.Latency))
	}
	if len(in.FeatureImportance) > 0 {
		checks = append(checks, v.featureImportance(in.FeatureImportance))
	}
	if in.ModelSizeBytes > 0 {
		checks = append(checks, v.modelSize(in.ModelSizeBytes))
	}
	if in.Data != nil {
		checks = append(checks, v.dataQuality(*in.Data))
	}

	report := Report{Passed: true, Checks: checks}
	for _, c := range checks {
		switch {
		case c.Passed:
			v.logger.Info("validation check passed", "check", c.Name)
		case c.Advisory:
			v.logger.Warn("validation check raised warnings", "check", c.Name, "issues", c.Issues)
		default:
			report.Passed = false
			v.logger.Error("validation check failed", "check", c.Name, "issues", c.Issues)
		}
	}
	return report
}

func (v *Validator) performance(m models.TrainingMetrics) Check {
	c := Check{Name: CheckPerformance, Passed: true}
	actual := m.AsMap()
	thresholds := v.cfg.Thresholds.asMap()
	names := make([]string, 0, len(thresholds))
	for name := range thresholds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if actual[name] < thresholds[name] {
			c.Passed = false
			c.Issues = append(c.Issues, fmt.Sprintf("%s: %.4f < %.4f (threshold)", name, actual[name], thresholds[name]))
		}
	}
	return c
}

func (v *Validator) latency(s utils.LatencySummary) Check {
	c := Check{Name: CheckLatency, Passed: true}
	v.logger.Info("prediction latency", "samples", s.Samples, "p50", s.P50, "p95", s.P95, "p99", s.P99)
	if v.cfg.MaxP95Latency > 0 && s.P95 > v.cfg.MaxP95Latency {
		c.Passed = false
		c.Issues = append(c.Issues, fmt.Sprintf("p95 latency %s > %s threshold", s.P95, v.cfg.MaxP95Latency))
	}
	return c
}

func (v *Validator) featureImportance(importance map[string]float64) Check {
	c := Check{Name: CheckFeatureImportance, Passed: true, Advisory: true}

	var low []string
	values := make([]float64, 0, len(importance))
	for name, imp := range importance {
		if imp < v.cfg.MinFeatureImportance {
			low = append(low, name)
		}
		values = append(values, imp)
	}
	if len(low) > 0 {
		sort.Strings(low)
		c.Issues = append(c.Issues, fmt.Sprintf("%d features have importance < %g: %s",
			len(low), v.cfg.MinFeatureImportance, strings.Join(low, ", ")))
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(values)))
	top := 0.0
	for i := 0; i < len(values) && i < 3; i++ {
		top += values[i]
	}
	if top > v.cfg.MaxTop3Importance {
		c.Issues = append(c.Issues, fmt.Sprintf("top 3 features contribute %.2f%% of total importance", top*100))
	}
	c.Passed = len(c.Issues) == 0
	return c
}

func (v *Validator) modelSize(size int64) Check {
	c := Check{Name: CheckModelSize, Passed: true}
	if v.cfg.MaxModelSizeBytes > 0 && size > v.cfg.MaxModelSizeBytes {
		c.Passed = false
		c.Issues = append(c.Issues, fmt.Sprintf("model size %.2fMB > %.2fMB threshold",
			float64(size)/(1<<20), float64(v.cfg.MaxModelSizeBytes)/(1<<20)))
	}
	return c
}

func (v *Validator) dataQuality(s dataset.Summary) Check {
	c := Check{Name: CheckDataQuality, Passed: true, Advisory: true}
	if s.Rows > 0 && s.MinorityRatio < v.cfg.MinMinorityRatio {
		c.Passed = false
		c.Issues = append(c.Issues, fmt.Sprintf("severe class imbalance: minority class = %.2f%%", s.MinorityRatio*100))
	}
	return c
}

// Scorer is the prediction surface latency is measured against.
type Scorer interface {
	PredictSuccessProbability(v features.Vector) (float64, error)
}

// MeasureLatency times single predictions over samples, cycling through them until
// LatencySamples observations are recorded.
func (v *Validator) MeasureLatency(scorer Scorer, samples []features.Vector) (utils.LatencySummary, error) {
	if len(samples) == 0 {
		return utils.LatencySummary{}, utils.InputError("validation.MeasureLatency", "no samples to time")
	}
	n := v.cfg.LatencySamples
	if n <= 0 {
		n = len(samples)
	}
	tracker := utils.NewLatencyTracker(n)
	for i := 0; i < n; i++ {
		start := time.Now()
		if _, err := scorer.PredictSuccessProbability(samples[i%len(samples)]); err != nil {
			return utils.LatencySummary{}, err
		}
		tracker.Observe(time.Since(start))
	}
	return tracker.Summary(), nil
}
