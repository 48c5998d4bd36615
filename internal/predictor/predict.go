package predictor

import (
	"fmt"
	"math"
	"sort"

	"github.com/miradorstack/habit-ml/internal/features"
	"github.com/miradorstack/habit-ml/internal/models"
)

// Risk category boundaries.
const (
	HighSuccessThreshold  = 0.7
	ModerateRiskThreshold = 0.4
	decisionThreshold     = 0.5
	defaultTopN           = 5
)

// FeatureWeight pairs a feature with its global importance.
type FeatureWeight struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// RiskCategory buckets a success probability.
func RiskCategory(probability float64) models.RiskCategory {
	switch {
	case probability >= HighSuccessThreshold:
		return models.RiskHighSuccess
	case probability >= ModerateRiskThreshold:
		return models.RiskModerateRisk
	default:
		return models.RiskHighRisk
	}
}

// PredictSuccessProbability returns the probability that the habit described by v is
// maintained. v must carry every feature of the model.
func (p *Predictor) PredictSuccessProbability(v features.Vector) (float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.state == StateUntrained {
		return 0, notTrained("predictor.PredictSuccessProbability")
	}
	row, err := v.Ordered(p.featureNames)
	if err != nil {
		return 0, err
	}
	return p.booster.PredictProba(row), nil
}

// PredictBatch scores every vector. Any invalid vector fails the whole batch.
func (p *Predictor) PredictBatch(vs []features.Vector) ([]float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.state == StateUntrained {
		return nil, notTrained("predictor.PredictBatch")
	}
	rows := make([][]float64, len(vs))
	for i, v := range vs {
		row, err := v.Ordered(p.featureNames)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		rows[i] = row
	}
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = p.booster.PredictProba(row)
	}
	return out, nil
}

// Explain describes the prediction for v. Contributions are value × global importance,
// ranked by magnitude; this is a heuristic, not a per-prediction attribution. topN <= 0
// returns the default of five.
func (p *Predictor) Explain(v features.Vector, topN int) (models.Explanation, error) {
	if topN <= 0 {
		topN = defaultTopN
	}

	p.mu.RLock()
	if p.state == StateUntrained {
		p.mu.RUnlock()
		return models.Explanation{}, notTrained("predictor.Explain")
	}
	row, err := v.Ordered(p.featureNames)
	if err != nil {
		p.mu.RUnlock()
		return models.Explanation{}, err
	}
	prob := p.booster.PredictProba(row)
	contributions := make([]models.Contribution, 0, len(p.featureNames))
	for _, name := range p.featureNames {
		imp := p.importance[name]
		contributions = append(contributions, models.Contribution{
			Feature:      name,
			Value:        v[name],
			Importance:   imp,
			Contribution: v[name] * imp,
		})
	}
	p.mu.RUnlock()

	sort.SliceStable(contributions, func(i, j int) bool {
		return math.Abs(contributions[i].Contribution) > math.Abs(contributions[j].Contribution)
	})
	if len(contributions) > topN {
		contributions = contributions[:topN]
	}

	outcome := models.OutcomeAtRisk
	if prob >= decisionThreshold {
		outcome = models.OutcomeMaintained
	}
	return models.Explanation{
		SuccessProbability: prob,
		RiskCategory:       RiskCategory(prob),
		Prediction:         outcome,
		ModelConfidence:    math.Abs(prob-decisionThreshold) * 2,
		TopContributions:   contributions,
	}, nil
}

// TopFeatures returns the n most important features, ties kept in model order.
func (p *Predictor) TopFeatures(n int) ([]FeatureWeight, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.state == StateUntrained {
		return nil, notTrained("predictor.TopFeatures")
	}
	weights := make([]FeatureWeight, 0, len(p.featureNames))
	for _, name := range p.featureNames {
		weights = append(weights, FeatureWeight{Feature: name, Importance: p.importance[name]})
	}
	sort.SliceStable(weights, func(i, j int) bool { return weights[i].Importance > weights[j].Importance })
	if n >= 0 && n < len(weights) {
		weights = weights[:n]
	}
	return weights, nil
}
