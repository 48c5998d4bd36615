package engine

import (
	"fmt"

	"github.com/miradorstack/habit-ml/internal/utils"
)

// Params controls the boosted tree ensemble.
type Params struct {
	MaxDepth            int     `yaml:"maxDepth" json:"max_depth"`
	LearningRate        float64 `yaml:"learningRate" json:"learning_rate"`
	NumRounds           int     `yaml:"numRounds" json:"num_rounds"`
	Subsample           float64 `yaml:"subsample" json:"subsample"`
	ColsampleByTree     float64 `yaml:"colsampleByTree" json:"colsample_bytree"`
	MinChildWeight      float64 `yaml:"minChildWeight" json:"min_child_weight"`
	Gamma               float64 `yaml:"gamma" json:"gamma"`
	Alpha               float64 `yaml:"alpha" json:"alpha"`
	Lambda              float64 `yaml:"lambda" json:"lambda"`
	EarlyStoppingRounds int     `yaml:"earlyStoppingRounds" json:"early_stopping_rounds"`
	Seed                int64   `yaml:"seed" json:"seed"`
}

// DefaultParams returns the settings the habit success model is trained with.
func DefaultParams() Params {
	return Params{
		MaxDepth:            6,
		LearningRate:        0.1,
		NumRounds:           100,
		Subsample:           0.8,
		ColsampleByTree:     0.8,
		MinChildWeight:      3,
		Gamma:               0.1,
		Alpha:               0.01,
		Lambda:              1,
		EarlyStoppingRounds: 10,
		Seed:                42,
	}
}

// Validate rejects parameter combinations the trainer cannot honour.
func (p Params) Validate() error {
	const op = "engine.Params.Validate"
	switch {
	case p.MaxDepth < 1:
		return utils.ConfigError(op, "maxDepth must be >= 1, got %d", p.MaxDepth)
	case p.LearningRate <= 0 || p.LearningRate > 1:
		return utils.ConfigError(op, "learningRate must be in (0, 1], got %v", p.LearningRate)
	case p.NumRounds < 1:
		return utils.ConfigError(op, "numRounds must be >= 1, got %d", p.NumRounds)
	case p.Subsample <= 0 || p.Subsample > 1:
		return utils.ConfigError(op, "subsample must be in (0, 1], got %v", p.Subsample)
	case p.ColsampleByTree <= 0 || p.ColsampleByTree > 1:
		return utils.ConfigError(op, "colsampleByTree must be in (0, 1], got %v", p.ColsampleByTree)
	case p.MinChildWeight < 0 || p.Gamma < 0 || p.Alpha < 0 || p.Lambda < 0:
		return utils.ConfigError(op, "regularisation terms must be non-negative")
	case p.EarlyStoppingRounds < 0:
		return utils.ConfigError(op, "earlyStoppingRounds must be >= 0, got %d", p.EarlyStoppingRounds)
	}
	return nil
}

func (p Params) String() string {
	return fmt.Sprintf("depth=%d eta=%g rounds=%d subsample=%g colsample=%g seed=%d",
		p.MaxDepth, p.LearningRate, p.NumRounds, p.Subsample, p.ColsampleByTree, p.Seed)
}
