package models

// RiskCategory buckets a success probability.
type RiskCategory string

const (
	RiskHighSuccess  RiskCategory = "high_success"
	RiskModerateRisk RiskCategory = "moderate_risk"
	RiskHighRisk     RiskCategory = "high_risk"
)

// Outcome is the binary prediction label at the 0.5 threshold.
type Outcome string

const (
	OutcomeMaintained Outcome = "maintained"
	OutcomeAtRisk     Outcome = "at_risk"
)

// Contribution is one feature's weight in an explanation. Contribution is
// value × global importance, a heuristic proxy rather than an attribution.
type Contribution struct {
	Feature      string  `json:"feature"`
	Value        float64 `json:"value"`
	Importance   float64 `json:"importance"`
	Contribution float64 `json:"contribution"`
}

// Explanation describes a single prediction.
type Explanation struct {
	SuccessProbability float64        `json:"success_probability"`
	RiskCategory       RiskCategory   `json:"risk_category"`
	Prediction         Outcome        `json:"prediction"`
	ModelConfidence    float64        `json:"model_confidence"`
	TopContributions   []Contribution `json:"top_contributing_features"`
}

// HabitScore is the scoring service's per-habit result.
type HabitScore struct {
	HabitID            string       `json:"habit_id"`
	UserID             string       `json:"user_id"`
	ModelID            string       `json:"model_id"`
	SuccessProbability float64      `json:"success_probability"`
	RiskCategory       RiskCategory `json:"risk_category"`
	Recommendations    []string     `json:"recommendations,omitempty"`
}
