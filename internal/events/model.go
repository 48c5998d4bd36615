package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/habit-ml/internal/models"
)

// RoutingModelTrained is published after a model pair has been saved.
const RoutingModelTrained = "model.trained"

// ModelTrained announces a newly saved model.
type ModelTrained struct {
	EventID    string                 `json:"event_id"`
	OccurredAt time.Time              `json:"occurred_at"`
	Name       string                 `json:"name"`
	ModelID    string                 `json:"model_id"`
	TrainedAt  time.Time              `json:"trained_at"`
	Metrics    models.TrainingMetrics `json:"metrics"`
	Validated  *bool                  `json:"validated,omitempty"`
}

// NewModelTrained builds the event for a saved model. validated is nil when the run was
// not validated.
func NewModelTrained(name string, meta models.ModelMetadata, validated *bool, now time.Time) ModelTrained {
	return ModelTrained{
		EventID:    uuid.NewString(),
		OccurredAt: now.UTC(),
		Name:       name,
		ModelID:    meta.ModelID,
		TrainedAt:  meta.TrainedAt,
		Metrics:    meta.Metrics,
		Validated:  validated,
	}
}
