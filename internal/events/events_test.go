package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/habit-ml/internal/models"
)

func TestNoopPublisher(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), RoutingModelTrained, map[string]string{"k": "v"}))
	assert.NoError(t, p.Close())
}

func TestModelTrainedPayload(t *testing.T) {
	trainedAt := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)
	meta := models.ModelMetadata{
		ModelID:   "model-1",
		TrainedAt: trainedAt,
		Metrics:   models.TrainingMetrics{Accuracy: 0.91, ROCAUC: 0.95, TestSamples: 40},
	}
	passed := true
	ev := NewModelTrained("habit_success_model_20240615", meta, &passed, trainedAt.Add(time.Minute))

	_, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, "model-1", ev.ModelID)
	assert.Equal(t, trainedAt.Add(time.Minute), ev.OccurredAt)

	body, err := json.Marshal(NewModelTrained("m", meta, nil, trainedAt))
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.NotContains(t, decoded, "validated")
	assert.Equal(t, 0.95, decoded["metrics"].(map[string]any)["roc_auc"])
}
