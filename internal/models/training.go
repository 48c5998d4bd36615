package models

import "time"

// TrainingMetrics summarises a training run evaluated on the held-out test partition.
type TrainingMetrics struct {
	Accuracy           float64 `json:"accuracy"`
	Precision          float64 `json:"precision"`
	Recall             float64 `json:"recall"`
	F1Score            float64 `json:"f1_score"`
	ROCAUC             float64 `json:"roc_auc"`
	TrainingSamples    int     `json:"training_samples"`
	ValidationSamples  int     `json:"validation_samples"`
	TestSamples        int     `json:"test_samples"`
	PositiveClassRatio float64 `json:"positive_class_ratio"`
	BestIteration      int     `json:"best_iteration"`
}

// AsMap exposes the threshold-checked metrics by their conventional names.
func (m TrainingMetrics) AsMap() map[string]float64 {
	return map[string]float64{
		"accuracy":  m.Accuracy,
		"precision": m.Precision,
		"recall":    m.Recall,
		"f1_score":  m.F1Score,
		"roc_auc":   m.ROCAUC,
	}
}

// ModelMetadata is persisted alongside the model state.
type ModelMetadata struct {
	ModelID           string             `json:"model_id"`
	TrainedAt         time.Time          `json:"trained_at"`
	FeatureNames      []string           `json:"feature_names"`
	Metrics           TrainingMetrics    `json:"metrics"`
	FeatureImportance map[string]float64 `json:"feature_importance"`
}
