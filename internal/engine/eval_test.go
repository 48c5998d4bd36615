package engine

import (
	"math"
	"testing"
)

func TestEvaluateConfusionMetrics(t *testing.T) {
	labels := []float64{1, 1, 0, 0}
	probs := []float64{0.9, 0.4, 0.6, 0.1}
	ev := Evaluate(labels, probs, 0.5)

	if ev.Accuracy != 0.5 || ev.Precision != 0.5 || ev.Recall != 0.5 || ev.F1 != 0.5 {
		t.Fatalf("unexpected metrics: %+v", ev)
	}
	if math.Abs(ev.ROCAUC-0.75) > 1e-12 {
		t.Fatalf("expected auc 0.75, got %f", ev.ROCAUC)
	}
}

func TestEvaluateWithoutPositivePredictions(t *testing.T) {
	ev := Evaluate([]float64{1, 0, 1}, []float64{0.1, 0.2, 0.3}, 0.5)
	if ev.Precision != 0 || ev.Recall != 0 || ev.F1 != 0 {
		t.Fatalf("expected zero precision/recall/f1, got %+v", ev)
	}
	if math.Abs(ev.Accuracy-1.0/3.0) > 1e-12 {
		t.Fatalf("unexpected accuracy %f", ev.Accuracy)
	}
}

func TestROCAUCTiesAndSingleClass(t *testing.T) {
	if got := ROCAUC([]float64{1, 0}, []float64{0.5, 0.5}); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("expected tied scores to give 0.5, got %f", got)
	}
	if got := ROCAUC([]float64{1, 0, 1, 0}, []float64{0.8, 0.2, 0.7, 0.3}); got != 1 {
		t.Fatalf("expected perfect ranking to give 1, got %f", got)
	}
	if got := ROCAUC([]float64{1, 1}, []float64{0.2, 0.9}); got != 0.5 {
		t.Fatalf("expected 0.5 for single class, got %f", got)
	}
}

func TestLogLoss(t *testing.T) {
	got := LogLoss([]float64{1, 0}, []float64{0.8, 0.2})
	want := -math.Log(0.8)
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("expected %f, got %f", want, got)
	}
	if math.IsInf(LogLoss([]float64{1}, []float64{0}), 0) {
		t.Fatalf("log loss must clip probabilities")
	}
}
