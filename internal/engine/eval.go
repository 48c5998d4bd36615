package engine

import (
	"math"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// Evaluation holds binary classification metrics at a fixed decision threshold.
type Evaluation struct {
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
	ROCAUC    float64
	LogLoss   float64
}

// Evaluate scores probs against binary labels. Precision, recall and F1 are 0 when their
// denominator is empty.
func Evaluate(labels, probs []float64, threshold float64) Evaluation {
	var tp, fp, tn, fn float64
	for i, p := range probs {
		predicted := p >= threshold
		actual := labels[i] == 1
		switch {
		case predicted && actual:
			tp++
		case predicted && !actual:
			fp++
		case !predicted && actual:
			fn++
		default:
			tn++
		}
	}

	ev := Evaluation{
		ROCAUC:  ROCAUC(labels, probs),
		LogLoss: LogLoss(labels, probs),
	}
	if n := tp + fp + tn + fn; n > 0 {
		ev.Accuracy = (tp + tn) / n
	}
	if tp+fp > 0 {
		ev.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		ev.Recall = tp / (tp + fn)
	}
	if ev.Precision+ev.Recall > 0 {
		ev.F1 = 2 * ev.Precision * ev.Recall / (ev.Precision + ev.Recall)
	}
	return ev
}

// ROCAUC is the area under the ROC curve. Tied scores contribute half credit. With a single
// class present the area is undefined and 0.5 is returned.
func ROCAUC(labels, probs []float64) float64 {
	scores := make([]float64, len(probs))
	copy(scores, probs)
	classes := make([]bool, len(labels))
	var pos int
	for i, y := range labels {
		classes[i] = y == 1
		if classes[i] {
			pos++
		}
	}
	if pos == 0 || pos == len(labels) {
		return 0.5
	}

	stat.SortWeightedLabeled(scores, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, scores, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}

// LogLoss is the mean binary cross-entropy with probabilities clipped away from 0 and 1.
func LogLoss(labels, probs []float64) float64 {
	if len(probs) == 0 {
		return 0
	}
	const eps = 1e-15
	total := 0.0
	for i, p := range probs {
		p = math.Min(math.Max(p, eps), 1-eps)
		if labels[i] == 1 {
			total -= math.Log(p)
		} else {
			total -= math.Log(1 - p)
		}
	}
	return total / float64(len(probs))
}
