package dataset

import (
	"github.com/miradorstack/habit-ml/internal/features"
)

// LabelColumn names the outcome label: 1 when the habit is still active or was completed.
const LabelColumn = "maintained"

// Row is one labelled training example.
type Row struct {
	HabitID  string          `json:"habit_id"`
	UserID   string          `json:"user_id"`
	Features features.Vector `json:"features"`
	Label    int             `json:"maintained"`
}

// Dataset is an ordered set of rows sharing one label column.
type Dataset struct {
	LabelColumn string `json:"label_column"`
	Rows        []Row  `json:"rows"`
}

// Len reports the number of rows.
func (d Dataset) Len() int { return len(d.Rows) }

// Positives counts rows labelled 1.
func (d Dataset) Positives() int {
	n := 0
	for _, r := range d.Rows {
		n += r.Label
	}
	return n
}

// PositiveRatio is the share of positive rows, 0 for an empty dataset.
func (d Dataset) PositiveRatio() float64 {
	if len(d.Rows) == 0 {
		return 0
	}
	return float64(d.Positives()) / float64(len(d.Rows))
}
