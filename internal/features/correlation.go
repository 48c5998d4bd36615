package features

import (
	"sort"
	"time"

	"github.com/miradorstack/habit-ml/internal/utils"
)

const minOverlapDays = 3

func correlationFeatures(h history, reference time.Time, mood, sleep []datedScore) Vector {
	return Vector{
		MoodCorrelation:         checkInCorrelation(h, reference, mood),
		SleepQualityCorrelation: checkInCorrelation(h, reference, sleep),
	}
}

// checkInCorrelation correlates a daily binary check-in indicator with a daily score.
// The indicator is defined for every calendar day from the habit's first day through the
// reference day; only days that also carry a score take part. Fewer than minOverlapDays
// shared days, or a constant series on either side, yields 0.
func checkInCorrelation(h history, reference time.Time, logs []datedScore) float64 {
	if len(h.checkIns) == 0 || len(logs) == 0 {
		return 0
	}

	start := utils.CalendarDate(h.createdAt)
	checkedIn := make(map[time.Time]bool, len(h.checkIns))
	for _, t := range h.checkIns {
		day := utils.CalendarDate(t)
		checkedIn[day] = true
		if day.Before(start) {
			start = day
		}
	}
	end := utils.CalendarDate(reference)

	// Later logs for the same day replace earlier ones.
	scores := make(map[time.Time]float64, len(logs))
	for _, l := range logs {
		day := utils.CalendarDate(l.at)
		if day.Before(start) || day.After(end) {
			continue
		}
		scores[day] = l.score
	}
	if len(scores) < minOverlapDays {
		return 0
	}

	days := make([]time.Time, 0, len(scores))
	for day := range scores {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	indicator := make([]float64, len(days))
	values := make([]float64, len(days))
	for i, day := range days {
		if checkedIn[day] {
			indicator[i] = 1
		}
		values[i] = scores[day]
	}
	return pearson(indicator, values)
}
