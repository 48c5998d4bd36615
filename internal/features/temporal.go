package features

import (
	"math"
	"time"

	"github.com/miradorstack/habit-ml/internal/utils"
)

func temporalFeatures(h history, reference time.Time) Vector {
	days := utils.WholeDaysBetween(h.createdAt, reference)
	total := float64(len(h.checkIns))

	// Age is floored at one day so a brand-new habit does not divide by zero.
	ageWeeks := math.Max(1, float64(days)) / 7.0

	return Vector{
		StreakLength:     float64(h.record.CurrentStreak),
		DaysSinceCreated: float64(days),
		TotalCheckIns:    total,
		HabitAgeWeeks:    float64(days) / 7.0,
		CheckInsPerWeek:  total / ageWeeks,
	}
}
