package features

import (
	"math"
	"time"
)

const (
	morningStartHour = 5
	morningEndHour   = 12
	eveningStartHour = 17
	eveningEndHour   = 22
)

func patternFeatures(h history) Vector {
	n := len(h.checkIns)
	if n == 0 {
		return Vector{
			WeekdayCompletionRate: 0,
			WeekendCompletionRate: 0,
			MorningCheckInRate:    0,
			EveningCheckInRate:    0,
			MostCommonHour:        12,
			HourEntropy:           0,
		}
	}

	var weekday, weekend, morning, evening int
	hourCounts := make(map[int]int, 24)
	firstSeen := make([]int, 0, 24)
	for _, t := range h.checkIns {
		switch t.Weekday() {
		case time.Saturday, time.Sunday:
			weekend++
		default:
			weekday++
		}

		hour := t.Hour()
		if hour >= morningStartHour && hour < morningEndHour {
			morning++
		}
		if hour >= eveningStartHour && hour < eveningEndHour {
			evening++
		}
		if hourCounts[hour] == 0 {
			firstSeen = append(firstSeen, hour)
		}
		hourCounts[hour]++
	}

	// Ties go to the hour that appeared first in the check-in sequence.
	mostCommon := firstSeen[0]
	for _, hour := range firstSeen[1:] {
		if hourCounts[hour] > hourCounts[mostCommon] {
			mostCommon = hour
		}
	}

	entropy := 0.0
	for _, count := range hourCounts {
		p := float64(count) / float64(n)
		entropy -= p * math.Log(p)
	}

	total := float64(n)
	return Vector{
		WeekdayCompletionRate: float64(weekday) / total,
		WeekendCompletionRate: float64(weekend) / total,
		MorningCheckInRate:    float64(morning) / total,
		EveningCheckInRate:    float64(evening) / total,
		MostCommonHour:        float64(mostCommon),
		HourEntropy:           entropy,
	}
}
