package features

import (
	"time"

	"github.com/miradorstack/habit-ml/internal/utils"
)

const (
	shortWindowDays = 7
	midWindowDays   = 14
	longWindowDays  = 30
	minTrendPoints  = 3
)

func momentumFeatures(h history, reference time.Time) Vector {
	var last7, last14, last30, prev7 int
	present := make(map[int]bool, longWindowDays+1)
	for _, t := range h.checkIns {
		age := utils.WholeDaysBetween(t, reference)
		if age <= shortWindowDays {
			last7++
		}
		if age <= midWindowDays {
			last14++
		}
		if age <= longWindowDays {
			last30++
			if age >= 0 {
				present[age] = true
			}
		}
		if age > shortWindowDays && age <= midWindowDays {
			prev7++
		}
	}

	rate7 := float64(last7) / shortWindowDays
	rate30 := float64(last30) / longWindowDays

	return Vector{
		CheckInsLast7d:    float64(last7),
		CheckInsLast14d:   float64(last14),
		CheckInsLast30d:   float64(last30),
		CompletionRate7d:  rate7,
		CompletionRate30d: rate30,
		MomentumScore:     float64(last7-prev7) / shortWindowDays,
		Acceleration:      rate7 - rate30,
		RecentMissCount:   float64(shortWindowDays - last7),
		TrendSlope:        trendSlope(present, last30),
	}
}

// trendSlope fits the daily presence indicator over the 30-day window against time, with
// day 0 the oldest day and day 30 the reference day. Positive means check-ins are becoming
// more frequent. Requires minTrendPoints check-ins in the window.
func trendSlope(present map[int]bool, inWindow int) float64 {
	if inWindow < minTrendPoints {
		return 0
	}
	x := make([]float64, 0, longWindowDays+1)
	y := make([]float64, 0, longWindowDays+1)
	for age := longWindowDays; age >= 0; age-- {
		x = append(x, float64(longWindowDays-age))
		if present[age] {
			y = append(y, 1)
		} else {
			y = append(y, 0)
		}
	}
	return slope(x, y)
}
