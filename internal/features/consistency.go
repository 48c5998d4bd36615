package features

import (
	"math"

	"github.com/miradorstack/habit-ml/internal/utils"
)

func consistencyFeatures(h history) Vector {
	if len(h.checkIns) < 2 {
		return Vector{
			ConsistencyScore:     0.5,
			AvgCheckInHour:       12,
			CheckInTimeVariance:  0,
			InterCheckInMeanDays: 0,
			InterCheckInStdDays:  0,
			RegularityScore:      0.5,
		}
	}

	hours := make([]float64, len(h.checkIns))
	for i, t := range h.checkIns {
		hours[i] = utils.FractionalHour(t)
	}
	hourStd := popStdDev(hours)

	// Gaps are whole days between consecutive check-ins in the order supplied.
	gaps := make([]float64, 0, len(h.checkIns)-1)
	for i := 1; i < len(h.checkIns); i++ {
		gaps = append(gaps, float64(utils.WholeDaysBetween(h.checkIns[i-1], h.checkIns[i])))
	}
	meanGap := mean(gaps)
	stdGap := popStdDev(gaps)

	target := h.targetFrequency()
	regularity := 1 - math.Min(1, math.Abs(meanGap-target)/math.Max(1, target))

	return Vector{
		ConsistencyScore:     1 / (1 + hourStd),
		AvgCheckInHour:       mean(hours),
		CheckInTimeVariance:  hourStd,
		InterCheckInMeanDays: meanGap,
		InterCheckInStdDays:  stdGap,
		RegularityScore:      regularity,
	}
}
