package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// popStdDev is the population standard deviation (divides by n).
func popStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return math.Sqrt(stat.PopVariance(values, nil))
}

func isConstant(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

// pearson returns the correlation of x and y, or 0 when either side has no variance.
func pearson(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) || isConstant(x) || isConstant(y) {
		return 0
	}
	corr := stat.Correlation(x, y, nil)
	if math.IsNaN(corr) || math.IsInf(corr, 0) {
		return 0
	}
	return corr
}

// slope is the degree-1 least-squares coefficient of y on x.
func slope(x, y []float64) float64 {
	if len(x) < 2 || isConstant(x) {
		return 0
	}
	_, beta := stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(beta) {
		return 0
	}
	return beta
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
