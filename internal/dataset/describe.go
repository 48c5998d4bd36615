package dataset

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// FeatureStats summarises one feature column.
type FeatureStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Summary describes a dataset's size, class balance and feature distributions.
type Summary struct {
	Rows          int                     `json:"rows"`
	Positives     int                     `json:"positives"`
	Negatives     int                     `json:"negatives"`
	PositiveRatio float64                 `json:"positive_ratio"`
	MinorityRatio float64                 `json:"minority_ratio"`
	Features      map[string]FeatureStats `json:"features"`
}

// Describe computes per-feature statistics over the features present in every row. Std is
// the sample standard deviation and is 0 with fewer than two rows.
func Describe(ds Dataset) Summary {
	s := Summary{Rows: ds.Len(), Positives: ds.Positives(), Features: map[string]FeatureStats{}}
	s.Negatives = s.Rows - s.Positives
	if s.Rows == 0 {
		return s
	}
	s.PositiveRatio = float64(s.Positives) / float64(s.Rows)
	s.MinorityRatio = math.Min(s.PositiveRatio, 1-s.PositiveRatio)

	for _, name := range sharedNames(ds) {
		col := make([]float64, ds.Len())
		for i, r := range ds.Rows {
			col[i] = r.Features[name]
		}
		fs := FeatureStats{Min: floats.Min(col), Max: floats.Max(col)}
		if len(col) > 1 {
			fs.Mean, fs.Std = stat.MeanStdDev(col, nil)
		} else {
			fs.Mean = col[0]
		}
		s.Features[name] = fs
	}
	return s
}

func sharedNames(ds Dataset) []string {
	counts := make(map[string]int)
	for _, r := range ds.Rows {
		for name := range r.Features {
			counts[name]++
		}
	}
	names := make([]string, 0, len(counts))
	for name, c := range counts {
		if c == ds.Len() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
