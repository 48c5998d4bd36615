package dataset

import (
	"math"
	"math/rand"
	"sort"
)

// StratifiedSplit partitions row indices into keep and held sets so that each class is held
// out in proportion to fraction. Every class keeps at least one row. Both sets are returned
// in ascending index order, and the result depends only on labels, fraction and seed.
func StratifiedSplit(labels []int, fraction float64, seed int64) (keep, held []int) {
	byClass := make(map[int][]int)
	classes := make([]int, 0, 2)
	for i, y := range labels {
		if _, ok := byClass[y]; !ok {
			classes = append(classes, y)
		}
		byClass[y] = append(byClass[y], i)
	}
	sort.Ints(classes)

	rng := rand.New(rand.NewSource(seed))
	for _, c := range classes {
		idx := byClass[c]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		n := int(math.Round(fraction * float64(len(idx))))
		if n > len(idx)-1 {
			n = len(idx) - 1
		}
		if n < 0 {
			n = 0
		}
		held = append(held, idx[:n]...)
		keep = append(keep, idx[n:]...)
	}
	sort.Ints(keep)
	sort.Ints(held)
	return keep, held
}
