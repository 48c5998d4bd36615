package dataset

import (
	"math/rand"
	"sort"

	"github.com/miradorstack/habit-ml/internal/utils"
)

// Balancing methods.
const (
	BalanceNone        = "none"
	BalanceUndersample = "undersample"
	BalanceOversample  = "oversample"
)

// Balance equalises class counts. Undersampling keeps a random subset of the majority class
// in original order; oversampling appends minority rows drawn with replacement. A dataset
// with a single class is returned unchanged.
func Balance(ds Dataset, method string, seed int64) (Dataset, error) {
	const op = "dataset.Balance"
	switch method {
	case "", BalanceNone:
		return ds, nil
	case BalanceUndersample, BalanceOversample:
	default:
		return Dataset{}, utils.ConfigError(op, "unknown balancing method %q", method)
	}

	var pos, neg []int
	for i, r := range ds.Rows {
		if r.Label == 1 {
			pos = append(pos, i)
		} else {
			neg = append(neg, i)
		}
	}
	if len(pos) == 0 || len(neg) == 0 || len(pos) == len(neg) {
		return ds, nil
	}
	minority, majority := pos, neg
	if len(pos) > len(neg) {
		minority, majority = neg, pos
	}

	rng := rand.New(rand.NewSource(seed))
	out := Dataset{LabelColumn: ds.LabelColumn}
	if method == BalanceUndersample {
		rng.Shuffle(len(majority), func(i, j int) { majority[i], majority[j] = majority[j], majority[i] })
		keep := append(append([]int(nil), minority...), majority[:len(minority)]...)
		sort.Ints(keep)
		out.Rows = make([]Row, 0, len(keep))
		for _, idx := range keep {
			out.Rows = append(out.Rows, ds.Rows[idx])
		}
		return out, nil
	}

	out.Rows = append(make([]Row, 0, 2*len(majority)), ds.Rows...)
	for i := len(minority); i < len(majority); i++ {
		out.Rows = append(out.Rows, ds.Rows[minority[rng.Intn(len(minority))]])
	}
	return out, nil
}
