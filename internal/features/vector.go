package features

import (
	"fmt"
	"strings"

	"github.com/miradorstack/habit-ml/internal/utils"
)

// Vector maps feature names to values. Vectors returned by the engineer are never mutated
// afterwards; callers that need to change values should Clone first.
type Vector map[string]float64

// Clone returns an independent copy.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Ordered projects the vector onto names, in order. Every name must be present: absent keys
// are a schema mismatch, never silently defaulted.
func (v Vector) Ordered(names []string) ([]float64, error) {
	values := make([]float64, len(names))
	var missing []string
	for i, name := range names {
		val, ok := v[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		values[i] = val
	}
	if len(missing) > 0 {
		return nil, utils.NewAppError("features.Ordered", fmt.Sprintf("missing features [%s]", strings.Join(missing, ", ")), utils.ErrSchemaMismatch)
	}
	return values, nil
}

// merge copies src keys that are not yet present in v. Groups have disjoint key sets, so an
// existing key is never overwritten.
func (v Vector) merge(src Vector) {
	for k, val := range src {
		if _, exists := v[k]; exists {
			continue
		}
		v[k] = val
	}
}
