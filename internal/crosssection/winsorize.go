package crosssection

import (
	"math"
	"sort"

	"github.com/guregu/null/v6"
)

// Default winsorization percentiles.
const (
	DefaultLower = 0.01
	DefaultUpper = 0.99
)

// Winsorize clips every non-null value to [Q(lower), Q(upper)] computed over
// the finite non-null values of the series. The bounds are order statistics
// (the lower bound rounds its rank down and the upper bound rounds up), so
// both bounds are values of the series and a second pass is a no-op. Nulls
// and non-finite values pass through unchanged. The input is not modified.
func Winsorize(values []null.Float, lower, upper float64) []null.Float {
	out := make([]null.Float, len(values))
	copy(out, values)

	lo, hi, ok := Bounds(values, lower, upper)
	if !ok {
		return out
	}
	for i, v := range out {
		if !v.Valid || !isFinite(v.Float64) {
			continue
		}
		switch {
		case v.Float64 < lo:
			out[i] = null.FloatFrom(lo)
		case v.Float64 > hi:
			out[i] = null.FloatFrom(hi)
		}
	}
	return out
}

// Bounds returns the clip interval Winsorize would use. ok is false when the
// series has no finite values.
func Bounds(values []null.Float, lower, upper float64) (lo, hi float64, ok bool) {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if v.Valid && isFinite(v.Float64) {
			sorted = append(sorted, v.Float64)
		}
	}
	if len(sorted) == 0 {
		return 0, 0, false
	}
	sort.Float64s(sorted)

	lower = clamp01(lower)
	upper = clamp01(upper)
	if upper < lower {
		lower, upper = upper, lower
	}

	last := float64(len(sorted) - 1)
	lo = sorted[int(math.Floor(lower*last))]
	hi = sorted[int(math.Ceil(upper*last))]
	return lo, hi, true
}

func clamp01(q float64) float64 {
	switch {
	case math.IsNaN(q) || q < 0:
		return 0
	case q > 1:
		return 1
	default:
		return q
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
