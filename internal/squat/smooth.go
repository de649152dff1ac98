package squat

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Smooth runs the two-pass filter over a finalized series: a centered
// median-of-5 followed by a moving average of 3. It returns a new slice
// and leaves xs untouched.
func Smooth(xs []Sample) []Sample {
	return movingAverage3(median5(xs))
}

// median5 replaces each interior sample with the median of the valid values
// in its 5-sample window when at least 3 are valid. The pass runs left to
// right over one working copy, so the window of i already holds the medians
// written at i-2 and i-1. The first and last two samples pass through. For
// an even count the upper middle value is used.
func median5(xs []Sample) []Sample {
	out := make([]Sample, len(xs))
	copy(out, xs)

	w := make([]float64, 0, 5)
	for i := 2; i < len(out)-2; i++ {
		w = collectValid(w[:0], out[i-2:i+3])
		if len(w) < 3 {
			continue
		}
		sort.Float64s(w)
		out[i] = Value(w[len(w)/2])
	}
	return out
}

// movingAverage3 replaces each interior sample with the mean of the valid
// values among itself and its two neighbours; all-null windows stay null.
func movingAverage3(xs []Sample) []Sample {
	out := make([]Sample, len(xs))
	copy(out, xs)

	w := make([]float64, 0, 3)
	for i := 1; i < len(xs)-1; i++ {
		w = collectValid(w[:0], xs[i-1:i+2])
		if len(w) == 0 {
			out[i] = Null
			continue
		}
		out[i] = Value(stat.Mean(w, nil))
	}
	return out
}

func collectValid(dst []float64, window []Sample) []float64 {
	for _, s := range window {
		if s.Valid {
			dst = append(dst, s.Value)
		}
	}
	return dst
}
