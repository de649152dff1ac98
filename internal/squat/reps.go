package squat

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// localRadius is the half-width of the local-maximum and hold windows.
const localRadius = 2

// Peak is a local maximum that cleared the low threshold and the
// prominence gate, with the verdict it received.
type Peak struct {
	Index      int     `json:"index"`
	Value      float64 `json:"value"`
	Prominence float64 `json:"prominence"`
	Hold       int     `json:"hold"`
	Counted    bool    `json:"counted"`
}

// Detection is the raw outcome of a repetition scan.
type Detection struct {
	Pass          int
	Fail          int
	DepthRatioMax *float64
	Peaks         []Peak
	// Observed is true when the smoothed series held any usable sample.
	Observed bool
}

// DetectReps scans a smoothed series for repetitions using hysteresis,
// prominence and hold gates. Only indices with a two-sample margin on both
// sides are examined. After a counted repetition the scan skips MinGap
// indices; after a rejected candidate it skips max(4, MinGap/2).
func DetectReps(t []Sample, cfg Config) Detection {
	n := len(t)
	thLow := cfg.LowThreshold()
	det := Detection{Observed: HasFinite(t)}
	var depthMax *float64

	for i := localRadius; i < n-localRadius; i++ {
		c := t[i]
		if !c.Valid || !isLocalMax(t, i) {
			continue
		}
		if c.Value < thLow {
			continue
		}
		prom := prominence(t, i, cfg.ProminenceWindow)
		if prom < cfg.MinProminence {
			continue
		}

		hold := holdCount(t, i, thLow)
		peak := Peak{Index: i, Value: c.Value, Prominence: prom, Hold: hold}

		if c.Value >= cfg.ThresholdHigh && hold >= cfg.HoldFrames {
			peak.Counted = true
			det.Pass++
			if depthMax == nil || c.Value > *depthMax {
				depthMax = ptr(c.Value)
			}
			Tracef("rep %d counted at index %d: depth=%.3f prom=%.3f hold=%d", det.Pass, i, c.Value, prom, hold)
			det.Peaks = append(det.Peaks, peak)
			i += cfg.MinGap
			continue
		}

		if cfg.CountLowPeaksAsFail {
			det.Fail++
		}
		Tracef("candidate rejected at index %d: depth=%.3f prom=%.3f hold=%d", i, c.Value, prom, hold)
		det.Peaks = append(det.Peaks, peak)
		i += cfg.rejectSkip()
	}

	if depthMax == nil {
		depthMax = maxValid(t)
	}
	det.DepthRatioMax = depthMax
	return det
}

// isLocalMax reports whether t[i] is >= every valid sample within localRadius.
// Ties are permitted.
func isLocalMax(t []Sample, i int) bool {
	c := t[i].Value
	for k := i - localRadius; k <= i+localRadius; k++ {
		if k != i && t[k].Valid && t[k].Value > c {
			return false
		}
	}
	return true
}

// prominence measures how far t[i] rises above the higher of the lowest
// valid samples on each side within the given radius. A side with no valid
// samples contributes a baseline of 0.
func prominence(t []Sample, i, radius int) float64 {
	lo := max(0, i-radius)
	hi := min(len(t)-1, i+radius)

	leftMin, rightMin := math.Inf(1), math.Inf(1)
	for k := lo; k < i; k++ {
		if t[k].Valid {
			leftMin = math.Min(leftMin, t[k].Value)
		}
	}
	for k := i + 1; k <= hi; k++ {
		if t[k].Valid {
			rightMin = math.Min(rightMin, t[k].Value)
		}
	}
	if math.IsInf(leftMin, 1) {
		leftMin = 0
	}
	if math.IsInf(rightMin, 1) {
		rightMin = 0
	}
	return t[i].Value - math.Max(leftMin, rightMin)
}

// holdCount counts valid samples at or above thLow around i.
func holdCount(t []Sample, i int, thLow float64) int {
	n := 0
	for k := i - localRadius; k <= i+localRadius; k++ {
		if t[k].Valid && t[k].Value >= thLow {
			n++
		}
	}
	return n
}

func maxValid(t []Sample) *float64 {
	vals := collectValid(nil, t)
	if len(vals) == 0 {
		return nil
	}
	return ptr(floats.Max(vals))
}
