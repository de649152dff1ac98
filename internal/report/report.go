// Package report renders a judged depth series as a PNG plot or an HTML chart.
package report

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/squat.report/internal/squat"
)

// Chart is everything needed to draw one session.
type Chart struct {
	Title         string
	Raw           []squat.Sample
	Smoothed      []squat.Sample
	Peaks         []squat.Peak
	Summary       squat.Verdict
	ThresholdHigh float64
	ThresholdLow  float64
}

// NewChart builds a chart from a finalized result and the policy it ran under.
func NewChart(title string, raw, smoothed []squat.Sample, res squat.Result, cfg squat.Config) Chart {
	return Chart{
		Title:         title,
		Raw:           raw,
		Smoothed:      smoothed,
		Peaks:         res.Peaks,
		Summary:       res.Summary,
		ThresholdHigh: cfg.ThresholdHigh,
		ThresholdLow:  cfg.LowThreshold(),
	}
}

// Stats are summary numbers shown in chart subtitles.
type Stats struct {
	Frames   int
	Valid    int
	Coverage float64 // fraction of frames with a usable depth
	Mean     float64 // mean smoothed depth over valid samples
	StdDev   float64
}

// Stats computes coverage and spread of the smoothed series.
func (c Chart) Stats() Stats {
	s := Stats{Frames: len(c.Raw)}
	for _, x := range c.Raw {
		if x.Valid {
			s.Valid++
		}
	}
	if s.Frames > 0 {
		s.Coverage = float64(s.Valid) / float64(s.Frames)
	}
	vals := make([]float64, 0, len(c.Smoothed))
	for _, x := range c.Smoothed {
		if x.Valid {
			vals = append(vals, x.Value)
		}
	}
	if len(vals) > 0 {
		s.Mean, s.StdDev = stat.MeanStdDev(vals, nil)
	}
	return s
}

func (c Chart) subtitle() string {
	st := c.Stats()
	counted := 0
	for _, p := range c.Peaks {
		if p.Counted {
			counted++
		}
	}
	return fmt.Sprintf("%s reps=%d frames=%d coverage=%.0f%% mean=%.2f", c.Summary, counted, st.Frames, st.Coverage*100, st.Mean)
}

// segments splits a series at null samples into runs of (index, value) points.
func segments(xs []squat.Sample) [][][2]float64 {
	var out [][][2]float64
	var cur [][2]float64
	for i, x := range xs {
		if !x.Valid {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, [2]float64{float64(i), x.Value})
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}
