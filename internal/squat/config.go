package squat

import "fmt"

// Config is the numeric policy of the depth pipeline. It is passed by value
// and never read from package scope, so one process can judge sessions with
// different tunings side by side.
type Config struct {
	// Per-frame gating
	VisibilityThreshold float64 `json:"visibility_threshold"` // VIS_TH
	SidePx              float64 `json:"side_px"`              // SIDE_PX
	ProfileSideRatio    float64 `json:"profile_side_ratio"`
	DepthScale          float64 `json:"depth_scale"` // z delta -> pixel heuristic

	// Repetition detection
	ThresholdHigh       float64 `json:"threshold_high"` // TH_HIGH
	ThresholdLow        float64 `json:"threshold_low"`  // TH_LOW; 0 derives from LowRatio
	LowRatio            float64 `json:"low_ratio"`
	HoldFrames          int     `json:"hold_frames"` // HOLD_N
	MinGap              int     `json:"min_gap"`
	MinProminence       float64 `json:"min_prominence"`
	ProminenceWindow    int     `json:"prominence_window"`
	CountLowPeaksAsFail bool    `json:"count_low_peaks_as_fail"`

	// Buffer compaction
	MaxSamples  int `json:"max_samples"`
	KeepSamples int `json:"keep_samples"`
}

// DefaultConfig returns the shipped tuning.
func DefaultConfig() Config {
	return Config{
		VisibilityThreshold: 0.5,
		SidePx:              40,
		ProfileSideRatio:    0.6,
		DepthScale:          5,
		ThresholdHigh:       0.8,
		LowRatio:            0.85,
		HoldFrames:          3,
		MinGap:              12,
		MinProminence:       0.04,
		ProminenceWindow:    10,
		MaxSamples:          2000,
		KeepSamples:         1000,
	}
}

// LowThreshold returns TH_LOW: the explicit override when set, else
// ThresholdHigh scaled by LowRatio.
func (c Config) LowThreshold() float64 {
	if c.ThresholdLow > 0 {
		return c.ThresholdLow
	}
	return c.ThresholdHigh * c.LowRatio
}

// rejectSkip is how far the scan jumps past a rejected candidate.
func (c Config) rejectSkip() int {
	return max(4, c.MinGap/2)
}

// Validate checks the policy for values the pipeline cannot work with.
func (c Config) Validate() error {
	if c.VisibilityThreshold < 0 || c.VisibilityThreshold > 1 {
		return fmt.Errorf("visibility_threshold must be between 0 and 1, got %f", c.VisibilityThreshold)
	}
	if c.SidePx < 0 {
		return fmt.Errorf("side_px must be non-negative, got %f", c.SidePx)
	}
	if c.ThresholdHigh <= 0 {
		return fmt.Errorf("threshold_high must be positive, got %f", c.ThresholdHigh)
	}
	if c.LowThreshold() > c.ThresholdHigh {
		return fmt.Errorf("low threshold %f exceeds threshold_high %f", c.LowThreshold(), c.ThresholdHigh)
	}
	if c.HoldFrames < 0 || c.HoldFrames > 5 {
		return fmt.Errorf("hold_frames must be between 0 and 5, got %d", c.HoldFrames)
	}
	if c.MinGap < 0 {
		return fmt.Errorf("min_gap must be non-negative, got %d", c.MinGap)
	}
	if c.ProminenceWindow < 1 {
		return fmt.Errorf("prominence_window must be at least 1, got %d", c.ProminenceWindow)
	}
	if c.KeepSamples < 1 || c.KeepSamples > c.MaxSamples {
		return fmt.Errorf("keep_samples must be in [1, max_samples=%d], got %d", c.MaxSamples, c.KeepSamples)
	}
	return nil
}
