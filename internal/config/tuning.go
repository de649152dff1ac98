package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/banshee-data/squat.report/internal/squat"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// TuningConfig represents the root configuration for the depth policy.
// The schema matches the config block of stored results so the same JSON
// can be replayed against a recorded session.
type TuningConfig struct {
	// Gate params
	VisibilityThreshold *float64 `json:"visibility_threshold,omitempty" toml:"visibility_threshold"`
	SidePx              *float64 `json:"side_px,omitempty" toml:"side_px"`
	ProfileSideRatio    *float64 `json:"profile_side_ratio,omitempty" toml:"profile_side_ratio"`
	DepthScale          *float64 `json:"depth_scale,omitempty" toml:"depth_scale"`

	// Rep detector params
	ThresholdHigh       *float64 `json:"threshold_high,omitempty" toml:"threshold_high"`
	ThresholdLow        *float64 `json:"threshold_low,omitempty" toml:"threshold_low"`
	LowRatio            *float64 `json:"low_ratio,omitempty" toml:"low_ratio"`
	HoldFrames          *int     `json:"hold_frames,omitempty" toml:"hold_frames"`
	MinGap              *int     `json:"min_gap,omitempty" toml:"min_gap"`
	MinProminence       *float64 `json:"min_prominence,omitempty" toml:"min_prominence"`
	ProminenceWindow    *int     `json:"prominence_window,omitempty" toml:"prominence_window"`
	CountLowPeaksAsFail *bool    `json:"count_low_peaks_as_fail,omitempty" toml:"count_low_peaks_as_fail"`

	// Buffer params
	MaxSamples  *int `json:"max_samples,omitempty" toml:"max_samples"`
	KeepSamples *int `json:"keep_samples,omitempty" toml:"keep_samples"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// FromPolicy converts a policy back into a fully populated TuningConfig.
func FromPolicy(p squat.Config) *TuningConfig {
	return &TuningConfig{
		VisibilityThreshold: &p.VisibilityThreshold,
		SidePx:              &p.SidePx,
		ProfileSideRatio:    &p.ProfileSideRatio,
		DepthScale:          &p.DepthScale,
		ThresholdHigh:       &p.ThresholdHigh,
		ThresholdLow:        &p.ThresholdLow,
		LowRatio:            &p.LowRatio,
		HoldFrames:          &p.HoldFrames,
		MinGap:              &p.MinGap,
		MinProminence:       &p.MinProminence,
		ProminenceWindow:    &p.ProminenceWindow,
		CountLowPeaksAsFail: &p.CountLowPeaksAsFail,
		MaxSamples:          &p.MaxSamples,
		KeepSamples:         &p.KeepSamples,
	}
}

// LoadTuningConfig loads a TuningConfig from a .json or .toml file.
// The file must be under the max file size. Fields omitted from the file
// retain their default values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".toml" {
		return nil, fmt.Errorf("config file must have .json or .toml extension, got %q", ext)
	}

	data, err := readLimited(cleanPath)
	if err != nil {
		return nil, err
	}

	// Parse into an empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the file.
	cfg := EmptyTuningConfig()
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config TOML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func readLimited(path string) ([]byte, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return data, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/ or cmd/squat-replay/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configured values are valid. Unset fields are
// checked through their defaults so cross-field rules still hold.
func (c *TuningConfig) Validate() error {
	if c.VisibilityThreshold != nil {
		if *c.VisibilityThreshold < 0 || *c.VisibilityThreshold > 1 {
			return fmt.Errorf("visibility_threshold must be between 0 and 1, got %f", *c.VisibilityThreshold)
		}
	}
	if c.LowRatio != nil {
		if *c.LowRatio <= 0 || *c.LowRatio > 1 {
			return fmt.Errorf("low_ratio must be in (0, 1], got %f", *c.LowRatio)
		}
	}
	if c.ThresholdLow != nil && *c.ThresholdLow < 0 {
		return fmt.Errorf("threshold_low must be non-negative, got %f", *c.ThresholdLow)
	}
	if c.MinProminence != nil && *c.MinProminence < 0 {
		return fmt.Errorf("min_prominence must be non-negative, got %f", *c.MinProminence)
	}
	return c.Policy().Validate()
}

// Policy resolves the config into the immutable squat.Config the pipeline runs on.
func (c *TuningConfig) Policy() squat.Config {
	return squat.Config{
		VisibilityThreshold: c.GetVisibilityThreshold(),
		SidePx:              c.GetSidePx(),
		ProfileSideRatio:    c.GetProfileSideRatio(),
		DepthScale:          c.GetDepthScale(),
		ThresholdHigh:       c.GetThresholdHigh(),
		ThresholdLow:        c.GetThresholdLow(),
		LowRatio:            c.GetLowRatio(),
		HoldFrames:          c.GetHoldFrames(),
		MinGap:              c.GetMinGap(),
		MinProminence:       c.GetMinProminence(),
		ProminenceWindow:    c.GetProminenceWindow(),
		CountLowPeaksAsFail: c.GetCountLowPeaksAsFail(),
		MaxSamples:          c.GetMaxSamples(),
		KeepSamples:         c.GetKeepSamples(),
	}
}

var defaults = squat.DefaultConfig()

// GetVisibilityThreshold returns the visibility_threshold value or the default.
func (c *TuningConfig) GetVisibilityThreshold() float64 {
	if c.VisibilityThreshold == nil {
		return defaults.VisibilityThreshold
	}
	return *c.VisibilityThreshold
}

// GetSidePx returns the side_px value or the default.
func (c *TuningConfig) GetSidePx() float64 {
	if c.SidePx == nil {
		return defaults.SidePx
	}
	return *c.SidePx
}

// GetProfileSideRatio returns the profile_side_ratio value or the default.
func (c *TuningConfig) GetProfileSideRatio() float64 {
	if c.ProfileSideRatio == nil {
		return defaults.ProfileSideRatio
	}
	return *c.ProfileSideRatio
}

// GetDepthScale returns the depth_scale value or the default.
func (c *TuningConfig) GetDepthScale() float64 {
	if c.DepthScale == nil {
		return defaults.DepthScale
	}
	return *c.DepthScale
}

// GetThresholdHigh returns the threshold_high value or the default.
func (c *TuningConfig) GetThresholdHigh() float64 {
	if c.ThresholdHigh == nil {
		return defaults.ThresholdHigh
	}
	return *c.ThresholdHigh
}

// GetThresholdLow returns the threshold_low override, or 0 to derive it
// from low_ratio.
func (c *TuningConfig) GetThresholdLow() float64 {
	if c.ThresholdLow == nil {
		return 0
	}
	return *c.ThresholdLow
}

// GetLowRatio returns the low_ratio value or the default.
func (c *TuningConfig) GetLowRatio() float64 {
	if c.LowRatio == nil {
		return defaults.LowRatio
	}
	return *c.LowRatio
}

// GetHoldFrames returns the hold_frames value or the default.
func (c *TuningConfig) GetHoldFrames() int {
	if c.HoldFrames == nil {
		return defaults.HoldFrames
	}
	return *c.HoldFrames
}

// GetMinGap returns the min_gap value or the default.
func (c *TuningConfig) GetMinGap() int {
	if c.MinGap == nil {
		return defaults.MinGap
	}
	return *c.MinGap
}

// GetMinProminence returns the min_prominence value or the default.
func (c *TuningConfig) GetMinProminence() float64 {
	if c.MinProminence == nil {
		return defaults.MinProminence
	}
	return *c.MinProminence
}

// GetProminenceWindow returns the prominence_window value or the default.
func (c *TuningConfig) GetProminenceWindow() int {
	if c.ProminenceWindow == nil {
		return defaults.ProminenceWindow
	}
	return *c.ProminenceWindow
}

// GetCountLowPeaksAsFail returns the count_low_peaks_as_fail value or the default.
func (c *TuningConfig) GetCountLowPeaksAsFail() bool {
	if c.CountLowPeaksAsFail == nil {
		return false // default: low peaks are ignored
	}
	return *c.CountLowPeaksAsFail
}

// GetMaxSamples returns the max_samples value or the default.
func (c *TuningConfig) GetMaxSamples() int {
	if c.MaxSamples == nil {
		return defaults.MaxSamples
	}
	return *c.MaxSamples
}

// GetKeepSamples returns the keep_samples value or the default.
func (c *TuningConfig) GetKeepSamples() int {
	if c.KeepSamples == nil {
		return defaults.KeepSamples
	}
	return *c.KeepSamples
}
