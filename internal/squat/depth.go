package squat

import (
	"math"

	"github.com/banshee-data/squat.report/internal/pose"
)

// Reason explains why a frame did or did not yield a depth sample.
type Reason string

const (
	ReasonNoPose             Reason = "no-pose"
	ReasonSideTooSmall       Reason = "side-too-small"
	ReasonLowVisibility      Reason = "low-visibility"
	ReasonInsufficientPoints Reason = "insufficient-points"
	ReasonOK                 Reason = "ok"
)

// Reasons lists every reason in precedence order.
var Reasons = []Reason{ReasonNoPose, ReasonSideTooSmall, ReasonLowVisibility, ReasonInsufficientPoints, ReasonOK}

// Diagnostic is the live per-frame feedback handed to an overlay renderer.
type Diagnostic struct {
	OK            bool     `json:"ok"`
	Reason        Reason   `json:"reason"`
	Leg           string   `json:"leg,omitempty"`
	Side          *float64 `json:"side"`
	ProfileSpread *float64 `json:"profile_spread"`
	Femur         *float64 `json:"femur"`
	Depth         *float64 `json:"depth"`
}

// legMeasure is the hip/knee geometry of one leg in pixels.
type legMeasure struct {
	side  string
	femur float64
	depth float64
}

// measureLeg returns nil when either joint is missing or below the
// visibility threshold, or when the femur has zero length.
func measureLeg(f pose.Frame, hipIdx, kneeIdx int, cfg Config, side string) *legMeasure {
	hip := f.Landmarks.At(hipIdx)
	knee := f.Landmarks.At(kneeIdx)
	if !hip.Visible(cfg.VisibilityThreshold) || !knee.Visible(cfg.VisibilityThreshold) {
		return nil
	}
	hx, hy := hip.Pixel(f.Width, f.Height)
	kx, ky := knee.Pixel(f.Width, f.Height)

	femur := math.Hypot(hx-kx, hy-ky)
	if femur == 0 {
		return nil
	}
	// Image y grows downward, so a positive delta means the hip sits below the knee.
	depthRaw := hy - ky
	depth := 0.0
	if depthRaw > 0 {
		depth = depthRaw / femur
	}
	return &legMeasure{side: side, femur: femur, depth: depth}
}

// pickLeg prefers the longer projected femur; ties go to the right leg.
func pickLeg(f pose.Frame, cfg Config) *legMeasure {
	right := measureLeg(f, pose.RightHip, pose.RightKnee, cfg, "right")
	left := measureLeg(f, pose.LeftHip, pose.LeftKnee, cfg, "left")
	switch {
	case right == nil:
		return left
	case left == nil:
		return right
	case right.femur >= left.femur:
		return right
	default:
		return left
	}
}

// Estimate converts one frame into a depth sample and its diagnostic.
func Estimate(f pose.Frame, cfg Config) (Sample, Diagnostic) {
	if !f.HasPose() {
		return Null, Diagnostic{Reason: ReasonNoPose}
	}

	gate := Gate(f, cfg)
	if !gate.OK {
		return Null, Diagnostic{
			Reason:        ReasonSideTooSmall,
			Side:          ptr(gate.Side),
			ProfileSpread: ptr(gate.ProfileSpread),
		}
	}

	leg := pickLeg(f, cfg)
	if leg == nil {
		return Null, Diagnostic{
			Reason:        ReasonLowVisibility,
			Side:          ptr(gate.Side),
			ProfileSpread: ptr(gate.ProfileSpread),
		}
	}

	if !isFinite(leg.femur) || !isFinite(leg.depth) {
		return Null, Diagnostic{
			Reason:        ReasonInsufficientPoints,
			Leg:           leg.side,
			Side:          ptr(gate.Side),
			ProfileSpread: ptr(gate.ProfileSpread),
		}
	}

	return Value(leg.depth), Diagnostic{
		OK:            true,
		Reason:        ReasonOK,
		Leg:           leg.side,
		Side:          ptr(gate.Side),
		ProfileSpread: ptr(gate.ProfileSpread),
		Femur:         ptr(leg.femur),
		Depth:         ptr(leg.depth),
	}
}

func ptr(v float64) *float64 { return &v }

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
