package squat

import (
	"math"

	"github.com/banshee-data/squat.report/internal/pose"
)

// profilePairs are the left/right pairs whose separation indicates a
// side-on camera view.
var profilePairs = [][2]int{
	{pose.LeftShoulder, pose.RightShoulder},
	{pose.LeftHip, pose.RightHip},
	{pose.LeftAnkle, pose.RightAnkle},
}

// GateResult is the outcome of the side-on check for one frame.
type GateResult struct {
	OK bool
	// Side is the best pixel separation of any pair, horizontal or depth-derived.
	Side float64
	// ProfileSpread is the best depth-derived separation alone.
	ProfileSpread float64
}

// Gate decides whether a frame's landmark geometry supports a profile
// measurement. Missing landmarks in a pair contribute 0.
func Gate(f pose.Frame, cfg Config) GateResult {
	scale := math.Max(math.Max(float64(f.Width), float64(f.Height)), 1)
	w := float64(f.Width)
	if w <= 0 {
		w = scale
	}

	var dxMax, dzMax float64
	for _, p := range profilePairs {
		a, b, ok := f.Landmarks.Pair(p[0], p[1])
		if !ok {
			continue
		}
		dx := math.Abs(a.X-b.X) * w
		dz := math.Abs(a.Z-b.Z) * scale * cfg.DepthScale
		dxMax = math.Max(dxMax, dx)
		dzMax = math.Max(dzMax, dz)
	}

	res := GateResult{
		Side:          math.Max(dxMax, dzMax),
		ProfileSpread: dzMax,
	}
	res.OK = res.Side >= cfg.SidePx || res.ProfileSpread >= cfg.SidePx*cfg.ProfileSideRatio
	return res
}
