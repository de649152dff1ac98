package squat

import (
	"math"

	"github.com/banshee-data/squat.report/internal/pose"
)

const (
	testW = 1000
	testH = 1000
)

// visible builds a present landmark from pixel coordinates in a testW×testH frame.
func visible(px, py float64) pose.Landmark {
	return pose.Landmark{X: px / testW, Y: py / testH, Visibility: 1, Present: true}
}

// profileFrame returns a side-on frame (shoulders 60px apart) with the
// right hip and knee placed at the given pixel positions.
func profileFrame(hipX, hipY, kneeX, kneeY float64) pose.Frame {
	lm := make(pose.Landmarks, pose.NumLandmarks)
	lm[pose.LeftShoulder] = visible(400, 300)
	lm[pose.RightShoulder] = visible(460, 300)
	lm[pose.RightHip] = visible(hipX, hipY)
	lm[pose.RightKnee] = visible(kneeX, kneeY)
	return pose.Frame{Width: testW, Height: testH, Landmarks: lm}
}

// depthFrame returns a side-on frame whose right leg has a 100px femur and
// the given depth ratio (clamped to [0,1]).
func depthFrame(d float64) pose.Frame {
	d = math.Max(0, math.Min(1, d))
	const femur = 100.0
	kneeX, kneeY := 500.0, 600.0
	hipX := kneeX - math.Sqrt(1-d*d)*femur
	hipY := kneeY + d*femur
	return profileFrame(hipX, hipY, kneeX, kneeY)
}

// invisibleFrame is side-on but with hips and knees below any visibility threshold.
func invisibleFrame() pose.Frame {
	f := profileFrame(400, 700, 500, 600)
	f.Landmarks[pose.LeftHip] = visible(410, 700)
	f.Landmarks[pose.LeftKnee] = visible(505, 600)
	for _, idx := range []int{pose.LeftHip, pose.RightHip, pose.LeftKnee, pose.RightKnee} {
		f.Landmarks[idx].Visibility = 0.05
	}
	return f
}

func values(vs ...float64) []Sample {
	out := make([]Sample, len(vs))
	for i, v := range vs {
		out[i] = Value(v)
	}
	return out
}

func repeat(xs []float64, n int) []float64 {
	var out []float64
	for i := 0; i < n; i++ {
		out = append(out, xs...)
	}
	return out
}

func concat(parts ...[]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// sustainedRep is one squat cycle holding the bottom position for three frames.
var sustainedRep = []float64{0, 0, 0.3, 0.6, 0.9, 0.9, 0.9, 0.6, 0.3, 0, 0, 0, 0, 0}

// lowBump is a shallow dip that clears the low threshold for a single frame.
var lowBump = concat(constant(0.1, 6), []float64{0.75, 0.78, 0.75}, constant(0.1, 6))
