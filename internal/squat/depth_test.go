package squat

import (
	"testing"

	"github.com/banshee-data/squat.report/internal/pose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimate_FemurAndDepth(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name      string
		hip, knee [2]float64
		wantFemur float64
		wantDepth float64
	}{
		{name: "hip below knee", hip: [2]float64{100, 200}, knee: [2]float64{100, 150}, wantFemur: 50, wantDepth: 1.0},
		{name: "hip above knee clamps", hip: [2]float64{100, 100}, knee: [2]float64{100, 160}, wantFemur: 60, wantDepth: 0},
		{name: "partial depth", hip: [2]float64{140, 630}, knee: [2]float64{200, 550}, wantFemur: 100, wantDepth: 0.8},
		{name: "level thigh", hip: [2]float64{100, 500}, knee: [2]float64{200, 500}, wantFemur: 100, wantDepth: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := profileFrame(tt.hip[0], tt.hip[1], tt.knee[0], tt.knee[1])
			sample, diag := Estimate(f, cfg)

			require.True(t, sample.Valid)
			assert.InDelta(t, tt.wantDepth, sample.Value, 1e-9)
			assert.True(t, diag.OK)
			assert.Equal(t, ReasonOK, diag.Reason)
			assert.Equal(t, "right", diag.Leg)
			require.NotNil(t, diag.Femur)
			assert.InDelta(t, tt.wantFemur, *diag.Femur, 1e-9)
			require.NotNil(t, diag.Depth)
			assert.GreaterOrEqual(t, *diag.Depth, 0.0)
		})
	}
}

func TestEstimate_DepthIndependentOfFrameSize(t *testing.T) {
	cfg := DefaultConfig()
	for _, size := range [][2]int{{640, 480}, {1280, 720}, {1920, 1080}} {
		w, h := float64(size[0]), float64(size[1])
		lm := make(pose.Landmarks, pose.NumLandmarks)
		lm[pose.LeftShoulder] = pose.Landmark{X: 0, Y: 0.3, Visibility: 1, Present: true}
		lm[pose.RightShoulder] = pose.Landmark{X: 0.5, Y: 0.3, Visibility: 1, Present: true}
		lm[pose.RightHip] = pose.Landmark{X: 100 / w, Y: 200 / h, Visibility: 1, Present: true}
		lm[pose.RightKnee] = pose.Landmark{X: 100 / w, Y: 150 / h, Visibility: 1, Present: true}
		f := pose.Frame{Width: size[0], Height: size[1], Landmarks: lm}

		sample, diag := Estimate(f, cfg)
		require.True(t, sample.Valid, "size %v", size)
		assert.InDelta(t, 1.0, sample.Value, 1e-9)
		assert.InDelta(t, 50.0, *diag.Femur, 1e-9)
	}
}

func TestEstimate_ReasonPrecedence(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("no pose", func(t *testing.T) {
		sample, diag := Estimate(pose.Frame{Width: testW, Height: testH}, cfg)
		assert.False(t, sample.Valid)
		assert.False(t, diag.OK)
		assert.Equal(t, ReasonNoPose, diag.Reason)
		assert.Nil(t, diag.Side)
	})

	t.Run("side too small wins over low visibility", func(t *testing.T) {
		f := invisibleFrame()
		f.Landmarks[pose.RightShoulder] = visible(405, 300)
		sample, diag := Estimate(f, cfg)
		assert.False(t, sample.Valid)
		assert.Equal(t, ReasonSideTooSmall, diag.Reason)
		require.NotNil(t, diag.Side)
		require.NotNil(t, diag.ProfileSpread)
		assert.Nil(t, diag.Depth)
	})

	t.Run("low visibility", func(t *testing.T) {
		sample, diag := Estimate(invisibleFrame(), cfg)
		assert.False(t, sample.Valid)
		assert.Equal(t, ReasonLowVisibility, diag.Reason)
		require.NotNil(t, diag.Side)
	})

	t.Run("zero femur is low visibility", func(t *testing.T) {
		f := profileFrame(300, 300, 300, 300)
		sample, diag := Estimate(f, cfg)
		assert.False(t, sample.Valid)
		assert.Equal(t, ReasonLowVisibility, diag.Reason)
	})

	t.Run("overflowing geometry is insufficient points", func(t *testing.T) {
		f := profileFrame(400, 700, 500, 600)
		f.Landmarks[pose.RightHip].Y = 1e308
		sample, diag := Estimate(f, cfg)
		assert.False(t, sample.Valid)
		assert.Equal(t, ReasonInsufficientPoints, diag.Reason)
		assert.Equal(t, "right", diag.Leg)
	})
}

func TestEstimate_LegSelection(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("longer femur wins", func(t *testing.T) {
		f := profileFrame(400, 700, 500, 600) // right femur ~141px, depth ~0.707
		f.Landmarks[pose.LeftHip] = visible(500, 650)
		f.Landmarks[pose.LeftKnee] = visible(500, 450) // left femur 200px, depth 1.0
		sample, diag := Estimate(f, cfg)
		require.True(t, sample.Valid)
		assert.Equal(t, "left", diag.Leg)
		assert.InDelta(t, 1.0, sample.Value, 1e-9)
	})

	t.Run("tie favours right", func(t *testing.T) {
		f := profileFrame(500, 700, 500, 600) // right: femur 100, depth 1.0
		f.Landmarks[pose.LeftHip] = visible(500, 500)
		f.Landmarks[pose.LeftKnee] = visible(500, 600) // left: femur 100, depth 0
		sample, diag := Estimate(f, cfg)
		require.True(t, sample.Valid)
		assert.Equal(t, "right", diag.Leg)
		assert.InDelta(t, 1.0, sample.Value, 1e-9)
	})

	t.Run("only left visible", func(t *testing.T) {
		f := invisibleFrame()
		f.Landmarks[pose.LeftHip] = visible(500, 650)
		f.Landmarks[pose.LeftKnee] = visible(500, 550)
		sample, diag := Estimate(f, cfg)
		require.True(t, sample.Valid)
		assert.Equal(t, "left", diag.Leg)
	})
}

func TestEstimate_AbsentVisibilityCountsAsVisible(t *testing.T) {
	cfg := DefaultConfig()
	x := func(v float64) *float64 { return &v }
	raw := pose.RawFrame{Width: testW, Height: testH, Landmarks: make([]*pose.RawLandmark, pose.NumLandmarks)}
	raw.Landmarks[pose.LeftShoulder] = &pose.RawLandmark{X: 0.40, Y: 0.3}
	raw.Landmarks[pose.RightShoulder] = &pose.RawLandmark{X: 0.46, Y: 0.3}
	raw.Landmarks[pose.RightHip] = &pose.RawLandmark{X: 0.1, Y: 0.2, Z: x(0)}
	raw.Landmarks[pose.RightKnee] = &pose.RawLandmark{X: 0.1, Y: 0.15}

	sample, diag := Estimate(raw.Normalize(), cfg)
	require.True(t, sample.Valid)
	assert.Equal(t, ReasonOK, diag.Reason)
	assert.InDelta(t, 1.0, sample.Value, 1e-9)
}
