package squat

import (
	"testing"

	"github.com/banshee-data/squat.report/internal/pose"
	"github.com/stretchr/testify/assert"
)

func TestGate_HorizontalSeparation(t *testing.T) {
	cfg := DefaultConfig()
	f := profileFrame(400, 700, 500, 600)

	res := Gate(f, cfg)
	assert.True(t, res.OK)
	assert.InDelta(t, 60.0, res.Side, 1e-9)
	assert.Equal(t, 0.0, res.ProfileSpread)
}

func TestGate_TooFrontal(t *testing.T) {
	cfg := DefaultConfig()
	f := profileFrame(400, 700, 500, 600)
	f.Landmarks[pose.RightShoulder] = visible(420, 300)

	res := Gate(f, cfg)
	assert.False(t, res.OK)
	assert.InDelta(t, 20.0, res.Side, 1e-9)
}

func TestGate_DepthSpreadRescuesSteepProfile(t *testing.T) {
	cfg := DefaultConfig() // SidePx 40, ratio 0.6 -> 24px spread needed
	f := profileFrame(400, 700, 500, 600)
	f.Landmarks[pose.RightShoulder] = visible(405, 300)
	// |dz| * max(W,H) * 5 = 0.005 * 1000 * 5 = 25px
	f.Landmarks[pose.LeftHip] = pose.Landmark{X: 0.45, Y: 0.7, Z: 0.0, Visibility: 1, Present: true}
	f.Landmarks[pose.RightHip] = pose.Landmark{X: 0.45, Y: 0.7, Z: 0.005, Visibility: 1, Present: true}

	res := Gate(f, cfg)
	assert.InDelta(t, 25.0, res.ProfileSpread, 1e-9)
	assert.InDelta(t, 25.0, res.Side, 1e-9)
	assert.True(t, res.OK, "spread above SidePx*ratio must pass even though side < SidePx")
}

func TestGate_MissingLandmarksContributeZero(t *testing.T) {
	cfg := DefaultConfig()
	lm := make(pose.Landmarks, 13) // shorter than the full topology
	lm[pose.LeftShoulder] = visible(100, 100)
	f := pose.Frame{Width: testW, Height: testH, Landmarks: lm}

	res := Gate(f, cfg)
	assert.False(t, res.OK)
	assert.Equal(t, 0.0, res.Side)
	assert.Equal(t, 0.0, res.ProfileSpread)
}

func TestGate_ZeroWidthFallsBackToScale(t *testing.T) {
	cfg := DefaultConfig()
	f := profileFrame(400, 700, 500, 600)
	f.Width = 0
	res := Gate(f, cfg)
	// dx uses max(W,H)=1000 when W is unknown.
	assert.InDelta(t, 60.0, res.Side, 1e-9)
}

func TestGate_RaisingSidePxIsMonotonic(t *testing.T) {
	frames := []pose.Frame{
		profileFrame(400, 700, 500, 600),
		depthFrame(0.5),
		invisibleFrame(),
	}
	narrow := profileFrame(400, 700, 500, 600)
	narrow.Landmarks[pose.RightShoulder] = visible(430, 300)
	frames = append(frames, narrow)

	for _, f := range frames {
		prevOK := true
		for side := 0.0; side <= 200; side += 5 {
			cfg := DefaultConfig()
			cfg.SidePx = side
			ok := Gate(f, cfg).OK
			if ok && !prevOK {
				t.Fatalf("frame flipped from failing to passing when SidePx rose to %.0f", side)
			}
			prevOK = ok
		}
	}
}
