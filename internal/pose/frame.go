package pose

import (
	"encoding/json"
	"fmt"
)

// Frame is one processed video frame: the landmark set plus the pixel
// dimensions the normalized coordinates refer to.
type Frame struct {
	Index       int       `json:"index"`
	TimestampMs int64     `json:"timestamp_ms"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Landmarks   Landmarks `json:"landmarks"`
}

// HasPose reports whether the engine produced any landmarks for the frame.
func (f Frame) HasPose() bool {
	return len(f.Landmarks) > 0
}

// RawLandmark mirrors the engine output where z and visibility are optional.
type RawLandmark struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Z          *float64 `json:"z,omitempty"`
	Visibility *float64 `json:"visibility,omitempty"`
}

// RawFrame is the wire form of a frame. Landmark slots may be null, and
// Error carries an engine failure for the frame.
type RawFrame struct {
	Index       int            `json:"index"`
	TimestampMs int64          `json:"timestamp_ms"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	Landmarks   []*RawLandmark `json:"landmarks"`
	Error       string         `json:"error,omitempty"`
}

// Normalize converts a raw landmark: absent visibility becomes 1, absent z becomes 0.
func (r *RawLandmark) Normalize() Landmark {
	if r == nil {
		return Landmark{}
	}
	l := Landmark{X: r.X, Y: r.Y, Visibility: 1, Present: true}
	if r.Z != nil {
		l.Z = *r.Z
	}
	if r.Visibility != nil {
		l.Visibility = *r.Visibility
	}
	return l
}

// Normalize converts the wire frame into a Frame. An engine error is
// reported as a frame with no landmarks.
func (r RawFrame) Normalize() Frame {
	f := Frame{
		Index:       r.Index,
		TimestampMs: r.TimestampMs,
		Width:       r.Width,
		Height:      r.Height,
	}
	if r.Error != "" || len(r.Landmarks) == 0 {
		return f
	}
	f.Landmarks = make(Landmarks, len(r.Landmarks))
	for i, rl := range r.Landmarks {
		f.Landmarks[i] = rl.Normalize()
	}
	return f
}

// UnmarshalJSON decodes the wire form and normalizes it.
func (f *Frame) UnmarshalJSON(data []byte) error {
	var raw RawFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = raw.Normalize()
	return nil
}

// ParseFrame decodes and normalizes one JSON frame.
func ParseFrame(data []byte) (Frame, error) {
	var raw RawFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return Frame{}, fmt.Errorf("failed to parse frame JSON: %w", err)
	}
	if raw.Width < 0 || raw.Height < 0 {
		return Frame{}, fmt.Errorf("frame %d has negative dimensions %dx%d", raw.Index, raw.Width, raw.Height)
	}
	return raw.Normalize(), nil
}

// NormalizeFrames converts a decoded batch of wire frames.
func NormalizeFrames(raw []RawFrame) []Frame {
	out := make([]Frame, len(raw))
	for i, r := range raw {
		out[i] = r.Normalize()
	}
	return out
}
