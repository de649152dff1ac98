// Package pose models the per-frame body landmarks produced by an external
// pose-estimation engine and normalizes them at ingestion.
package pose

import "encoding/json"

// Body-part indices in the 33-point MediaPipe pose topology. Only the
// shoulders, hips, knees and ankles are consumed by the depth pipeline.
const (
	Nose           = 0
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftPinky      = 17
	RightPinky     = 18
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32

	NumLandmarks = 33
)

// Landmark is one normalized body point.
// X and Y are image-plane fractions in [0,1]; Z is engine-relative depth.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`

	// Present is false for slots the engine did not report.
	Present bool `json:"-"`
}

// Pixel converts the landmark to pixel coordinates for a w×h frame.
func (l Landmark) Pixel(w, h int) (x, y float64) {
	return l.X * float64(w), l.Y * float64(h)
}

// Visible reports whether the landmark is present with visibility >= th.
func (l Landmark) Visible(th float64) bool {
	return l.Present && l.Visibility >= th
}

// Landmarks is an ordered landmark sequence indexed by body-part constants.
type Landmarks []Landmark

// At returns the landmark at idx; out-of-range slots are reported as absent.
func (ls Landmarks) At(idx int) Landmark {
	if idx < 0 || idx >= len(ls) {
		return Landmark{}
	}
	return ls[idx]
}

// Pair returns both landmarks of a left/right pair and whether both are present.
func (ls Landmarks) Pair(a, b int) (Landmark, Landmark, bool) {
	la, lb := ls.At(a), ls.At(b)
	return la, lb, la.Present && lb.Present
}

// SkeletonEdges lists the landmark connections an overlay draws.
var SkeletonEdges = [][2]int{
	// upper body
	{LeftShoulder, RightShoulder}, {LeftShoulder, LeftElbow}, {RightShoulder, RightElbow},
	{LeftElbow, LeftWrist}, {RightElbow, RightWrist}, {LeftWrist, LeftPinky}, {RightWrist, RightPinky},
	// torso
	{LeftShoulder, LeftHip}, {RightShoulder, RightHip}, {LeftHip, RightHip},
	// legs
	{LeftHip, LeftKnee}, {LeftKnee, LeftAnkle}, {LeftAnkle, LeftHeel}, {LeftHeel, LeftFootIndex},
	{RightHip, RightKnee}, {RightKnee, RightAnkle}, {RightAnkle, RightHeel}, {RightHeel, RightFootIndex},
}

// VisibleEdges returns the skeleton edges whose two endpoints are both visible.
func (ls Landmarks) VisibleEdges(th float64) [][2]int {
	var out [][2]int
	for _, e := range SkeletonEdges {
		if ls.At(e[0]).Visible(th) && ls.At(e[1]).Visible(th) {
			out = append(out, e)
		}
	}
	return out
}

// MarshalJSON encodes an absent slot as null so recordings round-trip.
func (l Landmark) MarshalJSON() ([]byte, error) {
	if !l.Present {
		return []byte("null"), nil
	}
	type wire Landmark
	return json.Marshal(wire(l))
}
