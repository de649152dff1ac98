package pose

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrame_Normalization(t *testing.T) {
	data := `{"index":4,"timestamp_ms":132,"width":1280,"height":720,
		"landmarks":[{"x":0.5,"y":0.25},null,{"x":0.1,"y":0.2,"z":-0.3,"visibility":0.4}]}`

	f, err := ParseFrame([]byte(data))
	require.NoError(t, err)
	want := Frame{
		Index:       4,
		TimestampMs: 132,
		Width:       1280,
		Height:      720,
		Landmarks: Landmarks{
			{X: 0.5, Y: 0.25, Z: 0, Visibility: 1, Present: true},
			{},
			{X: 0.1, Y: 0.2, Z: -0.3, Visibility: 0.4, Present: true},
		},
	}
	if diff := cmp.Diff(want, f); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, f.HasPose())
}

func TestParseFrame_EngineError(t *testing.T) {
	f, err := ParseFrame([]byte(`{"index":1,"width":640,"height":480,"landmarks":[{"x":0.5,"y":0.5}],"error":"model not loaded"}`))
	require.NoError(t, err)
	assert.False(t, f.HasPose())
	assert.Equal(t, 640, f.Width)
}

func TestParseFrame_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", `{"index":`},
		{"negative width", `{"width":-1,"height":10}`},
		{"negative height", `{"width":10,"height":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFrame([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestFrame_JSONRoundTrip(t *testing.T) {
	lm := make(Landmarks, NumLandmarks)
	lm[LeftHip] = Landmark{X: 0.4, Y: 0.6, Z: 0.1, Visibility: 0.9, Present: true}
	in := Frame{Index: 2, Width: 100, Height: 50, Landmarks: lm}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), "null", "absent slots encode as null")

	var out Frame
	require.NoError(t, json.Unmarshal(data, &out))
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLandmarks_AccessAndEdges(t *testing.T) {
	lm := make(Landmarks, NumLandmarks)
	lm[LeftHip] = Landmark{X: 0.5, Y: 0.5, Visibility: 0.9, Present: true}
	lm[LeftKnee] = Landmark{X: 0.5, Y: 0.7, Visibility: 0.8, Present: true}
	lm[LeftAnkle] = Landmark{X: 0.5, Y: 0.9, Visibility: 0.2, Present: true}

	assert.False(t, lm.At(-1).Present)
	assert.False(t, lm.At(NumLandmarks).Present)

	_, _, ok := lm.Pair(LeftHip, RightHip)
	assert.False(t, ok)
	_, _, ok = lm.Pair(LeftHip, LeftKnee)
	assert.True(t, ok)

	x, y := lm[LeftKnee].Pixel(200, 100)
	assert.InDelta(t, 100, x, 1e-9)
	assert.InDelta(t, 70, y, 1e-9)

	assert.Equal(t, [][2]int{{LeftHip, LeftKnee}}, lm.VisibleEdges(0.5))
	assert.Len(t, lm.VisibleEdges(0.1), 2)
	assert.Empty(t, Landmarks(nil).VisibleEdges(0))
}

func TestReader_SkipsCommentsAndBlankLines(t *testing.T) {
	input := strings.Join([]string{
		"# recorded at 30fps",
		`{"index":0,"width":10,"height":10,"landmarks":[]}`,
		"",
		`{"index":1,"width":10,"height":10,"landmarks":[{"x":0.1,"y":0.1}]}`,
	}, "\n")

	frames, err := NewReader(strings.NewReader(input)).ReadAll()
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.False(t, frames[0].HasPose())
	assert.Equal(t, 1, frames[1].Index)
}

func TestReader_ReportsLine(t *testing.T) {
	r := NewReader(strings.NewReader("{\"index\":0}\n\nnot json\n"))
	_, err := r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")

	_, err = NewReader(strings.NewReader("")).Next()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"index":7,"width":4,"height":4}`+"\n"), 0o644))

	frames, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, 7, frames[0].Index)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNormalizeFrames(t *testing.T) {
	vis := 0.3
	raw := []RawFrame{
		{Index: 0, Landmarks: []*RawLandmark{{X: 0.2, Y: 0.3, Visibility: &vis}}},
		{Index: 1, Error: "timeout"},
	}
	frames := NormalizeFrames(raw)
	require.Len(t, frames, 2)
	assert.Equal(t, 0.3, frames[0].Landmarks[0].Visibility)
	assert.False(t, frames[1].HasPose())
}
