package report

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/squat.report/internal/squat"
)

func testChart(t *testing.T) Chart {
	t.Helper()
	rep := []float64{0, 0, 0.3, 0.6, 0.9, 0.9, 0.9, 0.6, 0.3, 0, 0, 0, 0, 0}
	raw := make([]squat.Sample, 0, 2*len(rep)+1)
	for i := 0; i < 2; i++ {
		for _, v := range rep {
			raw = append(raw, squat.Value(v))
		}
	}
	raw = append(raw, squat.Null)

	cfg := squat.DefaultConfig()
	res, smoothed := squat.Analyze(raw, cfg)
	require.Equal(t, squat.VerdictPass, res.Summary)
	return NewChart("double squat", raw, smoothed, res, cfg)
}

func TestChart_Stats(t *testing.T) {
	c := testChart(t)
	st := c.Stats()
	assert.Equal(t, 29, st.Frames)
	assert.Equal(t, 28, st.Valid)
	assert.InDelta(t, 28.0/29.0, st.Coverage, 1e-12)
	assert.Greater(t, st.Mean, 0.0)
	assert.Greater(t, st.StdDev, 0.0)

	empty := Chart{}.Stats()
	assert.Zero(t, empty.Coverage)
	assert.Zero(t, empty.Mean)
}

func TestSegments_SplitAtNulls(t *testing.T) {
	segs := segments([]squat.Sample{squat.Value(1), squat.Value(2), squat.Null, squat.Null, squat.Value(3)})
	require.Len(t, segs, 2)
	assert.Equal(t, [][2]float64{{0, 1}, {1, 2}}, segs[0])
	assert.Equal(t, [][2]float64{{4, 3}}, segs[1])
	assert.Empty(t, segments(make([]squat.Sample, 3)))
}

func TestChart_SavePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.png")
	require.NoError(t, testChart(t).SavePNG(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), img.Bounds().Dy())
}

func TestChart_WritePNG_AllNull(t *testing.T) {
	var buf bytes.Buffer
	c := Chart{Title: "empty", Raw: make([]squat.Sample, 5), Smoothed: make([]squat.Sample, 5), ThresholdHigh: 0.8, ThresholdLow: 0.68}
	require.NoError(t, c.WritePNG(&buf))
	_, err := png.Decode(&buf)
	assert.NoError(t, err)
}

func TestChart_RenderHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, testChart(t).RenderHTML(&buf))

	html := buf.String()
	assert.True(t, strings.Contains(html, "<html"), "renders a full page")
	assert.Contains(t, html, "double squat")
	assert.Contains(t, html, "smoothed")
	assert.Contains(t, html, "TH_HIGH")
	assert.Contains(t, html, "Peaks")
}
