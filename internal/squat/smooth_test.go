package squat

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
)

var approxSample = cmpopts.EquateApprox(0, 1e-9)

func TestSmooth_AllNullStaysNull(t *testing.T) {
	in := make([]Sample, 9)
	out := Smooth(in)
	for i, s := range out {
		assert.False(t, s.Valid, "index %d", i)
	}
	for i, s := range median5(in) {
		assert.False(t, s.Valid, "median pass index %d", i)
	}
}

func TestSmooth_UniformWindowIsFixedPoint(t *testing.T) {
	for _, v := range []float64{0, 0.42, 1.3} {
		in := values(constant(v, 7)...)
		if diff := cmp.Diff(in, median5(in), approxSample); diff != "" {
			t.Errorf("median pass changed uniform %v (-want +got):\n%s", v, diff)
		}
		if diff := cmp.Diff(in, Smooth(in), approxSample); diff != "" {
			t.Errorf("smooth changed uniform %v (-want +got):\n%s", v, diff)
		}
	}
}

func TestSmooth_MedianRemovesSpike(t *testing.T) {
	in := values(0.1, 0.1, 0.1, 0.1, 0.95, 0.1, 0.1, 0.1, 0.1)
	out := median5(in)
	assert.InDelta(t, 0.1, out[4].Value, 1e-12)
}

func TestSmooth_MedianNeedsThreeValues(t *testing.T) {
	in := []Sample{Value(0.1), Null, Null, Value(0.9), Null, Value(0.3)}
	out := median5(in)
	// index 2 window {0.1, -, -, 0.9, -} has only two values: unchanged (null).
	assert.False(t, out[2].Valid)
	// index 3 window {-, -, 0.9, -, 0.3}: unchanged.
	assert.Equal(t, Value(0.9), out[3])
}

func TestSmooth_MedianReadsEarlierMedians(t *testing.T) {
	in := values(0, 0, 1, 0, 1, 1, 0, 0)

	// i=2 becomes 0, so the window of i=3 is {0, 0, 0, 1, 1} and so on.
	if diff := cmp.Diff(values(0, 0, 0, 0, 0, 0, 0, 0), median5(in), approxSample); diff != "" {
		t.Errorf("median pass mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(values(constant(0, 8)...), Smooth(in), approxSample); diff != "" {
		t.Errorf("smooth mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, values(0, 0, 1, 0, 1, 1, 0, 0), in, "input untouched")
}

func TestAnalyze_RunningMedianKeepsHeldBottom(t *testing.T) {
	// The running median carries the held 0.95 forward past the shallow
	// frame at index 8, giving a three-frame hold above the low threshold.
	series := values(0, 0, 0.1, 0.1, 0.1, 0.95, 0.95, 0.95, 0.1, 0.95, 0, 0, 0, 0)
	res, smoothed := Analyze(series, testConfig())
	assert.Equal(t, VerdictPass, res.Summary)
	assert.Equal(t, 1, res.Pass)
	assert.InDelta(t, 0.95, smoothed[7].Value, 1e-9)
}

func TestSmooth_MedianEvenCountUsesUpperMiddle(t *testing.T) {
	in := []Sample{Value(0.1), Value(0.4), Null, Value(0.2), Value(0.3)}
	out := median5(in)
	// sorted {0.1, 0.2, 0.3, 0.4} -> element 2
	assert.Equal(t, Value(0.3), out[2])
}

func TestSmooth_MedianFillsInteriorGap(t *testing.T) {
	in := values(0.2, 0.2, 0.2, 0.2, 0.2)
	in[2] = Null
	out := median5(in)
	assert.Equal(t, Value(0.2), out[2])
}

func TestSmooth_EdgesPassThrough(t *testing.T) {
	in := values(0.9, 0.0, 0.5, 0.5, 0.5, 0.0, 0.9)
	out := Smooth(in)
	assert.Equal(t, in[0], out[0])
	assert.Equal(t, in[len(in)-1], out[len(out)-1])

	med := median5(in)
	assert.Equal(t, in[1], med[1])
	assert.Equal(t, in[5], med[5])
}

func TestSmooth_MovingAverageSkipsNulls(t *testing.T) {
	in := []Sample{Value(0.1), Value(0.2), Null, Value(0.4), Null, Null, Null}
	out := movingAverage3(in)
	assert.InDelta(t, 0.15, out[1].Value, 1e-12)
	assert.InDelta(t, 0.3, out[2].Value, 1e-12)
	assert.InDelta(t, 0.4, out[3].Value, 1e-12)
	assert.InDelta(t, 0.4, out[4].Value, 1e-12)
	assert.False(t, out[5].Valid)
	assert.False(t, out[6].Valid)
}

func TestSmooth_DoesNotMutateInput(t *testing.T) {
	in := values(0, 0.3, 0.9, 0.3, 0, 0.3, 0.9)
	snapshot := append([]Sample(nil), in...)
	Smooth(in)
	if diff := cmp.Diff(snapshot, in); diff != "" {
		t.Errorf("input mutated (-want +got):\n%s", diff)
	}
}

func TestSmooth_ShortSeries(t *testing.T) {
	assert.Empty(t, Smooth(nil))
	one := values(0.5)
	assert.Equal(t, one, Smooth(one))
	two := values(0.5, 0.7)
	assert.Equal(t, two, Smooth(two))
}

func TestSmooth_SustainedRepProfile(t *testing.T) {
	out := Smooth(values(sustainedRep...))
	want := values(0, 0.1, 0.3, 0.6, 0.8, 0.9, 0.8, 0.6, 0.3, 0.1, 0, 0, 0, 0)
	if diff := cmp.Diff(want, out, approxSample); diff != "" {
		t.Errorf("smoothed rep mismatch (-want +got):\n%s", diff)
	}
}
