package squat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Sample is one per-frame depth ratio. An invalid sample marks an unusable
// frame and keeps its position in the series.
type Sample struct {
	Value float64
	Valid bool
}

// Null is the unusable-frame marker.
var Null = Sample{}

// Value wraps a usable depth ratio.
func Value(v float64) Sample {
	return Sample{Value: v, Valid: true}
}

// Ptr returns the value as a pointer, nil when invalid.
func (s Sample) Ptr() *float64 {
	if !s.Valid {
		return nil
	}
	v := s.Value
	return &v
}

// MarshalJSON encodes the sample as a number or null.
func (s Sample) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(s.Value, 'g', -1, 64)), nil
}

// UnmarshalJSON accepts a number or null.
func (s *Sample) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = Null
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Value(v)
	return nil
}

// Series is the bounded, insertion-ordered store of depth samples for one
// session. Eviction is batched: once an append pushes the length past
// maxLen the series is compacted to the newest keep samples in one step.
type Series struct {
	samples     []Sample
	maxLen      int
	keep        int
	compactions int
}

// NewSeries creates an empty series using the buffer limits from cfg.
func NewSeries(cfg Config) *Series {
	maxLen, keep := cfg.MaxSamples, cfg.KeepSamples
	if maxLen < 1 {
		maxLen = 2000
	}
	if keep < 1 || keep > maxLen {
		keep = maxLen / 2
	}
	return &Series{
		samples: make([]Sample, 0, keep),
		maxLen:  maxLen,
		keep:    keep,
	}
}

// Append adds a batch of samples and returns the most recent sample. An
// empty batch returns the previous most recent sample, or Null when the
// series is empty.
func (s *Series) Append(batch ...Sample) Sample {
	if len(batch) > 0 {
		s.samples = append(s.samples, batch...)
		if len(s.samples) > s.maxLen {
			s.compact()
		}
	}
	return s.Latest()
}

// compact copies the newest keep samples to a fresh backing array so the
// evicted prefix can be collected.
func (s *Series) compact() {
	kept := make([]Sample, s.keep, s.maxLen+1)
	copy(kept, s.samples[len(s.samples)-s.keep:])
	s.samples = kept
	s.compactions++
	Tracef("series compacted to %d samples (compaction #%d)", s.keep, s.compactions)
}

// Latest returns the most recent sample, or Null when empty.
func (s *Series) Latest() Sample {
	if len(s.samples) == 0 {
		return Null
	}
	return s.samples[len(s.samples)-1]
}

// Len returns the number of buffered samples.
func (s *Series) Len() int {
	return len(s.samples)
}

// Compactions returns how many times the series has been compacted.
func (s *Series) Compactions() int {
	return s.compactions
}

// Samples returns a copy of the buffered samples, oldest first.
func (s *Series) Samples() []Sample {
	out := make([]Sample, len(s.samples))
	copy(out, s.samples)
	return out
}

// BufferSamples validates a complete submitted series and buffers it the way
// live frames are buffered, so a series longer than the buffer limit keeps
// only its newest samples. Negative or non-finite samples are rejected.
func BufferSamples(samples []Sample, cfg Config) ([]Sample, error) {
	for i, v := range samples {
		if !v.Valid {
			continue
		}
		if math.IsNaN(v.Value) || math.IsInf(v.Value, 0) {
			return nil, fmt.Errorf("sample %d is not finite", i)
		}
		if v.Value < 0 {
			return nil, fmt.Errorf("sample %d is negative: %g", i, v.Value)
		}
	}
	s := NewSeries(cfg)
	s.Append(samples...)
	return s.Samples(), nil
}

// HasFinite reports whether any sample in xs is usable.
func HasFinite(xs []Sample) bool {
	for _, v := range xs {
		if v.Valid {
			return true
		}
	}
	return false
}
