package squat

import (
	"errors"

	"github.com/banshee-data/squat.report/internal/pose"
)

// ErrFinalized is returned when a session is finalized or fed after finalize.
var ErrFinalized = errors.New("session already finalized")

// Session owns the depth series of one recording. It is driven by one
// goroutine: each frame goes through Push, and Finalize runs the batch
// analysis exactly once.
type Session struct {
	cfg      Config
	series   *Series
	reasons  map[Reason]int
	frames   int
	smoothed []Sample
	result   *Result
	label    string

	// committed is set once the finalized result has been persisted.
	committed bool
}

// SessionOption customizes a new session.
type SessionOption func(*Session)

// WithLabel tags the session in log output.
func WithLabel(label string) SessionOption {
	return func(s *Session) { s.label = label }
}

// NewSession starts an empty session under cfg.
func NewSession(cfg Config, opts ...SessionOption) *Session {
	s := &Session{
		cfg:     cfg,
		series:  NewSeries(cfg),
		reasons: make(map[Reason]int, len(Reasons)),
	}
	for _, o := range opts {
		o(s)
	}
	Opsf("session %q started (th_high=%.2f hold=%d side_px=%.0f)", s.label, cfg.ThresholdHigh, cfg.HoldFrames, cfg.SidePx)
	return s
}

// Label returns the session label.
func (s *Session) Label() string {
	return s.label
}

// Config returns the policy the session was created with.
func (s *Session) Config() Config {
	return s.cfg
}

// Push processes one frame and returns its diagnostic and the latest sample.
// After Finalize the frame is dropped and ErrFinalized is returned.
func (s *Session) Push(f pose.Frame) (Diagnostic, Sample, error) {
	if s.result != nil {
		return Diagnostic{}, s.series.Latest(), ErrFinalized
	}
	sample, diag := Estimate(f, s.cfg)
	s.reasons[diag.Reason]++
	s.frames++
	latest := s.series.Append(sample)
	Tracef("session %q frame %d: reason=%s leg=%s depth=%v", s.label, f.Index, diag.Reason, diag.Leg, sample.Ptr())
	return diag, latest, nil
}

// PushBatch processes frames in order. For an empty batch the previous
// latest sample is returned.
func (s *Session) PushBatch(frames []pose.Frame) ([]Diagnostic, Sample) {
	if s.result != nil || len(frames) == 0 {
		return nil, s.series.Latest()
	}
	diags := make([]Diagnostic, len(frames))
	batch := make([]Sample, len(frames))
	for i, f := range frames {
		batch[i], diags[i] = Estimate(f, s.cfg)
		s.reasons[diags[i].Reason]++
	}
	s.frames += len(frames)
	return diags, s.series.Append(batch...)
}

// Len returns the number of buffered samples.
func (s *Session) Len() int {
	return s.series.Len()
}

// FramesSeen returns how many frames were pushed, including compacted ones.
func (s *Session) FramesSeen() int {
	return s.frames
}

// Compactions returns how often the buffered series was compacted.
func (s *Session) Compactions() int {
	return s.series.Compactions()
}

// ReasonCounts returns per-reason frame counts.
func (s *Session) ReasonCounts() map[Reason]int {
	out := make(map[Reason]int, len(s.reasons))
	for k, v := range s.reasons {
		out[k] = v
	}
	return out
}

// Samples returns a copy of the raw buffered series.
func (s *Session) Samples() []Sample {
	return s.series.Samples()
}

// Smoothed returns the smoothed series computed by Finalize, or nil before.
func (s *Session) Smoothed() []Sample {
	return s.smoothed
}

// Finalize smooths the buffered series, detects repetitions and returns the
// verdict. It may only be called once.
func (s *Session) Finalize() (Result, error) {
	if s.result != nil {
		return *s.result, ErrFinalized
	}
	res, smoothed := Analyze(s.series.Samples(), s.cfg)
	s.smoothed = smoothed
	s.result = &res
	Diagf("session %q finalized: summary=%s pass=%d fail=%d frames=%d buffered=%d compactions=%d",
		s.label, res.Summary, res.Pass, res.Fail, s.frames, s.series.Len(), s.series.Compactions())
	return res, nil
}

// Finalized reports whether Finalize has run.
func (s *Session) Finalized() bool {
	return s.result != nil
}

// Result returns the verdict computed by Finalize and whether there is one.
func (s *Session) Result() (Result, bool) {
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}

// Commit records that the finalized result has been persisted. It has no
// effect before Finalize.
func (s *Session) Commit() {
	if s.result != nil {
		s.committed = true
	}
}

// Committed reports whether Commit has been called after Finalize.
func (s *Session) Committed() bool {
	return s.committed
}
