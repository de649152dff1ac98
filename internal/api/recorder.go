package api

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/squat.report/internal/db"
	"github.com/banshee-data/squat.report/internal/metrics"
	"github.com/banshee-data/squat.report/internal/squat"
	"github.com/banshee-data/squat.report/internal/timeutil"
)

// Recorder finalizes sessions, stores their results and updates the
// metrics. A nil database skips persistence and a nil manager skips metrics.
type Recorder struct {
	db      *db.DB
	metrics *metrics.Manager
	clock   timeutil.Clock
}

// NewRecorder returns a Recorder. A nil clock uses the wall clock.
func NewRecorder(database *db.DB, m *metrics.Manager, clock timeutil.Clock) *Recorder {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Recorder{db: database, metrics: m, clock: clock}
}

// ObserveFrames counts per-frame diagnostics by reason.
func (r *Recorder) ObserveFrames(diags []squat.Diagnostic) {
	if r.metrics == nil {
		return
	}
	for _, d := range diags {
		r.metrics.CounterFrames.WithLabelValues(string(d.Reason)).Inc()
	}
}

// Finalize runs the session analysis and stores the result together with the
// raw and smoothed series. When an earlier call computed the result but
// failed to store it, the same result is stored again. squat.ErrFinalized is
// returned unwrapped once the result has been stored.
func (r *Recorder) Finalize(s *squat.Session, source string) (*db.ResultRecord, error) {
	if s.Committed() {
		return nil, squat.ErrFinalized
	}
	start := r.clock.Now()
	res, err := s.Finalize()
	if err != nil && !errors.Is(err, squat.ErrFinalized) {
		return nil, err
	}
	cfg := s.Config()
	rec := &db.ResultRecord{
		Label:     s.Label(),
		Source:    source,
		CreatedAt: r.clock.Now().UTC(),
		Result:    res,
		Config:    &cfg,
	}
	if err := r.store(rec, db.Series{Raw: s.Samples(), Smoothed: s.Smoothed()}); err != nil {
		return nil, err
	}
	s.Commit()
	if r.metrics != nil {
		r.metrics.CounterCompactions.Add(float64(s.Compactions()))
		r.metrics.HistFinalizeDuration.Observe(r.clock.Since(start).Seconds())
	}
	return rec, nil
}

// Store persists an already computed result.
func (r *Recorder) Store(rec *db.ResultRecord, series db.Series) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.clock.Now().UTC()
	}
	return r.store(rec, series)
}

func (r *Recorder) store(rec *db.ResultRecord, series db.Series) error {
	if r.db == nil && rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if r.db != nil {
		if err := r.db.InsertResult(rec, series); err != nil {
			return fmt.Errorf("failed to store result: %w", err)
		}
	}
	if r.metrics != nil {
		r.metrics.CounterSessionsFinalized.WithLabelValues(string(rec.Summary)).Inc()
		r.metrics.CounterReps.WithLabelValues("pass").Add(float64(rec.Pass))
		r.metrics.CounterReps.WithLabelValues("fail").Add(float64(rec.Fail))
		if rec.DepthRatioMax != nil {
			r.metrics.HistDepthRatioMax.Observe(*rec.DepthRatioMax)
		}
	}
	return nil
}
