package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/banshee-data/squat.report/internal/metrics"
	"github.com/banshee-data/squat.report/internal/squat"
	"github.com/banshee-data/squat.report/internal/timeutil"
)

var errSessionNotFound = errors.New("session not found")

// liveSession serializes access to one squat.Session.
type liveSession struct {
	mu       sync.Mutex
	id       string
	session  *squat.Session
	created  time.Time
	lastSeen time.Time
}

// sessionStatus is the JSON view of a live session.
type sessionStatus struct {
	ID        string               `json:"id"`
	Label     string               `json:"label,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	Frames    int                  `json:"frames"`
	Buffered  int                  `json:"buffered"`
	Finalized bool                 `json:"finalized"`
	Reasons   map[squat.Reason]int `json:"reasons"`
}

// status must be called with ls.mu held.
func (ls *liveSession) status() sessionStatus {
	return sessionStatus{
		ID:        ls.id,
		Label:     ls.session.Label(),
		CreatedAt: ls.created,
		Frames:    ls.session.FramesSeen(),
		Buffered:  ls.session.Len(),
		Finalized: ls.session.Finalized(),
		Reasons:   ls.session.ReasonCounts(),
	}
}

// Registry holds the open sessions of the server. Sessions idle for longer
// than the TTL are dropped by Reap without being finalized.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*liveSession
	ttl      time.Duration
	clock    timeutil.Clock
	metrics  *metrics.Manager
}

// NewRegistry creates an empty registry. A nil manager skips the live
// sessions gauge.
func NewRegistry(ttl time.Duration, clock timeutil.Clock, m *metrics.Manager) *Registry {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Registry{
		sessions: make(map[string]*liveSession),
		ttl:      ttl,
		clock:    clock,
		metrics:  m,
	}
}

func (r *Registry) create(cfg squat.Config, label string) *liveSession {
	id := uuid.NewString()
	if label == "" {
		label = id[:8]
	}
	now := r.clock.Now()
	ls := &liveSession{
		id:       id,
		session:  squat.NewSession(cfg, squat.WithLabel(label)),
		created:  now.UTC(),
		lastSeen: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = ls
	r.updateGauge()
	return ls
}

// get returns the session and marks it as used.
func (r *Registry) get(id string) (*liveSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ls, ok := r.sessions[id]
	if !ok {
		return nil, errSessionNotFound
	}
	ls.lastSeen = r.clock.Now()
	return ls, nil
}

func (r *Registry) remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return errSessionNotFound
	}
	delete(r.sessions, id)
	r.updateGauge()
	return nil
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Reap drops sessions idle for longer than the TTL and returns how many
// were dropped.
func (r *Registry) Reap() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ttl <= 0 {
		return 0
	}
	now := r.clock.Now()
	n := 0
	for id, ls := range r.sessions {
		if now.Sub(ls.lastSeen) > r.ttl {
			delete(r.sessions, id)
			n++
			logrus.WithField("session", id).Infof("reaped idle session after %s", now.Sub(ls.lastSeen).Round(time.Second))
		}
	}
	if n > 0 {
		r.updateGauge()
	}
	return n
}

// Run reaps idle sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			r.Reap()
		}
	}
}

// updateGauge must be called with r.mu held.
func (r *Registry) updateGauge() {
	if r.metrics != nil {
		r.metrics.GaugeLiveSessions.Set(float64(len(r.sessions)))
	}
}
