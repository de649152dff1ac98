package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/banshee-data/squat.report/internal/config"
	"github.com/banshee-data/squat.report/internal/db"
	"github.com/banshee-data/squat.report/internal/httputil"
	"github.com/banshee-data/squat.report/internal/metrics"
	"github.com/banshee-data/squat.report/internal/pose"
	"github.com/banshee-data/squat.report/internal/report"
	"github.com/banshee-data/squat.report/internal/squat"
	"github.com/banshee-data/squat.report/internal/timeutil"
	"github.com/banshee-data/squat.report/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxBodyBytes bounds request bodies; a batch of a few hundred frames fits.
const maxBodyBytes = 8 << 20

type Server struct {
	db       *db.DB
	policy   squat.Config
	metrics  *metrics.Manager
	gatherer prometheus.Gatherer
	clock    timeutil.Clock
	sessions *Registry
	recorder *Recorder
}

// Option customizes a Server.
type Option func(*Server)

// WithClock replaces the wall clock used for session timestamps and reaping.
func WithClock(c timeutil.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithGatherer sets the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// NewServer builds the HTTP API over database. Sessions idle longer than
// ttl are reaped by Sessions().Run.
func NewServer(database *db.DB, tuning *config.TuningConfig, m *metrics.Manager, ttl time.Duration, opts ...Option) *Server {
	if tuning == nil {
		tuning = config.EmptyTuningConfig()
	}
	s := &Server{
		db:       database,
		policy:   tuning.Policy(),
		metrics:  m,
		gatherer: prometheus.DefaultGatherer,
		clock:    timeutil.RealClock{},
	}
	for _, o := range opts {
		o(s)
	}
	s.sessions = NewRegistry(ttl, s.clock, m)
	s.recorder = NewRecorder(database, m, s.clock)
	return s
}

// Sessions returns the live session registry.
func (s *Server) Sessions() *Registry {
	return s.sessions
}

// Recorder returns the recorder used to finalize and store sessions.
func (s *Server) Recorder() *Recorder {
	return s.recorder
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration, and
// counts requests by method and status when m is not nil.
func LoggingMiddleware(m *metrics.Manager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		if m != nil {
			m.CounterRequests.WithLabelValues(r.Method, strconv.Itoa(lrw.statusCode)).Inc()
		}
		logrus.Debugf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", s.createSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.showSession)
	mux.HandleFunc("POST /api/sessions/{id}/frames", s.pushFrames)
	mux.HandleFunc("POST /api/sessions/{id}/finalize", s.finalizeSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.deleteSession)

	mux.HandleFunc("POST /api/results", s.submitResult)
	mux.HandleFunc("GET /api/results", s.listResults)
	mux.HandleFunc("GET /api/results/{id}", s.showResult)
	mux.HandleFunc("GET /api/results/{id}/series", s.showResultSeries)
	mux.HandleFunc("DELETE /api/results/{id}", s.deleteResult)
	mux.HandleFunc("GET /charts/results/{id}", s.showResultChart)

	mux.HandleFunc("GET /api/config", s.showConfig)
	mux.HandleFunc("GET /api/version", s.showVersion)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return mux
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

type createSessionRequest struct {
	Label string `json:"label"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	ls := s.sessions.create(s.policy, req.Label)
	ls.mu.Lock()
	defer ls.mu.Unlock()
	httputil.WriteJSON(w, http.StatusCreated, ls.status())
}

func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*liveSession, bool) {
	ls, err := s.sessions.get(r.PathValue("id"))
	if err != nil {
		httputil.NotFound(w, err.Error())
		return nil, false
	}
	return ls, true
}

func (s *Server) showSession(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	httputil.WriteJSONOK(w, ls.status())
}

type pushFramesResponse struct {
	Diagnostics []squat.Diagnostic `json:"diagnostics"`
	Latest      squat.Sample       `json:"latest"`
	Frames      int                `json:"frames"`
	Buffered    int                `json:"buffered"`
}

// parseFrames accepts a single frame object or an array of frames.
func parseFrames(data []byte) ([]pose.Frame, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty body")
	}
	if data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid frames: %w", err)
		}
		frames := make([]pose.Frame, len(raw))
		for i, r := range raw {
			f, err := pose.ParseFrame(r)
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", i, err)
			}
			frames[i] = f
		}
		return frames, nil
	}
	f, err := pose.ParseFrame(data)
	if err != nil {
		return nil, err
	}
	return []pose.Frame{f}, nil
}

func (s *Server) pushFrames(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("failed to read body: %v", err))
		return
	}
	frames, err := parseFrames(data)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.session.Finalized() {
		httputil.Conflict(w, squat.ErrFinalized.Error())
		return
	}
	diags, latest := ls.session.PushBatch(frames)
	s.recorder.ObserveFrames(diags)
	if diags == nil {
		diags = []squat.Diagnostic{}
	}
	httputil.WriteJSONOK(w, pushFramesResponse{
		Diagnostics: diags,
		Latest:      latest,
		Frames:      ls.session.FramesSeen(),
		Buffered:    ls.session.Len(),
	})
}

func (s *Server) finalizeSession(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	rec, err := s.recorder.Finalize(ls.session, db.SourceSession)
	if errors.Is(err, squat.ErrFinalized) {
		httputil.Conflict(w, err.Error())
		return
	}
	if err != nil {
		logrus.WithField("session", ls.id).Errorf("finalize failed: %v", err)
		httputil.InternalServerError(w, "failed to finalize session")
		return
	}
	httputil.WriteJSONOK(w, rec)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.remove(r.PathValue("id")); err != nil {
		httputil.NotFound(w, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// submitResultRequest carries either a precomputed result or a raw depth
// series that is analysed under the server policy.
type submitResultRequest struct {
	Label  string         `json:"label"`
	Source string         `json:"source"`
	Result *squat.Result  `json:"result"`
	Series []squat.Sample `json:"series"`
}

func validVerdict(v squat.Verdict) bool {
	switch v {
	case squat.VerdictPass, squat.VerdictFail, squat.VerdictMixed, squat.VerdictUnsure:
		return true
	}
	return false
}

func (s *Server) submitResult(w http.ResponseWriter, r *http.Request) {
	var req submitResultRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	source := req.Source
	if source == "" {
		source = db.SourceSubmitted
	}
	cfg := s.policy
	rec := &db.ResultRecord{Label: req.Label, Source: source, Config: &cfg}

	var series db.Series
	switch {
	case req.Series != nil:
		raw, err := squat.BufferSamples(req.Series, s.policy)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		res, smoothed := squat.Analyze(raw, s.policy)
		rec.Result = res
		series = db.Series{Raw: raw, Smoothed: smoothed}
	case req.Result != nil:
		if !validVerdict(req.Result.Summary) {
			httputil.BadRequest(w, fmt.Sprintf("invalid summary %q", req.Result.Summary))
			return
		}
		if req.Result.Pass < 0 || req.Result.Fail < 0 {
			httputil.BadRequest(w, "pass and fail must be non-negative")
			return
		}
		rec.Result = *req.Result
		rec.Config = nil
	default:
		httputil.BadRequest(w, "either result or series is required")
		return
	}

	if err := s.recorder.Store(rec, series); err != nil {
		logrus.Errorf("failed to store submitted result: %v", err)
		httputil.InternalServerError(w, "failed to store result")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, rec)
}

func (s *Server) listResults(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.BadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	records, err := s.db.ListResults(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, records)
}

// writeLookupError maps db.ErrNotFound to 404 and anything else to 500.
func writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	httputil.InternalServerError(w, err.Error())
}

func (s *Server) showResult(w http.ResponseWriter, r *http.Request) {
	rec, err := s.db.GetResult(r.PathValue("id"))
	if err != nil {
		writeLookupError(w, err)
		return
	}
	httputil.WriteJSONOK(w, rec)
}

func (s *Server) showResultSeries(w http.ResponseWriter, r *http.Request) {
	series, err := s.db.ResultSeries(r.PathValue("id"))
	if err != nil {
		writeLookupError(w, err)
		return
	}
	httputil.WriteJSONOK(w, series)
}

func (s *Server) deleteResult(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteResult(r.PathValue("id")); err != nil {
		writeLookupError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) showResultChart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.db.GetResult(id)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	series, err := s.db.ResultSeries(id)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	cfg := s.policy
	if rec.Config != nil {
		cfg = *rec.Config
	}
	title := rec.Label
	if title == "" {
		title = rec.ID
	}
	chart := report.NewChart(title, series.Raw, series.Smoothed, rec.Result, cfg)

	switch format := r.URL.Query().Get("format"); format {
	case "", "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := chart.RenderHTML(w); err != nil {
			logrus.Errorf("failed to render chart %s: %v", id, err)
		}
	case "png":
		var buf bytes.Buffer
		if err := chart.WritePNG(&buf); err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		w.Header().Set("Content-Type", "image/png")
		if _, err := buf.WriteTo(w); err != nil {
			logrus.Errorf("failed to write chart %s: %v", id, err)
		}
	default:
		httputil.BadRequest(w, fmt.Sprintf("unsupported format %q", format))
	}
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, s.policy)
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}
