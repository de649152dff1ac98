package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterFrames            *prometheus.CounterVec
	CounterSessionsFinalized *prometheus.CounterVec
	CounterReps              *prometheus.CounterVec
	CounterRequests          *prometheus.CounterVec
	CounterCompactions       prometheus.Counter

	// gauges
	GaugeLiveSessions prometheus.Gauge

	// histograms
	HistFinalizeDuration prometheus.Histogram
	HistDepthRatioMax    prometheus.Histogram
}

func NewTestManager() *Manager {
	return NewManager("squat", "test_server", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("squat", "test_server", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterFrames := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "frames",
		Help:      "The total number of processed frames by diagnostic reason",
	}, []string{"reason"})
	counterSessionsFinalized := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "sessions_finalized",
		Help:      "The total number of finalized sessions by summary",
	}, []string{"summary"})
	counterReps := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "reps",
		Help:      "The total number of judged repetitions by outcome",
	}, []string{"outcome"})
	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming requests",
	}, []string{"method", "status"})
	counterCompactions := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "series_compactions",
		Help:      "Number of depth series compactions across finalized sessions",
	})

	gaugeLiveSessions := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "live_sessions",
		Help:      "Current number of open sessions",
	})

	histFinalizeDuration := factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets: []float64{
				0.00001, 0.0001, 0.0005, 0.001, 0.005,
				0.01, 0.05, 0.1, 0.5, 1,
			},
			Name: "finalize_duration_seconds",
			Help: "Duration of session finalize (smoothing, detection, persistence) in seconds",
		},
	)
	histDepthRatioMax := factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets:   prometheus.LinearBuckets(0, 0.1, 13),
			Name:      "depth_ratio_max",
			Help:      "Deepest depth ratio reached per finalized session",
		},
	)

	return &Manager{
		CounterFrames:            counterFrames,
		CounterSessionsFinalized: counterSessionsFinalized,
		CounterReps:              counterReps,
		CounterRequests:          counterRequests,
		CounterCompactions:       counterCompactions,
		GaugeLiveSessions:        gaugeLiveSessions,
		HistFinalizeDuration:     histFinalizeDuration,
		HistDepthRatioMax:        histDepthRatioMax,
	}
}
