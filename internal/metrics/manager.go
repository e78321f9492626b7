package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterFramesProcessed *prometheus.CounterVec
	CounterFramesSkipped   *prometheus.CounterVec
	CounterInferenceErrors *prometheus.CounterVec
	CounterReps            *prometheus.CounterVec
	CounterPhaseChanges    *prometheus.CounterVec
	CounterFallbacks       prometheus.Counter
	CounterSessionsSaved   prometheus.Counter
	CounterHookRuns        *prometheus.CounterVec
	CounterRequests        *prometheus.CounterVec

	// gauges
	GaugeActiveDetectors prometheus.Gauge
	GaugeEventClients    prometheus.Gauge

	// histograms
	HistInferenceDuration prometheus.Histogram
	HistRequestDuration   prometheus.Histogram
}

func NewTestManager() *Manager {
	return NewManager("formcoach", "test", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("formcoach", "test", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterFramesProcessed := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "frames_processed",
		Help:      "The total number of frames run through the pose model",
	}, []string{"exercise"})
	counterFramesSkipped := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "frames_skipped",
		Help:      "The total number of loop ticks that did not run inference",
	}, []string{"reason"})
	counterInferenceErrors := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "inference_errors",
		Help:      "The total number of failed frame reads or pose estimations",
	}, []string{"exercise"})
	counterReps := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "reps",
		Help:      "The total number of counted repetitions (seconds for held exercises)",
	}, []string{"exercise"})
	counterPhaseChanges := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "phase_changes",
		Help:      "The total number of exercise phase transitions",
	}, []string{"exercise", "phase"})
	counterFallbacks := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "manual_fallbacks",
		Help:      "The total number of workouts that fell back to manual counting",
	})
	counterSessionsSaved := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "sessions_saved",
		Help:      "The total number of finished sessions written to the store",
	})
	counterHookRuns := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "hook_runs",
		Help:      "The total number of export hook executions",
	}, []string{"hook", "status"})
	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming requests",
	}, []string{"method", "status"})

	gaugeActiveDetectors := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "active_detectors",
		Help:      "Current number of initialized pose detectors",
	})
	gaugeEventClients := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "event_clients",
		Help:      "Current number of websocket event subscribers",
	})

	histInferenceDuration := factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets: []float64{
				0.005, 0.01, 0.02, 0.03, 0.05, 0.075,
				0.1, 0.15, 0.25, 0.5, 1, 2.5,
			},
			Name: "inference_duration_seconds",
			Help: "Duration of a single pose estimation in seconds",
		},
	)
	histRequestDuration := factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets: []float64{
				0.0001, 0.001, 0.01, 0.1, 1, 10, 60,
			},
			Name: "request_duration_seconds",
			Help: "Total duration of requests in seconds",
		},
	)

	return &Manager{
		CounterFramesProcessed: counterFramesProcessed,
		CounterFramesSkipped:   counterFramesSkipped,
		CounterInferenceErrors: counterInferenceErrors,
		CounterReps:            counterReps,
		CounterPhaseChanges:    counterPhaseChanges,
		CounterFallbacks:       counterFallbacks,
		CounterSessionsSaved:   counterSessionsSaved,
		CounterHookRuns:        counterHookRuns,
		CounterRequests:        counterRequests,
		GaugeActiveDetectors:   gaugeActiveDetectors,
		GaugeEventClients:      gaugeEventClients,
		HistInferenceDuration:  histInferenceDuration,
		HistRequestDuration:    histRequestDuration,
	}
}
