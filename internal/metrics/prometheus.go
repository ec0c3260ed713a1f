package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	InterpretationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "werewolf_sign_interpretations_total",
		Help: "Total number of interpretation invocations, by status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "werewolf_sign_stage_duration_seconds",
		Help:    "Duration of interpretation pipeline stages",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	FramesExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "werewolf_sign_frames_extracted_total",
		Help: "Total number of frames extracted across all invocations",
	})

	ClassificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "werewolf_sign_classifications_total",
		Help: "Total number of frame classifications, by outcome",
	}, []string{"outcome"})

	CleanupFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "werewolf_sign_cleanup_failures_total",
		Help: "Total number of transient artifacts that could not be removed",
	})

	ActiveInterpretations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "werewolf_sign_active_interpretations",
		Help: "Number of interpretations currently in progress",
	})
)
