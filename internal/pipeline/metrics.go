package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lofi_pipeline_runs_total",
		Help: "Completed pipeline runs by terminal status.",
	}, []string{"status"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "lofi_pipeline_stage_duration_seconds",
		Help: "Wall-clock duration per pipeline stage.",
		// Stages range from sub-second stubs to tens of minutes of ffmpeg.
		Buckets: []float64{0.1, 1, 5, 30, 60, 300, 900, 1800},
	}, []string{"stage"})
)
