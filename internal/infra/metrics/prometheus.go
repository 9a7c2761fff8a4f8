package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frameconv_jobs_processed_total",
		Help: "Total number of worker conversion jobs, by outcome",
	}, []string{"status"})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frameconv_runs_total",
		Help: "Total number of pipeline runs, by pipeline and status",
	}, []string{"pipeline", "status"})

	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "frameconv_run_duration_seconds",
		Help:    "Duration of a pipeline run or worker stage",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	FramesConvertedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frameconv_frames_converted_total",
		Help: "Total number of frames written, by pipeline",
	}, []string{"pipeline"})

	FrameDecodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "frameconv_frame_decode_duration_seconds",
		Help:    "Time spent decoding one PPM frame",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "frameconv_active_workers",
		Help: "Number of workers currently processing a conversion job",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frameconv_retry_total",
		Help: "Total number of conversion job retries",
	}, []string{"attempt"})
)
