package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidkeeper_jobs_total",
		Help: "Jobs taken off the queue by outcome.",
	}, []string{"status"})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vidkeeper_job_duration_seconds",
		Help:    "Time from dequeue to the end of delivery.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})

	queueUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vidkeeper_queue_up",
		Help: "1 when the last broker check succeeded.",
	})
)
