package retention

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidkeeper_retention_cycles_total",
		Help: "Retention cycles by outcome.",
	}, []string{"status"})

	removedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidkeeper_retention_removed_total",
		Help: "Artifacts removed by the retention engine, by reason.",
	}, []string{"reason"})

	freedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidkeeper_retention_freed_bytes_total",
		Help: "Bytes reclaimed by the retention engine.",
	})

	storageUsedBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vidkeeper_storage_used_bytes",
		Help: "Bytes under the videos and thumbnails directories after the last cycle.",
	})

	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vidkeeper_retention_cycle_duration_seconds",
		Help:    "Duration of one retention cycle.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)
