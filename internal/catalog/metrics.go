package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidkeeper_catalog_ingest_total",
		Help: "Artifact ingests by outcome.",
	}, []string{"status"})

	destroyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidkeeper_catalog_destroy_total",
		Help: "Artifact destructions by outcome.",
	}, []string{"status"})

	prefCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidkeeper_preference_cache_hits_total",
		Help: "Preference lookups served from the cache.",
	})
	prefCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidkeeper_preference_cache_misses_total",
		Help: "Preference lookups that went to the catalog.",
	})
)
