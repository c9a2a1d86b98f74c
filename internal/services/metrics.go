package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Ingestion metrics
	MemoriesCreated    *prometheus.CounterVec
	ExtractionFallback prometheus.Counter

	// Retrieval metrics
	Searches      prometheus.Counter
	SearchLatency prometheus.Histogram

	// Delegate call failures by stage (extraction/embedding/synthesis)
	DelegateErrors *prometheus.CounterVec
}

// InitMetrics initializes the Prometheus metrics
func InitMetrics() *Metrics {
	return &Metrics{
		// Memories created by source (counter - only goes up)
		MemoriesCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "echovault_memories_created_total",
			Help: "Total number of memory records created by source",
		}, []string{"source"}),

		// Extraction parse fallbacks. The fallback is a success outcome,
		// but operators need to see extraction quality degrade.
		ExtractionFallback: promauto.NewCounter(prometheus.CounterOpts{
			Name: "echovault_extraction_fallback_total",
			Help: "Total number of extraction responses that were not parseable JSON and fell back to the deterministic record",
		}),

		Searches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "echovault_searches_total",
			Help: "Total number of memory searches processed",
		}),

		SearchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "echovault_search_duration_seconds",
			Help:    "Search latency in seconds, including delegate calls",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60}, // embedding + synthesis round trips
		}),

		DelegateErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "echovault_delegate_errors_total",
			Help: "Total number of failed delegate calls by stage",
		}, []string{"stage"}),
	}
}
