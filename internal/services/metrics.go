package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Context assembly metrics
	ContextRequests prometheus.Counter
	ContextLatency  prometheus.Histogram
	ContextTokens   prometheus.Histogram

	// Token lifecycle metrics
	TokensIssued  prometheus.Counter
	TokensRevoked prometheus.Counter
	AuthRejected  *prometheus.CounterVec

	// Ingestion metrics
	FragmentsIngested *prometheus.CounterVec
	IndexFailures     prometheus.Counter
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics
func InitMetrics() *Metrics {
	metrics := &Metrics{
		ContextRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mynd_context_requests_total",
			Help: "Total number of context assembly requests served",
		}),

		ContextLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mynd_context_request_duration_seconds",
			Help:    "Context assembly latency in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}),

		ContextTokens: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mynd_context_tokens_served",
			Help:    "Estimated tokens served per assembled context",
			Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000},
		}),

		TokensIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mynd_capability_tokens_issued_total",
			Help: "Total number of capability tokens issued",
		}),

		TokensRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mynd_capability_tokens_revoked_total",
			Help: "Total number of capability tokens revoked",
		}),

		AuthRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mynd_auth_rejections_total",
			Help: "Total number of rejected access attempts by reason",
		}, []string{"reason"}), // "missing", "unknown", "expired", "revoked", "scope"

		FragmentsIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mynd_fragments_ingested_total",
			Help: "Total number of fragments ingested by source kind",
		}, []string{"source_kind"}),

		IndexFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mynd_index_write_failures_total",
			Help: "Total number of similarity index writes that failed after a durable record write",
		}),
	}

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance (nil before InitMetrics)
func GetMetrics() *Metrics {
	return globalMetrics
}
