package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SnippetOperations counts store and transfer operations by op (list|save|delete|import|export) and result (ok|error).
	SnippetOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livecss_snippet_operations_total",
			Help: "Total number of snippet store and transfer operations",
		},
		[]string{"op", "result"},
	)

	// StorageRecoveries counts reads of the snippet slot that fell back to an empty collection (unavailable|corrupt).
	StorageRecoveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livecss_storage_recoveries_total",
			Help: "Snippet slot reads recovered as an empty collection",
		},
		[]string{"kind"},
	)

	// PreviewCompositions counts composed preview documents by origin (http|realtime|editor).
	PreviewCompositions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livecss_preview_compositions_total",
			Help: "Total number of composed preview documents",
		},
		[]string{"origin"},
	)

	// RealtimeConnections tracks open websocket connections.
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "livecss_realtime_connections",
			Help: "Number of open realtime connections",
		},
	)

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "livecss_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "livecss_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Result maps an error to the result label used by the counters.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
