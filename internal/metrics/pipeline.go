package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline metrics.
var (
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of each pipeline stage",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "pipeline_requests_total",
			Help:      "Pipeline runs by outcome (success, no_results, failed)",
		},
		[]string{"outcome"},
	)

	SearchTierTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "search_tier_total",
			Help:      "Search tier attempts by method and status (hit, empty, error)",
		},
		[]string{"method", "status"},
	)

	RerankTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rerank_total",
			Help:      "Re-rank outcomes by confidence and model",
		},
		[]string{"confidence", "model"},
	)

	CacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_total",
			Help:      "Cache hits and misses by stage",
		},
		[]string{"stage", "result"},
	)
)

var registerOnce sync.Once

// Register registers every service metric with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			EmbeddingRequestsTotal, EmbeddingRequestDuration, EmbeddingTokensTotal,
			EmbeddingErrorsTotal, EmbeddingPaddedTotal,
			LLMRequestsTotal, LLMRequestDuration, LLMTokensTotal,
			StageDuration, RequestsTotal, SearchTierTotal, RerankTotal, CacheTotal,
			httpRequestDuration, httpRequestsTotal, httpInFlight,
		)
	})
}
