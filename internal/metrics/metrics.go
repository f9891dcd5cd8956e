package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "townhall_insights"

// Metrics holds the service-wide Prometheus collectors.
type Metrics struct {
	IngestsTotal     prometheus.Counter
	IngestsFailed    prometheus.Counter
	UtterancesParsed prometheus.Counter

	EnrichmentFailures *prometheus.CounterVec
	LLMCallDuration    *prometheus.HistogramVec

	StorageErrors *prometheus.CounterVec
	ChatRequests  *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		IngestsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingests_total",
			Help:      "Transcript ingestion attempts.",
		}),
		IngestsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingests_failed_total",
			Help:      "Transcript ingestions that aborted.",
		}),
		UtterancesParsed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_parsed_total",
			Help:      "Utterances produced by the transcript parsers.",
		}),
		EnrichmentFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_failures_total",
			Help:      "Enrichment calls that degraded to their default, by signal.",
		}, []string{"signal"}),
		LLMCallDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "Latency of language-model collaborator calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		StorageErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_errors_total",
			Help:      "Search/blob collaborator failures, by operation.",
		}, []string{"op"}),
		ChatRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat questions routed, by detected intent.",
		}, []string{"intent"}),
	}
}

// Default is the process-wide instance used where no explicit wiring exists.
var Default = New()
