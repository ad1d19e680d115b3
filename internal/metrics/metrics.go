package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChatRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentdesk_chat_requests_total",
			Help: "Chat message requests by outcome",
		},
		[]string{"outcome"},
	)

	StreamedTokens = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentdesk_chat_streamed_chunks_total",
			Help: "Completion chunks relayed to clients",
		},
	)

	LLMLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentdesk_llm_request_duration_seconds",
			Help:    "Duration of LLM completion calls in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		},
		[]string{"model"},
	)

	IngestJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentdesk_ingest_jobs_total",
			Help: "Knowledge ingestion jobs by outcome",
		},
		[]string{"outcome"},
	)

	ChunksWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentdesk_knowledge_chunks_written_total",
			Help: "Knowledge chunks written to the database",
		},
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "agentdesk_ingest_duration_seconds",
			Help: "Duration of knowledge file processing in seconds",
		},
	)

	RealtimeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentdesk_realtime_sessions_active",
			Help: "Open realtime relay sessions",
		},
	)
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentdesk_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentdesk_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)
