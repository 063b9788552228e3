// In file: internal/metrics/metrics.go

// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherbot_turns_total",
			Help: "Conversation turns handled, by pipeline path and outcome",
		},
		[]string{"path", "outcome"},
	)

	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherbot_llm_requests_total",
			Help: "Model invocations by outcome",
		},
		[]string{"outcome"},
	)

	LLMLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "weatherbot_llm_latency_seconds",
			Help:    "Model invocation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherbot_upstream_requests_total",
			Help: "Open-Meteo API calls by upstream and status",
		},
		[]string{"upstream", "status"},
	)

	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherbot_upstream_latency_seconds",
			Help:    "Open-Meteo API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"upstream"},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherbot_cache_lookups_total",
			Help: "Weather and geocode cache lookups by cache and result",
		},
		[]string{"cache", "result"},
	)

	PromptInjectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "weatherbot_prompt_injections_total",
			Help: "User messages flagged by the injection guard",
		},
	)
)
