package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamAttempts counts individual upstream call attempts by
	// operation and outcome (success, server_error, client_error).
	UpstreamAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_upstream_attempts_total",
		Help: "Total upstream call attempts by operation and outcome.",
	}, []string{"operation", "outcome"})

	// BreakerState exposes the upstream circuit breaker state
	// (0=closed, 1=open, 2=half-open).
	BreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_circuit_breaker_state",
		Help: "Circuit breaker state: 0=closed, 1=open, 2=half-open.",
	})

	// BreakerRejections counts calls short-circuited while the breaker
	// was open.
	BreakerRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_circuit_breaker_rejections_total",
		Help: "Calls rejected without reaching upstream because the circuit was open.",
	})

	// QuotaRejections counts requests rejected by the daily quota.
	QuotaRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_quota_rejections_total",
		Help: "Requests rejected by the per-tenant daily quota, by plan.",
	}, []string{"plan"})

	// BatchSizeRejections counts batches over the plan ceiling.
	BatchSizeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_batch_size_rejections_total",
		Help: "Batch requests rejected for exceeding the plan's batch ceiling, by plan.",
	}, []string{"plan"})

	// AuthFailures counts rejected credentials by reason.
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_auth_failures_total",
		Help: "API key verification failures by reason.",
	}, []string{"reason"})

	// RequestDuration observes handler latency by route and status class.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "HTTP request latency by method, route and status code.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
