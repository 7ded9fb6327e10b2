// Package metrics provides Prometheus metrics collection for Luminote.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for Luminote.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Generation metrics
	StreamChunks     *prometheus.CounterVec
	StreamRetries    *prometheus.CounterVec
	GenerationTotal  *prometheus.CounterVec
	GenerationErrors *prometheus.CounterVec

	// Billing metrics
	TokensSpent    *prometheus.CounterVec
	LedgerFailures prometheus.Counter

	// Rate limit metrics
	RateLimitHits *prometheus.CounterVec

	// Upstream metrics
	UpstreamDuration *prometheus.HistogramVec
	UpstreamErrors   *prometheus.CounterVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

// New creates a new metrics collector registered on the default
// registry.
func New() *Collector {
	return newWith(promauto.With(prometheus.DefaultRegisterer))
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	return newWith(promauto.With(reg))
}

func newWith(factory promauto.Factory) *Collector {
	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "luminote",
				Name:      "requests_total",
				Help:      "Total number of requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "luminote",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "luminote",
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),
		StreamChunks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "luminote",
				Name:      "stream_chunks_total",
				Help:      "Total delta events forwarded to clients",
			},
			[]string{"provider"},
		),
		StreamRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "luminote",
				Name:      "stream_retries_total",
				Help:      "Total generation attempts retried after upstream failure",
			},
			[]string{"provider"},
		),
		GenerationTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "luminote",
				Name:      "generations_total",
				Help:      "Total generation invocations",
			},
			[]string{"provider", "feature"},
		),
		GenerationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "luminote",
				Name:      "generation_errors_total",
				Help:      "Total generation invocations failed after all retries",
			},
			[]string{"provider", "feature"},
		),
		TokensSpent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "luminote",
				Name:      "tokens_spent_total",
				Help:      "Total tokens charged to user balances",
			},
			[]string{"provider"},
		),
		LedgerFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "luminote",
				Name:      "ledger_failures_total",
				Help:      "Total ledger commits that failed after a completed stream",
			},
		),
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "luminote",
				Name:      "rate_limit_hits_total",
				Help:      "Total requests denied by the rate limiter",
			},
			[]string{"feature"},
		),
		UpstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "luminote",
				Name:      "upstream_duration_seconds",
				Help:      "Upstream call duration in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider"},
		),
		UpstreamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "luminote",
				Name:      "upstream_errors_total",
				Help:      "Total upstream call failures",
			},
			[]string{"provider", "type"},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "luminote",
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "luminote",
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "luminote",
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}
}
