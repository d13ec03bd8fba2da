package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate on the dashboard API. Watch for: sudden drops or spikes.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation.
	HTTPRequestsInFlight prometheus.Gauge

	// Remote data-store call rate by resource and status. Watch for: error vs success ratio.
	RemoteCallsTotal *prometheus.CounterVec

	// Remote data-store latency. Watch for: p95 > 2s (upstream degradation).
	RemoteCallDuration *prometheus.HistogramVec

	// Retry attempts against the remote store. Watch for: high retries = unstable upstream.
	RemoteRetriesTotal prometheus.Counter

	// Remote calls consumed against the request budget.
	RequestBudgetUsed prometheus.Gauge

	// 1 while the offline latch is set, 0 otherwise.
	OfflineMode prometheus.Gauge

	// Cache hits by resource. Misses show up as remote calls or local fallbacks.
	CacheHitsTotal *prometheus.CounterVec

	// Reads/writes served from local storage instead of the remote store.
	LocalFallbacksTotal *prometheus.CounterVec

	// Deterministic seed data written on first-run empty storage.
	MockSeedsTotal prometheus.Counter

	// Budget warnings logged past the warn threshold.
	BudgetWarningsTotal prometheus.Counter

	// Rate limit denials on the dashboard API (429s).
	RateLimitDeniedTotal prometheus.Counter
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	RemoteCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remoteCallsTotal",
			Help: "Total number of remote data-store calls",
		},
		[]string{"resource", "status"},
	)
	RemoteCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remoteCallDurationSeconds",
			Help:    "Remote data-store latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	RemoteRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "remoteRetriesTotal",
			Help: "Total number of retry attempts for remote data-store calls",
		},
	)
	RequestBudgetUsed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "requestBudgetUsed",
			Help: "Remote calls consumed against the request budget since last reset",
		},
	)
	OfflineMode = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "offlineMode",
			Help: "1 while the offline latch is set, 0 otherwise",
		},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of cache hits by resource",
		},
		[]string{"resource"},
	)
	LocalFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localFallbacksTotal",
			Help: "Operations served from local storage instead of the remote store",
		},
		[]string{"operation"},
	)
	MockSeedsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mockSeedsTotal",
			Help: "Times deterministic seed data was written to empty local storage",
		},
	)
	BudgetWarningsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "budgetWarningsTotal",
			Help: "Remote calls made past the budget warning threshold",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		RemoteCallsTotal, RemoteCallDuration, RemoteRetriesTotal,
		RequestBudgetUsed, OfflineMode,
		CacheHitsTotal, LocalFallbacksTotal, MockSeedsTotal,
		BudgetWarningsTotal, RateLimitDeniedTotal,
	)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
