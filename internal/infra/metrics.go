package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rateserver_connections_live",
			Help: "Number of currently connected clients",
		},
	)

	ConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rateserver_connections_total",
			Help: "Total number of accepted client connections per transport",
		},
		[]string{"transport"},
	)

	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rateserver_cache_hits_total",
			Help: "Requested (date, symbol) pairs served from the store",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rateserver_cache_misses_total",
			Help: "Requested (date, symbol) pairs fetched from the provider",
		},
	)

	ProviderErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rateserver_provider_errors_total",
			Help: "Failed provider fetches",
		},
	)

	ResolveDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rateserver_resolve_duration_seconds",
			Help:    "Duration of cache-aside resolution per request",
			Buckets: prometheus.DefBuckets,
		},
	)
)
