package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics exported by the daemon.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Dataset metrics
	RecordsLoaded  prometheus.Gauge
	DatasetReloads prometheus.Counter
	ReloadErrors   prometheus.Counter

	// Query result cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on the given registry. A nil
// registry gets a fresh one, which keeps tests independent.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ibmetrics_http_requests_total",
				Help: "Total HTTP requests by method, route and status code",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ibmetrics_http_request_duration_seconds",
				Help:    "HTTP request duration by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		RecordsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ibmetrics_records_loaded",
			Help: "Number of build records in the current dataset snapshot",
		}),
		DatasetReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ibmetrics_dataset_reloads_total",
			Help: "Number of dataset reloads since start",
		}),
		ReloadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ibmetrics_dataset_reload_errors_total",
			Help: "Number of failed dataset reloads since start",
		}),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ibmetrics_cache_hits_total",
				Help: "Query result cache hits by route",
			},
			[]string{"route"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ibmetrics_cache_misses_total",
				Help: "Query result cache misses by route",
			},
			[]string{"route"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.RecordsLoaded,
		m.DatasetReloads,
		m.ReloadErrors,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)
	return m
}

// Handler returns the /metrics HTTP handler for the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
