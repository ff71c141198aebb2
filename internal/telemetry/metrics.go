// Package telemetry exposes the service's Prometheus metrics
// registry, grounded on the teacher's MetricsRegistry shape
// (internal/interfaces/http/metrics.go) and generalized to this
// service's WebSocket, REST, cache, resync, and janitor counters.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles every metric the service publishes.
type Registry struct {
	WSReconnects      *prometheus.CounterVec
	RESTLatencySecs   *prometheus.HistogramVec
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
	ResyncTotal       *prometheus.CounterVec
	JanitorDeletions  *prometheus.CounterVec
	EventsDropped     *prometheus.CounterVec
}

// NewRegistry constructs and registers every metric against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		WSReconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketintel",
			Name:      "ws_reconnects_total",
			Help:      "Total WebSocket reconnect attempts per stream.",
		}, []string{"stream"}),

		RESTLatencySecs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "marketintel",
			Name:      "rest_request_duration_seconds",
			Help:      "REST request latency by endpoint.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),

		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "marketintel",
			Name:      "report_cache_hits_total",
			Help:      "Report cache hits.",
		}),

		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "marketintel",
			Name:      "report_cache_misses_total",
			Help:      "Report cache misses.",
		}),

		ResyncTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketintel",
			Name:      "orderbook_resync_total",
			Help:      "Order-book resync events by symbol.",
		}, []string{"symbol"}),

		JanitorDeletions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketintel",
			Name:      "janitor_deletions_total",
			Help:      "Records deleted by the retention janitor by record kind.",
		}, []string{"kind"}),

		EventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketintel",
			Name:      "events_dropped_total",
			Help:      "Events dropped due to buffer back-pressure by symbol and stream.",
		}, []string{"symbol", "stream"}),
	}
}
