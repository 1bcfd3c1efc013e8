package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, route, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)
	// StoreOperations counts location store calls by operation and outcome
	StoreOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "location_store_operations_total", Help: "Location store operations by outcome."},
		[]string{"op", "outcome"},
	)
	// StoreDuration tracks location store latency in seconds
	StoreDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "location_store_duration_seconds", Help: "Location store latency in seconds.", Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}},
		[]string{"op"},
	)
	// GeoCacheErrors counts failed writes to the Redis geo mirror
	GeoCacheErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "geo_cache_errors_total", Help: "Failed Redis geo index updates."},
		[]string{"op"},
	)
)

// RegisterDefault registers collectors to the API registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(StoreOperations)
		Registry.MustRegister(StoreDuration)
		Registry.MustRegister(GeoCacheErrors)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
