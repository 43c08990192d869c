package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the request counters/latency histogram recorded by the
// dispatcher, mirroring caddyserver/caddy's optional http.App.Metrics
// substructure without adopting caddy's full metrics module system.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	registry        *prometheus.Registry
}

// NewMetrics builds a fresh registry and the two series the dispatcher
// records to.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		requestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "atrium_requests_total",
			Help: "Total requests handled by the gateway, by pipeline and status class.",
		}, []string{"pipeline", "status_class"}),
		requestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "atrium_request_duration_seconds",
			Help:    "Request handling latency, by pipeline.",
			Buckets: prometheus.DefBuckets,
		}, []string{"pipeline"}),
		registry: reg,
	}
	return m
}

// Registry exposes the underlying *prometheus.Registry so the admin
// router can mount promhttp.HandlerFor(registry, ...) behind its own
// admin-gate.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Observe records one completed request.
func (m *Metrics) Observe(pipeline string, status int, start time.Time) {
	class := "2xx"
	switch {
	case status >= 500:
		class = "5xx"
	case status >= 400:
		class = "4xx"
	case status >= 300:
		class = "3xx"
	}
	m.requestsTotal.WithLabelValues(pipeline, class).Inc()
	m.requestDuration.WithLabelValues(pipeline).Observe(time.Since(start).Seconds())
}
