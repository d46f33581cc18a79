package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-wide HTTP metrics. Module-specific metrics live in
// the module's own metrics package.
type Metrics struct {
	HTTPDuration *prometheus.HistogramVec
}

// New creates and registers all platform metrics.
func New() *Metrics {
	return &Metrics{
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rihla_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route, and status",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route", "status"}),
	}
}

// ObserveHTTP records one request.
func (m *Metrics) ObserveHTTP(method, route string, status int, start time.Time) {
	m.HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).
		Observe(time.Since(start).Seconds())
}
