// Package metrics defines the prometheus collectors for reflection, queries
// and the HTTP façade.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "jetbridge"

// Metrics holds the collectors of one service root.
type Metrics struct {
	// ReflectionsTotal counts finished reflections by status.
	ReflectionsTotal *prometheus.CounterVec
	// ReflectionDuration is the wall time of successful reflections.
	ReflectionDuration prometheus.Histogram
	// TablesSkipped counts tables skipped during reflection.
	TablesSkipped prometheus.Counter
	// PendingReflections is the number of reflections in flight.
	PendingReflections prometheus.Gauge
	// ActiveConnections is the number of promoted connections.
	ActiveConnections prometheus.Gauge
	// QueriesTotal counts filter and sibling operations by status.
	QueriesTotal *prometheus.CounterVec

	RequestTotal    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New registers the collectors with reg. A nil reg leaves them
// unregistered, which tests use to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ReflectionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reflections_total",
			Help:      "Total number of schema reflections",
		}, []string{"status"}),
		ReflectionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reflection_duration_seconds",
			Help:      "Schema reflection duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		TablesSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reflection_tables_skipped_total",
			Help:      "Tables skipped because introspection failed",
		}),
		PendingReflections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_reflections",
			Help:      "Reflections currently in flight",
		}),
		ActiveConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Connections with an installed model",
		}),
		QueriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total number of filter and sibling queries",
		}, []string{"operation", "status"}),
		RequestTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// Status returns the label for an operation outcome.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveReflection records a finished reflection.
func (m *Metrics) ObserveReflection(d time.Duration, skipped int, err error) {
	m.ReflectionsTotal.WithLabelValues(Status(err)).Inc()
	if err == nil {
		m.ReflectionDuration.Observe(d.Seconds())
		m.TablesSkipped.Add(float64(skipped))
	}
}

// ObserveQuery records a filter or sibling operation.
func (m *Metrics) ObserveQuery(operation string, err error) {
	m.QueriesTotal.WithLabelValues(operation, Status(err)).Inc()
}

// Middleware records request counts and latency. The route template is
// used as the path label to keep cardinality bounded.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RequestTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
