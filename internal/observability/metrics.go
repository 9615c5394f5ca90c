package observability

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for Rowline
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Database metrics
	dbQueriesTotal  *prometheus.CounterVec
	dbQueryDuration *prometheus.HistogramVec

	// Record RPC metrics
	recordRequestsTotal   *prometheus.CounterVec
	recordRequestDuration *prometheus.HistogramVec
	recordRowsReturned    *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rowline_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rowline_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		httpRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "rowline_http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),

		dbQueriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rowline_db_queries_total",
				Help: "Total number of database queries",
			},
			[]string{"operation", "table"},
		),
		dbQueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rowline_db_query_duration_seconds",
				Help:    "Database query latency in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"operation", "table"},
		),

		recordRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rowline_record_requests_total",
				Help: "Total number of record RPC requests",
			},
			[]string{"method", "status"},
		),
		recordRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rowline_record_request_duration_seconds",
				Help:    "Record RPC latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method"},
		),
		recordRowsReturned: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rowline_record_rows_returned",
				Help:    "Number of rows returned per record RPC",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"method"},
		),
	}
}

// HTTPMiddleware returns a Fiber middleware that records HTTP metrics
func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		m.httpRequestsInFlight.Inc()
		defer m.httpRequestsInFlight.Dec()

		start := time.Now()
		err := c.Next()
		duration := time.Since(start).Seconds()

		status := strconv.Itoa(c.Response().StatusCode())
		method := c.Method()
		path := c.Route().Path

		m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)

		return err
	}
}

// RecordDBQuery records database query metrics
func (m *Metrics) RecordDBQuery(operation, table string, duration time.Duration, err error) {
	m.dbQueriesTotal.WithLabelValues(operation, table).Inc()
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordRPC records one record RPC invocation
func (m *Metrics) RecordRPC(method string, rows int, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.recordRequestsTotal.WithLabelValues(method, status).Inc()
	m.recordRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
	if err == nil {
		m.recordRowsReturned.WithLabelValues(method).Observe(float64(rows))
	}
}

// Handler returns a Fiber handler that exposes Prometheus metrics
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
