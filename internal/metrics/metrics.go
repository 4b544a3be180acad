// Package metrics exposes Prometheus collectors for imports and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/opsimport/internal/core"
)

// Metrics holds the import and HTTP collectors on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	batches         *prometheus.CounterVec
	errors          *prometheus.CounterVec
	batchDuration   prometheus.Histogram
	rowsCommitted   *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New builds the collectors and registers them on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	batches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opsimport_batches_total",
		Help: "Import batches processed, by outcome.",
	}, []string{"status"})
	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opsimport_errors_total",
		Help: "Error records reported, by kind.",
	}, []string{"kind"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "opsimport_batch_duration_seconds",
		Help:    "Time spent processing one batch.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opsimport_rows_committed_total",
		Help: "Line items written to the database, by entity.",
	}, []string{"entity"})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opsimport_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "opsimport_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	registry.MustRegister(batches, errs, duration, rows, requests, requestDuration)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		batches:         batches,
		errors:          errs,
		batchDuration:   duration,
		rowsCommitted:   rows,
		requestsTotal:   requests,
		requestDuration: requestDuration,
	}
}

// ObserveBatch records one finished batch. It implements core.BatchObserver.
func (m *Metrics) ObserveBatch(result *core.ProcessingResult, elapsed time.Duration) {
	if m == nil || result == nil {
		return
	}
	m.batches.WithLabelValues(string(result.Status)).Inc()
	m.batchDuration.Observe(elapsed.Seconds())
	for _, rec := range result.Errors {
		m.errors.WithLabelValues(string(rec.Kind)).Inc()
	}
	if result.Status == core.StatusSuccess && result.BatchID != "" {
		m.rowsCommitted.WithLabelValues("sales").Add(float64(result.TotalSales))
		m.rowsCommitted.WithLabelValues("service_orders").Add(float64(result.TotalServiceOrders))
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware counts requests and their latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for extra collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}

var _ core.BatchObserver = (*Metrics)(nil)
