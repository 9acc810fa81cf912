// Package metrics provides Prometheus instrumentation for the mandi engine.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upstream call outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeEmpty    = "empty"
	OutcomeCacheHit = "cache_hit"
)

var (
	// UpstreamCalls counts calls to geocoding, routing and price feed
	// services, partitioned by provider and outcome.
	UpstreamCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mandi_upstream_calls_total",
		Help: "Calls to external services by provider and outcome",
	}, []string{"provider", "outcome"})

	// UpstreamLatency tracks external call latency by provider.
	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mandi_upstream_latency_seconds",
		Help:    "External service latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	// Fallbacks counts degraded results served instead of upstream data.
	Fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mandi_fallbacks_total",
		Help: "Degraded results served by component",
	}, []string{"component"})

	// EngineLatency tracks end-to-end ranking/projection latency.
	EngineLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mandi_engine_latency_seconds",
		Help:    "Engine computation latency in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"engine"})

	// TickerClients tracks connected ticker WebSocket clients.
	TickerClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mandi_ticker_clients",
		Help: "Number of connected ticker WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mandi_http_requests_total",
		Help: "HTTP requests served by method, route and status",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mandi_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
	}, []string{"method", "path"})
)

// ObserveUpstream records one upstream call.
func ObserveUpstream(provider, outcome string, start time.Time) {
	UpstreamCalls.WithLabelValues(provider, outcome).Inc()
	UpstreamLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}

// ObserveEngine records one engine run.
func ObserveEngine(engine string, start time.Time) {
	EngineLatency.WithLabelValues(engine).Observe(time.Since(start).Seconds())
}

// Handler serves the default registry for GET /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware counts and times every request by method, route pattern and status.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Route pattern keeps crop names out of the label set.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter remembers the status a handler wrote.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack hands the connection to WebSocket upgrades.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("metrics: %T does not support hijacking", w.ResponseWriter)
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
