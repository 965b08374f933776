// Package metrics provides Prometheus instrumentation for the clearinghouse.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// NegotiationsTotal counts evaluated bids, partitioned by verdict.
	NegotiationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "x402_negotiations_total",
		Help: "Total number of bids evaluated",
	}, []string{"asset_id", "verdict"})

	// NegotiationLatency tracks bid evaluation latency.
	NegotiationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "x402_negotiation_latency_seconds",
		Help:    "Bid evaluation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"asset_id"})

	// InventoryUnits tracks remaining inventory per asset.
	InventoryUnits = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "x402_inventory_units",
		Help: "Remaining inventory per asset",
	}, []string{"asset_id"})

	// DealsSettledTotal counts settled deals per asset.
	DealsSettledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "x402_deals_settled_total",
		Help: "Total number of settled deals",
	}, []string{"asset_id"})

	// LimitRejections counts bids refused by the agent position limiter.
	LimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "x402_limit_rejections_total",
		Help: "Bids refused by the position limiter",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "x402_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "x402_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "x402_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
