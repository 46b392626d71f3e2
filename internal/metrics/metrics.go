// Package metrics defines the agent's Prometheus instrumentation, grounded
// on the teacher's internal/metrics/metrics.go (same HTTPRequestsTotal/
// HTTPRequestDuration/HTTPResponseSize triad and InstrumentHandler shape)
// generalized from tr-engine's MQTT/SSE domain to observations, assets,
// and the REST/WebSocket sinks (SPEC_FULL.md §18.3).
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mtc_agent"

// HTTP metrics (counter/histogram, incremented by InstrumentHandler).
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total REST sink requests processed.",
	}, []string{"method", "path_pattern", "status_code"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "REST sink request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path_pattern"})

	HTTPResponseSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_response_size_bytes",
		Help:      "REST sink response size in bytes.",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 7), // 100B → 100MB
	}, []string{"method", "path_pattern"})
)

// Delivery counters, incremented at the pipeline's Deliver* terminal nodes
// (internal/pipeline/deliver.go), where the originating source and
// observation/asset kind are known.
var (
	ObservationsDeliveredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "observations_delivered_total",
		Help:      "Total observations committed to the circular buffer.",
	}, []string{"source", "kind"})

	AssetsDeliveredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "assets_delivered_total",
		Help:      "Total assets inserted, updated, or removed.",
	}, []string{"source", "op"})

	ProtocolErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "protocol_errors_total",
		Help:      "Total malformed SHDR lines or JSON payloads dropped per source.",
	}, []string{"source"})
)

// Live subscriber gauges, incremented/decremented where REST streaming
// connections and WebSocket sessions open and close
// (internal/rest/stream.go, internal/wsock/server.go).
var (
	StreamingSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rest_streaming_subscribers",
		Help:      "Current number of open multipart/x-mixed-replace streaming connections.",
	})

	WebSocketConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "websocket_connections",
		Help:      "Current number of open WebSocket sink connections.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		HTTPResponseSize,
		ObservationsDeliveredTotal,
		AssetsDeliveredTotal,
		ProtocolErrorsTotal,
		StreamingSubscribers,
		WebSocketConnections,
	)
}

// InstrumentHandler returns middleware that records HTTP request metrics,
// grounded on the teacher's InstrumentHandler. It uses chi's route pattern
// as the path label to avoid cardinality explosion from path parameters
// (device uuids, asset ids).
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unknown"
		}
		method := r.Method
		status := strconv.Itoa(sw.status)
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(method, pattern, status).Inc()
		HTTPRequestDuration.WithLabelValues(method, pattern).Observe(duration)
		HTTPResponseSize.WithLabelValues(method, pattern).Observe(float64(sw.written))
	})
}

// statusWriter wraps http.ResponseWriter to capture status code and bytes
// written.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}

// Flush lets streaming handlers (/current, /sample) see through
// statusWriter to the underlying http.Flusher.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap supports http.ResponseController and middleware that check for
// wrapped writers.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
