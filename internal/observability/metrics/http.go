package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	capturesTotal  *prometheus.CounterVec
	sseConnections prometheus.Gauge
	sseEventsTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ptp",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ptp",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ptp",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	capturesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ptp",
			Subsystem: "ingest",
			Name:      "captures_total",
			Help:      "Total accepted captures by source.",
		},
		[]string{"service", "source"},
	)
	sseConnections := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ptp",
			Subsystem: "events",
			Name:      "sse_connections",
			Help:      "Number of open status event streams.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	sseEventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ptp",
			Subsystem: "events",
			Name:      "sse_events_total",
			Help:      "Total status events delivered to live streams.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		capturesTotal,
		sseConnections,
		sseEventsTotal,
	)

	return &HTTPServerMetrics{
		registry:        registry,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
		capturesTotal:   capturesTotal,
		sseConnections:  sseConnections,
		sseEventsTotal:  sseEventsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses per-resource path segments so metric cardinality
// stays bounded by route count, not record count.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/notes/"):
		rest := strings.TrimPrefix(path, "/api/notes/")
		if idx := strings.IndexByte(rest, '/'); idx >= 0 {
			return "/api/notes/{id}/" + rest[idx+1:]
		}
		return "/api/notes/{id}"
	case strings.HasPrefix(path, "/api/patients/"):
		return "/api/patients/{id}"
	case strings.HasPrefix(path, "/api/users/"):
		return "/api/users/{username}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordCapture(service, source string) {
	m.capturesTotal.WithLabelValues(service, source).Inc()
}

func (m *HTTPServerMetrics) StreamOpened() {
	m.sseConnections.Inc()
}

func (m *HTTPServerMetrics) StreamClosed() {
	m.sseConnections.Dec()
}

func (m *HTTPServerMetrics) RecordStreamEvent(service, status string) {
	m.sseEventsTotal.WithLabelValues(service, status).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
