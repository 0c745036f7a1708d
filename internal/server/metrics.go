package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
	extractions     *prometheus.CounterVec
	extractSeconds  prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pdfdesk",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests processed.",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "pdfdesk",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		requestInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "pdfdesk",
				Subsystem: "http",
				Name:      "in_flight_requests",
				Help:      "Number of in-flight HTTP requests.",
			},
		),
		extractions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pdfdesk",
				Subsystem: "extract",
				Name:      "results_total",
				Help:      "Extraction outcomes by result.",
			},
			[]string{"outcome"},
		),
		extractSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "pdfdesk",
				Subsystem: "extract",
				Name:      "duration_seconds",
				Help:      "Time spent extracting text from a PDF.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
	}
	m.registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.requestInFlight,
		m.extractions,
		m.extractSeconds,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts, durations and in-flight gauge.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		rec := recorderFor(w)
		next.ServeHTTP(rec, r)

		path := routeLabel(r.URL.Path)
		m.requestTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.statusCode)).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) observeExtraction(outcome string, elapsed time.Duration) {
	m.extractions.WithLabelValues(outcome).Inc()
	if elapsed > 0 {
		m.extractSeconds.Observe(elapsed.Seconds())
	}
}

// routeLabel keeps label cardinality bounded.
func routeLabel(path string) string {
	switch path {
	case "/", "/metrics", "/healthz", endpointPath:
		return path
	default:
		return "other"
	}
}
