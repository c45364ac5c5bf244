package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the ops API and the
// submission pipeline.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	documentsSubmitted  *prometheus.CounterVec
	documentsFailed     *prometheus.CounterVec
	submissionDuration  *prometheus.HistogramVec
	workerInflight      *prometheus.GaugeVec
	secondWaveTotal     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "erpbridge",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "erpbridge",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		documentsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "erpbridge",
				Name:      "documents_submitted_total",
				Help:      "Total number of documents accepted by the upstream system.",
			},
			[]string{"module"},
		),
		documentsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "erpbridge",
				Name:      "documents_failed_total",
				Help:      "Total number of document submissions that ended in an error class.",
			},
			[]string{"module", "class"},
		),
		submissionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "erpbridge",
				Name:      "submission_duration_seconds",
				Help:      "Upstream submission duration in seconds grouped by module.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"module"},
		),
		workerInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "erpbridge",
				Name:      "worker_inflight",
				Help:      "Current number of in-flight submission workers grouped by module.",
			},
			[]string{"module"},
		),
		secondWaveTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "erpbridge",
				Name:      "second_wave_documents_total",
				Help:      "Total number of documents picked up by the second-wave retry pass.",
			},
			[]string{"module"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.documentsSubmitted,
		m.documentsFailed,
		m.submissionDuration,
		m.workerInflight,
		m.secondWaveTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncDocumentSubmitted(module string) {
	if m == nil {
		return
	}
	m.documentsSubmitted.WithLabelValues(normalizeModule(module)).Inc()
}

func (m *Metrics) IncDocumentFailed(module string, class string) {
	if m == nil {
		return
	}
	classLabel := strings.TrimSpace(strings.ToLower(class))
	if classLabel == "" {
		classLabel = "unknown"
	}
	m.documentsFailed.WithLabelValues(normalizeModule(module), classLabel).Inc()
}

func (m *Metrics) ObserveSubmissionDuration(module string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.submissionDuration.WithLabelValues(normalizeModule(module)).Observe(seconds)
}

func (m *Metrics) IncWorkerInFlight(module string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeModule(module)).Inc()
}

func (m *Metrics) DecWorkerInFlight(module string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeModule(module)).Dec()
}

func (m *Metrics) IncSecondWave(module string) {
	if m == nil {
		return
	}
	m.secondWaveTotal.WithLabelValues(normalizeModule(module)).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeModule(module string) string {
	normalized := strings.ToLower(strings.TrimSpace(module))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
