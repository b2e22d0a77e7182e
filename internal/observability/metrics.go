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

// Metrics stores Prometheus collectors used by the API and worker flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	messagesAcceptedTotal *prometheus.CounterVec
	messagesSentTotal     *prometheus.CounterVec
	messagesFailedTotal   *prometheus.CounterVec
	providerCallDuration  *prometheus.HistogramVec
	workerInflight        *prometheus.GaugeVec
	statusRefreshTotal    *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sms_gateway",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sms_gateway",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		messagesAcceptedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sms_gateway",
				Name:      "messages_accepted_total",
				Help:      "Total number of outbound messages accepted for dispatch.",
			},
			[]string{"provider"},
		),
		messagesSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sms_gateway",
				Name:      "messages_sent_total",
				Help:      "Total number of outbound messages submitted to a provider.",
			},
			[]string{"provider"},
		),
		messagesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sms_gateway",
				Name:      "messages_failed_total",
				Help:      "Total number of outbound messages that ended in failed state.",
			},
			[]string{"provider", "reason"},
		),
		providerCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sms_gateway",
				Name:      "provider_call_duration_seconds",
				Help:      "Provider call duration in seconds grouped by provider and operation.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"provider", "operation"},
		),
		workerInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "sms_gateway",
				Name:      "worker_inflight",
				Help:      "Current number of in-flight submission operations grouped by provider.",
			},
			[]string{"provider"},
		),
		statusRefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sms_gateway",
				Name:      "status_refresh_total",
				Help:      "Total number of reconciliation refresh attempts by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.messagesAcceptedTotal,
		m.messagesSentTotal,
		m.messagesFailedTotal,
		m.providerCallDuration,
		m.workerInflight,
		m.statusRefreshTotal,
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

func (m *Metrics) IncMessageAccepted(provider string) {
	if m == nil {
		return
	}
	m.messagesAcceptedTotal.WithLabelValues(normalizeProvider(provider)).Inc()
}

func (m *Metrics) IncMessageSent(provider string) {
	if m == nil {
		return
	}
	m.messagesSentTotal.WithLabelValues(normalizeProvider(provider)).Inc()
}

func (m *Metrics) IncMessageFailed(provider string, reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.messagesFailedTotal.WithLabelValues(normalizeProvider(provider), reasonLabel).Inc()
}

func (m *Metrics) ObserveProviderCallDuration(provider string, operation string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.providerCallDuration.WithLabelValues(normalizeProvider(provider), operation).Observe(seconds)
}

func (m *Metrics) IncWorkerInFlight(provider string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeProvider(provider)).Inc()
}

func (m *Metrics) DecWorkerInFlight(provider string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeProvider(provider)).Dec()
}

func (m *Metrics) IncStatusRefresh(provider string, outcome string) {
	if m == nil {
		return
	}
	outcomeLabel := strings.TrimSpace(strings.ToLower(outcome))
	if outcomeLabel == "" {
		outcomeLabel = "unknown"
	}
	m.statusRefreshTotal.WithLabelValues(normalizeProvider(provider), outcomeLabel).Inc()
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

func normalizeProvider(provider string) string {
	normalized := strings.ToLower(strings.TrimSpace(provider))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
