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

const namespace = "notify_dispatch"

// Metrics stores Prometheus collectors used by the API and the dispatcher.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	claimedTotal         prometheus.Counter
	completedTotal       *prometheus.CounterVec
	failedTotal          *prometheus.CounterVec
	retryScheduledTotal  *prometheus.CounterVec
	channelSendsTotal    *prometheus.CounterVec
	channelSendDuration  *prometheus.HistogramVec
	dispatchInflight     prometheus.Gauge
	staleRequeuedTotal   prometheus.Counter
	dispatchTickDuration prometheus.Histogram
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		claimedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_claimed_total",
				Help:      "Total number of notification requests claimed by the dispatcher.",
			},
		),
		completedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_completed_total",
				Help:      "Total number of notification requests delivered through at least one channel.",
			},
			[]string{"source"},
		),
		failedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_failed_total",
				Help:      "Total number of notification requests that ended in FAILED.",
			},
			[]string{"source", "reason"},
		),
		retryScheduledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_scheduled_total",
				Help:      "Total number of failed attempts returned to PENDING for another try.",
			},
			[]string{"source"},
		),
		channelSendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "channel_sends_total",
				Help:      "Total number of channel sends grouped by kind and result.",
			},
			[]string{"kind", "result"},
		),
		channelSendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "channel_send_duration_seconds",
				Help:      "Channel send duration in seconds grouped by kind.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"kind"},
		),
		dispatchInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dispatch_inflight",
				Help:      "Current number of notification requests being processed.",
			},
		),
		staleRequeuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stale_requeued_total",
				Help:      "Total number of stale PROCESSING requests returned to PENDING.",
			},
		),
		dispatchTickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_tick_duration_seconds",
				Help:      "Duration of one dispatcher tick in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.claimedTotal,
		m.completedTotal,
		m.failedTotal,
		m.retryScheduledTotal,
		m.channelSendsTotal,
		m.channelSendDuration,
		m.dispatchInflight,
		m.staleRequeuedTotal,
		m.dispatchTickDuration,
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

func (m *Metrics) AddClaimed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.claimedTotal.Add(float64(n))
}

func (m *Metrics) IncCompleted(source string) {
	if m == nil {
		return
	}
	m.completedTotal.WithLabelValues(normalizeLabel(source)).Inc()
}

func (m *Metrics) IncFailed(source string, reason string) {
	if m == nil {
		return
	}
	m.failedTotal.WithLabelValues(normalizeLabel(source), normalizeLabel(reason)).Inc()
}

func (m *Metrics) IncRetryScheduled(source string) {
	if m == nil {
		return
	}
	m.retryScheduledTotal.WithLabelValues(normalizeLabel(source)).Inc()
}

func (m *Metrics) ObserveChannelSend(kind string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	kindLabel := normalizeLabel(kind)
	m.channelSendsTotal.WithLabelValues(kindLabel, result).Inc()
	m.channelSendDuration.WithLabelValues(kindLabel).Observe(max(duration.Seconds(), 0))
}

func (m *Metrics) IncInflight() {
	if m == nil {
		return
	}
	m.dispatchInflight.Inc()
}

func (m *Metrics) DecInflight() {
	if m == nil {
		return
	}
	m.dispatchInflight.Dec()
}

func (m *Metrics) AddStaleRequeued(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.staleRequeuedTotal.Add(float64(n))
}

func (m *Metrics) ObserveTick(duration time.Duration) {
	if m == nil {
		return
	}
	m.dispatchTickDuration.Observe(max(duration.Seconds(), 0))
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

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(v string) string {
	normalized := strings.ToLower(strings.TrimSpace(v))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
