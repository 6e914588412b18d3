package observability

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsDispatchCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.AddClaimed(3)
	metrics.IncCompleted("Ticket")
	metrics.IncFailed("monitor_alert", "retries_exhausted")
	metrics.IncRetryScheduled("ticket")
	metrics.ObserveChannelSend("SMS", true, 120*time.Millisecond)
	metrics.ObserveChannelSend("sms", false, 80*time.Millisecond)
	metrics.IncInflight()
	metrics.DecInflight()
	metrics.AddStaleRequeued(2)
	metrics.AddStaleRequeued(0)
	metrics.ObserveTick(time.Second)

	if got := testutil.ToFloat64(metrics.claimedTotal); got != 3 {
		t.Fatalf("notifications_claimed_total = %v, want 3", got)
	}
	if got := testutil.ToFloat64(metrics.completedTotal.WithLabelValues("ticket")); got != 1 {
		t.Fatalf("notifications_completed_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.failedTotal.WithLabelValues("monitor_alert", "retries_exhausted")); got != 1 {
		t.Fatalf("notifications_failed_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.retryScheduledTotal.WithLabelValues("ticket")); got != 1 {
		t.Fatalf("retry_scheduled_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.channelSendsTotal.WithLabelValues("sms", "success")); got != 1 {
		t.Fatalf("channel_sends_total{success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.channelSendsTotal.WithLabelValues("sms", "failure")); got != 1 {
		t.Fatalf("channel_sends_total{failure} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.dispatchInflight); got != 0 {
		t.Fatalf("dispatch_inflight = %v, want 0", got)
	}
	if got := testutil.ToFloat64(metrics.staleRequeuedTotal); got != 2 {
		t.Fatalf("stale_requeued_total = %v, want 2", got)
	}
}

func TestMetricsNilReceiverIsNoop(t *testing.T) {
	t.Parallel()

	var metrics *Metrics
	metrics.AddClaimed(1)
	metrics.IncCompleted("ticket")
	metrics.IncFailed("ticket", "no_active_channels")
	metrics.ObserveChannelSend("email", true, time.Millisecond)
	metrics.IncInflight()
	metrics.ObserveTick(time.Millisecond)
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsErrorStatus(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	_, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/boom", "500")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}
