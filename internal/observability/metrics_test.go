package observability

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsSubmissionCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncDocumentSubmitted("DISPENSING")
	metrics.IncDocumentFailed("dispensing", "UPSTREAM")
	metrics.ObserveSubmissionDuration("dispensing", 120*time.Millisecond)
	metrics.IncWorkerInFlight("dispensing")
	metrics.DecWorkerInFlight("dispensing")
	metrics.IncSecondWave("dispensing")

	if got := testutil.ToFloat64(metrics.documentsSubmitted.WithLabelValues("dispensing")); got != 1 {
		t.Fatalf("documents_submitted_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.documentsFailed.WithLabelValues("dispensing", "upstream")); got != 1 {
		t.Fatalf("documents_failed_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.secondWaveTotal.WithLabelValues("dispensing")); got != 1 {
		t.Fatalf("second_wave_documents_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.workerInflight.WithLabelValues("dispensing")); got != 0 {
		t.Fatalf("worker_inflight = %v, want 0", got)
	}
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
