package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	metrics := NewMetrics()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	metrics.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}

	body := rr.Body.String()
	if !strings.Contains(body, `stockbook_import_rows_total{outcome="inserted"} 0`) {
		t.Fatalf("expected body to contain stockbook_import_rows_total, got: %s", body)
	}
	if !strings.Contains(body, `stockbook_import_batches_total{result="failed"} 0`) {
		t.Fatalf("expected body to contain stockbook_import_batches_total, got: %s", body)
	}
}

func TestImportMetricsCountRowsAndBatches(t *testing.T) {
	metrics := NewMetrics()
	imports := metrics.Imports()
	imports.ObserveRows("inserted", 3)
	imports.ObserveRows("error", 0)
	imports.ObserveBatch("partial")
	metrics.Jobs().Track("upload:cleanup").End(nil)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()

	for _, want := range []string{
		`stockbook_import_rows_total{outcome="inserted"} 3`,
		`stockbook_import_rows_total{outcome="error"} 0`,
		`stockbook_import_batches_total{result="partial"} 1`,
		`stockbook_jobs_total{job="upload:cleanup",status="success"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics, got: %s", want, body)
		}
	}
}

func TestNilImportMetricsAreInert(t *testing.T) {
	var metrics *Metrics
	metrics.Imports().ObserveRows("inserted", 1)
	metrics.Imports().ObserveBatch("ok")
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	metricsRR := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(metricsRR, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	metricsBody := metricsRR.Body.String()
	if !strings.Contains(metricsBody, "http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", metricsBody)
	}
	if !strings.Contains(metricsBody, "http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", metricsBody)
	}
}
