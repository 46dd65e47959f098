package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

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
	if !strings.Contains(metricsBody, "akada_http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", metricsBody)
	}
	if !strings.Contains(metricsBody, "akada_http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", metricsBody)
	}
}

func TestMetricsObserveAccessDenied(t *testing.T) {
	metrics := NewMetrics()

	metrics.ObserveAccessDenied("missing_capability")
	metrics.ObserveAccessDenied("missing_capability")
	metrics.ObserveAccessDenied("no_school")

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rr.Body.String()
	if !strings.Contains(body, "akada_access_denied_total{kind=\"missing_capability\"} 2") {
		t.Fatalf("expected deny counter for missing_capability, got: %s", body)
	}
	if !strings.Contains(body, "akada_access_denied_total{kind=\"no_school\"} 1") {
		t.Fatalf("expected deny counter for no_school, got: %s", body)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var metrics *Metrics

	metrics.ObserveAccessDenied("whatever")
	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("nil metrics middleware should pass through, got %d", rr.Code)
	}

	unavailable := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(unavailable, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if unavailable.Code != http.StatusServiceUnavailable {
		t.Fatalf("nil metrics handler should report unavailable, got %d", unavailable.Code)
	}
}
