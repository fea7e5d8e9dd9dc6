package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesJobAndRuntimeMetrics(t *testing.T) {
	metrics := NewMetrics()
	metrics.Jobs().AddRepaired("branch", 2)
	metrics.Jobs().AddRepaired("project", 0)
	_ = metrics.Jobs().Track("budget:reconcile").End(errors.New("timeout"))

	body := scrape(t, metrics)
	assert.Contains(t, body, `civitrack_budget_totals_repaired_total{kind="branch"} 2`)
	assert.NotContains(t, body, `kind="project"`)
	assert.Contains(t, body, `civitrack_jobs_failures_total{job="budget:reconcile"} 1`)
	assert.Contains(t, body, `civitrack_jobs_total{job="budget:reconcile",status="failure"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestMetricsMiddlewareRecordsRoutePattern(t *testing.T) {
	metrics := NewMetrics()
	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/projects/{id}")
	req := httptest.NewRequest(http.MethodGet, "/projects/42", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)

	body := scrape(t, metrics)
	assert.Contains(t, body, `civitrack_http_requests_total{code="404",route="/projects/{id}"} 1`)
	assert.Contains(t, body, `civitrack_http_request_duration_seconds_bucket{route="/projects/{id}"`)
	assert.NotContains(t, body, "/projects/42")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var metrics *Metrics
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	rr := httptest.NewRecorder()
	metrics.Middleware(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
