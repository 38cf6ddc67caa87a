package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	body := scrape(t, NewMetrics())
	require.True(t, strings.Contains(body, "go_goroutines"), body)
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/grns/{id}")

	req := httptest.NewRequest(http.MethodGet, "/grns/1", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `odyssey_http_requests_total{code="418",route="/grns/{id}"} 1`)
	require.Contains(t, body, `odyssey_http_request_duration_seconds_bucket{route="/grns/{id}"`)
}

func TestWorkflowMetrics(t *testing.T) {
	metrics := NewMetrics()
	wf := metrics.Workflow()
	wf.ObserveTransition("inventory_approve", "approved")
	wf.ObserveFailure("inventory_approve", "invalid_state")
	wf.ObserveStockPostings(3)
	wf.ObserveStockPostings(0)

	body := scrape(t, metrics)
	require.Contains(t, body, `odyssey_grn_transitions_total{action="inventory_approve",to="approved"} 1`)
	require.Contains(t, body, `odyssey_grn_transition_failures_total{action="inventory_approve",kind="invalid_state"} 1`)
	require.Contains(t, body, "odyssey_grn_stock_postings_total 3")

	var nilMetrics *WorkflowMetrics
	nilMetrics.ObserveTransition("x", "y")
	require.Nil(t, (*Metrics)(nil).Workflow())
}
