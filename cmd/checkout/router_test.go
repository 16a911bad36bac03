package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"checkout/internal/metrics"
)

func TestRouterServesHealthAndMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	r := newRouter([]string{"http://localhost:5173"}, nil, nil, metrics.New(registry), registry, zap.NewNop())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `checkout_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestRouterAnswersCORSPreflight(t *testing.T) {
	registry := prometheus.NewRegistry()
	r := newRouter([]string{"http://localhost:5173"}, nil, nil, metrics.New(registry), registry, zap.NewNop())

	req := httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
