package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"checkout/internal/app/orders"
	"checkout/internal/app/payments"
	http_admin "checkout/internal/handler/http/admin"
	"checkout/internal/handler/http/httperr"
	observability "checkout/internal/handler/http/middleware"
	http_orders "checkout/internal/handler/http/orders"
	http_payments "checkout/internal/handler/http/payments"
	"checkout/internal/metrics"
)

func newRouter(
	allowedOrigins []string,
	orderService orders.OrderService,
	paymentService payments.PaymentService,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.Observability(m))
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-User-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httperr.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		http_orders.RegisterRoutes(r, orderService, logger)
		http_payments.RegisterRoutes(r, paymentService, logger)
		http_admin.RegisterRoutes(r, orderService, paymentService, logger)
	})

	return r
}
