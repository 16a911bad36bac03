package admin

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"checkout/internal/app/orders"
	"checkout/internal/app/payments"
)

func RegisterRoutes(r chi.Router, o orders.OrderService, p payments.PaymentService, l *zap.Logger) {
	handler := NewAdminHandler(o, p, l.With(zap.String("component", "AdminHTTPHandler")))

	r.Route("/admin", func(r chi.Router) {
		r.Get("/orders", handler.ListOrders)
		r.Put("/orders/{orderID}/status", handler.UpdateOrderStatus)
		r.Get("/payments/{transactionID}/check", handler.CheckPayment)
		r.Post("/payments/{transactionID}/reconcile", handler.ReconcilePayment)
	})
}
