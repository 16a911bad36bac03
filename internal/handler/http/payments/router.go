package payments

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"checkout/internal/app/payments"
)

func RegisterRoutes(r chi.Router, s payments.PaymentService, l *zap.Logger) {
	handler := NewPaymentHandler(s, l.With(zap.String("component", "PaymentHTTPHandler")))

	r.Route("/payments", func(r chi.Router) {
		r.Post("/init", handler.InitializePayment)
		r.Post("/notify", handler.Notify)
		r.Get("/return", handler.Return)
		r.Get("/{transactionID}/status", handler.GetStatus)
	})
}
