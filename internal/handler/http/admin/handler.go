package admin

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"checkout/internal/app/orders"
	"checkout/internal/app/payments"
	"checkout/internal/domain"
	"checkout/internal/handler/http/httperr"
	http_orders "checkout/internal/handler/http/orders"
)

type AdminHandler struct {
	orders   orders.OrderService
	payments payments.PaymentService
	logger   *zap.Logger
}

func NewAdminHandler(o orders.OrderService, p payments.PaymentService, l *zap.Logger) *AdminHandler {
	return &AdminHandler{orders: o, payments: p, logger: l}
}

func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := http_orders.ParseFilter(r)
	if err != nil {
		httperr.Write(w, h.logger, err)
		return
	}

	list, err := h.orders.ListOrders(r.Context(), filter)
	if err != nil {
		httperr.Write(w, h.logger, err)
		return
	}

	httperr.JSON(w, http.StatusOK, http_orders.NewOrderListResponse(list))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *AdminHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, "invalid request body")
		return
	}

	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		httperr.Write(w, h.logger, err)
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), orderID, status)
	if err != nil {
		httperr.Write(w, h.logger, err)
		return
	}

	h.logger.Info("Order status changed by operator",
		zap.String("order_id", orderID), zap.String("status", string(order.Status)))
	httperr.JSON(w, http.StatusOK, http_orders.NewOrderResponse(order))
}

func (h *AdminHandler) CheckPayment(w http.ResponseWriter, r *http.Request) {
	txn := chi.URLParam(r, "transactionID")

	verified, err := h.payments.CheckPaymentStatus(r.Context(), txn)
	if err != nil {
		httperr.Write(w, h.logger, err)
		return
	}

	httperr.JSON(w, http.StatusOK, map[string]any{
		"transaction_id": verified.TransactionID,
		"status":         verified.Status,
		"amount":         verified.Amount,
		"currency":       verified.Currency,
		"payment_method": verified.PaymentMethod,
		"operator_id":    verified.Operator,
		"message":        verified.Message,
	})
}

func (h *AdminHandler) ReconcilePayment(w http.ResponseWriter, r *http.Request) {
	txn := chi.URLParam(r, "transactionID")

	view, err := h.payments.Reconcile(r.Context(), txn)
	if err != nil {
		httperr.Write(w, h.logger, err)
		return
	}

	httperr.JSON(w, http.StatusOK, view)
}
