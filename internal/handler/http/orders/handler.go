package orders

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"checkout/internal/app/orders"
	"checkout/internal/domain"
	"checkout/internal/handler/http/httperr"
)

const userIDHeader = "X-User-ID"

type OrderHandler struct {
	service orders.OrderService
	logger  *zap.Logger
}

func NewOrderHandler(s orders.OrderService, l *zap.Logger) *OrderHandler {
	return &OrderHandler{service: s, logger: l}
}

func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for CreateOrder", zap.Error(err))
		httperr.BadRequest(w, "invalid request body")
		return
	}
	req.UserID = r.Header.Get(userIDHeader)

	order, err := h.service.CreateOrder(r.Context(), req)
	if err != nil {
		httperr.Write(w, h.logger, err)
		return
	}

	httperr.JSON(w, http.StatusCreated, NewOrderResponse(order))
}

// GetOrder hides orders that belong to another user behind a 404.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	order, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		httperr.Write(w, h.logger, err)
		return
	}
	if !ownedBy(order, r.Header.Get(userIDHeader)) {
		httperr.Write(w, h.logger, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID))
		return
	}

	httperr.JSON(w, http.StatusOK, NewOrderResponse(order))
}

func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		httperr.BadRequest(w, userIDHeader+" header is required")
		return
	}

	filter, err := ParseFilter(r)
	if err != nil {
		httperr.Write(w, h.logger, err)
		return
	}
	filter.UserID = userID

	list, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		httperr.Write(w, h.logger, err)
		return
	}

	httperr.JSON(w, http.StatusOK, NewOrderListResponse(list))
}

func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	order, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		httperr.Write(w, h.logger, err)
		return
	}
	if !ownedBy(order, r.Header.Get(userIDHeader)) {
		httperr.Write(w, h.logger, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID))
		return
	}

	cancelled, err := h.service.CancelOrder(r.Context(), orderID)
	if err != nil {
		httperr.Write(w, h.logger, err)
		return
	}

	httperr.JSON(w, http.StatusOK, NewOrderResponse(cancelled))
}

func ownedBy(order *domain.Order, userID string) bool {
	return order.UserID == "" || order.UserID == userID
}

// ParseFilter reads status, search, limit and offset from the query string.
func ParseFilter(r *http.Request) (domain.OrderFilter, error) {
	q := r.URL.Query()
	filter := domain.OrderFilter{Search: q.Get("search")}

	if s := q.Get("status"); s != "" {
		status, err := domain.ParseOrderStatus(s)
		if err != nil {
			return filter, fmt.Errorf("%w: %w", domain.ErrValidation, err)
		}
		filter.Status = status
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &filter.Limit}, {"offset", &filter.Offset}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrValidation, p.name)
		}
		*p.dst = n
	}
	return filter, nil
}
