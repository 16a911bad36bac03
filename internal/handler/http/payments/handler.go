package payments

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"checkout/internal/app/payments"
	"checkout/internal/domain"
	"checkout/internal/handler/http/httperr"
)

const maxNotificationBytes = 64 << 10

type PaymentHandler struct {
	service payments.PaymentService
	logger  *zap.Logger
}

func NewPaymentHandler(s payments.PaymentService, l *zap.Logger) *PaymentHandler {
	return &PaymentHandler{service: s, logger: l}
}

type initRequest struct {
	OrderID string `json:"order_id"`
}

func (h *PaymentHandler) InitializePayment(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for InitializePayment", zap.Error(err))
		httperr.BadRequest(w, "invalid request body")
		return
	}
	if req.OrderID == "" {
		httperr.BadRequest(w, "order_id is required")
		return
	}

	res, err := h.service.InitializePayment(r.Context(), req.OrderID)
	if err != nil {
		httperr.Write(w, h.logger, err)
		return
	}

	httperr.JSON(w, http.StatusCreated, res)
}

type notifyResponse struct {
	Status  string           `json:"status"`
	Outcome payments.Outcome `json:"outcome"`
}

// Notify accepts the provider push as a form or JSON body. The transaction id
// is the only field used; the outcome always comes from a provider check.
// Errors answer non-2xx so the provider retries.
func (h *PaymentHandler) Notify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationBytes))
	if err != nil {
		httperr.BadRequest(w, "unreadable body")
		return
	}

	n := payments.Notification{
		TransactionID: transactionIDFrom(r, body),
		Source:        payments.SourceWebhook,
		Payload:       body,
	}
	outcome, err := h.service.HandleNotification(r.Context(), n)
	if err != nil {
		httperr.Write(w, h.logger, err)
		return
	}

	httperr.JSON(w, http.StatusOK, notifyResponse{Status: "ok", Outcome: outcome})
}

// Return is where the customer's browser lands after checkout. It reconciles
// on the way through so the shown status does not wait for the webhook.
func (h *PaymentHandler) Return(w http.ResponseWriter, r *http.Request) {
	txn := r.URL.Query().Get("transaction_id")
	if txn == "" {
		txn = r.URL.Query().Get("cpm_trans_id")
	}

	_, err := h.service.HandleNotification(r.Context(), payments.Notification{
		TransactionID: txn,
		Source:        payments.SourceReturn,
		Payload:       []byte(r.URL.RawQuery),
	})
	if err != nil && !isTransient(err) {
		httperr.Write(w, h.logger, err)
		return
	}
	if err != nil {
		h.logger.Warn("Reconciliation on return failed, showing stored status",
			zap.String("transaction_id", txn), zap.Error(err))
	}

	h.writeStatus(w, r, txn)
}

func (h *PaymentHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w, r, chi.URLParam(r, "transactionID"))
}

func (h *PaymentHandler) writeStatus(w http.ResponseWriter, r *http.Request, txn string) {
	view, err := h.service.GetPaymentStatus(r.Context(), txn)
	if err != nil {
		httperr.Write(w, h.logger, err)
		return
	}
	httperr.JSON(w, http.StatusOK, view)
}

func isTransient(err error) bool {
	return errors.Is(err, domain.ErrGateway) ||
		errors.Is(err, domain.ErrGatewayTimeout) ||
		errors.Is(err, domain.ErrAmountMismatch)
}

// transactionIDFrom looks in the body first, then in the query string the
// notify URL was registered with.
func transactionIDFrom(r *http.Request, body []byte) string {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err == nil {
			for _, key := range []string{"cpm_trans_id", "transaction_id"} {
				if v, ok := payload[key].(string); ok && strings.TrimSpace(v) != "" {
					return strings.TrimSpace(v)
				}
			}
		}
	} else if values, err := url.ParseQuery(string(body)); err == nil {
		for _, key := range []string{"cpm_trans_id", "transaction_id"} {
			if v := strings.TrimSpace(values.Get(key)); v != "" {
				return v
			}
		}
	}

	return strings.TrimSpace(r.URL.Query().Get("transaction_id"))
}
