package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"checkout/internal/app/payments"
	"checkout/internal/domain"
)

type stubService struct {
	mu            sync.Mutex
	notifications []payments.Notification
	notifyErr     error
	views         map[string]*payments.StatusView
}

func (s *stubService) InitializePayment(_ context.Context, orderID string) (*payments.InitResult, error) {
	if orderID == "paid" {
		return nil, fmt.Errorf("%w: order paid is confirmed", domain.ErrOrderNotPayable)
	}
	return &payments.InitResult{TransactionID: "TXN_1", PaymentURL: "https://pay.example.com/1", Amount: 7000, Currency: "XOF"}, nil
}

func (s *stubService) HandleNotification(_ context.Context, n payments.Notification) (payments.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
	if n.TransactionID == "" {
		return "", domain.ErrMissingTransactionID
	}
	if s.notifyErr != nil {
		return "", s.notifyErr
	}
	return payments.OutcomeCompleted, nil
}

func (s *stubService) Reconcile(ctx context.Context, txn string) (*payments.StatusView, error) {
	return s.GetPaymentStatus(ctx, txn)
}

func (s *stubService) GetPaymentStatus(_ context.Context, txn string) (*payments.StatusView, error) {
	if v, ok := s.views[txn]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrPaymentNotFound, txn)
}

func (s *stubService) CheckPaymentStatus(context.Context, string) (*domain.VerifiedPayment, error) {
	return nil, domain.ErrGateway
}

func newRouter(svc payments.PaymentService) http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		RegisterRoutes(r, svc, zap.NewNop())
	})
	return r
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNotify_ExtractsTransactionID(t *testing.T) {
	cases := []struct {
		name        string
		target      string
		contentType string
		body        string
		want        string
	}{
		{name: "form body", target: "/api/payments/notify", contentType: "application/x-www-form-urlencoded", body: "cpm_site_id=1&cpm_trans_id=TXN_FORM", want: "TXN_FORM"},
		{name: "json body", target: "/api/payments/notify", contentType: "application/json; charset=utf-8", body: `{"cpm_trans_id":"TXN_JSON"}`, want: "TXN_JSON"},
		{name: "query fallback", target: "/api/payments/notify?transaction_id=TXN_QUERY", contentType: "application/json", body: `{}`, want: "TXN_QUERY"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{}
			req := httptest.NewRequest(http.MethodPost, tc.target, strings.NewReader(tc.body))
			req.Header.Set("Content-Type", tc.contentType)

			rec := serve(newRouter(svc), req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			require.Len(t, svc.notifications, 1)
			assert.Equal(t, tc.want, svc.notifications[0].TransactionID)
			assert.Equal(t, payments.SourceWebhook, svc.notifications[0].Source)
			assert.Equal(t, tc.body, string(svc.notifications[0].Payload))

			var resp notifyResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, payments.OutcomeCompleted, resp.Outcome)
		})
	}
}

func TestNotify_ErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{name: "missing transaction id", body: "foo=bar", status: http.StatusBadRequest},
		{name: "unknown transaction", body: "cpm_trans_id=TXN_X", err: domain.ErrPaymentNotFound, status: http.StatusNotFound},
		{name: "provider down", body: "cpm_trans_id=TXN_X", err: fmt.Errorf("%w: HTTP 503", domain.ErrGateway), status: http.StatusBadGateway},
		{name: "amount mismatch", body: "cpm_trans_id=TXN_X", err: domain.ErrAmountMismatch, status: http.StatusUnprocessableEntity},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{notifyErr: tc.err}
			req := httptest.NewRequest(http.MethodPost, "/api/payments/notify", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			assert.Equal(t, tc.status, serve(newRouter(svc), req).Code)
		})
	}
}

func TestReturn_ShowsStoredStatusWhenProviderIsDown(t *testing.T) {
	svc := &stubService{
		notifyErr: fmt.Errorf("%w: timeout", domain.ErrGatewayTimeout),
		views: map[string]*payments.StatusView{
			"TXN_1": {TransactionID: "TXN_1", PaymentStatus: domain.PaymentStatusPending, OrderID: "o-1", OrderStatus: domain.OrderStatusPending},
		},
	}

	rec := serve(newRouter(svc), httptest.NewRequest(http.MethodGet, "/api/payments/return?transaction_id=TXN_1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var view payments.StatusView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, domain.PaymentStatusPending, view.PaymentStatus)
	assert.Equal(t, "o-1", view.OrderID)
	assert.Equal(t, payments.SourceReturn, svc.notifications[0].Source)
}

func TestInitAndStatusEndpoints(t *testing.T) {
	svc := &stubService{views: map[string]*payments.StatusView{
		"TXN_1": {TransactionID: "TXN_1", PaymentStatus: domain.PaymentStatusCompleted, OrderStatus: domain.OrderStatusConfirmed},
	}}
	router := newRouter(svc)

	rec := serve(router, httptest.NewRequest(http.MethodPost, "/api/payments/init", strings.NewReader(`{"order_id":"o-1"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	var session payments.InitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, "TXN_1", session.TransactionID)
	assert.Equal(t, "https://pay.example.com/1", session.PaymentURL)

	rec = serve(router, httptest.NewRequest(http.MethodPost, "/api/payments/init", strings.NewReader(`{"order_id":"paid"}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodPost, "/api/payments/init", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/payments/TXN_1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"order_status":"confirmed"`)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/payments/TXN_404/status", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
