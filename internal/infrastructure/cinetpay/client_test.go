package cinetpay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"checkout/internal/domain"
	"checkout/internal/metrics"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL:         srv.URL + "/v2/",
		APIKey:          "key",
		SiteID:          "site",
		NotifyURL:       "https://shop.example.com/api/payments/notify",
		ReturnURL:       "https://shop.example.com/api/payments/return?lang=fr",
		Lang:            "fr",
		Channels:        "ALL",
		CustomerCountry: "CI",
		Timeout:         timeout,
	}, metrics.NewUnregistered(), zap.NewNop())
}

func initRequestFixture() domain.PaymentInitRequest {
	return domain.PaymentInitRequest{
		TransactionID: "TXN-20261018-ABC123",
		OrderID:       "order-1",
		OrderNumber:   "ORD-20261018-XYZ9",
		Amount:        7000,
		Currency:      "XOF",
		Customer:      domain.CustomerInfo{FirstName: "Awa", LastName: "Diallo", Email: "awa@example.com", Phone: "+2250700000000"},
		Address:       "Rue 12",
		City:          "Abidjan",
	}
}

func TestInitialize_SendsRequestAndParsesSession(t *testing.T) {
	var got initRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/payment", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"code":"201","message":"CREATED","data":{"payment_token":"tok","payment_url":"https://checkout.example.com/pay/tok"}}`))
	}, time.Second)

	res, err := c.Initialize(context.Background(), initRequestFixture())
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example.com/pay/tok", res.PaymentURL)
	assert.Equal(t, "tok", res.PaymentToken)

	assert.Equal(t, "key", got.APIKey)
	assert.Equal(t, "site", got.SiteID)
	assert.EqualValues(t, 7000, got.Amount)
	assert.Equal(t, "XOF", got.Currency)
	assert.Equal(t, "Awa", got.CustomerName)
	assert.Equal(t, "Diallo", got.CustomerSurname)

	notify, err := url.Parse(got.NotifyURL)
	require.NoError(t, err)
	assert.Equal(t, "TXN-20261018-ABC123", notify.Query().Get("transaction_id"))

	ret, err := url.Parse(got.ReturnURL)
	require.NoError(t, err)
	assert.Equal(t, "fr", ret.Query().Get("lang"))
	assert.Equal(t, "TXN-20261018-ABC123", ret.Query().Get("transaction_id"))
}

func TestInitialize_Failures(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "refused code", status: http.StatusOK, body: `{"code":"608","message":"MINIMUM_REQUIRED_FIELDS"}`, wantErr: domain.ErrGateway},
		{name: "missing url", status: http.StatusOK, body: `{"code":"201","data":{}}`, wantErr: domain.ErrGateway},
		{name: "server error", status: http.StatusBadGateway, body: `oops`, wantErr: domain.ErrGateway},
		{name: "malformed body", status: http.StatusOK, body: `{"code":`, wantErr: domain.ErrGateway},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}, time.Second)

			_, err := c.Initialize(context.Background(), initRequestFixture())
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestCheck_ParsesVerifiedPayment(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		wantStatus domain.ProviderStatus
		wantAmount int64
	}{
		{
			name:       "accepted with string amount",
			body:       `{"code":"00","message":"SUCCES","data":{"amount":"7000","currency":"XOF","status":"ACCEPTED","payment_method":"OM","operator_id":"MP123"}}`,
			wantStatus: domain.ProviderStatusAccepted,
			wantAmount: 7000,
		},
		{
			name:       "refused with numeric amount",
			body:       `{"code":"600","message":"PAYMENT_FAILED","data":{"amount":7000,"currency":"XOF","status":"REFUSED"}}`,
			wantStatus: domain.ProviderStatusRefused,
			wantAmount: 7000,
		},
		{
			name:       "lower case status",
			body:       `{"code":"00","data":{"amount":"7000","currency":"XOF","status":"cancelled"}}`,
			wantStatus: domain.ProviderStatusCancelled,
			wantAmount: 7000,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v2/payment/check", r.URL.Path)
				var req checkRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "TXN-1", req.TransactionID)
				_, _ = w.Write([]byte(tc.body))
			}, time.Second)

			v, err := c.Check(context.Background(), "TXN-1")
			require.NoError(t, err)
			assert.Equal(t, "TXN-1", v.TransactionID)
			assert.Equal(t, tc.wantStatus, v.Status)
			assert.Equal(t, tc.wantAmount, v.Amount)
			assert.Equal(t, "XOF", v.Currency)
			assert.JSONEq(t, tc.body, string(v.Raw))
		})
	}
}

func TestCheck_MissingStatusIsGatewayError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"627","message":"TRANSACTION_NOT_FOUND","data":null}`))
	}, time.Second)

	_, err := c.Check(context.Background(), "TXN-1")
	assert.ErrorIs(t, err, domain.ErrGateway)
}

func TestCheck_Timeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	_, err := c.Check(context.Background(), "TXN-1")
	assert.ErrorIs(t, err, domain.ErrGatewayTimeout)
}

func TestFlexIntRejectsFractions(t *testing.T) {
	var f flexInt
	require.NoError(t, json.Unmarshal([]byte(`"1500"`), &f))
	assert.EqualValues(t, 1500, f)
	require.NoError(t, json.Unmarshal([]byte(`2500.0`), &f))
	assert.EqualValues(t, 2500, f)
	assert.Error(t, json.Unmarshal([]byte(`"12.5"`), &f))
}
