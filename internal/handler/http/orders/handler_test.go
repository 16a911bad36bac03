package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"checkout/internal/app/inventory"
	"checkout/internal/app/orders"
	"checkout/internal/domain"
	"checkout/internal/metrics"
	"checkout/internal/outbox"
	"checkout/internal/repository/memory"
	"checkout/internal/util"
)

type testAPI struct {
	router  http.Handler
	store   *memory.Store
	service orders.OrderService
	mug     string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memory.NewStore()
	m := metrics.NewUnregistered()
	logger := zap.NewNop()

	mug := util.GenerateUUID()
	store.AddProduct(domain.Product{ID: mug, Name: "Clay mug", Price: 5000, StockQuantity: 3, IsActive: true})

	svc := orders.NewOrderService(
		store, store,
		inventory.NewLedger(store.Products(), m, logger),
		store.Products(), store.Orders(), store.Payments(), store.Outbox(),
		outbox.Topics{OrderEvents: "order_events", PaymentEvents: "payment_events"},
		orders.Settings{ShippingCost: 2000, OrderNumberPrefix: "KKN", MaxLineQuantity: 100},
		m, logger,
	)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		RegisterRoutes(r, svc, logger)
	})
	return &testAPI{router: r, store: store, service: svc, mug: mug}
}

func (a *testAPI) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(userIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) orderBody(qty int) map[string]any {
	return map[string]any{
		"first_name": "Awa",
		"last_name":  "Ouedraogo",
		"email":      "awa@example.com",
		"phone":      "+22670000000",
		"address":    "Secteur 15",
		"city":       "Ouagadougou",
		"items":      []map[string]any{{"product_id": a.mug, "quantity": qty}},
	}
}

func decodeOrder(t *testing.T, rec *httptest.ResponseRecorder) OrderResponse {
	t.Helper()
	var resp OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCreateOrderEndpoint(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/orders", "user-1", api.orderBody(2))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	order := decodeOrder(t, rec)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.EqualValues(t, 10000, order.Subtotal)
	assert.EqualValues(t, 12000, order.Total)
	assert.Equal(t, "user-1", order.UserID)
	require.Len(t, order.Items, 1)
	require.NotNil(t, order.Items[0].ProductID)
	assert.Equal(t, api.mug, *order.Items[0].ProductID)
}

func TestCreateOrderEndpoint_Errors(t *testing.T) {
	cases := []struct {
		name   string
		body   func(a *testAPI) any
		status int
	}{
		{name: "malformed body", body: func(*testAPI) any { return "nope" }, status: http.StatusBadRequest},
		{name: "quantity out of range", body: func(a *testAPI) any { return a.orderBody(101) }, status: http.StatusBadRequest},
		{name: "insufficient stock", body: func(a *testAPI) any { return a.orderBody(4) }, status: http.StatusConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := newTestAPI(t)
			rec := api.do(t, http.MethodPost, "/api/orders", "", tc.body(api))
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Zero(t, api.store.OrderCount())
		})
	}
}

func TestGetAndListOrdersAreScopedToUser(t *testing.T) {
	api := newTestAPI(t)
	created := decodeOrder(t, api.do(t, http.MethodPost, "/api/orders", "user-1", api.orderBody(1)))

	rec := api.do(t, http.MethodGet, "/api/orders/"+created.ID, "user-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/orders/"+created.ID, "user-2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/orders", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/orders?status=pending", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	rec = api.do(t, http.MethodGet, "/api/orders?status=lost", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelOrderEndpoint(t *testing.T) {
	api := newTestAPI(t)
	created := decodeOrder(t, api.do(t, http.MethodPost, "/api/orders", "user-1", api.orderBody(2)))

	rec := api.do(t, http.MethodPost, "/api/orders/"+created.ID+"/cancel", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.OrderStatusCancelled, decodeOrder(t, rec).Status)

	p, ok := api.store.Product(api.mug)
	require.True(t, ok)
	assert.Equal(t, 3, p.StockQuantity)

	rec = api.do(t, http.MethodPost, "/api/orders/"+created.ID+"/cancel", "user-1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelOrderEndpoint_PaidOrderIsRejected(t *testing.T) {
	api := newTestAPI(t)
	created := decodeOrder(t, api.do(t, http.MethodPost, "/api/orders", "user-1", api.orderBody(2)))
	_, err := api.service.UpdateStatus(context.Background(), created.ID, domain.OrderStatusConfirmed)
	require.NoError(t, err)

	rec := api.do(t, http.MethodPost, "/api/orders/"+created.ID+"/cancel", "user-1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/orders/"+created.ID, "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.OrderStatusConfirmed, decodeOrder(t, rec).Status)

	p, ok := api.store.Product(api.mug)
	require.True(t, ok)
	assert.Equal(t, 1, p.StockQuantity)
}
