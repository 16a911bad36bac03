package httperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"checkout/internal/domain"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: email", domain.ErrValidation), http.StatusBadRequest},
		{domain.ErrMissingTransactionID, http.StatusBadRequest},
		{fmt.Errorf("%w: %w", domain.ErrValidation, domain.ErrUnknownStatus), http.StatusBadRequest},
		{fmt.Errorf("%w: abc", domain.ErrOrderNotFound), http.StatusNotFound},
		{domain.ErrPaymentNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: shipped -> cancelled", domain.ErrInvalidTransition), http.StatusConflict},
		{domain.ErrInsufficientStock, http.StatusConflict},
		{domain.ErrOrderNotPayable, http.StatusConflict},
		{domain.ErrProductUnavailable, http.StatusUnprocessableEntity},
		{domain.ErrAmountMismatch, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: HTTP 500", domain.ErrGateway), http.StatusBadGateway},
		{fmt.Errorf("%w: deadline", domain.ErrGatewayTimeout), http.StatusGatewayTimeout},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			assert.Equal(t, tc.status, KindOf(tc.err).HTTPStatus())
		})
	}
}

func TestWriteHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, zap.NewNop(), errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, KindInternal, body.Error)
	assert.NotContains(t, body.Message, "password")

	rec = httptest.NewRecorder()
	Write(rec, zap.NewNop(), fmt.Errorf("%w: order KKN-1 is shipped", domain.ErrOrderNotPayable))
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Message, "KKN-1")
}
