// Package httperr maps domain errors onto HTTP responses.
package httperr

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"checkout/internal/domain"
)

type Kind string

const (
	KindInvalid     Kind = "invalid_request"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindUnprocessed Kind = "unprocessable"
	KindGateway     Kind = "gateway_error"
	KindTimeout     Kind = "gateway_timeout"
	KindInternal    Kind = "internal_error"
)

var kinds = []struct {
	target error
	kind   Kind
}{
	{domain.ErrValidation, KindInvalid},
	{domain.ErrUnknownStatus, KindInvalid},
	{domain.ErrMissingTransactionID, KindInvalid},
	{domain.ErrOrderNotFound, KindNotFound},
	{domain.ErrPaymentNotFound, KindNotFound},
	{domain.ErrInvalidTransition, KindConflict},
	{domain.ErrOrderNotPayable, KindConflict},
	{domain.ErrInsufficientStock, KindConflict},
	{domain.ErrPaymentExists, KindConflict},
	{domain.ErrProductNotFound, KindUnprocessed},
	{domain.ErrProductUnavailable, KindUnprocessed},
	{domain.ErrAmountMismatch, KindUnprocessed},
	{domain.ErrGatewayTimeout, KindTimeout},
	{domain.ErrGateway, KindGateway},
}

func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.target) {
			return k.kind
		}
	}
	return KindInternal
}

func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalid:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnprocessed:
		return http.StatusUnprocessableEntity
	case KindGateway:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type response struct {
	Error   Kind   `json:"error"`
	Message string `json:"message"`
}

// Write renders err as a JSON error body. Internal errors are logged and
// their message is not exposed.
func Write(w http.ResponseWriter, logger *zap.Logger, err error) {
	kind := KindOf(err)
	msg := err.Error()
	if kind == KindInternal {
		logger.Error("Internal error while serving request", zap.Error(err))
		msg = "internal server error"
	}
	JSON(w, kind.HTTPStatus(), response{Error: kind, Message: msg})
}

func BadRequest(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusBadRequest, response{Error: KindInvalid, Message: msg})
}

func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
