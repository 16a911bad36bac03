package domain

import "errors"

var (
	ErrValidation           = errors.New("validation failed")
	ErrProductNotFound      = errors.New("product not found")
	ErrProductUnavailable   = errors.New("product unavailable")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrOrderNotFound        = errors.New("order not found")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrUnknownStatus        = errors.New("unknown status")
	ErrOrderNotPayable      = errors.New("order is not payable")
	ErrDuplicateOrderNumber = errors.New("order number already exists")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentExists        = errors.New("active payment already exists for order")
	ErrMissingTransactionID = errors.New("missing transaction id")
	ErrAmountMismatch       = errors.New("verified amount does not match order total")
	ErrGateway              = errors.New("payment gateway error")
	ErrGatewayTimeout       = errors.New("payment gateway timeout")
)
