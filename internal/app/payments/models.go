package payments

import (
	"context"
	"time"

	"checkout/internal/domain"
)

// Gateway is the payment provider. Check is the only source of truth for a
// transaction's outcome; notification bodies are never trusted.
type Gateway interface {
	Initialize(ctx context.Context, req domain.PaymentInitRequest) (*domain.PaymentInitResult, error)
	Check(ctx context.Context, transactionID string) (*domain.VerifiedPayment, error)
}

type Settings struct {
	Currency          string
	TransactionPrefix string
}

type InitResult struct {
	PaymentID     string `json:"payment_id"`
	TransactionID string `json:"transaction_id"`
	PaymentURL    string `json:"payment_url"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
}

// Notification is an inbound provider push. Only TransactionID is used for
// reconciliation; Payload is kept for the audit log.
type Notification struct {
	TransactionID string
	Source        string
	Payload       []byte
}

const (
	SourceWebhook = "webhook"
	SourceReturn  = "return"
	SourceAdmin   = "admin"
)

type Outcome string

const (
	OutcomeCompleted        Outcome = "completed"
	OutcomeAlreadyCompleted Outcome = "already_completed"
	OutcomeFailed           Outcome = "failed"
	OutcomeUnchanged        Outcome = "unchanged"
	OutcomeIgnored          Outcome = "ignored"
	OutcomeAmountMismatch   Outcome = "amount_mismatch"
	OutcomeManualReview     Outcome = "manual_review"
)

type StatusView struct {
	TransactionID string               `json:"transaction_id"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	FailureReason string               `json:"failure_reason,omitempty"`
	Amount        int64                `json:"amount"`
	Currency      string               `json:"currency"`
	PaymentURL    string               `json:"payment_url,omitempty"`
	OrderID       string               `json:"order_id"`
	OrderNumber   string               `json:"order_number"`
	OrderStatus   domain.OrderStatus   `json:"order_status"`
	UpdatedAt     time.Time            `json:"updated_at"`
}
