package domain

import "encoding/json"

type ProviderStatus string

const (
	ProviderStatusAccepted  ProviderStatus = "ACCEPTED"
	ProviderStatusRefused   ProviderStatus = "REFUSED"
	ProviderStatusCancelled ProviderStatus = "CANCELLED"
)

// PaymentInitRequest is what the provider needs to open a checkout session.
type PaymentInitRequest struct {
	TransactionID string
	OrderID       string
	OrderNumber   string
	Amount        int64
	Currency      string
	Customer      CustomerInfo
	CustomerID    string
	Address       string
	City          string
}

type PaymentInitResult struct {
	PaymentURL   string
	PaymentToken string
}

// VerifiedPayment is the provider's authoritative answer for a transaction.
type VerifiedPayment struct {
	TransactionID string
	Status        ProviderStatus
	Amount        int64
	Currency      string
	PaymentMethod string
	Operator      string
	Message       string
	Raw           json.RawMessage
}
