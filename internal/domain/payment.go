package domain

import (
	"fmt"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	switch s {
	case PaymentStatusPending:
		return target == PaymentStatusCompleted || target == PaymentStatusFailed
	case PaymentStatusFailed:
		// a superseded or refused attempt can still be captured by the provider
		return target == PaymentStatusCompleted
	case PaymentStatusCompleted:
		return target == PaymentStatusRefunded
	default:
		return false
	}
}

type Payment struct {
	ID            string
	OrderID       string
	TransactionID string
	Amount        int64
	Currency      string
	Status        PaymentStatus
	PaymentMethod string
	Operator      string
	PaymentToken  string
	PaymentURL    string
	Metadata      []byte
	FailureReason string
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RecordVerification stores what the provider reported, whatever the outcome.
func (p *Payment) RecordVerification(v *VerifiedPayment, now time.Time) {
	if v.PaymentMethod != "" {
		p.PaymentMethod = v.PaymentMethod
	}
	if v.Operator != "" {
		p.Operator = v.Operator
	}
	if len(v.Raw) > 0 {
		p.Metadata = v.Raw
	}
	p.UpdatedAt = now
}

// MarkCompleted reports false when the payment was already completed.
func (p *Payment) MarkCompleted(now time.Time) (bool, error) {
	if p.Status == PaymentStatusCompleted {
		return false, nil
	}
	if !p.Status.CanTransitionTo(PaymentStatusCompleted) {
		return false, fmt.Errorf("%w: payment %s -> %s", ErrInvalidTransition, p.Status, PaymentStatusCompleted)
	}
	p.Status = PaymentStatusCompleted
	p.FailureReason = ""
	if p.CompletedAt == nil {
		t := now
		p.CompletedAt = &t
	}
	p.UpdatedAt = now
	return true, nil
}

func (p *Payment) MarkFailed(reason string, now time.Time) error {
	if !p.Status.CanTransitionTo(PaymentStatusFailed) {
		return fmt.Errorf("%w: payment %s -> %s", ErrInvalidTransition, p.Status, PaymentStatusFailed)
	}
	p.Status = PaymentStatusFailed
	p.FailureReason = reason
	p.UpdatedAt = now
	return nil
}
