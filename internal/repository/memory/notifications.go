package memory

import (
	"context"
	"fmt"
	"time"

	"checkout/internal/domain"
)

type NotificationRepository struct {
	store *Store
}

func (r *NotificationRepository) CreateTx(_ context.Context, q domain.Querier, n *domain.PaymentNotification) error {
	return r.store.with(q, func(st *state) error {
		st.notifications = append(st.notifications, *n)
		return nil
	})
}

func (r *NotificationRepository) UpdateStatusTx(_ context.Context, q domain.Querier, id string, status domain.NotificationStatus, outcome string) error {
	now := time.Now()
	return r.store.with(q, func(st *state) error {
		for i := range st.notifications {
			if st.notifications[i].ID == id {
				st.notifications[i].Status = status
				st.notifications[i].Outcome = outcome
				st.notifications[i].ProcessedAt = &now
				return nil
			}
		}
		return fmt.Errorf("payment notification with id %s not found for status update", id)
	})
}

func (r *NotificationRepository) ListByTransactionIDTx(_ context.Context, q domain.Querier, transactionID string) ([]domain.PaymentNotification, error) {
	var out []domain.PaymentNotification
	err := r.store.with(q, func(st *state) error {
		for _, n := range st.notifications {
			if n.TransactionID == transactionID {
				out = append(out, n)
			}
		}
		return nil
	})
	return out, err
}
