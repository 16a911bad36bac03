package memory

import (
	"context"
	"fmt"
	"sort"

	"checkout/internal/domain"
)

type PaymentRepository struct {
	store *Store
}

func isActive(s domain.PaymentStatus) bool {
	return s == domain.PaymentStatusPending || s == domain.PaymentStatusCompleted
}

// checkUnique mirrors the transaction_id unique key and the partial unique
// index on live payments per order.
func checkUnique(st *state, p *domain.Payment) error {
	for id, existing := range st.payments {
		if id == p.ID {
			continue
		}
		if existing.TransactionID == p.TransactionID {
			return fmt.Errorf("%w: transaction %s", domain.ErrPaymentExists, p.TransactionID)
		}
		if existing.OrderID == p.OrderID && isActive(existing.Status) && isActive(p.Status) {
			return fmt.Errorf("%w: order %s", domain.ErrPaymentExists, p.OrderID)
		}
	}
	return nil
}

func (r *PaymentRepository) CreateTx(_ context.Context, q domain.Querier, payment *domain.Payment) error {
	return r.store.with(q, func(st *state) error {
		if err := checkUnique(st, payment); err != nil {
			return err
		}
		st.payments[payment.ID] = *payment
		return nil
	})
}

func (r *PaymentRepository) GetByTransactionIDTx(_ context.Context, q domain.Querier, transactionID string) (*domain.Payment, error) {
	var out *domain.Payment
	err := r.store.with(q, func(st *state) error {
		for _, p := range st.payments {
			if p.TransactionID == transactionID {
				p := p
				out = &p
				return nil
			}
		}
		return fmt.Errorf("%w: %s", domain.ErrPaymentNotFound, transactionID)
	})
	return out, err
}

func (r *PaymentRepository) GetByTransactionIDForUpdateTx(ctx context.Context, q domain.Querier, transactionID string) (*domain.Payment, error) {
	return r.GetByTransactionIDTx(ctx, q, transactionID)
}

func (r *PaymentRepository) ListPendingByOrderIDForUpdateTx(_ context.Context, q domain.Querier, orderID string) ([]domain.Payment, error) {
	var out []domain.Payment
	err := r.store.with(q, func(st *state) error {
		for _, p := range st.payments {
			if p.OrderID == orderID && p.Status == domain.PaymentStatusPending {
				out = append(out, p)
			}
		}
		return nil
	})
	sortPayments(out)
	return out, err
}

func (r *PaymentRepository) ListByOrderIDTx(_ context.Context, q domain.Querier, orderID string) ([]domain.Payment, error) {
	var out []domain.Payment
	err := r.store.with(q, func(st *state) error {
		for _, p := range st.payments {
			if p.OrderID == orderID {
				out = append(out, p)
			}
		}
		return nil
	})
	sortPayments(out)
	return out, err
}

func (r *PaymentRepository) UpdateTx(_ context.Context, q domain.Querier, payment *domain.Payment) error {
	return r.store.with(q, func(st *state) error {
		if _, ok := st.payments[payment.ID]; !ok {
			return fmt.Errorf("%w: %s", domain.ErrPaymentNotFound, payment.TransactionID)
		}
		if err := checkUnique(st, payment); err != nil {
			return err
		}
		st.payments[payment.ID] = *payment
		return nil
	})
}

func sortPayments(ps []domain.Payment) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].CreatedAt.Before(ps[j].CreatedAt) })
}
