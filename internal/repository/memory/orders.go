package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"checkout/internal/domain"
)

type OrderRepository struct {
	store *Store
}

func (r *OrderRepository) CreateTx(_ context.Context, q domain.Querier, order *domain.Order) error {
	return r.store.with(q, func(st *state) error {
		for _, existing := range st.orders {
			if existing.OrderNumber == order.OrderNumber {
				return fmt.Errorf("%w: %s", domain.ErrDuplicateOrderNumber, order.OrderNumber)
			}
		}
		stored := *order
		stored.Items = nil
		st.orders[order.ID] = stored
		st.items[order.ID] = append([]domain.OrderItem(nil), order.Items...)
		return nil
	})
}

func (r *OrderRepository) GetByIDTx(_ context.Context, q domain.Querier, id string) (*domain.Order, error) {
	var out *domain.Order
	err := r.store.with(q, func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
		}
		o.Items = append([]domain.OrderItem(nil), st.items[id]...)
		out = &o
		return nil
	})
	return out, err
}

func (r *OrderRepository) GetByIDForUpdateTx(ctx context.Context, q domain.Querier, id string) (*domain.Order, error) {
	return r.GetByIDTx(ctx, q, id)
}

func (r *OrderRepository) UpdateStatusTx(_ context.Context, q domain.Querier, order *domain.Order) error {
	return r.store.with(q, func(st *state) error {
		stored, ok := st.orders[order.ID]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, order.ID)
		}
		stored.Status = order.Status
		stored.PaidAt = order.PaidAt
		stored.ShippedAt = order.ShippedAt
		stored.DeliveredAt = order.DeliveredAt
		stored.UpdatedAt = order.UpdatedAt
		st.orders[order.ID] = stored
		return nil
	})
}

func (r *OrderRepository) ListTx(_ context.Context, q domain.Querier, filter domain.OrderFilter) ([]domain.Order, error) {
	var out []domain.Order
	err := r.store.with(q, func(st *state) error {
		search := strings.ToLower(filter.Search)
		for _, o := range st.orders {
			if filter.UserID != "" && o.UserID != filter.UserID {
				continue
			}
			if filter.Status != "" && o.Status != filter.Status {
				continue
			}
			if search != "" && !matchesSearch(o, search) {
				continue
			}
			o.Items = append([]domain.OrderItem(nil), st.items[o.ID]...)
			out = append(out, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matchesSearch(o domain.Order, search string) bool {
	for _, field := range []string{o.OrderNumber, o.Customer.Email, o.Customer.FirstName, o.Customer.LastName} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func (r *OrderRepository) ListStalePendingTx(_ context.Context, q domain.Querier, createdBefore time.Time, limit int) ([]string, error) {
	var stale []domain.Order
	err := r.store.with(q, func(st *state) error {
		for _, o := range st.orders {
			if o.Status == domain.OrderStatusPending && o.CreatedAt.Before(createdBefore) {
				stale = append(stale, o)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(stale, func(i, j int) bool { return stale[i].CreatedAt.Before(stale[j].CreatedAt) })
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	ids := make([]string, len(stale))
	for i, o := range stale {
		ids[i] = o.ID
	}
	return ids, nil
}
