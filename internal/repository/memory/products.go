package memory

import (
	"context"
	"fmt"

	"checkout/internal/domain"
)

type ProductRepository struct {
	store *Store
}

func (r *ProductRepository) GetByIDTx(_ context.Context, q domain.Querier, id string) (*domain.Product, error) {
	var out *domain.Product
	err := r.store.with(q, func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *ProductRepository) LockByIDsTx(_ context.Context, q domain.Querier, ids []string) (map[string]*domain.Product, error) {
	out := make(map[string]*domain.Product, len(ids))
	err := r.store.with(q, func(st *state) error {
		for _, id := range ids {
			if p, ok := st.products[id]; ok {
				out[id] = &p
			}
		}
		return nil
	})
	return out, err
}

func (r *ProductRepository) ReserveStockTx(_ context.Context, q domain.Querier, id string, qty int) (*domain.Product, error) {
	var out *domain.Product
	err := r.store.with(q, func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
		}
		if err := p.Reserve(qty); err != nil {
			return err
		}
		st.products[id] = p
		out = &p
		return nil
	})
	return out, err
}

func (r *ProductRepository) ReleaseStockTx(_ context.Context, q domain.Querier, id string, qty int) (*domain.Product, error) {
	var out *domain.Product
	err := r.store.with(q, func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
		}
		if err := p.Release(qty); err != nil {
			return err
		}
		st.products[id] = p
		out = &p
		return nil
	})
	return out, err
}
