package products_repo

import (
	"context"

	"checkout/internal/domain"
)

type ProductRepository interface {
	GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.Product, error)
	// LockByIDsTx row-locks the given products in id order and returns the ones that exist.
	LockByIDsTx(ctx context.Context, querier domain.Querier, ids []string) (map[string]*domain.Product, error)
	ReserveStockTx(ctx context.Context, querier domain.Querier, id string, qty int) (*domain.Product, error)
	ReleaseStockTx(ctx context.Context, querier domain.Querier, id string, qty int) (*domain.Product, error)
}
