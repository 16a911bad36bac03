package orders_repo

import (
	"context"
	"time"

	"checkout/internal/domain"
)

type OrderRepository interface {
	// CreateTx inserts the order and its items. It returns
	// domain.ErrDuplicateOrderNumber without aborting the transaction when the
	// order number is already taken.
	CreateTx(ctx context.Context, querier domain.Querier, order *domain.Order) error
	GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.Order, error)
	GetByIDForUpdateTx(ctx context.Context, querier domain.Querier, id string) (*domain.Order, error)
	UpdateStatusTx(ctx context.Context, querier domain.Querier, order *domain.Order) error
	ListTx(ctx context.Context, querier domain.Querier, filter domain.OrderFilter) ([]domain.Order, error)
	ListStalePendingTx(ctx context.Context, querier domain.Querier, createdBefore time.Time, limit int) ([]string, error)
}
