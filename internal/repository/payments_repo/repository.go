package payments_repo

import (
	"context"

	"checkout/internal/domain"
)

type PaymentRepository interface {
	CreateTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) error
	GetByTransactionIDTx(ctx context.Context, querier domain.Querier, transactionID string) (*domain.Payment, error)
	GetByTransactionIDForUpdateTx(ctx context.Context, querier domain.Querier, transactionID string) (*domain.Payment, error)
	ListPendingByOrderIDForUpdateTx(ctx context.Context, querier domain.Querier, orderID string) ([]domain.Payment, error)
	ListByOrderIDTx(ctx context.Context, querier domain.Querier, orderID string) ([]domain.Payment, error)
	UpdateTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) error
}
