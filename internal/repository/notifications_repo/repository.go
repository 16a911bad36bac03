package notifications_repo

import (
	"context"

	"checkout/internal/domain"
)

type NotificationRepository interface {
	CreateTx(ctx context.Context, querier domain.Querier, n *domain.PaymentNotification) error
	UpdateStatusTx(ctx context.Context, querier domain.Querier, id string, status domain.NotificationStatus, outcome string) error
	ListByTransactionIDTx(ctx context.Context, querier domain.Querier, transactionID string) ([]domain.PaymentNotification, error)
}
