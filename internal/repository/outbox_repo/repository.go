package outbox_repo

import (
	"context"

	"checkout/internal/domain"
)

type OutboxRepository interface {
	CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.OutboxMessage) error
	// GetPendingMessages locks up to limit pending rows, skipping rows held by other relays.
	GetPendingMessages(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error)
	MarkMessagesAsSentTx(ctx context.Context, querier domain.Querier, ids []string) error
}
