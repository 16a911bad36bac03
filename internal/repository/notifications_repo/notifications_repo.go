package notifications_repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"checkout/internal/domain"
)

type notificationRepository struct{}

func NewNotificationRepository() NotificationRepository {
	return &notificationRepository{}
}

func (r *notificationRepository) CreateTx(ctx context.Context, querier domain.Querier, n *domain.PaymentNotification) error {
	query := `
		INSERT INTO payment_notifications (id, transaction_id, source, payload, status, outcome, received_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	var processedAt sql.NullTime
	if n.ProcessedAt != nil {
		processedAt = sql.NullTime{Time: *n.ProcessedAt, Valid: true}
	}

	_, err := querier.ExecContext(ctx, query,
		n.ID,
		n.TransactionID,
		n.Source,
		n.Payload,
		n.Status,
		n.Outcome,
		n.ReceivedAt,
		processedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record payment notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) UpdateStatusTx(ctx context.Context, querier domain.Querier, id string, status domain.NotificationStatus, outcome string) error {
	query := `
		UPDATE payment_notifications
		SET status = $1, outcome = $2, processed_at = $3
		WHERE id = $4
	`
	res, err := querier.ExecContext(ctx, query, status, outcome, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update payment notification %s: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for notification update: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("payment notification with id %s not found for status update", id)
	}
	return nil
}

func (r *notificationRepository) ListByTransactionIDTx(ctx context.Context, querier domain.Querier, transactionID string) ([]domain.PaymentNotification, error) {
	query := `
		SELECT id, transaction_id, source, payload, status, outcome, received_at, processed_at
		FROM payment_notifications
		WHERE transaction_id = $1
		ORDER BY received_at ASC
	`
	rows, err := querier.QueryContext(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment notifications for %s: %w", transactionID, err)
	}
	defer rows.Close()

	var out []domain.PaymentNotification
	for rows.Next() {
		var (
			n           domain.PaymentNotification
			processedAt sql.NullTime
		)
		if err := rows.Scan(&n.ID, &n.TransactionID, &n.Source, &n.Payload, &n.Status, &n.Outcome, &n.ReceivedAt, &processedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment notification: %w", err)
		}
		if processedAt.Valid {
			t := processedAt.Time
			n.ProcessedAt = &t
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment notifications: %w", err)
	}
	return out, nil
}
