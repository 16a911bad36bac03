package payments_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"checkout/internal/domain"
)

const paymentColumns = `id, order_id, transaction_id, amount, currency, status, payment_method, operator,
	payment_token, payment_url, metadata, failure_reason, completed_at, created_at, updated_at`

const uniqueViolation = "23505"

type paymentRepository struct{}

func NewPaymentRepository() PaymentRepository {
	return &paymentRepository{}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	p := &domain.Payment{}
	var (
		metadata    []byte
		completedAt sql.NullTime
	)
	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.TransactionID,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.PaymentMethod,
		&p.Operator,
		&p.PaymentToken,
		&p.PaymentURL,
		&metadata,
		&p.FailureReason,
		&completedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Metadata = metadata
	if completedAt.Valid {
		t := completedAt.Time
		p.CompletedAt = &t
	}
	return p, nil
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func nullTime(p *domain.Payment) sql.NullTime {
	if p.CompletedAt == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *p.CompletedAt, Valid: true}
}

func (r *paymentRepository) CreateTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := querier.ExecContext(ctx, query,
		payment.ID,
		payment.OrderID,
		payment.TransactionID,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.PaymentMethod,
		payment.Operator,
		payment.PaymentToken,
		payment.PaymentURL,
		nullJSON(payment.Metadata),
		payment.FailureReason,
		nullTime(payment),
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: order %s (%s)", domain.ErrPaymentExists, payment.OrderID, pgErr.Constraint)
		}
		return fmt.Errorf("failed to create payment for order %s: %w", payment.OrderID, err)
	}
	return nil
}

func (r *paymentRepository) GetByTransactionIDTx(ctx context.Context, querier domain.Querier, transactionID string) (*domain.Payment, error) {
	return r.getByTransactionID(ctx, querier, transactionID, false)
}

func (r *paymentRepository) GetByTransactionIDForUpdateTx(ctx context.Context, querier domain.Querier, transactionID string) (*domain.Payment, error) {
	return r.getByTransactionID(ctx, querier, transactionID, true)
}

func (r *paymentRepository) getByTransactionID(ctx context.Context, querier domain.Querier, transactionID string, forUpdate bool) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	p, err := scanPayment(querier.QueryRowContext(ctx, query, transactionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrPaymentNotFound, transactionID)
		}
		return nil, fmt.Errorf("failed to get payment %s: %w", transactionID, err)
	}
	return p, nil
}

func (r *paymentRepository) ListPendingByOrderIDForUpdateTx(ctx context.Context, querier domain.Querier, orderID string) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1 AND status = $2 ORDER BY created_at FOR UPDATE`
	return r.list(ctx, querier, orderID, query, orderID, domain.PaymentStatusPending)
}

func (r *paymentRepository) ListByOrderIDTx(ctx context.Context, querier domain.Querier, orderID string) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1 ORDER BY created_at`
	return r.list(ctx, querier, orderID, query, orderID)
}

func (r *paymentRepository) list(ctx context.Context, querier domain.Querier, orderID, query string, args ...any) ([]domain.Payment, error) {
	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments for order %s: %w", orderID, err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}
	return payments, nil
}

func (r *paymentRepository) UpdateTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) error {
	query := `
		UPDATE payments
		SET status = $1, payment_method = $2, operator = $3, payment_token = $4, payment_url = $5,
		    metadata = $6, failure_reason = $7, completed_at = $8, updated_at = $9
		WHERE id = $10
	`
	res, err := querier.ExecContext(ctx, query,
		payment.Status,
		payment.PaymentMethod,
		payment.Operator,
		payment.PaymentToken,
		payment.PaymentURL,
		nullJSON(payment.Metadata),
		payment.FailureReason,
		nullTime(payment),
		payment.UpdatedAt,
		payment.ID,
	)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: order %s", domain.ErrPaymentExists, payment.OrderID)
		}
		return fmt.Errorf("failed to update payment %s: %w", payment.ID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for payment update (id %s): %w", payment.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrPaymentNotFound, payment.TransactionID)
	}
	return nil
}
