package orders_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"checkout/internal/domain"
)

const orderColumns = `id, order_number, user_id, status, customer_first_name, customer_last_name, customer_email,
	customer_phone, shipping_address, shipping_city, notes, subtotal, shipping_cost, total,
	paid_at, shipped_at, delivered_at, created_at, updated_at`

const itemColumns = `id, order_id, product_id, product_name, product_image, quantity, unit_price, total, created_at`

type orderRepository struct{}

func NewOrderRepository() OrderRepository {
	return &orderRepository{}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	o := &domain.Order{}
	var (
		userID                         sql.NullString
		paidAt, shippedAt, deliveredAt sql.NullTime
	)
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&userID,
		&o.Status,
		&o.Customer.FirstName,
		&o.Customer.LastName,
		&o.Customer.Email,
		&o.Customer.Phone,
		&o.ShippingAddress,
		&o.ShippingCity,
		&o.Notes,
		&o.Subtotal,
		&o.ShippingCost,
		&o.Total,
		&paidAt,
		&shippedAt,
		&deliveredAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.UserID = userID.String
	o.PaidAt = timePtr(paidAt)
	o.ShippedAt = timePtr(shippedAt)
	o.DeliveredAt = timePtr(deliveredAt)
	return o, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *orderRepository) CreateTx(ctx context.Context, querier domain.Querier, order *domain.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (order_number) DO NOTHING
		RETURNING id
	`
	var insertedID string
	err := querier.QueryRowContext(ctx, query,
		order.ID,
		order.OrderNumber,
		nullString(order.UserID),
		order.Status,
		order.Customer.FirstName,
		order.Customer.LastName,
		order.Customer.Email,
		order.Customer.Phone,
		order.ShippingAddress,
		order.ShippingCity,
		order.Notes,
		order.Subtotal,
		order.ShippingCost,
		order.Total,
		nullTime(order.PaidAt),
		nullTime(order.ShippedAt),
		nullTime(order.DeliveredAt),
		order.CreatedAt,
		order.UpdatedAt,
	).Scan(&insertedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateOrderNumber, order.OrderNumber)
		}
		return fmt.Errorf("failed to insert order %s: %w", order.ID, err)
	}

	itemQuery := `INSERT INTO order_items (` + itemColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	for _, item := range order.Items {
		_, err := querier.ExecContext(ctx, itemQuery,
			item.ID,
			item.OrderID,
			nullString(item.ProductID),
			item.ProductName,
			item.ProductImage,
			item.Quantity,
			item.UnitPrice,
			item.LineTotal,
			item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item for order %s: %w", order.ID, err)
		}
	}
	return nil
}

func (r *orderRepository) GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.Order, error) {
	return r.getByID(ctx, querier, id, false)
}

func (r *orderRepository) GetByIDForUpdateTx(ctx context.Context, querier domain.Querier, id string) (*domain.Order, error) {
	return r.getByID(ctx, querier, id, true)
}

func (r *orderRepository) getByID(ctx context.Context, querier domain.Querier, id string, forUpdate bool) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	order, err := scanOrder(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
		}
		return nil, fmt.Errorf("failed to get order %s: %w", id, err)
	}

	items, err := r.itemsByOrderIDs(ctx, querier, []string{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	return order, nil
}

func (r *orderRepository) itemsByOrderIDs(ctx context.Context, querier domain.Querier, orderIDs []string) (map[string][]domain.OrderItem, error) {
	query := `SELECT ` + itemColumns + ` FROM order_items WHERE order_id = ANY($1::uuid[]) ORDER BY created_at, id`
	rows, err := querier.QueryContext(ctx, query, pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	items := make(map[string][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			item      domain.OrderItem
			productID sql.NullString
		)
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&productID,
			&item.ProductName,
			&item.ProductImage,
			&item.Quantity,
			&item.UnitPrice,
			&item.LineTotal,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		item.ProductID = productID.String
		items[item.OrderID] = append(items[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}
	return items, nil
}

func (r *orderRepository) UpdateStatusTx(ctx context.Context, querier domain.Querier, order *domain.Order) error {
	query := `
		UPDATE orders
		SET status = $1, paid_at = $2, shipped_at = $3, delivered_at = $4, updated_at = $5
		WHERE id = $6
	`
	res, err := querier.ExecContext(ctx, query,
		order.Status,
		nullTime(order.PaidAt),
		nullTime(order.ShippedAt),
		nullTime(order.DeliveredAt),
		order.UpdatedAt,
		order.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update order %s: %w", order.ID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for order update (id %s): %w", order.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, order.ID)
	}
	return nil
}

func (r *orderRepository) ListTx(ctx context.Context, querier domain.Querier, filter domain.OrderFilter) ([]domain.Order, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, likePattern(filter.Search))
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"(order_number ILIKE $%d OR customer_email ILIKE $%d OR customer_first_name ILIKE $%d OR customer_last_name ILIKE $%d)",
			n, n, n, n))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	items, err := r.itemsByOrderIDs(ctx, querier, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern matches s literally anywhere in the column. Backslash is the
// default ILIKE escape character.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func (r *orderRepository) ListStalePendingTx(ctx context.Context, querier domain.Querier, createdBefore time.Time, limit int) ([]string, error) {
	query := `
		SELECT id FROM orders
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3
	`
	rows, err := querier.QueryContext(ctx, query, domain.OrderStatusPending, createdBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending orders: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stale orders: %w", err)
	}
	return ids, nil
}
