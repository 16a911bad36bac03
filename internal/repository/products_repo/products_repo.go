package products_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/lib/pq"

	"checkout/internal/domain"
)

const productColumns = `id, name, price, stock_quantity, in_stock, is_active, images, created_at, updated_at`

type productRepository struct{}

func NewProductRepository() ProductRepository {
	return &productRepository{}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	p := &domain.Product{}
	var images pq.StringArray
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Price,
		&p.StockQuantity,
		&p.InStock,
		&p.IsActive,
		&images,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Images = []string(images)
	return p, nil
}

func (r *productRepository) GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	p, err := scanProduct(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
		}
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return p, nil
}

func (r *productRepository) LockByIDsTx(ctx context.Context, querier domain.Querier, ids []string) (map[string]*domain.Product, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	// a fixed lock order keeps two concurrent checkouts from deadlocking
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`
	rows, err := querier.QueryContext(ctx, query, pq.Array(sorted))
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}
	defer rows.Close()

	products := make(map[string]*domain.Product, len(sorted))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return products, nil
}

// ReserveStockTx decrements stock with a single conditional UPDATE, so the
// check and the write happen under the same row lock.
func (r *productRepository) ReserveStockTx(ctx context.Context, querier domain.Querier, id string, qty int) (*domain.Product, error) {
	query := `
		UPDATE products
		SET stock_quantity = stock_quantity - $2,
		    in_stock = (stock_quantity - $2) > 0,
		    updated_at = NOW()
		WHERE id = $1 AND in_stock AND stock_quantity >= $2
		RETURNING ` + productColumns

	p, err := scanProduct(querier.QueryRowContext(ctx, query, id, qty))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to reserve stock for product %s: %w", id, err)
	}

	current, getErr := r.GetByIDTx(ctx, querier, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("%w: product %s has %d, requested %d", domain.ErrInsufficientStock, id, current.StockQuantity, qty)
}

func (r *productRepository) ReleaseStockTx(ctx context.Context, querier domain.Querier, id string, qty int) (*domain.Product, error) {
	query := `
		UPDATE products
		SET stock_quantity = stock_quantity + $2,
		    in_stock = (stock_quantity + $2) > 0,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + productColumns

	p, err := scanProduct(querier.QueryRowContext(ctx, query, id, qty))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
		}
		return nil, fmt.Errorf("failed to release stock for product %s: %w", id, err)
	}
	return p, nil
}
