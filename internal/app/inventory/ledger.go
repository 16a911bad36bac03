package inventory

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"checkout/internal/domain"
	"checkout/internal/metrics"
	"checkout/internal/repository/products_repo"
)

// Ledger moves stock for a product. Every call runs on the caller's
// transaction so a reservation commits or rolls back with the order it
// belongs to.
type Ledger interface {
	Reserve(ctx context.Context, q domain.Querier, productID string, qty int) (*domain.Product, error)
	Release(ctx context.Context, q domain.Querier, productID string, qty int) (*domain.Product, error)
}

type ledger struct {
	productRepo products_repo.ProductRepository
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewLedger(productRepo products_repo.ProductRepository, m *metrics.Metrics, logger *zap.Logger) Ledger {
	return &ledger{productRepo: productRepo, metrics: m, logger: logger}
}

func (l *ledger) Reserve(ctx context.Context, q domain.Querier, productID string, qty int) (*domain.Product, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive, got %d", domain.ErrValidation, qty)
	}

	product, err := l.productRepo.ReserveStockTx(ctx, q, productID, qty)
	l.metrics.StockMovements.WithLabelValues("reserve", outcome(err)).Inc()
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			l.logger.Warn("Stock reservation rejected", zap.String("product_id", productID), zap.Int("quantity", qty), zap.Error(err))
		}
		return nil, err
	}

	l.logger.Debug("Stock reserved",
		zap.String("product_id", productID),
		zap.Int("quantity", qty),
		zap.Int("remaining", product.StockQuantity))
	return product, nil
}

func (l *ledger) Release(ctx context.Context, q domain.Querier, productID string, qty int) (*domain.Product, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive, got %d", domain.ErrValidation, qty)
	}

	product, err := l.productRepo.ReleaseStockTx(ctx, q, productID, qty)
	l.metrics.StockMovements.WithLabelValues("release", outcome(err)).Inc()
	if err != nil {
		return nil, err
	}

	l.logger.Debug("Stock released",
		zap.String("product_id", productID),
		zap.Int("quantity", qty),
		zap.Int("available", product.StockQuantity))
	return product, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrProductNotFound):
		return "not_found"
	default:
		return "error"
	}
}
