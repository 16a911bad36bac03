package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"checkout/internal/app/inventory"
	"checkout/internal/domain"
	"checkout/internal/metrics"
	"checkout/internal/outbox"
	"checkout/internal/repository/orders_repo"
	"checkout/internal/repository/outbox_repo"
	"checkout/internal/repository/payments_repo"
	"checkout/internal/repository/products_repo"
	"checkout/internal/util"
)

const (
	maxOrderNumberAttempts = 5
	defaultListLimit       = 20
	expiryBatchSize        = 100
)

type OrderService interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
	CancelOrder(ctx context.Context, orderID string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (*domain.Order, error)
	ExpireStaleOrders(ctx context.Context, ttl time.Duration) (int, error)
}

type orderService struct {
	db          domain.Querier
	tx          domain.Transactor
	ledger      inventory.Ledger
	productRepo products_repo.ProductRepository
	orderRepo   orders_repo.OrderRepository
	paymentRepo payments_repo.PaymentRepository
	outboxRepo  outbox_repo.OutboxRepository
	topics      outbox.Topics
	settings    Settings
	metrics     *metrics.Metrics
	logger      *zap.Logger

	now            func() time.Time
	newOrderNumber func(prefix string, now time.Time) string
}

func NewOrderService(
	db domain.Querier,
	tx domain.Transactor,
	ledger inventory.Ledger,
	productRepo products_repo.ProductRepository,
	orderRepo orders_repo.OrderRepository,
	paymentRepo payments_repo.PaymentRepository,
	outboxRepo outbox_repo.OutboxRepository,
	topics outbox.Topics,
	settings Settings,
	m *metrics.Metrics,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		db:             db,
		tx:             tx,
		ledger:         ledger,
		productRepo:    productRepo,
		orderRepo:      orderRepo,
		paymentRepo:    paymentRepo,
		outboxRepo:     outboxRepo,
		topics:         topics,
		settings:       settings,
		metrics:        m,
		logger:         logger,
		now:            time.Now,
		newOrderNumber: util.GenerateOrderNumber,
	}
}

// CreateOrder validates the cart, reserves stock and persists the order with
// its item snapshots in one transaction. Any failing line aborts everything.
func (s *orderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error) {
	if err := req.Validate(s.settings.MaxLineQuantity); err != nil {
		s.metrics.OrdersCreated.WithLabelValues("invalid").Inc()
		return nil, err
	}

	var order *domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		var err error
		order, err = s.createOrderTx(ctx, q, &req)
		return err
	})
	if err != nil {
		s.metrics.OrdersCreated.WithLabelValues(createOutcome(err)).Inc()
		if isBusinessError(err) {
			s.logger.Warn("Order rejected", zap.String("user_id", req.UserID), zap.Error(err))
		} else {
			s.logger.Error("Failed to create order", zap.String("user_id", req.UserID), zap.Error(err))
		}
		return nil, err
	}

	s.metrics.OrdersCreated.WithLabelValues("ok").Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int("items", len(order.Items)),
		zap.Int64("total", order.Total))
	return order, nil
}

func (s *orderService) createOrderTx(ctx context.Context, q domain.Querier, req *CreateOrderRequest) (*domain.Order, error) {
	now := s.now()

	products, err := s.productRepo.LockByIDsTx(ctx, q, req.productIDs())
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:              util.GenerateUUID(),
		UserID:          req.UserID,
		Status:          domain.OrderStatusPending,
		Customer:        req.customer(),
		ShippingAddress: req.Address,
		ShippingCity:    req.City,
		Notes:           req.Notes,
		ShippingCost:    s.settings.ShippingCost,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for _, line := range req.Items {
		product, ok := products[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, line.ProductID)
		}
		if !product.IsActive {
			return nil, fmt.Errorf("%w: %s is not for sale", domain.ErrProductUnavailable, product.Name)
		}
		if !product.InStock || product.StockQuantity < line.Quantity {
			return nil, fmt.Errorf("%w: %s has %d left, requested %d",
				domain.ErrInsufficientStock, product.Name, product.StockQuantity, line.Quantity)
		}

		reserved, err := s.ledger.Reserve(ctx, q, product.ID, line.Quantity)
		if err != nil {
			return nil, err
		}
		products[product.ID] = reserved

		lineTotal := product.Price * int64(line.Quantity)
		order.Subtotal += lineTotal
		order.Items = append(order.Items, domain.OrderItem{
			ID:           util.GenerateUUID(),
			OrderID:      order.ID,
			ProductID:    product.ID,
			ProductName:  product.Name,
			ProductImage: product.FirstImage(),
			Quantity:     line.Quantity,
			UnitPrice:    product.Price,
			LineTotal:    lineTotal,
			CreatedAt:    now,
		})
	}
	order.Total = order.Subtotal + order.ShippingCost

	for attempt := 1; ; attempt++ {
		order.OrderNumber = s.newOrderNumber(s.settings.OrderNumberPrefix, now)
		err = s.orderRepo.CreateTx(ctx, q, order)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrDuplicateOrderNumber) {
			return nil, err
		}
		if attempt == maxOrderNumberAttempts {
			return nil, fmt.Errorf("failed to allocate a unique order number after %d attempts: %w", attempt, err)
		}
		s.logger.Warn("Order number collision, regenerating", zap.String("order_number", order.OrderNumber))
	}

	msg, err := outbox.NewMessage(s.topics.OrderEvents, domain.AggregateOrder, order.ID, domain.EventOrderCreated, domain.OrderCreatedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Total:       order.Total,
		ItemCount:   len(order.Items),
		Status:      string(order.Status),
		CreatedAt:   now,
	}, now)
	if err != nil {
		return nil, err
	}
	if err := s.outboxRepo.CreateMessageTx(ctx, q, msg); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if !util.IsUUID(orderID) {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	return s.orderRepo.GetByIDTx(ctx, s.db, orderID)
}

func (s *orderService) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, filter.Status)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.orderRepo.ListTx(ctx, s.db, filter)
}

// CancelOrder is the customer cancel: only an unpaid order can be withdrawn.
// Paid orders are cancelled by an operator through UpdateStatus.
func (s *orderService) CancelOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.updateStatus(ctx, orderID, domain.OrderStatusCancelled, func(order *domain.Order) error {
		if order.Status != domain.OrderStatusPending {
			return fmt.Errorf("%w: order %s is %s, only pending orders can be cancelled by the customer",
				domain.ErrInvalidTransition, order.OrderNumber, order.Status)
		}
		return nil
	})
}

// UpdateStatus applies one transition from the status table. Cancelling also
// releases the order's reserved stock and fails its pending payment.
func (s *orderService) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (*domain.Order, error) {
	return s.updateStatus(ctx, orderID, status, nil)
}

// updateStatus runs check, when set, against the locked row.
func (s *orderService) updateStatus(ctx context.Context, orderID string, status domain.OrderStatus, check func(*domain.Order) error) (*domain.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, domain.ErrUnknownStatus)
	}
	if !util.IsUUID(orderID) {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}

	var (
		order *domain.Order
		from  domain.OrderStatus
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		var err error
		order, err = s.orderRepo.GetByIDForUpdateTx(ctx, q, orderID)
		if err != nil {
			return err
		}
		from = order.Status
		if check != nil {
			if err := check(order); err != nil {
				return err
			}
		}
		return s.transitionTx(ctx, q, order, status)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			s.logger.Warn("Order status transition rejected", zap.String("order_id", orderID), zap.String("to", string(status)), zap.Error(err))
		} else if !errors.Is(err, domain.ErrOrderNotFound) {
			s.logger.Error("Failed to update order status", zap.String("order_id", orderID), zap.Error(err))
		}
		return nil, err
	}

	s.metrics.OrderTransitions.WithLabelValues(string(from), string(order.Status)).Inc()
	s.logger.Info("Order status updated",
		zap.String("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(order.Status)))
	return order, nil
}

func (s *orderService) transitionTx(ctx context.Context, q domain.Querier, order *domain.Order, status domain.OrderStatus) error {
	now := s.now()
	from := order.Status

	if status == domain.OrderStatusCancelled {
		if err := s.cancelTx(ctx, q, order, now); err != nil {
			return err
		}
	} else {
		if err := order.TransitionTo(status, now); err != nil {
			return err
		}
		if err := s.orderRepo.UpdateStatusTx(ctx, q, order); err != nil {
			return err
		}
	}

	msg, err := outbox.OrderStatusChanged(s.topics.OrderEvents, order, from, now)
	if err != nil {
		return err
	}
	return s.outboxRepo.CreateMessageTx(ctx, q, msg)
}

// cancelTx checks the transition before touching stock so a rejected cancel
// leaves everything as it was.
func (s *orderService) cancelTx(ctx context.Context, q domain.Querier, order *domain.Order, now time.Time) error {
	if err := order.Status.CheckTransition(domain.OrderStatusCancelled); err != nil {
		return err
	}

	for _, item := range order.Items {
		if item.ProductID == "" {
			continue
		}
		if _, err := s.ledger.Release(ctx, q, item.ProductID, item.Quantity); err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				s.logger.Warn("Product no longer exists, skipping stock release",
					zap.String("order_id", order.ID), zap.String("product_id", item.ProductID))
				continue
			}
			return err
		}
	}

	pending, err := s.paymentRepo.ListPendingByOrderIDForUpdateTx(ctx, q, order.ID)
	if err != nil {
		return err
	}
	for i := range pending {
		p := &pending[i]
		if err := p.MarkFailed("order cancelled", now); err != nil {
			return err
		}
		if err := s.paymentRepo.UpdateTx(ctx, q, p); err != nil {
			return err
		}
		msg, err := outbox.PaymentStatusChanged(s.topics.PaymentEvents, p, now)
		if err != nil {
			return err
		}
		if err := s.outboxRepo.CreateMessageTx(ctx, q, msg); err != nil {
			return err
		}
	}

	all, err := s.paymentRepo.ListByOrderIDTx(ctx, q, order.ID)
	if err != nil {
		return err
	}
	for _, p := range all {
		if p.Status == domain.PaymentStatusCompleted {
			s.logger.Warn("Cancelled order was paid, refund required",
				zap.String("order_id", order.ID),
				zap.String("order_status", string(order.Status)),
				zap.String("transaction_id", p.TransactionID),
				zap.Int64("amount", p.Amount))
		}
	}

	if err := order.TransitionTo(domain.OrderStatusCancelled, now); err != nil {
		return err
	}
	return s.orderRepo.UpdateStatusTx(ctx, q, order)
}

// ExpireStaleOrders cancels pending orders older than ttl. Each order is
// re-checked under its row lock, so one paid in the meantime is left alone.
func (s *orderService) ExpireStaleOrders(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}

	ids, err := s.orderRepo.ListStalePendingTx(ctx, s.db, s.now().Add(-ttl), expiryBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		var cancelled bool
		err := s.tx.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
			order, err := s.orderRepo.GetByIDForUpdateTx(ctx, q, id)
			if err != nil {
				return err
			}
			if order.Status != domain.OrderStatusPending {
				return nil
			}
			if err := s.transitionTx(ctx, q, order, domain.OrderStatusCancelled); err != nil {
				return err
			}
			cancelled = true
			return nil
		})
		if err != nil {
			s.logger.Error("Failed to expire stale order", zap.String("order_id", id), zap.Error(err))
			continue
		}
		if cancelled {
			expired++
			s.metrics.OrderTransitions.WithLabelValues(string(domain.OrderStatusPending), string(domain.OrderStatusCancelled)).Inc()
			s.logger.Info("Stale pending order expired", zap.String("order_id", id))
		}
	}
	return expired, nil
}

func isBusinessError(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrProductNotFound) ||
		errors.Is(err, domain.ErrProductUnavailable) ||
		errors.Is(err, domain.ErrInsufficientStock)
}

func createOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrProductUnavailable):
		return "product_unavailable"
	case errors.Is(err, domain.ErrProductNotFound), errors.Is(err, domain.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}
