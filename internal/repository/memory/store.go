// Package memory is an in-process implementation of the repositories with the
// same locking and uniqueness semantics as the Postgres ones. WithinTx
// serializes transactions on one mutex and restores a snapshot on error.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"checkout/internal/domain"
	"checkout/internal/repository/notifications_repo"
	"checkout/internal/repository/orders_repo"
	"checkout/internal/repository/outbox_repo"
	"checkout/internal/repository/payments_repo"
	"checkout/internal/repository/products_repo"
)

var (
	_ domain.Transactor                         = (*Store)(nil)
	_ domain.Querier                            = (*Store)(nil)
	_ products_repo.ProductRepository           = (*ProductRepository)(nil)
	_ orders_repo.OrderRepository               = (*OrderRepository)(nil)
	_ payments_repo.PaymentRepository           = (*PaymentRepository)(nil)
	_ outbox_repo.OutboxRepository              = (*OutboxRepository)(nil)
	_ notifications_repo.NotificationRepository = (*NotificationRepository)(nil)
)

var errNoSQL = errors.New("memory store does not execute SQL")

type state struct {
	products      map[string]domain.Product
	orders        map[string]domain.Order
	items         map[string][]domain.OrderItem
	payments      map[string]domain.Payment
	outbox        []domain.OutboxMessage
	notifications []domain.PaymentNotification
}

func (s *state) clone() state {
	c := state{
		products:      make(map[string]domain.Product, len(s.products)),
		orders:        make(map[string]domain.Order, len(s.orders)),
		items:         make(map[string][]domain.OrderItem, len(s.items)),
		payments:      make(map[string]domain.Payment, len(s.payments)),
		outbox:        append([]domain.OutboxMessage(nil), s.outbox...),
		notifications: append([]domain.PaymentNotification(nil), s.notifications...),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.items {
		c.items[k] = append([]domain.OrderItem(nil), v...)
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	return c
}

type Store struct {
	mu    sync.Mutex
	state state
}

func NewStore() *Store {
	return &Store{state: state{
		products: make(map[string]domain.Product),
		orders:   make(map[string]domain.Order),
		items:    make(map[string][]domain.OrderItem),
		payments: make(map[string]domain.Payment),
	}}
}

// txQuerier marks calls made while the store mutex is held by WithinTx.
type txQuerier struct {
	store *Store
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, q domain.Querier) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	defer func() {
		if r := recover(); r != nil {
			s.state = snapshot
			panic(r)
		}
		if err != nil {
			s.state = snapshot
		}
	}()

	return fn(ctx, &txQuerier{store: s})
}

func (s *Store) with(q domain.Querier, fn func(st *state) error) error {
	if tx, ok := q.(*txQuerier); ok && tx.store == s {
		return fn(&s.state)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.state)
}

func (s *Store) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errNoSQL
}

func (s *Store) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errNoSQL
}

func (s *Store) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

func (t *txQuerier) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errNoSQL
}

func (t *txQuerier) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errNoSQL
}

func (t *txQuerier) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

func (s *Store) Products() *ProductRepository           { return &ProductRepository{store: s} }
func (s *Store) Orders() *OrderRepository               { return &OrderRepository{store: s} }
func (s *Store) Payments() *PaymentRepository           { return &PaymentRepository{store: s} }
func (s *Store) Outbox() *OutboxRepository              { return &OutboxRepository{store: s} }
func (s *Store) Notifications() *NotificationRepository { return &NotificationRepository{store: s} }

// AddProduct seeds a product, deriving InStock from StockQuantity.
func (s *Store) AddProduct(p domain.Product) {
	p.InStock = p.StockQuantity > 0
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.products[p.ID] = p
}

// DeleteProduct mirrors ON DELETE SET NULL on order_items.product_id.
func (s *Store) DeleteProduct(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.products, id)
	for orderID, items := range s.state.items {
		for i := range items {
			if items[i].ProductID == id {
				items[i].ProductID = ""
			}
		}
		s.state.items[orderID] = items
	}
}

func (s *Store) Product(id string) (domain.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.products[id]
	return p, ok
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.orders)
}

func (s *Store) PaymentsForOrder(orderID string) []domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Payment
	for _, p := range s.state.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	sortPayments(out)
	return out
}

func (s *Store) OutboxMessages() []domain.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OutboxMessage(nil), s.state.outbox...)
}

func (s *Store) NotificationLog() []domain.PaymentNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PaymentNotification(nil), s.state.notifications...)
}
