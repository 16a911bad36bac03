package domain

import "time"

const (
	AggregateOrder   = "order"
	AggregatePayment = "payment"

	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventPaymentCompleted   = "payment.completed"
	EventPaymentFailed      = "payment.failed"
)

type OrderCreatedEvent struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      string    `json:"user_id,omitempty"`
	Total       int64     `json:"total"`
	ItemCount   int       `json:"item_count"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type OrderStatusChangedEvent struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Timestamp   time.Time `json:"timestamp"`
}

type PaymentStatusEvent struct {
	PaymentID     string    `json:"payment_id"`
	OrderID       string    `json:"order_id"`
	TransactionID string    `json:"transaction_id"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
