package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"checkout/internal/domain"
	"checkout/internal/util"
)

type Topics struct {
	OrderEvents   string
	PaymentEvents string
}

// NewMessage serializes event into a pending outbox row keyed by the aggregate id,
// so all events of one order land on the same partition.
func NewMessage(topic, aggregateType, aggregateID, messageType string, event any, now time.Time) (*domain.OutboxMessage, error) {
	payload, err := json.Marshal(envelope{Type: messageType, OccurredAt: now, Data: event})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", messageType, err)
	}
	return &domain.OutboxMessage{
		ID:            util.GenerateUUID(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		MessageType:   messageType,
		Topic:         topic,
		Key:           aggregateID,
		Payload:       payload,
		Status:        domain.OutboxStatusPending,
		CreatedAt:     now,
	}, nil
}

type envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

func OrderStatusChanged(topic string, order *domain.Order, from domain.OrderStatus, now time.Time) (*domain.OutboxMessage, error) {
	return NewMessage(topic, domain.AggregateOrder, order.ID, domain.EventOrderStatusChanged, domain.OrderStatusChangedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		From:        string(from),
		To:          string(order.Status),
		Timestamp:   now,
	}, now)
}

func PaymentStatusChanged(topic string, p *domain.Payment, now time.Time) (*domain.OutboxMessage, error) {
	messageType := domain.EventPaymentFailed
	if p.Status == domain.PaymentStatusCompleted {
		messageType = domain.EventPaymentCompleted
	}
	// keyed by order so payment and order events stay ordered together
	return NewMessage(topic, domain.AggregatePayment, p.OrderID, messageType, domain.PaymentStatusEvent{
		PaymentID:     p.ID,
		OrderID:       p.OrderID,
		TransactionID: p.TransactionID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        string(p.Status),
		Reason:        p.FailureReason,
		Timestamp:     now,
	}, now)
}
