package domain

import (
	"fmt"
	"strings"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var AllOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	if _, err := status.next(); err != nil {
		return "", err
	}
	return status, nil
}

// next is the single source of truth for the order lifecycle.
func (s OrderStatus) next() ([]OrderStatus, error) {
	switch s {
	case OrderStatusPending:
		return []OrderStatus{OrderStatusConfirmed, OrderStatusCancelled}, nil
	case OrderStatusConfirmed:
		return []OrderStatus{OrderStatusProcessing, OrderStatusCancelled}, nil
	case OrderStatusProcessing:
		return []OrderStatus{OrderStatusShipped, OrderStatusCancelled}, nil
	case OrderStatusShipped:
		return []OrderStatus{OrderStatusDelivered}, nil
	case OrderStatusDelivered, OrderStatusCancelled:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, string(s))
	}
}

func (s OrderStatus) Valid() bool {
	_, err := s.next()
	return err == nil
}

func (s OrderStatus) IsTerminal() bool {
	allowed, err := s.next()
	return err == nil && len(allowed) == 0
}

func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	return s.CheckTransition(target) == nil
}

func (s OrderStatus) CheckTransition(target OrderStatus) error {
	allowed, err := s.next()
	if err != nil {
		return err
	}
	if !target.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, string(target))
	}
	for _, candidate := range allowed {
		if candidate == target {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, target)
}
