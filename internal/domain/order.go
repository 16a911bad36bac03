package domain

import "time"

type CustomerInfo struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

func (c CustomerInfo) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

type Order struct {
	ID              string
	OrderNumber     string
	UserID          string
	Status          OrderStatus
	Customer        CustomerInfo
	ShippingAddress string
	ShippingCity    string
	Notes           string
	Subtotal        int64
	ShippingCost    int64
	Total           int64
	PaidAt          *time.Time
	ShippedAt       *time.Time
	DeliveredAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Items           []OrderItem
}

// OrderItem is a snapshot of the product at order time. ProductID is empty
// when the product has since been deleted.
type OrderItem struct {
	ID           string
	OrderID      string
	ProductID    string
	ProductName  string
	ProductImage string
	Quantity     int
	UnitPrice    int64
	LineTotal    int64
	CreatedAt    time.Time
}

// TransitionTo moves the order to next if the status table allows it.
// Timestamps for confirmed, shipped and delivered are written once.
// Releasing stock on cancellation is the caller's job.
func (o *Order) TransitionTo(next OrderStatus, now time.Time) error {
	if err := o.Status.CheckTransition(next); err != nil {
		return err
	}

	switch next {
	case OrderStatusConfirmed:
		o.PaidAt = setOnce(o.PaidAt, now)
	case OrderStatusShipped:
		o.ShippedAt = setOnce(o.ShippedAt, now)
	case OrderStatusDelivered:
		o.DeliveredAt = setOnce(o.DeliveredAt, now)
	}

	o.Status = next
	o.UpdatedAt = now
	return nil
}

func setOnce(current *time.Time, now time.Time) *time.Time {
	if current != nil {
		return current
	}
	t := now
	return &t
}

type OrderFilter struct {
	UserID string
	Status OrderStatus
	Search string
	Limit  int
	Offset int
}
