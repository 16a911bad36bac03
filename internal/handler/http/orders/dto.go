package orders

import (
	"time"

	"checkout/internal/domain"
)

type OrderItemResponse struct {
	ProductID    *string `json:"product_id"`
	ProductName  string  `json:"product_name"`
	ProductImage string  `json:"product_image,omitempty"`
	Quantity     int     `json:"quantity"`
	UnitPrice    int64   `json:"unit_price"`
	LineTotal    int64   `json:"line_total"`
}

type OrderResponse struct {
	ID              string              `json:"id"`
	OrderNumber     string              `json:"order_number"`
	UserID          string              `json:"user_id,omitempty"`
	Status          domain.OrderStatus  `json:"status"`
	FirstName       string              `json:"first_name"`
	LastName        string              `json:"last_name"`
	Email           string              `json:"email"`
	Phone           string              `json:"phone"`
	ShippingAddress string              `json:"shipping_address"`
	ShippingCity    string              `json:"shipping_city"`
	Notes           string              `json:"notes,omitempty"`
	Subtotal        int64               `json:"subtotal"`
	ShippingCost    int64               `json:"shipping_cost"`
	Total           int64               `json:"total"`
	PaidAt          *time.Time          `json:"paid_at,omitempty"`
	ShippedAt       *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time          `json:"delivered_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	Items           []OrderItemResponse `json:"items"`
}

func NewOrderResponse(o *domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		Status:          o.Status,
		FirstName:       o.Customer.FirstName,
		LastName:        o.Customer.LastName,
		Email:           o.Customer.Email,
		Phone:           o.Customer.Phone,
		ShippingAddress: o.ShippingAddress,
		ShippingCity:    o.ShippingCity,
		Notes:           o.Notes,
		Subtotal:        o.Subtotal,
		ShippingCost:    o.ShippingCost,
		Total:           o.Total,
		PaidAt:          o.PaidAt,
		ShippedAt:       o.ShippedAt,
		DeliveredAt:     o.DeliveredAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Items:           make([]OrderItemResponse, 0, len(o.Items)),
	}
	for _, item := range o.Items {
		var productID *string
		if item.ProductID != "" {
			id := item.ProductID
			productID = &id
		}
		resp.Items = append(resp.Items, OrderItemResponse{
			ProductID:    productID,
			ProductName:  item.ProductName,
			ProductImage: item.ProductImage,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			LineTotal:    item.LineTotal,
		})
	}
	return resp
}

func NewOrderListResponse(orders []domain.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, NewOrderResponse(&orders[i]))
	}
	return out
}
