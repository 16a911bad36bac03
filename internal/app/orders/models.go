package orders

import (
	"fmt"
	"net/mail"
	"strings"

	"checkout/internal/domain"
	"checkout/internal/util"
)

type OrderLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CreateOrderRequest struct {
	UserID    string      `json:"-"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Email     string      `json:"email"`
	Phone     string      `json:"phone"`
	Address   string      `json:"address"`
	City      string      `json:"city"`
	Notes     string      `json:"notes"`
	Items     []OrderLine `json:"items"`
}

func (r *CreateOrderRequest) normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Address = strings.TrimSpace(r.Address)
	r.City = strings.TrimSpace(r.City)
	r.Notes = strings.TrimSpace(r.Notes)
}

// Validate checks the request shape only. Product existence and stock are
// checked inside the order transaction.
func (r *CreateOrderRequest) Validate(maxQuantity int) error {
	r.normalize()

	var problems []string
	required := []struct{ name, value string }{
		{"first_name", r.FirstName},
		{"last_name", r.LastName},
		{"email", r.Email},
		{"phone", r.Phone},
		{"address", r.Address},
		{"city", r.City},
	}
	for _, f := range required {
		if f.value == "" {
			problems = append(problems, f.name+" is required")
		}
	}
	if r.Email != "" {
		if addr, err := mail.ParseAddress(r.Email); err != nil || addr.Address != r.Email {
			problems = append(problems, "email is not a valid address")
		}
	}

	if len(r.Items) == 0 {
		problems = append(problems, "items must contain at least one line")
	}
	for i, line := range r.Items {
		if !util.IsUUID(line.ProductID) {
			problems = append(problems, fmt.Sprintf("items[%d].product_id must be a UUID", i))
		}
		if line.Quantity < 1 || line.Quantity > maxQuantity {
			problems = append(problems, fmt.Sprintf("items[%d].quantity must be between 1 and %d", i, maxQuantity))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

func (r *CreateOrderRequest) customer() domain.CustomerInfo {
	return domain.CustomerInfo{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Phone:     r.Phone,
	}
}

func (r *CreateOrderRequest) productIDs() []string {
	seen := make(map[string]struct{}, len(r.Items))
	ids := make([]string, 0, len(r.Items))
	for _, line := range r.Items {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	return ids
}

type Settings struct {
	ShippingCost      int64
	OrderNumberPrefix string
	MaxLineQuantity   int
}

const maxListLimit = 100
