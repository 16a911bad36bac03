package domain

import (
	"fmt"
	"time"
)

type Product struct {
	ID            string
	Name          string
	Price         int64
	StockQuantity int
	InStock       bool
	IsActive      bool
	Images        []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (p *Product) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Reserve decrements stock by qty. inStock always mirrors stockQuantity > 0
// afterwards.
func (p *Product) Reserve(qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrValidation, qty)
	}
	if !p.InStock || p.StockQuantity < qty {
		return fmt.Errorf("%w: product %s has %d, requested %d", ErrInsufficientStock, p.ID, p.StockQuantity, qty)
	}
	p.StockQuantity -= qty
	p.InStock = p.StockQuantity > 0
	return nil
}

func (p *Product) Release(qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrValidation, qty)
	}
	p.StockQuantity += qty
	p.InStock = p.StockQuantity > 0
	return nil
}
