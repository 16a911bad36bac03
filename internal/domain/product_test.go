package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduct_ReserveRelease(t *testing.T) {
	t.Parallel()

	p := &Product{ID: "p1", StockQuantity: 3, InStock: true, IsActive: true}

	require.NoError(t, p.Reserve(2))
	assert.Equal(t, 1, p.StockQuantity)
	assert.True(t, p.InStock)

	require.NoError(t, p.Reserve(1))
	assert.Equal(t, 0, p.StockQuantity)
	assert.False(t, p.InStock)

	assert.ErrorIs(t, p.Reserve(1), ErrInsufficientStock)
	assert.Equal(t, 0, p.StockQuantity)

	require.NoError(t, p.Release(2))
	assert.Equal(t, 2, p.StockQuantity)
	assert.True(t, p.InStock)
}

func TestProduct_RejectsNonPositiveQuantity(t *testing.T) {
	t.Parallel()

	p := &Product{ID: "p1", StockQuantity: 3, InStock: true}
	assert.ErrorIs(t, p.Reserve(0), ErrValidation)
	assert.ErrorIs(t, p.Release(-1), ErrValidation)
	assert.Equal(t, 3, p.StockQuantity)
}

func TestProduct_ReserveRespectsInStockFlag(t *testing.T) {
	t.Parallel()

	p := &Product{ID: "p1", StockQuantity: 5, InStock: false}
	assert.ErrorIs(t, p.Reserve(1), ErrInsufficientStock)
}
