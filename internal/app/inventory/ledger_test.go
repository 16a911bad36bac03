package inventory

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"checkout/internal/domain"
	"checkout/internal/metrics"
	"checkout/internal/repository/memory"
)

func newTestLedger(t *testing.T, stock int) (*memory.Store, Ledger) {
	t.Helper()
	store := memory.NewStore()
	store.AddProduct(domain.Product{ID: "p1", Name: "Basket", Price: 5000, StockQuantity: stock, IsActive: true})
	return store, NewLedger(store.Products(), metrics.NewUnregistered(), zap.NewNop())
}

func TestLedger_ReserveAndRelease(t *testing.T) {
	t.Parallel()

	store, l := newTestLedger(t, 3)
	ctx := context.Background()

	p, err := l.Reserve(ctx, store, "p1", 3)
	require.NoError(t, err)
	assert.Equal(t, 0, p.StockQuantity)
	assert.False(t, p.InStock)

	_, err = l.Reserve(ctx, store, "p1", 1)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	p, err = l.Release(ctx, store, "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, p.StockQuantity)
	assert.True(t, p.InStock)
}

func TestLedger_RejectsBadInput(t *testing.T) {
	t.Parallel()

	store, l := newTestLedger(t, 3)
	ctx := context.Background()

	_, err := l.Reserve(ctx, store, "p1", 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = l.Release(ctx, store, "p1", -2)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = l.Reserve(ctx, store, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	p, _ := store.Product("p1")
	assert.Equal(t, 3, p.StockQuantity)
}

func TestLedger_InvariantHoldsUnderRandomSequences(t *testing.T) {
	t.Parallel()

	store, l := newTestLedger(t, 5)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		qty := rng.Intn(4) + 1
		if rng.Intn(2) == 0 {
			_, _ = l.Reserve(ctx, store, "p1", qty)
		} else {
			_, _ = l.Release(ctx, store, "p1", qty)
		}
		p, _ := store.Product("p1")
		require.GreaterOrEqual(t, p.StockQuantity, 0)
		require.Equal(t, p.StockQuantity > 0, p.InStock)
	}
}

func TestLedger_ConcurrentReservationsNeverOversell(t *testing.T) {
	t.Parallel()

	store, l := newTestLedger(t, 10)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
				_, err := l.Reserve(ctx, q, "p1", 1)
				return err
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	p, _ := store.Product("p1")
	assert.Equal(t, 0, p.StockQuantity)
	assert.False(t, p.InStock)
}
