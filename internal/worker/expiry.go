package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type OrderExpirer interface {
	ExpireStaleOrders(ctx context.Context, ttl time.Duration) (int, error)
}

// ReservationExpiry cancels pending orders whose stock has been held longer
// than ttl, returning the units to the catalog.
type ReservationExpiry struct {
	orders   OrderExpirer
	ttl      time.Duration
	interval time.Duration
	logger   *zap.Logger
}

func NewReservationExpiry(orders OrderExpirer, ttl, interval time.Duration, logger *zap.Logger) *ReservationExpiry {
	return &ReservationExpiry{orders: orders, ttl: ttl, interval: interval, logger: logger}
}

func (w *ReservationExpiry) Enabled() bool {
	return w.ttl > 0 && w.interval > 0
}

// Start sweeps on every tick until ctx is cancelled. A disabled worker
// returns immediately.
func (w *ReservationExpiry) Start(ctx context.Context) error {
	if !w.Enabled() {
		w.logger.Info("Reservation expiry disabled")
		return nil
	}

	w.logger.Info("Starting reservation expiry worker...",
		zap.Duration("ttl", w.ttl), zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Reservation expiry worker stopped.")
			return nil
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

func (w *ReservationExpiry) Sweep(ctx context.Context) int {
	expired, err := w.orders.ExpireStaleOrders(ctx, w.ttl)
	if err != nil {
		w.logger.Error("Reservation sweep failed", zap.Error(err))
		return 0
	}
	if expired > 0 {
		w.logger.Info("Expired stale reservations", zap.Int("orders", expired))
	}
	return expired
}
