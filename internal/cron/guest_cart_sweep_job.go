package cron

import (
	"context"
	"fmt"

	"github.com/charmforge/charmforge-backend/pkg/logger"
	"github.com/charmforge/charmforge-backend/pkg/metrics"
)

// cartSweeper is the slice of the cart gateway the job needs.
type cartSweeper interface {
	SweepExpiredGuestCarts(ctx context.Context) (int, error)
}

// GuestCartSweepJob removes expired guest carts from the local fallback store.
type GuestCartSweepJob struct {
	gateway cartSweeper
	metrics *metrics.SweeperMetrics
	logg    *logger.Logger
}

// NewGuestCartSweepJob builds the sweep job.
func NewGuestCartSweepJob(gateway cartSweeper, sweeperMetrics *metrics.SweeperMetrics, logg *logger.Logger) (*GuestCartSweepJob, error) {
	if gateway == nil {
		return nil, fmt.Errorf("cart gateway required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &GuestCartSweepJob{gateway: gateway, metrics: sweeperMetrics, logg: logg}, nil
}

// Name implements Job.
func (j *GuestCartSweepJob) Name() string {
	return "guest_cart_sweep"
}

// Run implements Job.
func (j *GuestCartSweepJob) Run(ctx context.Context) error {
	removed, err := j.gateway.SweepExpiredGuestCarts(ctx)
	if err != nil {
		return fmt.Errorf("sweep expired guest carts: %w", err)
	}
	j.metrics.AddSwept(removed)
	if removed > 0 {
		ctx = j.logg.WithField(ctx, "removed", removed)
		j.logg.Info(ctx, "expired guest carts removed")
	}
	return nil
}
