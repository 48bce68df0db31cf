package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// OverdueSweeper periodically flags lendings that are past their due date.
type OverdueSweeper struct {
	lending  *LendingService
	interval time.Duration
	logger   *zap.Logger
}

func NewOverdueSweeper(logger *zap.Logger, lending *LendingService, interval time.Duration) *OverdueSweeper {
	return &OverdueSweeper{
		lending:  lending,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps once and then on every tick until ctx is cancelled.
// A non-positive interval disables the sweeper.
func (w *OverdueSweeper) Run(ctx context.Context) {
	if w.interval <= 0 {
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *OverdueSweeper) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	n, err := w.lending.MarkOverdue(sweepCtx, w.lending.now())
	if err != nil {
		w.logger.Error("overdue sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		w.logger.Info("marked lendings overdue", zap.Int64("count", n))
	}
}
