package service

import (
	"context"
	"time"

	"tienda-pos/internal/repository"

	"go.uber.org/zap"
)

// Reconciler periodically re-derives sale settlement fields from the
// payment log. The per-payment transaction keeps them consistent in the
// normal path; this job heals rows touched by manual intervention or
// partial restores.
type Reconciler struct {
	saleRepo repository.SaleRepository
	interval time.Duration
	logger   *zap.Logger
}

// NewReconciler creates a new settlement reconciler
func NewReconciler(saleRepo repository.SaleRepository, interval time.Duration, logger *zap.Logger) *Reconciler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Reconciler{saleRepo: saleRepo, interval: interval, logger: logger}
}

// Start runs the reconcile loop until the context is cancelled. It performs
// one pass immediately on startup.
func (r *Reconciler) Start(ctx context.Context) {
	go func() {
		r.runOnce(ctx)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				r.logger.Info("settlement reconciler stopped")
				return
			case <-ticker.C:
				r.runOnce(ctx)
			}
		}
	}()
}

func (r *Reconciler) runOnce(ctx context.Context) {
	healed, err := r.saleRepo.ReconcileSettlements(ctx)
	if err != nil {
		r.logger.Error("settlement reconcile pass failed", zap.Error(err))
		return
	}
	if healed > 0 {
		r.logger.Warn("settlement drift corrected", zap.Int64("sales", healed))
	} else {
		r.logger.Debug("settlement reconcile pass clean")
	}
}
