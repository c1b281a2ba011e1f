package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/maribelle/backoffice/internal/domain"
	"github.com/maribelle/backoffice/internal/repository"
	"github.com/maribelle/backoffice/internal/telemetry"
)

// ReconcilerStore is the repository surface the reconciler needs.
type ReconcilerStore interface {
	ListStuckClaims(ctx context.Context, olderThan time.Time) ([]domain.DeliveryBatch, error)
	FinalizeBatch(ctx context.Context, params repository.FinalizeBatchParams) error
	ReleaseClaim(ctx context.Context, batchID, ref pgtype.UUID) error
}

// Reconciler resolves validation claims left behind by crashed or timed-out
// requests. A claim with a recorded remote order id is finalized, because the
// WooCommerce order already exists; a claim without one is released so the
// user can retry.
type Reconciler struct {
	store    ReconcilerStore
	logger   *slog.Logger
	interval time.Duration
	maxAge   time.Duration
}

// NewReconciler creates a reconciler that scans every interval for claims
// older than maxAge.
func NewReconciler(store ReconcilerStore, logger *slog.Logger, interval, maxAge time.Duration) (*Reconciler, error) {
	if store == nil {
		return nil, errors.New("reconciler store is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if maxAge <= 0 {
		maxAge = 5 * time.Minute
	}
	return &Reconciler{
		store:    store,
		logger:   logger,
		interval: interval,
		maxAge:   maxAge,
	}, nil
}

// Run loops until the context is canceled.
func (r *Reconciler) Run(ctx context.Context) {
	r.logger.Info("batch claim reconciler started",
		"interval", r.interval.String(), "max_claim_age", r.maxAge.String())

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("batch claim reconciler stopped")
			return
		case <-ticker.C:
			if err := r.ReconcileOnce(ctx); err != nil {
				r.logger.Error("claim reconciliation pass failed", "error", err)
			}
		}
	}
}

// ReconcileOnce runs a single reconciliation pass.
func (r *Reconciler) ReconcileOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-r.maxAge)
	stuck, err := r.store.ListStuckClaims(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, batch := range stuck {
		batchID := uuidString(batch.ID)

		if batch.HasRemoteOrder() {
			err := r.store.FinalizeBatch(ctx, repository.FinalizeBatchParams{
				BatchID:            batch.ID,
				Ref:                batch.PendingOrderRef,
				WooCommerceOrderID: batch.WooCommerceOrderID.String,
			})
			if err != nil {
				r.logger.Error("failed to finalize stuck claim",
					"batch_id", batchID, "order_id", batch.WooCommerceOrderID.String, "error", err)
				continue
			}
			r.logger.Warn("finalized stuck validation claim",
				"batch_id", batchID, "order_id", batch.WooCommerceOrderID.String)
			r.count("finalized")
			continue
		}

		if err := r.store.ReleaseClaim(ctx, batch.ID, batch.PendingOrderRef); err != nil {
			r.logger.Error("failed to release stuck claim",
				"batch_id", batchID, "error", err)
			continue
		}
		r.logger.Warn("released stuck validation claim", "batch_id", batchID)
		r.count("released")
	}

	return nil
}

func (r *Reconciler) count(outcome string) {
	if m := telemetry.Business; m != nil {
		m.ClaimsReconciled.WithLabelValues(outcome).Inc()
	}
}
