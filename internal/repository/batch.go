package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/maribelle/backoffice/internal/domain"
)

// ErrNotFound is returned when a query matches no rows.
var ErrNotFound = errors.New("repository: not found")

// ErrClaimConflict is returned when a compare-and-swap claim or finalize
// matches no row, meaning another validation attempt got there first.
var ErrClaimConflict = errors.New("repository: batch claim conflict")

const batchColumns = `
	b.id, b.user_id, b.status, b.shipping_cost,
	b.woocommerce_order_id, b.payment_intent_id, b.shipping_payment_status,
	b.pending_order_ref, b.pending_order_ref_at, b.validated_at, b.created_at,
	a.id, a.address_line1, a.address_line2, a.city, a.state, a.postal_code, a.country`

func scanBatch(row pgx.Row) (*domain.DeliveryBatch, error) {
	var b domain.DeliveryBatch
	var addr domain.Address
	var addrID pgtype.UUID
	var line1, city, state, postal, country pgtype.Text

	err := row.Scan(
		&b.ID, &b.UserID, &b.Status, &b.ShippingCost,
		&b.WooCommerceOrderID, &b.PaymentIntentID, &b.ShippingPaymentStatus,
		&b.PendingOrderRef, &b.PendingOrderRefAt, &b.ValidatedAt, &b.CreatedAt,
		&addrID, &line1, &addr.AddressLine2, &city, &state, &postal, &country,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	// The address join is LEFT: a batch created before an address was picked
	// has no snapshot yet.
	if addrID.Valid {
		addr.ID = addrID
		addr.AddressLine1 = line1.String
		addr.City = city.String
		addr.State = state.String
		addr.PostalCode = postal.String
		addr.Country = country.String
		b.ShippingAddress = &addr
	}

	return &b, nil
}

// GetPendingBatch fetches a batch by id, owner, and pending status, joined
// with its shipping address snapshot. The single filter deliberately
// collapses "wrong owner", "wrong id" and "already validated" into one
// not-found result.
func (q *Queries) GetPendingBatch(ctx context.Context, batchID, userID pgtype.UUID) (*domain.DeliveryBatch, error) {
	row := q.pool.QueryRow(ctx, `
		SELECT `+batchColumns+`
		FROM delivery_batches b
		LEFT JOIN addresses a ON a.id = b.shipping_address_id
		WHERE b.id = $1 AND b.user_id = $2 AND b.status = 'pending'`,
		batchID, userID)
	return scanBatch(row)
}

// GetPendingBatchByUser returns the caller's open batch, if any.
func (q *Queries) GetPendingBatchByUser(ctx context.Context, userID pgtype.UUID) (*domain.DeliveryBatch, error) {
	row := q.pool.QueryRow(ctx, `
		SELECT `+batchColumns+`
		FROM delivery_batches b
		LEFT JOIN addresses a ON a.id = b.shipping_address_id
		WHERE b.user_id = $1 AND b.status = 'pending'
		ORDER BY b.created_at DESC
		LIMIT 1`,
		userID)
	return scanBatch(row)
}

// ListBatchItems returns all items of a batch ordered by creation.
func (q *Queries) ListBatchItems(ctx context.Context, batchID pgtype.UUID) ([]domain.DeliveryBatchItem, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT id, batch_id, product_id, quantity, total_price
		FROM delivery_batch_items
		WHERE batch_id = $1
		ORDER BY created_at`,
		batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.DeliveryBatchItem
	for rows.Next() {
		var it domain.DeliveryBatchItem
		if err := rows.Scan(&it.ID, &it.BatchID, &it.ProductID, &it.Quantity, &it.TotalPrice); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetProfile loads the profile row backing billing/shipping name fields.
func (q *Queries) GetProfile(ctx context.Context, userID pgtype.UUID) (*domain.Profile, error) {
	var p domain.Profile
	err := q.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, phone
		FROM profiles
		WHERE id = $1`,
		userID).Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ClaimBatch writes the validation claim before the remote order call.
// The WHERE clause is the concurrency guard: only one caller can move the
// batch from unclaimed-pending to claimed, so a concurrent duplicate
// submission loses here instead of racing at the final update.
func (q *Queries) ClaimBatch(ctx context.Context, batchID, ref pgtype.UUID, paymentIntentID pgtype.Text) error {
	tag, err := q.pool.Exec(ctx, `
		UPDATE delivery_batches
		SET pending_order_ref = $2,
		    pending_order_ref_at = now(),
		    payment_intent_id = COALESCE($3, payment_intent_id),
		    shipping_payment_status = CASE WHEN $3 IS NOT NULL THEN 'requires_payment' ELSE shipping_payment_status END,
		    updated_at = now()
		WHERE id = $1 AND status = 'pending' AND pending_order_ref IS NULL`,
		batchID, ref, paymentIntentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrClaimConflict
	}
	return nil
}

// ReleaseClaim clears a claim after a failed remote call so the batch stays
// pending and the user can retry.
func (q *Queries) ReleaseClaim(ctx context.Context, batchID, ref pgtype.UUID) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE delivery_batches
		SET pending_order_ref = NULL,
		    pending_order_ref_at = NULL,
		    updated_at = now()
		WHERE id = $1 AND pending_order_ref = $2 AND status = 'pending'`,
		batchID, ref)
	return err
}

// FinalizeBatchParams carries the second phase of a validation.
type FinalizeBatchParams struct {
	BatchID            pgtype.UUID
	Ref                pgtype.UUID
	WooCommerceOrderID string
}

// FinalizeBatch marks the batch validated and records the remote order id.
// Guarded by the claim ref so a released-and-reclaimed batch cannot be
// finalized by a stale attempt.
func (q *Queries) FinalizeBatch(ctx context.Context, params FinalizeBatchParams) error {
	tag, err := q.pool.Exec(ctx, `
		UPDATE delivery_batches
		SET status = 'validated',
		    validated_at = now(),
		    woocommerce_order_id = $3,
		    pending_order_ref = NULL,
		    pending_order_ref_at = NULL,
		    updated_at = now()
		WHERE id = $1 AND pending_order_ref = $2 AND status = 'pending'`,
		params.BatchID, params.Ref, params.WooCommerceOrderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrClaimConflict
	}
	return nil
}

// RecordRemoteOrder stores the remote order id on a still-claimed batch as
// soon as the create call returns, before finalization. If the finalize
// write then fails, the reconciler can finish the job from this marker.
func (q *Queries) RecordRemoteOrder(ctx context.Context, batchID, ref pgtype.UUID, wooOrderID string) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE delivery_batches
		SET woocommerce_order_id = $3,
		    updated_at = now()
		WHERE id = $1 AND pending_order_ref = $2 AND status = 'pending'`,
		batchID, ref, wooOrderID)
	return err
}

// MarkShippingPaymentCaptured stamps the batch whose payment intent just
// succeeded. Returns ErrNotFound when no batch carries the intent id.
func (q *Queries) MarkShippingPaymentCaptured(ctx context.Context, paymentIntentID string) (pgtype.UUID, error) {
	var batchID pgtype.UUID
	err := q.pool.QueryRow(ctx, `
		UPDATE delivery_batches
		SET shipping_payment_status = 'captured',
		    updated_at = now()
		WHERE payment_intent_id = $1
		RETURNING id`,
		paymentIntentID).Scan(&batchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return batchID, ErrNotFound
		}
		return batchID, err
	}
	return batchID, nil
}

// ListStuckClaims returns pending batches whose claim is older than the
// cutoff, meaning a validation attempt died between the remote order call
// and finalization.
func (q *Queries) ListStuckClaims(ctx context.Context, olderThan time.Time) ([]domain.DeliveryBatch, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT `+batchColumns+`
		FROM delivery_batches b
		LEFT JOIN addresses a ON a.id = b.shipping_address_id
		WHERE b.status = 'pending'
		  AND b.pending_order_ref IS NOT NULL
		  AND b.pending_order_ref_at < $1
		ORDER BY b.pending_order_ref_at`,
		olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []domain.DeliveryBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, *b)
	}
	return batches, rows.Err()
}
