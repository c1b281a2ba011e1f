package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/maribelle/backoffice/internal/billing"
	"github.com/maribelle/backoffice/internal/commerce"
	"github.com/maribelle/backoffice/internal/domain"
	"github.com/maribelle/backoffice/internal/events"
	"github.com/maribelle/backoffice/internal/repository"
	"github.com/maribelle/backoffice/internal/telemetry"
)

// BatchStore is the repository surface the validation flow needs.
type BatchStore interface {
	GetPendingBatch(ctx context.Context, batchID, userID pgtype.UUID) (*domain.DeliveryBatch, error)
	GetPendingBatchByUser(ctx context.Context, userID pgtype.UUID) (*domain.DeliveryBatch, error)
	ListBatchItems(ctx context.Context, batchID pgtype.UUID) ([]domain.DeliveryBatchItem, error)
	GetProfile(ctx context.Context, userID pgtype.UUID) (*domain.Profile, error)
	ClaimBatch(ctx context.Context, batchID, ref pgtype.UUID, paymentIntentID pgtype.Text) error
	ReleaseClaim(ctx context.Context, batchID, ref pgtype.UUID) error
	RecordRemoteOrder(ctx context.Context, batchID, ref pgtype.UUID, wooOrderID string) error
	FinalizeBatch(ctx context.Context, params repository.FinalizeBatchParams) error
}

// OrderAPI is the WooCommerce surface the order submitter needs.
type OrderAPI interface {
	CreateOrder(ctx context.Context, order commerce.CreateOrderRequest) (*commerce.Order, error)
	UpdateOrder(ctx context.Context, orderID string, update commerce.UpdateOrderRequest) (*commerce.Order, error)
}

// ValidationResult is returned to the frontend after a successful validation.
type ValidationResult struct {
	BatchID            string
	WooCommerceOrderID string
	OrderNumber        string
	Subtotal           decimal.Decimal
	ShippingCost       decimal.Decimal
	Total              decimal.Decimal
	PaymentRequired    bool
	PaymentIntentID    string
	ClientSecret       string
}

// PendingBatchView is the read model for the caller's open batch.
type PendingBatchView struct {
	Batch  *domain.DeliveryBatch
	Items  []domain.DeliveryBatchItem
	Totals Totals
}

// BatchValidationService validates delivery batches and submits them to
// WooCommerce as orders.
type BatchValidationService interface {
	// ValidateBatch runs the full validation flow for the caller's batch:
	// load and authorize, price, create the shipping payment intent when one
	// is needed, claim the batch, create or update the remote order, then
	// finalize. The batch stays pending whenever the remote call fails.
	ValidateBatch(ctx context.Context, user domain.AuthUser, batchID string) (*ValidationResult, error)

	// PendingBatch returns the caller's open batch with items and totals.
	PendingBatch(ctx context.Context, user domain.AuthUser) (*PendingBatchView, error)
}

type batchValidationService struct {
	store   BatchStore
	orders  OrderAPI
	billing billing.Provider // nil when no payment provider is configured
	events  events.Publisher
	logger  *slog.Logger
}

// NewBatchValidationService creates the batch validation service. The billing
// provider may be nil; validation then skips payment intents entirely.
func NewBatchValidationService(store BatchStore, orders OrderAPI, provider billing.Provider, publisher events.Publisher, logger *slog.Logger) (BatchValidationService, error) {
	if store == nil {
		return nil, errors.New("batch store is required")
	}
	if orders == nil {
		return nil, errors.New("order API is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &batchValidationService{
		store:   store,
		orders:  orders,
		billing: provider,
		events:  publisher,
		logger:  logger,
	}, nil
}

func (s *batchValidationService) ValidateBatch(ctx context.Context, user domain.AuthUser, batchID string) (*ValidationResult, error) {
	const op = "batch_validation.validate"

	userID, err := parseUUID(user.ID)
	if err != nil {
		return nil, domain.Unauthorized(op, "Unauthorized")
	}
	// A malformed id gets the same answer as a missing one.
	bid, err := parseUUID(batchID)
	if err != nil {
		return nil, ErrBatchNotFound
	}

	batch, err := s.store.GetPendingBatch(ctx, bid, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, domain.Internal(err, op, "database operation failed")
	}

	items, err := s.store.ListBatchItems(ctx, bid)
	if err != nil {
		return nil, domain.Internal(err, op, "database operation failed")
	}
	if len(items) == 0 {
		return nil, ErrEmptyBatch
	}
	if !batch.HasRemoteOrder() && batch.ShippingAddress == nil {
		return nil, ErrNoShippingAddress
	}

	totals := ComputeTotals(items, batch.ShippingCost)

	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, domain.Internal(err, op, "database operation failed")
	}

	intent, err := s.ensurePaymentIntent(ctx, batch, totals, profile, user, batchID)
	if err != nil {
		return nil, err
	}

	ref := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	var intentID pgtype.Text
	if intent != nil {
		intentID = pgtype.Text{String: intent.ID, Valid: true}
	}
	if err := s.store.ClaimBatch(ctx, bid, ref, intentID); err != nil {
		if errors.Is(err, repository.ErrClaimConflict) {
			return nil, ErrBatchClaimed
		}
		return nil, domain.Internal(err, op, "database operation failed")
	}

	order, created, err := s.submitOrder(ctx, batch, items, totals, profile, intent)
	if err != nil {
		s.releaseClaim(ctx, bid, ref)
		return nil, err
	}
	orderID := strconv.FormatInt(order.ID, 10)

	if created {
		// Persist the remote id while the claim is held. If the finalize
		// below never lands, the reconciler finishes from this marker
		// instead of releasing the claim and orphaning the order.
		if err := s.store.RecordRemoteOrder(ctx, bid, ref, orderID); err != nil {
			s.logger.Error("failed to record remote order id",
				"batch_id", batchID, "order_id", orderID, "error", err)
		}
	}

	if err := s.store.FinalizeBatch(ctx, repository.FinalizeBatchParams{
		BatchID:            bid,
		Ref:                ref,
		WooCommerceOrderID: orderID,
	}); err != nil {
		s.logger.Error("failed to finalize batch after order submission",
			"batch_id", batchID, "order_id", orderID, "error", err)
		return nil, domain.Internal(err, op, "database operation failed")
	}

	path := "update"
	if created {
		path = "create"
	}
	if m := telemetry.Business; m != nil {
		m.BatchValidations.WithLabelValues(path).Inc()
	}

	s.publishValidated(batch, user, totals, orderID, intent != nil)

	result := &ValidationResult{
		BatchID:            batchID,
		WooCommerceOrderID: orderID,
		OrderNumber:        order.Number,
		Subtotal:           totals.Subtotal,
		ShippingCost:       totals.ShippingCost,
		Total:              totals.Total,
		PaymentRequired:    intent != nil,
	}
	if intent != nil {
		result.PaymentIntentID = intent.ID
		result.ClientSecret = intent.ClientSecret
	}

	s.logger.Info("delivery batch validated",
		"batch_id", batchID,
		"order_id", orderID,
		"path", path,
		"total", totals.Total.StringFixed(2),
		"payment_required", intent != nil)

	return result, nil
}

func (s *batchValidationService) PendingBatch(ctx context.Context, user domain.AuthUser) (*PendingBatchView, error) {
	const op = "batch_validation.pending"

	userID, err := parseUUID(user.ID)
	if err != nil {
		return nil, domain.Unauthorized(op, "Unauthorized")
	}

	batch, err := s.store.GetPendingBatchByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, domain.Internal(err, op, "database operation failed")
	}

	items, err := s.store.ListBatchItems(ctx, batch.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "database operation failed")
	}

	return &PendingBatchView{
		Batch:  batch,
		Items:  items,
		Totals: ComputeTotals(items, batch.ShippingCost),
	}, nil
}

// ensurePaymentIntent returns the intent backing the shipping charge, or nil
// when no payment is needed. An intent already attached to the batch is
// fetched again for its client secret so a retried validation does not mint
// a second charge.
func (s *batchValidationService) ensurePaymentIntent(ctx context.Context, batch *domain.DeliveryBatch, totals Totals, profile *domain.Profile, user domain.AuthUser, batchID string) (*billing.PaymentIntent, error) {
	// The update path never charges: an existing remote order already settled
	// its shipping when it was first created.
	if s.billing == nil || batch.HasRemoteOrder() || !totals.ShippingCost.IsPositive() {
		return nil, nil
	}

	if batch.PaymentIntentID.Valid && batch.PaymentIntentID.String != "" {
		intent, err := s.billing.GetPaymentIntent(ctx, batch.PaymentIntentID.String)
		if err == nil {
			return intent, nil
		}
		s.logger.Warn("stored payment intent could not be fetched, creating a new one",
			"batch_id", batchID, "payment_intent_id", batch.PaymentIntentID.String, "error", err)
	}

	intent, err := s.billing.CreatePaymentIntent(ctx, billing.CreatePaymentIntentParams{
		AmountCents:   totals.ShippingCostCents(),
		Currency:      "eur",
		CustomerEmail: profile.Email,
		Description:   "Shipping for delivery batch " + batchID,
		Metadata: map[string]string{
			"user_id":  user.ID,
			"batch_id": batchID,
		},
		IdempotencyKey: "batch-shipping-" + batchID,
	})
	if err != nil {
		return nil, err
	}
	if m := telemetry.Business; m != nil {
		m.PaymentIntents.Inc()
	}
	return intent, nil
}

// submitOrder creates or updates the WooCommerce order for the batch.
// Returns the order and whether it was newly created.
func (s *batchValidationService) submitOrder(ctx context.Context, batch *domain.DeliveryBatch, items []domain.DeliveryBatchItem, totals Totals, profile *domain.Profile, intent *billing.PaymentIntent) (*commerce.Order, bool, error) {
	const op = "batch_validation.submit_order"

	lineItems := make([]commerce.LineItem, 0, len(items))
	for _, it := range items {
		lineItems = append(lineItems, commerce.LineItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Total:     it.TotalPrice.StringFixed(2),
		})
	}

	meta := []commerce.MetaData{
		{Key: "_supabase_batch_id", Value: uuidString(batch.ID)},
		{Key: "_batch_validated_at", Value: time.Now().UTC().Format(time.RFC3339)},
	}

	if batch.HasRemoteOrder() {
		update := commerce.UpdateOrderRequest{
			Status:    "processing",
			LineItems: lineItems,
			MetaData:  meta,
		}
		order, err := s.orders.UpdateOrder(ctx, batch.WooCommerceOrderID.String, update)
		if err != nil {
			return nil, false, wrapRemoteError(err, op)
		}
		return order, false, nil
	}

	addr := batch.ShippingAddress
	contact := &commerce.Contact{
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		Address1:  addr.AddressLine1,
		Address2:  addr.AddressLine2.String,
		City:      addr.City,
		State:     addr.State,
		Postcode:  addr.PostalCode,
		Country:   addr.Country,
		Email:     profile.Email,
		Phone:     profile.Phone,
	}

	create := commerce.CreateOrderRequest{
		Status:    "processing",
		Currency:  "EUR",
		SetPaid:   intent == nil,
		Billing:   contact,
		Shipping:  contact,
		LineItems: lineItems,
		MetaData: append(meta,
			commerce.MetaData{Key: "_supabase_user_id", Value: uuidString(batch.UserID)},
		),
	}
	if totals.ShippingCost.IsPositive() {
		create.ShippingLines = []commerce.ShippingLine{{
			MethodID:    "flat_rate",
			MethodTitle: "Livraison",
			Total:       totals.ShippingCost.StringFixed(2),
		}}
	}
	if intent != nil {
		create.MetaData = append(create.MetaData,
			commerce.MetaData{Key: "_stripe_payment_intent_id", Value: intent.ID})
	}

	order, err := s.orders.CreateOrder(ctx, create)
	if err != nil {
		return nil, false, wrapRemoteError(err, op)
	}
	return order, true, nil
}

func (s *batchValidationService) publishValidated(batch *domain.DeliveryBatch, user domain.AuthUser, totals Totals, orderID string, paymentRequired bool) {
	event := events.BatchValidated{
		BatchID:            uuidString(batch.ID),
		UserID:             user.ID,
		WooCommerceOrderID: orderID,
		Total:              totals.Total.StringFixed(2),
		ShippingCost:       totals.ShippingCost.StringFixed(2),
		PaymentRequired:    paymentRequired,
		ValidatedAt:        time.Now().UTC(),
	}
	if err := s.events.PublishBatchValidated(event); err != nil {
		s.logger.Warn("failed to publish batch validated event",
			"batch_id", event.BatchID, "error", err)
	}
}

// releaseClaim runs on a detached context: the claim must be cleared even
// when the request that failed has already been canceled.
func (s *batchValidationService) releaseClaim(ctx context.Context, batchID, ref pgtype.UUID) {
	ctx = context.WithoutCancel(ctx)
	if err := s.store.ReleaseClaim(ctx, batchID, ref); err != nil {
		s.logger.Error("failed to release batch claim",
			"batch_id", uuidString(batchID), "error", err)
	}
}

// wrapRemoteError surfaces a WooCommerce error body verbatim so the
// back-office UI can show exactly what the store rejected.
func wrapRemoteError(err error, op string) error {
	var remote *commerce.RemoteError
	if errors.As(err, &remote) {
		return &domain.Error{
			Code:    domain.EUPSTREAM,
			Message: remote.Body,
			Op:      op,
			Err:     err,
		}
	}
	return domain.Upstream(err, op, "order backend request failed")
}

func parseUUID(s string) (pgtype.UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}, err
	}
	return pgtype.UUID{Bytes: u, Valid: true}, nil
}

func uuidString(u pgtype.UUID) string {
	return uuid.UUID(u.Bytes).String()
}
