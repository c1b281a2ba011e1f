package domain

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Batch status values. A batch moves pending -> validated exactly once.
const (
	BatchStatusPending   = "pending"
	BatchStatusValidated = "validated"
)

// Shipping payment status values, driven by the Stripe webhook.
const (
	ShippingPaymentNone            = "none"
	ShippingPaymentRequiresPayment = "requires_payment"
	ShippingPaymentCaptured        = "captured"
)

// DeliveryBatch is a user's accumulated set of items awaiting a single
// consolidated shipment. Rows live in the delivery_batches table.
type DeliveryBatch struct {
	ID                    pgtype.UUID
	UserID                pgtype.UUID
	Status                string
	ShippingCost          decimal.Decimal
	ShippingAddress       *Address
	WooCommerceOrderID    pgtype.Text
	PaymentIntentID       pgtype.Text
	ShippingPaymentStatus string
	PendingOrderRef       pgtype.UUID
	PendingOrderRefAt     pgtype.Timestamptz
	ValidatedAt           pgtype.Timestamptz
	CreatedAt             pgtype.Timestamptz
}

// HasRemoteOrder reports whether a WooCommerce order already exists for the
// batch, which selects the update path of the order submitter.
func (b *DeliveryBatch) HasRemoteOrder() bool {
	return b.WooCommerceOrderID.Valid && b.WooCommerceOrderID.String != ""
}

// IDString returns the batch id in canonical UUID form.
func (b *DeliveryBatch) IDString() string {
	return uuid.UUID(b.ID.Bytes).String()
}

// DeliveryBatchItem is a single line of a batch. Immutable once validation
// begins; read-only input to pricing.
type DeliveryBatchItem struct {
	ID         pgtype.UUID
	BatchID    pgtype.UUID
	ProductID  int64
	Quantity   int32
	TotalPrice decimal.Decimal
}

// Address is the denormalized shipping snapshot attached to a batch at
// creation time.
type Address struct {
	ID           pgtype.UUID
	AddressLine1 string
	AddressLine2 pgtype.Text
	City         string
	State        string
	PostalCode   string
	Country      string
}

// Profile supplies billing/shipping name fields when no richer order exists.
type Profile struct {
	ID        pgtype.UUID
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// FullName joins first and last name, tolerating either being empty.
func (p *Profile) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}
