package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectBatchValidated is published after a batch is finalized.
const SubjectBatchValidated = "boutique.batch.validated"

// BatchValidated is the event payload emitted after a successful validation.
type BatchValidated struct {
	BatchID            string    `json:"batchId"`
	UserID             string    `json:"userId"`
	WooCommerceOrderID string    `json:"woocommerceOrderId"`
	Total              string    `json:"total"`
	ShippingCost       string    `json:"shippingCost"`
	PaymentRequired    bool      `json:"paymentRequired"`
	ValidatedAt        time.Time `json:"validatedAt"`
}

// Publisher emits domain events. Publishing is best-effort: the validation
// flow never fails because an event could not be delivered.
type Publisher interface {
	PublishBatchValidated(event BatchValidated) error
	Close()
}

// NatsPublisher publishes events to a NATS server.
type NatsPublisher struct {
	conn *nats.Conn
}

// Compile-time check that NatsPublisher implements Publisher.
var _ Publisher = (*NatsPublisher)(nil)

// NewNatsPublisher connects to NATS at the given URL.
func NewNatsPublisher(url string) (*NatsPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("boutique-backoffice"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NatsPublisher{conn: conn}, nil
}

// PublishBatchValidated publishes the event on the validated subject.
func (p *NatsPublisher) PublishBatchValidated(event BatchValidated) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.conn.Publish(SubjectBatchValidated, data)
}

// Close drains the connection.
func (p *NatsPublisher) Close() {
	_ = p.conn.Drain()
}

// NoopPublisher drops events; used when no NATS URL is configured.
type NoopPublisher struct{}

// Compile-time check that NoopPublisher implements Publisher.
var _ Publisher = (*NoopPublisher)(nil)

func (NoopPublisher) PublishBatchValidated(BatchValidated) error { return nil }
func (NoopPublisher) Close()                                     {}
