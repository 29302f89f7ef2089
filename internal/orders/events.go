package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventPaymentUpdated = "PaymentUpdated"
	EventOrderRefunded  = "OrderRefunded"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "storefront-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload tipe per event ----

type ItemPrice struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderCreatedPayload struct {
	OrderID       int64           `json:"order_id"`
	CustomerEmail string          `json:"customer_email"`
	Items         []ItemPrice     `json:"items"`
	Total         decimal.Decimal `json:"total"`
}

type PaymentUpdatedPayload struct {
	OrderID        int64  `json:"order_id"`
	PaymentID      string `json:"payment_id,omitempty"`
	PaymentStatus  string `json:"payment_status"`
	PreviousStatus Status `json:"previous_status"`
	Status         Status `json:"status"`
	Source         string `json:"source"` // webhook | simulation
}

type OrderRefundedPayload struct {
	OrderID   int64            `json:"order_id"`
	RefundID  string           `json:"refund_id,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Status    Status           `json:"status"`
	Confirmed bool             `json:"confirmed"` // true when settled by webhook
}
