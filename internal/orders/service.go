package orders

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// CheckoutConfig carries the store-side values sent with every checkout intent.
type CheckoutConfig struct {
	Currency       string
	FrontendURL    string // return URL base
	WebhookBaseURL string // notification URL base
}

// Service is the order ledger, the payment reconciliation engine and the
// refund protocol. Store and Gateway are required; Locker and Events may be nil.
type Service struct {
	Store          Store
	Gateway        Gateway
	Locker         Locker
	Events         Notifier
	CheckoutConfig CheckoutConfig
	RefundLockTTL  time.Duration
	Producer       string
	Now            func() time.Time
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) emit(ctx context.Context, eventType string, orderID int64, payload any) {
	if s.Events == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		log.Printf("event %s order=%d: encode payload: %v", eventType, orderID, err)
		return
	}
	s.Events.Notify(ctx, Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    s.now(),
		Producer:      s.Producer,
		TraceID:       TraceID(ctx),
		CorrelationID: string(PartitionKey(orderID)),
		Payload:       b,
	})
}

type traceKey struct{}

// WithTraceID stores the request id so emitted events can carry it.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func TraceID(ctx context.Context) string {
	v, _ := ctx.Value(traceKey{}).(string)
	return v
}

func joinURL(base, path string) string {
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + path
}
