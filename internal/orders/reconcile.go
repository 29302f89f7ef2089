package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/ariefcatur/go-storefront-payments/internal/gateway"
)

// Outcome reports what a payment or refund event did to an order.
type Outcome struct {
	OrderID       int64
	Previous      Status
	Status        Status
	PaymentStatus string
	Applied       bool // false when the event was a replay or was stale
}

// HandleWebhook dispatches a parsed gateway notification. Unknown events are
// ignored. Errors for which IsClientError is false are transient and must not
// be acknowledged.
func (s *Service) HandleWebhook(ctx context.Context, ev WebhookEvent) (Outcome, error) {
	switch ev.Kind {
	case EventPayment:
		return s.HandlePaymentEvent(ctx, ev.PaymentID)
	case EventRefund:
		return s.ConfirmRefund(ctx, ev.PaymentID)
	}
	return Outcome{}, nil
}

// HandlePaymentEvent fetches the authoritative payment from the gateway and
// applies its status to the order named by the payment's external reference.
func (s *Service) HandlePaymentEvent(ctx context.Context, paymentID string) (Outcome, error) {
	p, err := s.Gateway.GetPayment(ctx, paymentID)
	if err != nil {
		return Outcome{}, paymentLookupError(paymentID, err)
	}
	orderID, err := ParseExternalReference(p.ExternalReference)
	if err != nil {
		return Outcome{}, err
	}
	if p.ID == "" {
		p.ID = paymentID
	}
	// a refunded payment is settlement of a refund, not a payment status
	if p.Status == PaymentRefunded {
		return s.confirmRefund(ctx, func(ctx context.Context, tx Tx) (Order, error) {
			return tx.LockOrder(ctx, orderID)
		})
	}
	return s.applyPaymentStatus(ctx, orderID, p.ID, p.Status, "webhook")
}

// paymentLookupError classifies a failed payment fetch. A payment the gateway
// does not know is permanent; credential failures stay retryable so the
// notification survives a token rotation.
func paymentLookupError(paymentID string, err error) error {
	var ge *gateway.GatewayError
	if errors.As(err, &ge) {
		switch {
		case ge.Status == http.StatusNotFound:
			return fmt.Errorf("%w: payment %s", ErrPaymentNotFoundAtGateway, paymentID)
		case ge.Unauthorized():
			return fmt.Errorf("fetch payment %s: %w: %w", paymentID, ErrGatewayUnauthorized, err)
		}
	}
	return fmt.Errorf("fetch payment %s: %w", paymentID, err)
}

// SimulatePayment applies the status mapping without asking the gateway.
// Only wired in non-production deployments.
func (s *Service) SimulatePayment(ctx context.Context, orderID int64, paymentStatus string) (Outcome, error) {
	if paymentStatus == "" {
		return Outcome{}, fmt.Errorf("%w: payment_status is required", ErrInvalidInput)
	}
	return s.applyPaymentStatus(ctx, orderID, "", paymentStatus, "simulation")
}

func (s *Service) applyPaymentStatus(ctx context.Context, orderID int64, paymentID, paymentStatus, source string) (Outcome, error) {
	target := MapPaymentStatus(paymentStatus)
	var out Outcome
	err := s.Store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		out = Outcome{OrderID: o.ID, Previous: o.Status, Status: o.Status, PaymentStatus: o.PaymentStatus}

		ref := paymentID
		if ref == "" {
			ref = o.PaymentReference
		}
		if ref == "" {
			ref = fmt.Sprintf("sim-%d", o.ID)
		}

		switch {
		case o.Status == target:
			if o.PaymentStatus == paymentStatus && o.PaymentReference == ref {
				return nil
			}
		case !CanTransition(o.Status, target):
			log.Printf("payment event ignored: order=%d payment=%s status=%s current=%s target=%s",
				o.ID, ref, paymentStatus, o.Status, target)
			return nil
		}

		if err := tx.UpdatePayment(ctx, o.ID, target, paymentStatus, ref); err != nil {
			return err
		}
		out.Status = target
		out.PaymentStatus = paymentStatus
		out.Applied = true
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	if out.Applied {
		s.emit(ctx, EventPaymentUpdated, out.OrderID, PaymentUpdatedPayload{
			OrderID:        out.OrderID,
			PaymentID:      paymentID,
			PaymentStatus:  paymentStatus,
			PreviousStatus: out.Previous,
			Status:         out.Status,
			Source:         source,
		})
	}
	return out, nil
}

// ConfirmRefund records gateway settlement of a refund for the order that owns
// paymentID. It is safe to run before, after or instead of the synchronous
// refund write.
func (s *Service) ConfirmRefund(ctx context.Context, paymentID string) (Outcome, error) {
	return s.confirmRefund(ctx, func(ctx context.Context, tx Tx) (Order, error) {
		return tx.LockOrderByPaymentReference(ctx, paymentID)
	})
}

func (s *Service) confirmRefund(ctx context.Context, lock func(context.Context, Tx) (Order, error)) (Outcome, error) {
	var (
		out   Outcome
		order Order
	)
	err := s.Store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := lock(ctx, tx)
		if err != nil {
			return err
		}
		order = o
		out = Outcome{OrderID: o.ID, Previous: o.Status, Status: o.Status, PaymentStatus: o.PaymentStatus}
		if o.Status == StatusCancelled {
			log.Printf("refund confirmation ignored: order=%d is cancelled", o.ID)
			return nil
		}

		target := StatusRefunded
		// a recorded partial refund stays partial
		if o.RefundAmount != nil && o.RefundAmount.LessThan(o.Total) {
			target = StatusPartiallyRefunded
		}
		if o.Status == target && o.PaymentStatus == PaymentRefunded {
			return nil
		}
		if err := tx.UpdatePayment(ctx, o.ID, target, PaymentRefunded, o.PaymentReference); err != nil {
			return err
		}
		out.Status = target
		out.PaymentStatus = PaymentRefunded
		out.Applied = true
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	if out.Applied {
		s.emit(ctx, EventOrderRefunded, out.OrderID, OrderRefundedPayload{
			OrderID:   out.OrderID,
			RefundID:  order.RefundReference,
			Amount:    order.RefundAmount,
			Status:    out.Status,
			Confirmed: true,
		})
	}
	return out, nil
}

// IsClientError reports whether a webhook failure is the sender's fault and
// must not be retried.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrUnknownExternalReference) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrPaymentNotFoundAtGateway)
}
