package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-payments/internal/gateway"
)

const defaultRefundLockTTL = 30 * time.Second

func refundLockKey(orderID int64) string { return fmt.Sprintf("refund:%d", orderID) }

// RefundIdempotencyKey is sent to the gateway so duplicate refund calls for
// one order collapse into a single gateway refund.
func RefundIdempotencyKey(orderID int64) string { return fmt.Sprintf("refund-order-%d", orderID) }

// RequestRefund refunds the whole order (amount == nil) or part of it.
// No transaction is held while the gateway is called: the order is validated
// in one short transaction and the result is persisted in another, guarded by
// refund_id still being null.
func (s *Service) RequestRefund(ctx context.Context, orderID int64, amount *decimal.Decimal) (RefundResult, error) {
	if s.Locker != nil {
		ttl := s.RefundLockTTL
		if ttl <= 0 {
			ttl = defaultRefundLockTTL
		}
		release, ok, err := s.Locker.Acquire(ctx, refundLockKey(orderID), ttl)
		switch {
		case err != nil:
			log.Printf("refund lock order=%d: %v (continuing without lock)", orderID, err)
		case !ok:
			return RefundResult{}, ErrRefundInProgress
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					log.Printf("refund unlock order=%d: %v", orderID, err)
				}
			}()
		}
	}

	// phase A: validate
	var o Order
	err := s.Store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if o, err = tx.LockOrder(ctx, orderID); err != nil {
			return err
		}
		return checkRefundable(o, amount)
	})
	if err != nil {
		return RefundResult{}, err
	}

	// phase B: gateway, no lock held
	ref, err := s.Gateway.CreateRefund(ctx, o.PaymentReference, amount, RefundIdempotencyKey(orderID))
	if err != nil {
		return RefundResult{}, s.refundFailure(ctx, o, err)
	}

	refunded := ref.Amount
	if !refunded.IsPositive() {
		if amount != nil {
			refunded = *amount
		} else {
			refunded = o.Total
		}
	}
	newStatus := StatusPartiallyRefunded
	if refunded.GreaterThanOrEqual(o.Total) {
		newStatus = StatusRefunded
	}
	patch := RefundPatch{
		Status:          newStatus,
		RefundReference: ref.ID,
		RefundedAt:      s.now(),
		RefundAmount:    refunded,
		RefundStatus:    ref.Status,
	}

	// phase C: persist only if nobody else recorded a refund meanwhile
	err = s.Store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		cur, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if cur.RefundReference != "" {
			if cur.RefundReference == patch.RefundReference {
				newStatus = cur.Status
				return nil
			}
			return &AlreadyRefundedError{OrderID: orderID, RefundReference: cur.RefundReference}
		}
		// a settlement notification may have landed first; refunded is terminal
		if cur.Status == StatusRefunded {
			patch.Status = StatusRefunded
			newStatus = StatusRefunded
		}
		ok, err := tx.SetRefund(ctx, orderID, patch)
		if err != nil {
			return err
		}
		if !ok {
			return &AlreadyRefundedError{OrderID: orderID}
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrAlreadyRefunded) {
			log.Printf("refund %s for order=%d accepted by gateway but not persisted: %v", ref.ID, orderID, err)
		}
		return RefundResult{}, err
	}

	s.emit(ctx, EventOrderRefunded, orderID, OrderRefundedPayload{
		OrderID:  orderID,
		RefundID: ref.ID,
		Amount:   &refunded,
		Status:   newStatus,
	})

	msg := "Refund is being processed by the payment provider"
	if ref.Status == RefundApproved {
		msg = "Refund approved"
	}
	return RefundResult{
		OrderID:  orderID,
		RefundID: ref.ID,
		Status:   ref.Status,
		Amount:   refunded,
		Message:  msg,
	}, nil
}

// checkRefundable applies the preconditions in order; the first failure wins.
func checkRefundable(o Order, amount *decimal.Decimal) error {
	if o.PaymentReference == "" {
		return ErrNoAssociatedPayment
	}
	if o.RefundReference != "" || o.Status == StatusRefunded {
		return &AlreadyRefundedError{OrderID: o.ID, RefundReference: o.RefundReference}
	}
	if amount != nil && (!amount.IsPositive() || amount.GreaterThan(o.Total)) {
		return fmt.Errorf("%w: must be greater than 0 and at most %s", ErrInvalidRefundAmount, o.Total.StringFixed(2))
	}
	if amount != nil && !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: at most 2 decimal places", ErrInvalidRefundAmount)
	}
	return nil
}

// refundFailure maps a gateway refusal. A concurrent request that already
// recorded a refund turns the failure into AlreadyRefunded.
func (s *Service) refundFailure(ctx context.Context, o Order, err error) error {
	if cur, gerr := s.Store.GetOrder(ctx, o.ID); gerr == nil && cur.RefundReference != "" {
		return fmt.Errorf("%w: %w", ErrRefundFailed, &AlreadyRefundedError{OrderID: o.ID, RefundReference: cur.RefundReference})
	}

	var ge *gateway.GatewayError
	if !errors.As(err, &ge) {
		return fmt.Errorf("%w: %v", ErrRefundFailed, err)
	}
	switch {
	case ge.Status == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrNotRefundable, ge.Message)
	case ge.Status == http.StatusNotFound:
		return fmt.Errorf("%w: payment %s (check that the access token belongs to the environment the payment was made in)",
			ErrPaymentNotFoundAtGateway, o.PaymentReference)
	case ge.Unauthorized():
		return fmt.Errorf("%w: %w: %s", ErrRefundFailed, ErrGatewayUnauthorized, ge.Message)
	}
	return fmt.Errorf("%w: %s", ErrRefundFailed, ge.Message)
}

// GetRefundInfo returns the refund recorded for the order, refreshed from the
// gateway when possible. A gateway failure falls back to the stored snapshot.
func (s *Service) GetRefundInfo(ctx context.Context, orderID int64) (RefundInfo, error) {
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return RefundInfo{}, err
	}
	info := RefundInfo{
		OrderID:      o.ID,
		OrderStatus:  o.Status,
		HasRefund:    o.RefundReference != "",
		RefundID:     o.RefundReference,
		RefundStatus: o.RefundStatus,
		Amount:       o.RefundAmount,
		RefundedAt:   o.RefundedAt,
	}
	if !info.HasRefund {
		return info, nil
	}

	r, err := s.Gateway.GetRefund(ctx, o.PaymentReference, o.RefundReference)
	if err != nil {
		log.Printf("refund lookup order=%d refund=%s: %v (using stored snapshot)", o.ID, o.RefundReference, err)
		return info, nil
	}
	info.Live = true
	if r.Status != "" {
		info.RefundStatus = r.Status
	}
	if r.Amount.IsPositive() {
		amt := r.Amount
		info.Amount = &amt
	}
	if !r.CreatedAt.IsZero() {
		at := r.CreatedAt
		info.RefundedAt = &at
	}
	return info, nil
}
