package orders

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput             = errors.New("invalid input")
	ErrProductNotFound          = errors.New("product not found")
	ErrInsufficientStock        = errors.New("insufficient stock")
	ErrOrderNotFound            = errors.New("order not found")
	ErrNoAssociatedPayment      = errors.New("order has no associated payment")
	ErrAlreadyRefunded          = errors.New("order already refunded")
	ErrInvalidRefundAmount      = errors.New("invalid refund amount")
	ErrNotRefundable            = errors.New("payment is not refundable")
	ErrPaymentNotFoundAtGateway = errors.New("payment not found at gateway")
	ErrGatewayUnauthorized      = errors.New("gateway rejected credentials")
	ErrRefundFailed             = errors.New("refund failed")
	ErrRefundInProgress         = errors.New("refund already in progress")
	ErrUnknownExternalReference = errors.New("unknown external reference")
	ErrCheckoutFailed           = errors.New("checkout intent failed")
)

// AlreadyRefundedError carries the reference of the refund that blocks a new one.
type AlreadyRefundedError struct {
	OrderID         int64
	RefundReference string
}

func (e *AlreadyRefundedError) Error() string {
	if e.RefundReference == "" {
		return fmt.Sprintf("order %d already refunded", e.OrderID)
	}
	return fmt.Sprintf("order %d already refunded (refund %s)", e.OrderID, e.RefundReference)
}

func (e *AlreadyRefundedError) Is(target error) bool { return target == ErrAlreadyRefunded }

// StockError describes which line failed the reservation.
type StockError struct {
	ProductID int64
	Required  int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: required %d, available %d", e.ProductID, e.Required, e.Available)
}

func (e *StockError) Is(target error) bool { return target == ErrInsufficientStock }
