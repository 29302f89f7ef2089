package orders

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-payments/internal/gateway"
)

// Store is the transactional Order/Product storage. Reads outside WithTx see
// committed data only; every mutation goes through a Tx.
type Store interface {
	// WithTx runs fn in one transaction. Any error from fn rolls it back.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	ListAvailableProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListOrders(ctx context.Context) ([]Order, error)
	GetOrder(ctx context.Context, id int64) (Order, error)
	ListOrderItems(ctx context.Context, orderID int64) ([]OrderItem, error)
	SetCheckoutReference(ctx context.Context, orderID int64, ref string) error
}

// Tx is the set of row-level operations available inside a transaction.
// Lock* methods hold the row until the transaction ends.
type Tx interface {
	LockProduct(ctx context.Context, id int64) (Product, error)
	// DecrementStock fails with ErrInsufficientStock instead of driving stock below zero.
	DecrementStock(ctx context.Context, productID int64, qty int) error
	InsertOrder(ctx context.Context, o *Order) error
	InsertOrderItem(ctx context.Context, it *OrderItem) error

	LockOrder(ctx context.Context, id int64) (Order, error)
	LockOrderByPaymentReference(ctx context.Context, paymentRef string) (Order, error)
	UpdatePayment(ctx context.Context, orderID int64, status Status, paymentStatus, paymentRef string) error
	// SetRefund writes the refund columns only while refund_id is still null
	// and reports whether the row was updated.
	SetRefund(ctx context.Context, orderID int64, p RefundPatch) (bool, error)
}

// Gateway is the payment provider as seen by the service.
type Gateway interface {
	CreateCheckoutIntent(ctx context.Context, req gateway.CheckoutRequest) (gateway.CheckoutIntent, error)
	GetPayment(ctx context.Context, paymentID string) (gateway.Payment, error)
	CreateRefund(ctx context.Context, paymentID string, amount *decimal.Decimal, idempotencyKey string) (gateway.Refund, error)
	GetRefund(ctx context.Context, paymentID, refundID string) (gateway.Refund, error)
}

// Locker serialises work on one key across processes.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}

// Notifier receives committed domain events.
type Notifier interface {
	Notify(ctx context.Context, env Envelope)
}
