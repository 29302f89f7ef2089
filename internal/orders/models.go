package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	ImageURL    string          `json:"image_url,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Order mirrors the orders table. Total is fixed at creation.
type Order struct {
	ID                int64            `json:"id"`
	CustomerName      string           `json:"customer_name"`
	CustomerEmail     string           `json:"customer_email"`
	Total             decimal.Decimal  `json:"total"`
	Status            Status           `json:"status"` // lihat status.go
	CheckoutReference string           `json:"preference_id,omitempty"`
	PaymentReference  string           `json:"payment_id,omitempty"`
	PaymentStatus     string           `json:"payment_status,omitempty"`
	RefundReference   string           `json:"refund_id,omitempty"`
	RefundedAt        *time.Time       `json:"refunded_at,omitempty"`
	RefundAmount      *decimal.Decimal `json:"refund_amount,omitempty"`
	RefundStatus      string           `json:"refund_status,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"` // snapshot harga saat order dibuat
	CreatedAt   time.Time       `json:"created_at"`
}

// LineTotal is price * quantity.
func (it OrderItem) LineTotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

type OrderDetail struct {
	Order
	Items []OrderItem `json:"items"`
}

type ItemInput struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

type CreateOrderInput struct {
	CustomerName  string      `json:"customer_name" validate:"required"`
	CustomerEmail string      `json:"customer_email" validate:"required,email"`
	Items         []ItemInput `json:"items" validate:"required,min=1,dive"`
}

// RefundPatch is the set of columns written by a successful refund.
type RefundPatch struct {
	Status          Status
	RefundReference string
	RefundedAt      time.Time
	RefundAmount    decimal.Decimal
	RefundStatus    string
}

type RefundResult struct {
	OrderID  int64           `json:"order_id"`
	RefundID string          `json:"refund_id"`
	Status   string          `json:"status"`
	Amount   decimal.Decimal `json:"amount"`
	Message  string          `json:"message"`
}

type RefundInfo struct {
	OrderID      int64            `json:"order_id"`
	OrderStatus  Status           `json:"order_status"`
	HasRefund    bool             `json:"has_refund"`
	RefundID     string           `json:"refund_id,omitempty"`
	RefundStatus string           `json:"refund_status,omitempty"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	RefundedAt   *time.Time       `json:"refunded_at,omitempty"`
	Live         bool             `json:"live"`
}

type StatusView struct {
	OrderID       int64  `json:"order_id"`
	Status        Status `json:"status"`
	PaymentStatus string `json:"payment_status"`
	PaymentID     string `json:"payment_id"`
}

type CheckoutResult struct {
	OrderID      int64  `json:"order_id"`
	PreferenceID string `json:"preference_id"`
	InitPoint    string `json:"init_point"`
}
