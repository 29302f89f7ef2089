package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-payments/internal/orders"
)

// Store implements orders.Store on Postgres. Every read hits the database.
type Store struct{ DB *pgxpool.Pool }

var _ orders.Store = (*Store)(nil)

const productColumns = `id, name, description, price, stock, image_url, created_at, updated_at`

const orderColumns = `id, customer_name, customer_email, total, status,
	COALESCE(checkout_reference, ''), COALESCE(payment_reference, ''), COALESCE(payment_status, ''),
	COALESCE(refund_id, ''), refunded_at, refund_amount, COALESCE(refund_status, ''),
	created_at, updated_at`

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) ListAvailableProducts(ctx context.Context) ([]orders.Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+productColumns+` FROM products WHERE stock > 0 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []orders.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, id int64) (orders.Product, error) {
	p, err := scanProduct(s.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Product{}, orders.ErrProductNotFound
	}
	return p, err
}

func (s *Store) ListOrders(ctx context.Context) ([]orders.Order, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []orders.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) GetOrder(ctx context.Context, id int64) (orders.Order, error) {
	return getOrder(ctx, s.DB, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
}

func (s *Store) ListOrderItems(ctx context.Context, orderID int64) ([]orders.OrderItem, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, p.name, oi.quantity, oi.price, oi.created_at
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id=$1
		ORDER BY oi.id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []orders.OrderItem{}
	for rows.Next() {
		var it orders.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.Price, &it.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) SetCheckoutReference(ctx context.Context, orderID int64, ref string) error {
	ct, err := s.DB.Exec(ctx, `UPDATE orders SET checkout_reference=$2, updated_at=now() WHERE id=$1`, orderID, ref)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return orders.ErrOrderNotFound
	}
	return nil
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) LockProduct(ctx context.Context, id int64) (orders.Product, error) {
	p, err := scanProduct(t.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Product{}, orders.ErrProductNotFound
	}
	return p, err
}

func (t *pgTx) DecrementStock(ctx context.Context, productID int64, qty int) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id=$1 AND stock >= $2`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		var stock int
		if err := t.tx.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`, productID).Scan(&stock); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return orders.ErrProductNotFound
			}
			return err
		}
		return &orders.StockError{ProductID: productID, Required: qty, Available: stock}
	}
	return nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *orders.Order) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO orders(customer_name, customer_email, total, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		o.CustomerName, o.CustomerEmail, o.Total, string(o.Status),
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

func (t *pgTx) InsertOrderItem(ctx context.Context, it *orders.OrderItem) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO order_items(order_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		it.OrderID, it.ProductID, it.Quantity, it.Price,
	).Scan(&it.ID, &it.CreatedAt)
}

func (t *pgTx) LockOrder(ctx context.Context, id int64) (orders.Order, error) {
	return getOrder(ctx, t.tx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id)
}

func (t *pgTx) LockOrderByPaymentReference(ctx context.Context, paymentRef string) (orders.Order, error) {
	if paymentRef == "" {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return getOrder(ctx, t.tx, `SELECT `+orderColumns+` FROM orders
		WHERE payment_reference=$1 ORDER BY id DESC LIMIT 1 FOR UPDATE`, paymentRef)
}

func (t *pgTx) UpdatePayment(ctx context.Context, orderID int64, status orders.Status, paymentStatus, paymentRef string) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE orders
		SET status=$2, payment_status=$3, payment_reference=NULLIF($4, ''), updated_at=now()
		WHERE id=$1`, orderID, string(status), paymentStatus, paymentRef)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return orders.ErrOrderNotFound
	}
	return nil
}

func (t *pgTx) SetRefund(ctx context.Context, orderID int64, p orders.RefundPatch) (bool, error) {
	ct, err := t.tx.Exec(ctx, `
		UPDATE orders
		SET status=$2, payment_status=$3, refund_id=$4, refunded_at=$5,
		    refund_amount=$6, refund_status=$7, updated_at=now()
		WHERE id=$1 AND refund_id IS NULL`,
		orderID, string(p.Status), orders.PaymentRefunded, p.RefundReference, p.RefundedAt,
		p.RefundAmount, p.RefundStatus,
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func getOrder(ctx context.Context, q querier, sql string, arg any) (orders.Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, sql, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return o, err
}

func scanProduct(row pgx.Row) (orders.Product, error) {
	var p orders.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanOrder(row pgx.Row) (orders.Order, error) {
	var (
		o          orders.Order
		status     string
		refundedAt *time.Time
		refundAmt  decimal.NullDecimal
	)
	err := row.Scan(&o.ID, &o.CustomerName, &o.CustomerEmail, &o.Total, &status,
		&o.CheckoutReference, &o.PaymentReference, &o.PaymentStatus,
		&o.RefundReference, &refundedAt, &refundAmt, &o.RefundStatus,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return orders.Order{}, err
	}
	o.Status = orders.Status(status)
	o.RefundedAt = refundedAt
	if refundAmt.Valid {
		amt := refundAmt.Decimal
		o.RefundAmount = &amt
	}
	return o, nil
}
