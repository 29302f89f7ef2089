package orders

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a Store kept in process memory. A transaction holds the
// store-wide write lock and restores a snapshot when fn fails.
type MemoryStore struct {
	mu          sync.RWMutex
	nextProduct int64
	nextOrder   int64
	nextItem    int64
	products    map[int64]Product
	orders      map[int64]Order
	items       map[int64][]OrderItem
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextProduct: 1,
		nextOrder:   1,
		nextItem:    1,
		products:    make(map[int64]Product),
		orders:      make(map[int64]Order),
		items:       make(map[int64][]OrderItem),
	}
}

// AddProduct seeds the catalog.
func (m *MemoryStore) AddProduct(p Product) Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.nextProduct
	m.nextProduct++
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	m.products[p.ID] = p
	return p
}

func (m *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(ctx, &memTx{m: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	nextProduct, nextOrder, nextItem int64
	products                         map[int64]Product
	orders                           map[int64]Order
	items                            map[int64][]OrderItem
}

func (m *MemoryStore) snapshot() memSnapshot {
	s := memSnapshot{
		nextProduct: m.nextProduct,
		nextOrder:   m.nextOrder,
		nextItem:    m.nextItem,
		products:    make(map[int64]Product, len(m.products)),
		orders:      make(map[int64]Order, len(m.orders)),
		items:       make(map[int64][]OrderItem, len(m.items)),
	}
	for k, v := range m.products {
		s.products[k] = v
	}
	for k, v := range m.orders {
		s.orders[k] = v
	}
	for k, v := range m.items {
		s.items[k] = append([]OrderItem(nil), v...)
	}
	return s
}

func (m *MemoryStore) restore(s memSnapshot) {
	m.nextProduct, m.nextOrder, m.nextItem = s.nextProduct, s.nextOrder, s.nextItem
	m.products, m.orders, m.items = s.products, s.orders, s.items
}

func (m *MemoryStore) ListAvailableProducts(ctx context.Context) ([]Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Product, 0, len(m.products))
	for _, p := range m.products {
		if p.Stock > 0 {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetProduct(ctx context.Context, id int64) (Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (m *MemoryStore) ListOrders(ctx context.Context) ([]Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) GetOrder(ctx context.Context, id int64) (Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (m *MemoryStore) ListOrderItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]OrderItem(nil), m.items[orderID]...), nil
}

func (m *MemoryStore) SetCheckoutReference(ctx context.Context, orderID int64, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	o.CheckoutReference = ref
	o.UpdatedAt = time.Now().UTC()
	m.orders[orderID] = o
	return nil
}

// memTx runs with m.mu held by WithTx.
type memTx struct{ m *MemoryStore }

func (t *memTx) LockProduct(ctx context.Context, id int64) (Product, error) {
	p, ok := t.m.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (t *memTx) DecrementStock(ctx context.Context, productID int64, qty int) error {
	p, ok := t.m.products[productID]
	if !ok {
		return ErrProductNotFound
	}
	if p.Stock < qty {
		return &StockError{ProductID: productID, Required: qty, Available: p.Stock}
	}
	p.Stock -= qty
	p.UpdatedAt = time.Now().UTC()
	t.m.products[productID] = p
	return nil
}

func (t *memTx) InsertOrder(ctx context.Context, o *Order) error {
	o.ID = t.m.nextOrder
	t.m.nextOrder++
	o.CreatedAt = time.Now().UTC()
	o.UpdatedAt = o.CreatedAt
	t.m.orders[o.ID] = *o
	return nil
}

func (t *memTx) InsertOrderItem(ctx context.Context, it *OrderItem) error {
	if _, ok := t.m.orders[it.OrderID]; !ok {
		return ErrOrderNotFound
	}
	it.ID = t.m.nextItem
	t.m.nextItem++
	it.CreatedAt = time.Now().UTC()
	t.m.items[it.OrderID] = append(t.m.items[it.OrderID], *it)
	return nil
}

func (t *memTx) LockOrder(ctx context.Context, id int64) (Order, error) {
	o, ok := t.m.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (t *memTx) LockOrderByPaymentReference(ctx context.Context, paymentRef string) (Order, error) {
	if paymentRef == "" {
		return Order{}, ErrOrderNotFound
	}
	var (
		found Order
		ok    bool
	)
	for _, o := range t.m.orders {
		if o.PaymentReference == paymentRef && (!ok || o.ID > found.ID) {
			found, ok = o, true
		}
	}
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return found, nil
}

func (t *memTx) UpdatePayment(ctx context.Context, orderID int64, status Status, paymentStatus, paymentRef string) error {
	o, ok := t.m.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	o.Status = status
	o.PaymentStatus = paymentStatus
	o.PaymentReference = paymentRef
	o.UpdatedAt = time.Now().UTC()
	t.m.orders[orderID] = o
	return nil
}

func (t *memTx) SetRefund(ctx context.Context, orderID int64, p RefundPatch) (bool, error) {
	o, ok := t.m.orders[orderID]
	if !ok {
		return false, ErrOrderNotFound
	}
	if o.RefundReference != "" {
		return false, nil
	}
	at := p.RefundedAt
	amt := p.RefundAmount
	o.Status = p.Status
	o.PaymentStatus = PaymentRefunded
	o.RefundReference = p.RefundReference
	o.RefundedAt = &at
	o.RefundAmount = &amt
	o.RefundStatus = p.RefundStatus
	o.UpdatedAt = time.Now().UTC()
	t.m.orders[orderID] = o
	return true, nil
}
