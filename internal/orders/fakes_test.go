package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-payments/internal/gateway"
)

// fakeGateway behaves like the provider: one refund per payment, a second
// one is refused with 400.
type fakeGateway struct {
	mu sync.Mutex

	payments map[string]gateway.Payment
	refunds  map[string]gateway.Refund // by payment id

	checkouts   []gateway.CheckoutRequest
	checkoutErr error

	refundCalls   int
	refundOK      int
	refundErr     error
	refundStatus  string
	refundDelay   time.Duration
	onRefund      func() // runs after the gateway accepted a refund
	idemKeys      []string
	getRefundErr  error
	getPaymentErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		payments:     map[string]gateway.Payment{},
		refunds:      map[string]gateway.Refund{},
		refundStatus: RefundApproved,
	}
}

func (g *fakeGateway) CreateCheckoutIntent(ctx context.Context, req gateway.CheckoutRequest) (gateway.CheckoutIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkouts = append(g.checkouts, req)
	if g.checkoutErr != nil {
		return gateway.CheckoutIntent{}, g.checkoutErr
	}
	id := fmt.Sprintf("pref-%s", req.ExternalReference)
	return gateway.CheckoutIntent{ID: id, RedirectURL: "https://pay.example/checkout/" + id}, nil
}

func (g *fakeGateway) GetPayment(ctx context.Context, paymentID string) (gateway.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.getPaymentErr != nil {
		return gateway.Payment{}, g.getPaymentErr
	}
	p, ok := g.payments[paymentID]
	if !ok {
		return gateway.Payment{}, &gateway.GatewayError{Status: http.StatusNotFound, Message: "payment not found"}
	}
	return p, nil
}

func (g *fakeGateway) setPayment(p gateway.Payment) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[p.ID] = p
}

func (g *fakeGateway) CreateRefund(ctx context.Context, paymentID string, amount *decimal.Decimal, idempotencyKey string) (gateway.Refund, error) {
	if g.refundDelay > 0 {
		time.Sleep(g.refundDelay)
	}
	g.mu.Lock()
	g.refundCalls++
	g.idemKeys = append(g.idemKeys, idempotencyKey)
	if g.refundErr != nil {
		err := g.refundErr
		g.mu.Unlock()
		return gateway.Refund{}, err
	}
	if _, ok := g.refunds[paymentID]; ok {
		g.mu.Unlock()
		return gateway.Refund{}, &gateway.GatewayError{Status: http.StatusBadRequest, Message: "payment already refunded"}
	}
	r := gateway.Refund{
		ID:        fmt.Sprintf("rf-%s", paymentID),
		Status:    g.refundStatus,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if amount != nil {
		r.Amount = *amount
	} else if p, ok := g.payments[paymentID]; ok {
		r.Amount = p.Amount
	}
	g.refunds[paymentID] = r
	g.refundOK++
	hook := g.onRefund
	g.mu.Unlock()

	if hook != nil {
		hook()
	}
	return r, nil
}

func (g *fakeGateway) GetRefund(ctx context.Context, paymentID, refundID string) (gateway.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.getRefundErr != nil {
		return gateway.Refund{}, g.getRefundErr
	}
	r, ok := g.refunds[paymentID]
	if !ok || r.ID != refundID {
		return gateway.Refund{}, &gateway.GatewayError{Status: http.StatusNotFound, Message: "refund not found"}
	}
	return r, nil
}

func (g *fakeGateway) counts() (calls, ok int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refundCalls, g.refundOK
}

type recordedEvents struct {
	mu   sync.Mutex
	envs []Envelope
}

func (r *recordedEvents) Notify(ctx context.Context, env Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
}

func (r *recordedEvents) ofType(t string) []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Envelope
	for _, e := range r.envs {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
}

func (l *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		return nil
	}, true, nil
}

type fixture struct {
	svc    *Service
	store  *MemoryStore
	gw     *fakeGateway
	events *recordedEvents
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  NewMemoryStore(),
		gw:     newFakeGateway(),
		events: &recordedEvents{},
	}
	f.svc = &Service{
		Store:   f.store,
		Gateway: f.gw,
		Events:  f.events,
		CheckoutConfig: CheckoutConfig{
			Currency:       "ARS",
			FrontendURL:    "https://shop.example",
			WebhookBaseURL: "https://api.shop.example/",
		},
		Producer: "storefront-api",
	}
	return f
}

func (f *fixture) product(t *testing.T, name, price string, stock int) Product {
	t.Helper()
	return f.store.AddProduct(Product{Name: name, Price: decimal.RequireFromString(price), Stock: stock})
}

func (f *fixture) order(t *testing.T, items ...ItemInput) OrderDetail {
	t.Helper()
	o, err := f.svc.CreateOrder(context.Background(), CreateOrderInput{
		CustomerName:  "Ana",
		CustomerEmail: "ana@example.com",
		Items:         items,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

// paidOrder returns a completed order for 2 x 100.00 paid with payment "p-<id>".
func (f *fixture) paidOrder(t *testing.T) Order {
	t.Helper()
	p := f.product(t, "Keyboard", "100.00", 10)
	o := f.order(t, ItemInput{ProductID: p.ID, Quantity: 2})
	pid := fmt.Sprintf("p-%d", o.ID)
	f.gw.setPayment(gateway.Payment{ID: pid, Status: PaymentApproved, ExternalReference: fmt.Sprint(o.ID), Amount: o.Total})
	if _, err := f.svc.HandlePaymentEvent(context.Background(), pid); err != nil {
		t.Fatalf("approve: %v", err)
	}
	return f.get(t, o.ID)
}

func (f *fixture) get(t *testing.T, id int64) Order {
	t.Helper()
	o, err := f.store.GetOrder(context.Background(), id)
	if err != nil {
		t.Fatalf("get order %d: %v", id, err)
	}
	return o
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

var errNetwork = errors.New("dial tcp: connection refused")

func unwrap[T any](env Envelope) (T, error) {
	var v T
	err := json.Unmarshal(env.Payload, &v)
	return v, err
}
