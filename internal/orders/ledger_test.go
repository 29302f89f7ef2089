package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestCreateOrder_TotalAndStock(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	kb := f.product(t, "Keyboard", "100.00", 10)
	mouse := f.product(t, "Mouse", "35.50", 3)

	o := f.order(t, ItemInput{ProductID: kb.ID, Quantity: 2}, ItemInput{ProductID: mouse.ID, Quantity: 1})
	if !o.Total.Equal(dec("235.50")) {
		t.Fatalf("total = %s, want 235.50", o.Total)
	}
	if o.Status != StatusPending {
		t.Fatalf("status = %s", o.Status)
	}
	if len(o.Items) != 2 || !o.Items[0].Price.Equal(dec("100.00")) {
		t.Fatalf("items = %+v", o.Items)
	}

	got, _ := f.store.GetProduct(ctx, kb.ID)
	if got.Stock != 8 {
		t.Fatalf("keyboard stock = %d, want 8", got.Stock)
	}
	got, _ = f.store.GetProduct(ctx, mouse.ID)
	if got.Stock != 2 {
		t.Fatalf("mouse stock = %d, want 2", got.Stock)
	}

	evs := f.events.ofType(EventOrderCreated)
	if len(evs) != 1 || evs[0].CorrelationID != "1" {
		t.Fatalf("order created events = %+v", evs)
	}
}

func TestCreateOrder_TotalSurvivesTransitions(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	o := f.paidOrder(t)
	if _, err := f.svc.RequestRefund(ctx, o.ID, decp("50.00")); err != nil {
		t.Fatalf("refund: %v", err)
	}

	d, err := f.svc.GetOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	sum := dec("0")
	for _, it := range d.Items {
		sum = sum.Add(it.LineTotal())
	}
	if !d.Total.Equal(sum) || !d.Total.Equal(dec("200")) {
		t.Fatalf("total = %s, lines = %s", d.Total, sum)
	}
}

func TestCreateOrder_Validation(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.product(t, "Keyboard", "100.00", 10)
	item := []ItemInput{{ProductID: p.ID, Quantity: 1}}

	cases := map[string]CreateOrderInput{
		"no name":       {CustomerEmail: "a@b.co", Items: item},
		"blank name":    {CustomerName: "   ", CustomerEmail: "a@b.co", Items: item},
		"bad email":     {CustomerName: "Ana", CustomerEmail: "not-an-email", Items: item},
		"no items":      {CustomerName: "Ana", CustomerEmail: "a@b.co"},
		"zero quantity": {CustomerName: "Ana", CustomerEmail: "a@b.co", Items: []ItemInput{{ProductID: p.ID, Quantity: 0}}},
		"negative qty":  {CustomerName: "Ana", CustomerEmail: "a@b.co", Items: []ItemInput{{ProductID: p.ID, Quantity: -2}}},
		"no product":    {CustomerName: "Ana", CustomerEmail: "a@b.co", Items: []ItemInput{{Quantity: 1}}},
	}
	for name, in := range cases {
		if _, err := f.svc.CreateOrder(ctx, in); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: err = %v, want ErrInvalidInput", name, err)
		}
	}
	if os, _ := f.svc.ListOrders(ctx); len(os) != 0 {
		t.Fatalf("orders created on invalid input: %d", len(os))
	}
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.product(t, "Keyboard", "100.00", 10)

	_, err := f.svc.CreateOrder(ctx, CreateOrderInput{
		CustomerName:  "Ana",
		CustomerEmail: "ana@example.com",
		Items:         []ItemInput{{ProductID: p.ID, Quantity: 1}, {ProductID: 99, Quantity: 1}},
	})
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("err = %v", err)
	}
	got, _ := f.store.GetProduct(ctx, p.ID)
	if got.Stock != 10 {
		t.Fatalf("stock changed to %d", got.Stock)
	}
}

func TestCreateOrder_InsufficientStockRollsBack(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	a := f.product(t, "Keyboard", "100.00", 10)
	b := f.product(t, "Monitor Arm", "89.00", 1)

	_, err := f.svc.CreateOrder(ctx, CreateOrderInput{
		CustomerName:  "Ana",
		CustomerEmail: "ana@example.com",
		Items:         []ItemInput{{ProductID: a.ID, Quantity: 3}, {ProductID: b.ID, Quantity: 2}},
	})
	var se *StockError
	if !errors.As(err, &se) || !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("err = %v", err)
	}
	if se.ProductID != b.ID || se.Required != 2 || se.Available != 1 {
		t.Fatalf("stock error = %+v", se)
	}

	pa, _ := f.store.GetProduct(ctx, a.ID)
	pb, _ := f.store.GetProduct(ctx, b.ID)
	if pa.Stock != 10 || pb.Stock != 1 {
		t.Fatalf("stock mutated: a=%d b=%d", pa.Stock, pb.Stock)
	}
	if os, _ := f.svc.ListOrders(ctx); len(os) != 0 {
		t.Fatalf("order persisted after failed reservation")
	}
	if len(f.events.ofType(EventOrderCreated)) != 0 {
		t.Fatal("event emitted for a rolled back order")
	}
}

func TestCreateOrder_DuplicateLinesAreSummed(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Hub", "49.90", 6)

	_, err := f.svc.CreateOrder(context.Background(), CreateOrderInput{
		CustomerName:  "Ana",
		CustomerEmail: "ana@example.com",
		Items:         []ItemInput{{ProductID: p.ID, Quantity: 4}, {ProductID: p.ID, Quantity: 3}},
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("err = %v, want insufficient stock", err)
	}
}

func TestCreateOrder_ConcurrentNeverOversells(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.product(t, "Monitor Arm", "89.00", 5)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ok  int
		bad []error
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateOrder(ctx, CreateOrderInput{
				CustomerName:  "Ana",
				CustomerEmail: "ana@example.com",
				Items:         []ItemInput{{ProductID: p.ID, Quantity: 1}},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case !errors.Is(err, ErrInsufficientStock):
				bad = append(bad, err)
			}
		}()
	}
	wg.Wait()

	if len(bad) > 0 {
		t.Fatalf("unexpected errors: %v", bad)
	}
	if ok != 5 {
		t.Fatalf("%d orders succeeded, want 5", ok)
	}
	got, _ := f.store.GetProduct(ctx, p.ID)
	if got.Stock != 0 {
		t.Fatalf("stock = %d, want 0", got.Stock)
	}
}

func TestCheckout(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.product(t, "Keyboard", "100.00", 10)

	res, err := f.svc.Checkout(ctx, CreateOrderInput{
		CustomerName:  "Ana",
		CustomerEmail: "ana@example.com",
		Items:         []ItemInput{{ProductID: p.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if res.OrderID != 1 || res.PreferenceID != "pref-1" || res.InitPoint == "" {
		t.Fatalf("result = %+v", res)
	}
	if o := f.get(t, 1); o.CheckoutReference != "pref-1" {
		t.Fatalf("checkout reference = %q", o.CheckoutReference)
	}

	req := f.gw.checkouts[0]
	if req.ExternalReference != "1" || req.Currency != "ARS" {
		t.Fatalf("request = %+v", req)
	}
	if req.NotificationURL != "https://api.shop.example/webhook" {
		t.Fatalf("notification url = %q", req.NotificationURL)
	}
	if req.BackURLs.Success != "https://shop.example/checkout/success?order_id=1" ||
		req.BackURLs.Pending != "https://shop.example/checkout/pending?order_id=1" {
		t.Fatalf("back urls = %+v", req.BackURLs)
	}
	if len(req.Items) != 1 || req.Items[0].Quantity != 2 || !req.Items[0].UnitPrice.Equal(dec("100")) {
		t.Fatalf("items = %+v", req.Items)
	}
}

func TestCheckout_GatewayFailureKeepsPendingOrder(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.product(t, "Keyboard", "100.00", 10)
	f.gw.checkoutErr = errNetwork

	res, err := f.svc.Checkout(ctx, CreateOrderInput{
		CustomerName:  "Ana",
		CustomerEmail: "ana@example.com",
		Items:         []ItemInput{{ProductID: p.ID, Quantity: 2}},
	})
	if !errors.Is(err, ErrCheckoutFailed) || !errors.Is(err, errNetwork) {
		t.Fatalf("err = %v", err)
	}
	if res.OrderID != 1 {
		t.Fatalf("order id = %d", res.OrderID)
	}
	o := f.get(t, 1)
	if o.Status != StatusPending || o.CheckoutReference != "" {
		t.Fatalf("order = %+v", o)
	}
	if got, _ := f.store.GetProduct(ctx, p.ID); got.Stock != 8 {
		t.Fatalf("stock = %d, want reservation kept", got.Stock)
	}
}

func TestReads(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.product(t, "Keyboard", "100.00", 10)
	f.product(t, "Sold out", "1.00", 0)
	f.order(t, ItemInput{ProductID: p.ID, Quantity: 1})
	f.order(t, ItemInput{ProductID: p.ID, Quantity: 1})

	ps, err := f.svc.ListAvailableProducts(ctx)
	if err != nil || len(ps) != 1 || ps[0].ID != p.ID {
		t.Fatalf("available = %+v, %v", ps, err)
	}
	if _, err := f.svc.GetProduct(ctx, 42); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("get product err = %v", err)
	}
	if _, err := f.svc.GetProduct(ctx, 0); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("get product 0 err = %v", err)
	}

	os, err := f.svc.ListOrders(ctx)
	if err != nil || len(os) != 2 || os[0].ID != 2 {
		t.Fatalf("orders = %+v, %v", os, err)
	}

	d, err := f.svc.GetOrder(ctx, 1)
	if err != nil || len(d.Items) != 1 || d.Items[0].ProductName != "Keyboard" {
		t.Fatalf("detail = %+v, %v", d, err)
	}
	if _, err := f.svc.GetOrder(ctx, 9); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("get order err = %v", err)
	}

	st, err := f.svc.GetOrderStatus(ctx, 1)
	if err != nil || st.Status != StatusPending || st.PaymentID != "" {
		t.Fatalf("status = %+v, %v", st, err)
	}
}
