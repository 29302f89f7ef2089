package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-payments/internal/gateway"
)

func (s *Service) ListAvailableProducts(ctx context.Context) ([]Product, error) {
	return s.Store.ListAvailableProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, ErrProductNotFound
	}
	return s.Store.GetProduct(ctx, id)
}

// CreateOrder snapshots catalog prices, inserts the order and its lines and
// reserves stock, all in one transaction.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (OrderDetail, error) {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerEmail = strings.TrimSpace(in.CustomerEmail)
	if err := validate.Struct(in); err != nil {
		return OrderDetail{}, fmt.Errorf("%w: %s", ErrInvalidInput, describeValidation(err))
	}

	// lock products in id order so concurrent orders never deadlock
	required := make(map[int64]int, len(in.Items))
	for _, it := range in.Items {
		required[it.ProductID] += it.Quantity
	}
	ids := make([]int64, 0, len(required))
	for id := range required {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out OrderDetail
	err := s.Store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		products := make(map[int64]Product, len(ids))
		for _, id := range ids {
			p, err := tx.LockProduct(ctx, id)
			if err != nil {
				return err
			}
			if p.Stock < required[id] {
				return &StockError{ProductID: id, Required: required[id], Available: p.Stock}
			}
			products[id] = p
		}

		total := decimal.Zero
		items := make([]OrderItem, 0, len(in.Items))
		for _, it := range in.Items {
			p := products[it.ProductID]
			line := OrderItem{
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    it.Quantity,
				Price:       p.Price,
			}
			total = total.Add(line.LineTotal())
			items = append(items, line)
		}

		o := Order{
			CustomerName:  in.CustomerName,
			CustomerEmail: in.CustomerEmail,
			Total:         total,
			Status:        StatusPending,
		}
		if err := tx.InsertOrder(ctx, &o); err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = o.ID
			if err := tx.InsertOrderItem(ctx, &items[i]); err != nil {
				return err
			}
		}
		for _, id := range ids {
			if err := tx.DecrementStock(ctx, id, required[id]); err != nil {
				return err
			}
		}
		out = OrderDetail{Order: o, Items: items}
		return nil
	})
	if err != nil {
		return OrderDetail{}, err
	}

	payload := OrderCreatedPayload{OrderID: out.ID, CustomerEmail: out.CustomerEmail, Total: out.Total}
	for _, it := range out.Items {
		payload.Items = append(payload.Items, ItemPrice{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price})
	}
	s.emit(ctx, EventOrderCreated, out.ID, payload)
	return out, nil
}

// AttachCheckoutReference is last-write-wins.
func (s *Service) AttachCheckoutReference(ctx context.Context, orderID int64, ref string) error {
	return s.Store.SetCheckoutReference(ctx, orderID, ref)
}

// Checkout creates the order and the gateway checkout intent for it. When the
// gateway refuses, the order stays pending with its stock reserved.
func (s *Service) Checkout(ctx context.Context, in CreateOrderInput) (CheckoutResult, error) {
	o, err := s.CreateOrder(ctx, in)
	if err != nil {
		return CheckoutResult{}, err
	}

	ref := strconv.FormatInt(o.ID, 10)
	req := gateway.CheckoutRequest{
		Payer:             gateway.Payer{Name: o.CustomerName, Email: o.CustomerEmail},
		ExternalReference: ref,
		NotificationURL:   joinURL(s.CheckoutConfig.WebhookBaseURL, "/webhook"),
		Currency:          s.CheckoutConfig.Currency,
		BackURLs: gateway.BackURLs{
			Success: joinURL(s.CheckoutConfig.FrontendURL, "/checkout/success?order_id="+ref),
			Failure: joinURL(s.CheckoutConfig.FrontendURL, "/checkout/failure?order_id="+ref),
			Pending: joinURL(s.CheckoutConfig.FrontendURL, "/checkout/pending?order_id="+ref),
		},
	}
	for _, it := range o.Items {
		req.Items = append(req.Items, gateway.CheckoutItem{
			ID:        strconv.FormatInt(it.ProductID, 10),
			Title:     it.ProductName,
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
		})
	}

	intent, err := s.Gateway.CreateCheckoutIntent(ctx, req)
	if err != nil {
		log.Printf("checkout intent order=%d: %v", o.ID, err)
		return CheckoutResult{OrderID: o.ID}, fmt.Errorf("%w: %w", ErrCheckoutFailed, err)
	}
	if err := s.AttachCheckoutReference(ctx, o.ID, intent.ID); err != nil {
		return CheckoutResult{OrderID: o.ID}, fmt.Errorf("attach checkout reference: %w", err)
	}
	return CheckoutResult{OrderID: o.ID, PreferenceID: intent.ID, InitPoint: intent.RedirectURL}, nil
}

// ListOrders returns orders newest first.
func (s *Service) ListOrders(ctx context.Context) ([]Order, error) {
	return s.Store.ListOrders(ctx)
}

func (s *Service) GetOrder(ctx context.Context, id int64) (OrderDetail, error) {
	o, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		return OrderDetail{}, err
	}
	items, err := s.Store.ListOrderItems(ctx, id)
	if err != nil {
		return OrderDetail{}, err
	}
	return OrderDetail{Order: o, Items: items}, nil
}

func (s *Service) GetOrderStatus(ctx context.Context, id int64) (StatusView, error) {
	o, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		return StatusView{}, err
	}
	return StatusView{
		OrderID:       o.ID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		PaymentID:     o.PaymentReference,
	}, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
