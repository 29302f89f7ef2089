package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-payments/internal/metrics"
	"github.com/ariefcatur/go-storefront-payments/internal/orders"
)

// IdempotencyStore remembers create-order responses per Idempotency-Key.
type IdempotencyStore interface {
	Lookup(ctx context.Context, key string) ([]byte, bool, error)
	Remember(ctx context.Context, key string, body []byte) error
}

type OrdersHandler struct {
	Svc     *orders.Service
	Idem    IdempotencyStore // optional
	Metrics *metrics.Registry
}

type RefundReq struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Post("/orders/{id}/refund", h.requestRefund)
	r.Get("/orders/{id}/refund", h.getRefund)
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Svc.ListAvailableProducts(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *OrdersHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, orders.ErrProductNotFound)
		return
	}
	p, err := h.Svc.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.CreateOrderInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid json", orders.ErrInvalidInput))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	// Fast-path idempotency via Redis (optional, DB tetap jadi kebenaran)
	idemKey := r.Header.Get("Idempotency-Key")
	if h.Idem != nil && idemKey != "" {
		if b, ok, err := h.Idem.Lookup(ctx, idemKey); err != nil {
			log.Printf("idempotency lookup %s: %v", idemKey, err)
		} else if ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write(b)
			return
		}
	}

	res, err := h.Svc.Checkout(ctx, req)
	if err != nil {
		if errors.Is(err, orders.ErrCheckoutFailed) {
			h.Metrics.CheckoutFailure()
			status, code := statusFor(err)
			writeJSON(w, status, errorResp{Error: err.Error(), Code: code, OrderID: res.OrderID})
			return
		}
		writeError(w, r, err)
		return
	}
	h.Metrics.OrderCreated()

	body, _ := json.Marshal(res)
	if h.Idem != nil && idemKey != "" {
		if err := h.Idem.Remember(ctx, idemKey, body); err != nil {
			log.Printf("idempotency remember %s: %v", idemKey, err)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	os, err := h.Svc.ListOrders(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, os)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, orders.ErrOrderNotFound)
		return
	}
	o, err := h.Svc.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, orders.ErrOrderNotFound)
		return
	}
	st, err := h.Svc.GetOrderStatus(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *OrdersHandler) requestRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, orders.ErrOrderNotFound)
		return
	}
	var req RefundReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, fmt.Errorf("%w: invalid json", orders.ErrInvalidInput))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 12*time.Second)
	defer cancel()

	res, err := h.Svc.RequestRefund(ctx, id, req.Amount)
	if err != nil {
		_, code := statusFor(err)
		h.Metrics.Refund(code)
		log.Printf("refund order=%d: %v", id, err)
		writeError(w, r, err)
		return
	}
	h.Metrics.Refund("ok")
	writeJSON(w, http.StatusOK, res)
}

func (h *OrdersHandler) getRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, orders.ErrOrderNotFound)
		return
	}
	info, err := h.Svc.GetRefundInfo(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
