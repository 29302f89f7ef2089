package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront-payments/internal/metrics"
	"github.com/ariefcatur/go-storefront-payments/internal/orders"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	Svc             *orders.Service
	Secret          string // empty disables the signature check
	AllowSimulation bool
	Metrics         *metrics.Registry
}

type SimulateReq struct {
	PaymentStatus string `json:"payment_status"`
}

func (h *WebhookHandler) Register(r chi.Router) {
	r.Post("/webhook", h.receive)
	if h.AllowSimulation {
		r.Post("/dev/simulate-webhook/{orderId}", h.simulate)
	}
}

// receive acknowledges with 200 only once the order is reconciled. A 5xx
// makes the gateway redeliver the notification.
func (h *WebhookHandler) receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ev, err := orders.ParseWebhook(body, r.URL.Query())
	if err != nil {
		log.Printf("webhook rejected: type=%s action=%s payment=%s: %v", ev.Type, ev.Action, ev.PaymentID, err)
		h.Metrics.Webhook(ev.Kind.String(), "rejected")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if h.Secret != "" {
		if err := verifySignature(h.Secret, r.Header.Get("x-signature"), ev.PaymentID, r.Header.Get("x-request-id")); err != nil {
			log.Printf("webhook rejected: type=%s action=%s payment=%s: %v", ev.Type, ev.Action, ev.PaymentID, err)
			h.Metrics.Webhook(ev.Kind.String(), "unauthorized")
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}

	if ev.Kind == orders.EventUnknown {
		h.Metrics.Webhook(ev.Kind.String(), "ignored")
		w.WriteHeader(http.StatusOK)
		return
	}

	out, err := h.Svc.HandleWebhook(r.Context(), ev)
	if err != nil {
		status := http.StatusInternalServerError
		result := "error"
		switch {
		case errors.Is(err, orders.ErrOrderNotFound), errors.Is(err, orders.ErrPaymentNotFoundAtGateway):
			status, result = http.StatusNotFound, "not_found"
		case errors.Is(err, orders.ErrGatewayUnauthorized):
			result = "gateway_unauthorized"
		case orders.IsClientError(err):
			status, result = http.StatusBadRequest, "rejected"
		}
		log.Printf("webhook failed: type=%s action=%s payment=%s order=%s status=%d: %v",
			ev.Type, ev.Action, ev.PaymentID, orderRef(out.OrderID), status, err)
		h.Metrics.Webhook(ev.Kind.String(), result)
		w.WriteHeader(status)
		return
	}

	result := "applied"
	if !out.Applied {
		result = "noop"
	}
	log.Printf("webhook %s: payment=%s order=%d %s -> %s (%s)", ev.Kind, ev.PaymentID, out.OrderID, out.Previous, out.Status, result)
	h.Metrics.Webhook(ev.Kind.String(), result)
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) simulate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "orderId")
	if !ok {
		writeError(w, r, orders.ErrOrderNotFound)
		return
	}
	var req SimulateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid json", orders.ErrInvalidInput))
		return
	}
	out, err := h.Svc.SimulatePayment(r.Context(), id, req.PaymentStatus)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id":       out.OrderID,
		"status":         out.Status,
		"payment_status": out.PaymentStatus,
		"applied":        out.Applied,
	})
}

func orderRef(id int64) string {
	if id == 0 {
		return "?"
	}
	return fmt.Sprint(id)
}
