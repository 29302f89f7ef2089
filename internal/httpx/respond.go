package httpx

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront-payments/internal/orders"
)

type errorResp struct {
	Error    string `json:"error"`
	Code     string `json:"code"`
	RefundID string `json:"refund_id,omitempty"`
	OrderID  int64  `json:"order_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	body := errorResp{Error: err.Error(), Code: code}
	if status >= http.StatusInternalServerError && code == "internal" {
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		body.Error = "internal error"
	}
	var already *orders.AlreadyRefundedError
	if errors.As(err, &already) {
		body.RefundID = already.RefundReference
	}
	writeJSON(w, status, body)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, orders.ErrAlreadyRefunded):
		return http.StatusConflict, "already_refunded"
	case errors.Is(err, orders.ErrRefundInProgress):
		return http.StatusConflict, "refund_in_progress"
	case errors.Is(err, orders.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock"
	case errors.Is(err, orders.ErrInvalidRefundAmount):
		return http.StatusBadRequest, "invalid_refund_amount"
	case errors.Is(err, orders.ErrNoAssociatedPayment):
		return http.StatusBadRequest, "no_associated_payment"
	case errors.Is(err, orders.ErrNotRefundable):
		return http.StatusBadRequest, "not_refundable"
	case errors.Is(err, orders.ErrUnknownExternalReference):
		return http.StatusBadRequest, "unknown_external_reference"
	case errors.Is(err, orders.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, orders.ErrProductNotFound):
		return http.StatusNotFound, "product_not_found"
	case errors.Is(err, orders.ErrOrderNotFound):
		return http.StatusNotFound, "order_not_found"
	case errors.Is(err, orders.ErrPaymentNotFoundAtGateway):
		return http.StatusNotFound, "payment_not_found_at_gateway"
	case errors.Is(err, orders.ErrGatewayUnauthorized):
		return http.StatusBadGateway, "gateway_unauthorized"
	case errors.Is(err, orders.ErrRefundFailed):
		return http.StatusBadGateway, "refund_failed"
	case errors.Is(err, orders.ErrCheckoutFailed):
		return http.StatusBadGateway, "checkout_failed"
	}
	return http.StatusInternalServerError, "internal"
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}
