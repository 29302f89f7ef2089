package httpx

import (
	"encoding/hex"
	"errors"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-payments/internal/gateway"
	"github.com/ariefcatur/go-storefront-payments/internal/orders"
)

func TestWebhook_StatusCodes(t *testing.T) {
	s := setupServer(t, serverOpts{})
	s.do(t, http.MethodPost, "/orders", orderBody)
	s.gw.payments["100"] = gateway.Payment{ID: "100", Status: "approved", ExternalReference: "1", Amount: decimal.RequireFromString("200")}
	s.gw.payments["101"] = gateway.Payment{ID: "101", Status: "approved", ExternalReference: "cart-xyz"}
	s.gw.payments["102"] = gateway.Payment{ID: "102", Status: "approved", ExternalReference: "55"}

	cases := []struct {
		name string
		path string
		body string
		code int
	}{
		{"unknown type", "/webhook", `{"type":"merchant_order","data":{"id":"1"}}`, http.StatusOK},
		{"bad json", "/webhook", `{"type":`, http.StatusBadRequest},
		{"payment without id", "/webhook", `{"type":"payment","action":"payment.created"}`, http.StatusBadRequest},
		{"approved", "/webhook", `{"type":"payment","action":"payment.updated","data":{"id":"100"}}`, http.StatusOK},
		{"replay", "/webhook", `{"type":"payment","action":"payment.updated","data":{"id":"100"}}`, http.StatusOK},
		{"query form", "/webhook?type=payment&data.id=100", ``, http.StatusOK},
		{"unknown reference", "/webhook", `{"type":"payment","action":"payment.created","data":{"id":"101"}}`, http.StatusBadRequest},
		{"missing order", "/webhook", `{"type":"payment","action":"payment.created","data":{"id":"102"}}`, http.StatusNotFound},
		{"payment unknown to gateway", "/webhook", `{"type":"payment","action":"payment.created","data":{"id":"777"}}`, http.StatusNotFound},
		{"unknown refund", "/webhook", `{"type":"payment","action":"payment.refunded","data":{"id":"999"}}`, http.StatusNotFound},
	}
	for _, c := range cases {
		if w := s.do(t, http.MethodPost, c.path, c.body); w.Code != c.code {
			t.Errorf("%s: code %d, want %d", c.name, w.Code, c.code)
		}
	}

	st := decode[orders.StatusView](t, s.do(t, http.MethodGet, "/orders/1/status", nil))
	if st.Status != orders.StatusCompleted || st.PaymentID != "100" {
		t.Fatalf("status = %+v", st)
	}

	w := s.do(t, http.MethodPost, "/webhook", `{"type":"payment","action":"payment.refunded","data":{"id":"100"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("refund webhook code %d", w.Code)
	}
	st = decode[orders.StatusView](t, s.do(t, http.MethodGet, "/orders/1/status", nil))
	if st.Status != orders.StatusRefunded || st.PaymentStatus != orders.PaymentRefunded {
		t.Fatalf("status after refund webhook = %+v", st)
	}
}

func TestWebhook_GatewayOutageIsRetried(t *testing.T) {
	s := setupServer(t, serverOpts{})
	s.do(t, http.MethodPost, "/orders", orderBody)
	s.gw.paymentErr = errors.New("context deadline exceeded")

	w := s.do(t, http.MethodPost, "/webhook", `{"type":"payment","action":"payment.updated","data":{"id":"100"}}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("code %d, want 500", w.Code)
	}
	st := decode[orders.StatusView](t, s.do(t, http.MethodGet, "/orders/1/status", nil))
	if st.Status != orders.StatusPending {
		t.Fatalf("status = %s", st.Status)
	}
}

func TestWebhook_GatewayCredentialsAreRetried(t *testing.T) {
	s := setupServer(t, serverOpts{})
	s.do(t, http.MethodPost, "/orders", orderBody)

	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		s.gw.paymentErr = &gateway.GatewayError{Status: code, Message: "invalid access token"}
		w := s.do(t, http.MethodPost, "/webhook", `{"type":"payment","action":"payment.updated","data":{"id":"100"}}`)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("gateway %d: code %d, want 500", code, w.Code)
		}
	}
	st := decode[orders.StatusView](t, s.do(t, http.MethodGet, "/orders/1/status", nil))
	if st.Status != orders.StatusPending {
		t.Fatalf("status = %s", st.Status)
	}
}

func TestWebhook_Signature(t *testing.T) {
	const secret = "whsec"
	s := setupServer(t, serverOpts{secret: secret})
	body := `{"type":"merchant_order","data":{"id":"ABC1"}}`

	good := "ts=1700000000,v1=" + hex.EncodeToString(sign(secret, "id:abc1;request-id:req-1;ts:1700000000;"))
	if w := s.do(t, http.MethodPost, "/webhook", body, "x-signature", good, "x-request-id", "req-1"); w.Code != http.StatusOK {
		t.Fatalf("valid signature code %d", w.Code)
	}

	bad := []string{
		"",
		"ts=1700000000",
		"ts=1700000000,v1=zz",
		"ts=1700000001,v1=" + hex.EncodeToString(sign(secret, "id:abc1;request-id:req-1;ts:1700000000;")),
		"ts=1700000000,v1=" + hex.EncodeToString(sign("other", "id:abc1;request-id:req-1;ts:1700000000;")),
	}
	for _, h := range bad {
		if w := s.do(t, http.MethodPost, "/webhook", body, "x-signature", h, "x-request-id", "req-1"); w.Code != http.StatusUnauthorized {
			t.Errorf("signature %q: code %d, want 401", h, w.Code)
		}
	}
}

func TestSignatureManifest(t *testing.T) {
	if got := signatureManifest("123", "r", "9"); got != "id:123;request-id:r;ts:9;" {
		t.Fatalf("got %q", got)
	}
	if got := signatureManifest("", "", "9"); got != "ts:9;" {
		t.Fatalf("got %q", got)
	}
}
