package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type CheckoutItem struct {
	ID        string
	Title     string
	Quantity  int
	UnitPrice decimal.Decimal
}

type Payer struct {
	Name  string
	Email string
}

type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type CheckoutRequest struct {
	Items             []CheckoutItem
	Payer             Payer
	BackURLs          BackURLs
	ExternalReference string
	NotificationURL   string
	Currency          string
}

type CheckoutIntent struct {
	ID          string
	RedirectURL string
}

type Payment struct {
	ID                string
	Status            string
	ExternalReference string
	Amount            decimal.Decimal
}

type Refund struct {
	ID        string
	Status    string
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// GatewayError is a non-2xx answer from the provider.
type GatewayError struct {
	Status  int
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error %d: %s", e.Status, e.Message)
}

// Unauthorized reports a credential/environment mismatch (test token vs live payment).
func (e *GatewayError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// flexID accepts both `123` and `"123"`; the provider is not consistent.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

func errorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 256 {
		s = s[:256]
	}
	return s
}
