package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-payments/internal/metrics"
)

// Client talks to a Mercado Pago style REST API: checkout preferences,
// payments and payment refunds.
type Client struct {
	BaseURL     string
	AccessToken string
	HTTP        *http.Client
	Metrics     *metrics.Registry
}

func NewClient(baseURL, accessToken string, m *metrics.Registry) *Client {
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		AccessToken: accessToken,
		HTTP:        &http.Client{Timeout: 10 * time.Second},
		Metrics:     m,
	}
}

type preferenceItem struct {
	ID         string      `json:"id,omitempty"`
	Title      string      `json:"title"`
	Quantity   int         `json:"quantity"`
	UnitPrice  json.Number `json:"unit_price"`
	CurrencyID string      `json:"currency_id,omitempty"`
}

type preferencePayer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type preferenceReq struct {
	Items             []preferenceItem `json:"items"`
	Payer             preferencePayer  `json:"payer"`
	BackURLs          BackURLs         `json:"back_urls"`
	AutoReturn        string           `json:"auto_return,omitempty"`
	ExternalReference string           `json:"external_reference"`
	NotificationURL   string           `json:"notification_url,omitempty"`
}

type preferenceResp struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

type paymentResp struct {
	ID                flexID          `json:"id"`
	Status            string          `json:"status"`
	ExternalReference string          `json:"external_reference"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
}

type refundReq struct {
	Amount *json.Number `json:"amount,omitempty"`
}

type refundResp struct {
	ID          flexID          `json:"id"`
	Status      string          `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	DateCreated string          `json:"date_created"`
}

func (c *Client) CreateCheckoutIntent(ctx context.Context, req CheckoutRequest) (CheckoutIntent, error) {
	body := preferenceReq{
		Payer:             preferencePayer{Name: req.Payer.Name, Email: req.Payer.Email},
		BackURLs:          req.BackURLs,
		ExternalReference: req.ExternalReference,
		NotificationURL:   req.NotificationURL,
	}
	if req.BackURLs.Success != "" {
		body.AutoReturn = "approved"
	}
	for _, it := range req.Items {
		body.Items = append(body.Items, preferenceItem{
			ID:         it.ID,
			Title:      it.Title,
			Quantity:   it.Quantity,
			UnitPrice:  json.Number(it.UnitPrice.StringFixed(2)),
			CurrencyID: req.Currency,
		})
	}

	var out preferenceResp
	if err := c.do(ctx, "create_preference", http.MethodPost, "/checkout/preferences", body, nil, &out); err != nil {
		return CheckoutIntent{}, err
	}
	redirect := out.InitPoint
	if redirect == "" {
		redirect = out.SandboxInitPoint
	}
	return CheckoutIntent{ID: out.ID, RedirectURL: redirect}, nil
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (Payment, error) {
	var out paymentResp
	path := "/v1/payments/" + url.PathEscape(paymentID)
	if err := c.do(ctx, "get_payment", http.MethodGet, path, nil, nil, &out); err != nil {
		return Payment{}, err
	}
	return Payment{
		ID:                string(out.ID),
		Status:            out.Status,
		ExternalReference: out.ExternalReference,
		Amount:            out.TransactionAmount,
	}, nil
}

// CreateRefund refunds the whole payment when amount is nil.
func (c *Client) CreateRefund(ctx context.Context, paymentID string, amount *decimal.Decimal, idempotencyKey string) (Refund, error) {
	var body refundReq
	if amount != nil {
		n := json.Number(amount.StringFixed(2))
		body.Amount = &n
	}
	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{"X-Idempotency-Key": idempotencyKey}
	}
	var out refundResp
	path := "/v1/payments/" + url.PathEscape(paymentID) + "/refunds"
	if err := c.do(ctx, "create_refund", http.MethodPost, path, body, headers, &out); err != nil {
		return Refund{}, err
	}
	return out.toRefund(), nil
}

func (c *Client) GetRefund(ctx context.Context, paymentID, refundID string) (Refund, error) {
	var out refundResp
	path := "/v1/payments/" + url.PathEscape(paymentID) + "/refunds/" + url.PathEscape(refundID)
	if err := c.do(ctx, "get_refund", http.MethodGet, path, nil, nil, &out); err != nil {
		return Refund{}, err
	}
	return out.toRefund(), nil
}

func (r refundResp) toRefund() Refund {
	out := Refund{ID: string(r.ID), Status: r.Status, Amount: r.Amount}
	if t, err := time.Parse(time.RFC3339Nano, r.DateCreated); err == nil {
		out.CreatedAt = t
	}
	return out
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, headers map[string]string, out any) (err error) {
	start := time.Now()
	defer func() { c.Metrics.ObserveGateway(op, start, err) }()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: %w", op, &GatewayError{Status: resp.StatusCode, Message: errorMessage(raw)})
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
