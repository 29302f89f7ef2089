package orders

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

type EventKind int

const (
	EventUnknown EventKind = iota
	EventPayment           // payment.created / payment.updated
	EventRefund            // payment.refunded
)

func (k EventKind) String() string {
	switch k {
	case EventPayment:
		return "payment"
	case EventRefund:
		return "refund"
	}
	return "unknown"
}

// WebhookEvent is a notification from the gateway. It only points at a
// payment; the payment status is always fetched from the gateway.
type WebhookEvent struct {
	Kind      EventKind
	Type      string
	Action    string
	PaymentID string
}

type webhookBody struct {
	Type   string `json:"type"`
	Topic  string `json:"topic"`
	Action string `json:"action"`
	Data   struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// ParseWebhook classifies a webhook body. Query parameters (type/topic,
// data.id/id) fill in whatever the body leaves empty. Unknown shapes come
// back as EventUnknown; a known shape without a payment id is ErrInvalidInput.
func ParseWebhook(body []byte, q url.Values) (WebhookEvent, error) {
	var b webhookBody
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &b); err != nil {
			return WebhookEvent{}, fmt.Errorf("%w: webhook body: %v", ErrInvalidInput, err)
		}
	}
	ev := WebhookEvent{Type: b.Type, Action: b.Action, PaymentID: rawID(b.Data.ID)}
	if ev.Type == "" {
		ev.Type = b.Topic
	}
	if ev.Type == "" {
		ev.Type = firstNonEmpty(q.Get("type"), q.Get("topic"))
	}
	if ev.PaymentID == "" {
		ev.PaymentID = firstNonEmpty(q.Get("data.id"), q.Get("id"))
	}

	switch {
	case ev.Action == "payment.refunded":
		ev.Kind = EventRefund
	case ev.Type == "payment" && (ev.Action == "" || ev.Action == "payment.created" || ev.Action == "payment.updated"):
		ev.Kind = EventPayment
	default:
		ev.Kind = EventUnknown
		return ev, nil
	}
	if ev.PaymentID == "" {
		return ev, fmt.Errorf("%w: webhook %s without data.id", ErrInvalidInput, ev.Kind)
	}
	return ev, nil
}

func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

// ParseExternalReference turns the reference attached at checkout back into an order id.
func ParseExternalReference(ref string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(ref), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownExternalReference, ref)
	}
	return id, nil
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
