package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the storefront collectors. A nil *Registry is a valid no-op.
type Registry struct {
	reg             *prometheus.Registry
	OrdersCreated   prometheus.Counter
	CheckoutFailed  prometheus.Counter
	WebhookEvents   *prometheus.CounterVec
	Refunds         *prometheus.CounterVec
	GatewayRequests *prometheus.HistogramVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	created := prometheus.NewCounter(prometheus.CounterOpts{Name: "storefront_orders_created_total"})
	checkoutFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "storefront_checkout_failed_total"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_webhook_events_total",
	}, []string{"kind", "result"})
	refunds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_refunds_total",
	}, []string{"result"})
	gw := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_gateway_request_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "outcome"})

	r.MustRegister(created, checkoutFailed, webhooks, refunds, gw)
	return &Registry{
		reg:             r,
		OrdersCreated:   created,
		CheckoutFailed:  checkoutFailed,
		WebhookEvents:   webhooks,
		Refunds:         refunds,
		GatewayRequests: gw,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

func (r *Registry) OrderCreated() {
	if r == nil {
		return
	}
	r.OrdersCreated.Inc()
}

func (r *Registry) CheckoutFailure() {
	if r == nil {
		return
	}
	r.CheckoutFailed.Inc()
}

func (r *Registry) Webhook(kind, result string) {
	if r == nil {
		return
	}
	r.WebhookEvents.WithLabelValues(kind, result).Inc()
}

func (r *Registry) Refund(result string) {
	if r == nil {
		return
	}
	r.Refunds.WithLabelValues(result).Inc()
}

func (r *Registry) ObserveGateway(op string, start time.Time, err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.GatewayRequests.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
}
