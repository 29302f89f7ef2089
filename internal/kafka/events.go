package kafka

import (
	"context"
	"log"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-storefront-payments/internal/orders"
)

// Publisher is what EventWriter needs from a Producer.
type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafka.Header)
}

// EventWriter publishes order envelopes, keyed by order id.
type EventWriter struct{ P Publisher }

var _ orders.Notifier = (*EventWriter)(nil)

func (w *EventWriter) Notify(ctx context.Context, env orders.Envelope) {
	topic := orders.TopicFor(env.EventType)
	if topic == "" {
		log.Printf("no topic for event type %q", env.EventType)
		return
	}
	w.P.Publish(topic, []byte(env.CorrelationID), MustMarshal(env),
		kafka.Header{Key: "x-event-type", Value: []byte(env.EventType)},
		kafka.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(env.EventVersion))},
	)
}
