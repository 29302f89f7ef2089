package audit

import (
	"context"
	"fmt"
	"log"

	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-storefront-payments/internal/kafka"
	"github.com/ariefcatur/go-storefront-payments/internal/orders"
)

type Recorder interface {
	Record(ctx context.Context, env orders.Envelope) (bool, error)
}

type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// Service writes every order event into the audit log so payment and refund
// history can be reconciled by hand.
type Service struct {
	Log   Recorder
	Dedup Deduper // optional
}

// HandleOrderEvent dipasang sebagai handler consumer.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		log.Printf("audit: skip undecodable message topic=%s offset=%d: %v", m.Topic, m.Offset, err)
		return nil // poison message, commit and move on
	}
	if env.EventID == "" || orders.TopicFor(env.EventType) == "" {
		return nil
	} // ignore

	// 2) dedup via Redis (pakai event_id)
	if s.Dedup != nil {
		if seen, err := s.Dedup.Seen(ctx, env.EventID); err == nil && seen {
			return nil
		}
	}

	// 3) simpan; ON CONFLICT membuat replay aman walau dedup gagal
	inserted, err := s.Log.Record(ctx, env)
	if err != nil {
		return fmt.Errorf("record event %s: %w", env.EventID, err)
	}
	if inserted {
		log.Printf("audit: %s order=%s", env.EventType, env.CorrelationID)
	}

	if s.Dedup != nil {
		if err := s.Dedup.Mark(ctx, env.EventID); err != nil {
			log.Printf("audit: dedup mark %s: %v", env.EventID, err)
		}
	}
	return nil
}
