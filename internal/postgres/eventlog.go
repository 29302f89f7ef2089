package postgres

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-storefront-payments/internal/orders"
)

// EventLog stores consumed order events; a replayed event_id is a no-op.
type EventLog struct{ DB *pgxpool.Pool }

func (l *EventLog) Record(ctx context.Context, env orders.Envelope) (bool, error) {
	orderID, err := strconv.ParseInt(env.CorrelationID, 10, 64)
	if err != nil {
		return false, err
	}
	ct, err := l.DB.Exec(ctx, `
		INSERT INTO order_events(event_id, event_type, order_id, producer, trace_id, occurred_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING`,
		env.EventID, env.EventType, orderID, env.Producer, env.TraceID, env.OccurredAt, []byte(env.Payload),
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}
