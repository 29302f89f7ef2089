package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Idempotency remembers create-order responses per client Idempotency-Key.
// The database stays the source of truth; this only short-circuits replays.
type Idempotency struct{ RDB *redis.Client }

func (i *Idempotency) Lookup(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := i.RDB.Get(ctx, fmt.Sprintf(KeyIdemOrderCreate, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (i *Idempotency) Remember(ctx context.Context, key string, body []byte) error {
	return i.RDB.Set(ctx, fmt.Sprintf(KeyIdemOrderCreate, key), body, TTLIdempotency).Err()
}
