package redisx

import "time"

const (
	// Idempotency create order: idem:order:create:{idempotency_key} -> response JSON
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Lock refund per order: lock:{name} -> token
	KeyLock = "lock:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLDedup       = 48 * time.Hour
)
