package redisx

import "time"

const (
	// Dedup for event consumers: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Emit guard for the saga's order-placed fact, set only after the fact
	// was enqueued: emit:order.placed:{order_id}
	KeyOrderPlacedEmit = "emit:order.placed:%s"
)

var (
	TTLDedup = 48 * time.Hour
	TTLEmit  = 48 * time.Hour
)
