package redisx

import "time"

const (
	// idem:order:create:{caller}:{Idempotency-Key} -> order id, or "pending"
	KeyIdemOrderCreate = "idem:order:create:%s"

	// order_status:{order_id} -> CachedStatus JSON
	KeyOrderStatus = "order_status:%d"

	// cart:{user_id}, written by the cart service, dropped after checkout
	KeyCart = "cart:%s"

	// dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// lock:order:{order_id} -> holder token
	KeyOrderLock = "lock:order:%d"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLOrderLock   = 30 * time.Second

	// must outlive one placement
	TTLIdempotencyPending = time.Minute
)
