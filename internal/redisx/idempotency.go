package redisx

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrIdempotencyPending = errors.New("a request with this idempotency key is still in progress")

// held under the key while the first request is placing its order
const idemPending = "pending"

// Idempotency remembers which order a client-supplied key produced.
type Idempotency struct {
	Client *redis.Client
	TTL    time.Duration
}

// Claim takes key for the caller before anything is placed. When an earlier
// request already finished it returns that order id with done set; while one
// is still running it returns ErrIdempotencyPending.
func (i *Idempotency) Claim(ctx context.Context, key string) (orderID int64, done bool, err error) {
	ok, err := i.Client.SetNX(ctx, fmt.Sprintf(KeyIdemOrderCreate, key), idemPending, TTLIdempotencyPending).Result()
	if err != nil {
		return 0, false, err
	}
	if ok {
		return 0, false, nil
	}
	orderID, done, err = i.Lookup(ctx, key)
	if err == nil && !done {
		// the holder let go between our SETNX and GET
		return 0, false, ErrIdempotencyPending
	}
	return orderID, done, err
}

// Forget drops a pending claim so the client may retry with the same key.
// A finished entry is left alone.
func (i *Idempotency) Forget(ctx context.Context, key string) error {
	return unlockScript.Run(ctx, i.Client, []string{fmt.Sprintf(KeyIdemOrderCreate, key)}, idemPending).Err()
}

func (i *Idempotency) Lookup(ctx context.Context, key string) (orderID int64, found bool, err error) {
	s, err := i.Client.Get(ctx, fmt.Sprintf(KeyIdemOrderCreate, key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if s == idemPending {
		return 0, false, ErrIdempotencyPending
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt idempotency entry %q: %w", key, err)
	}
	return id, true, nil
}

// Remember replaces the claim with the order id.
func (i *Idempotency) Remember(ctx context.Context, key string, orderID int64) error {
	ttl := i.TTL
	if ttl <= 0 {
		ttl = TTLIdempotency
	}
	return i.Client.Set(ctx, fmt.Sprintf(KeyIdemOrderCreate, key), orderID, ttl).Err()
}
