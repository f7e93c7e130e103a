package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// deletes KEYS[1] only while it still holds ARGV[1]
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker is a best-effort per-order mutex with a TTL so a crashed holder
// cannot wedge an order forever.
type Locker struct {
	Client *redis.Client
	TTL    time.Duration
}

func (l *Locker) TryLock(ctx context.Context, orderID int64) (func(), bool, error) {
	ttl := l.TTL
	if ttl <= 0 {
		ttl = TTLOrderLock
	}
	key := fmt.Sprintf(KeyOrderLock, orderID)
	token := uuid.NewString()
	ok, err := l.Client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	unlock := func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = unlockScript.Run(ctx, l.Client, []string{key}, token).Err()
	}
	return unlock, true, nil
}
