package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

type CachedStatus struct {
	OrderID   int64     `json:"order_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

type StatusCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func (c *StatusCache) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return TTLStatusCache
}

func (c *StatusCache) Put(ctx context.Context, orderID int64, status string, updatedAt time.Time) error {
	b, err := json.Marshal(CachedStatus{OrderID: orderID, Status: status, UpdatedAt: updatedAt})
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, fmt.Sprintf(KeyOrderStatus, orderID), b, c.ttl()).Err()
}

func (c *StatusCache) Get(ctx context.Context, orderID int64) (CachedStatus, error) {
	var out CachedStatus
	b, err := c.Client.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return out, ErrCacheMiss
	}
	if err != nil {
		return out, fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("unmarshal status failed: %w", err)
	}
	return out, nil
}
