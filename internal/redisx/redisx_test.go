package redisx

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestStatusCache_PutGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := &StatusCache{Client: client}
	ctx := context.Background()
	at := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)

	require.NoError(t, c.Put(ctx, 7, "paid", at))

	got, err := c.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.OrderID)
	assert.Equal(t, "paid", got.Status)
	assert.True(t, got.UpdatedAt.Equal(at))
	assert.Equal(t, TTLStatusCache, mr.TTL("order_status:7"))
}

func TestStatusCache_MissAndCorrupt(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := &StatusCache{Client: client, TTL: time.Minute}

	_, err := c.Get(context.Background(), 1)
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, mr.Set(fmt.Sprintf(KeyOrderStatus, 2), "{not json"))
	_, err = c.Get(context.Background(), 2)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestStatusCache_Expires(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := &StatusCache{Client: client, TTL: time.Minute}
	require.NoError(t, c.Put(context.Background(), 3, "shipped", time.Now()))

	mr.FastForward(2 * time.Minute)
	_, err := c.Get(context.Background(), 3)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestIdempotency(t *testing.T) {
	client, mr := setupTestRedis(t)
	idem := &Idempotency{Client: client}
	ctx := context.Background()

	_, found, err := idem.Lookup(ctx, "u1:abc")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, idem.Remember(ctx, "u1:abc", 42))
	id, found, err := idem.Lookup(ctx, "u1:abc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, TTLIdempotency, mr.TTL("idem:order:create:u1:abc"))

	require.NoError(t, mr.Set("idem:order:create:bad", "x"))
	_, _, err = idem.Lookup(ctx, "bad")
	assert.Error(t, err)
}

func TestIdempotency_ClaimIsExclusive(t *testing.T) {
	client, mr := setupTestRedis(t)
	idem := &Idempotency{Client: client}
	ctx := context.Background()
	key := "idem:order:create:u1:k"

	_, done, err := idem.Claim(ctx, "u1:k")
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, TTLIdempotencyPending, mr.TTL(key))

	// a second request while the first is still placing
	_, _, err = idem.Claim(ctx, "u1:k")
	assert.ErrorIs(t, err, ErrIdempotencyPending)
	_, _, err = idem.Lookup(ctx, "u1:k")
	assert.ErrorIs(t, err, ErrIdempotencyPending)

	require.NoError(t, idem.Remember(ctx, "u1:k", 42))
	id, done, err := idem.Claim(ctx, "u1:k")
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, int64(42), id)

	// a finished entry survives Forget
	require.NoError(t, idem.Forget(ctx, "u1:k"))
	assert.True(t, mr.Exists(key))
}

func TestIdempotency_ForgetFreesPendingClaim(t *testing.T) {
	client, mr := setupTestRedis(t)
	idem := &Idempotency{Client: client}
	ctx := context.Background()

	_, _, err := idem.Claim(ctx, "u1:retry")
	require.NoError(t, err)
	require.NoError(t, idem.Forget(ctx, "u1:retry"))
	assert.False(t, mr.Exists("idem:order:create:u1:retry"))

	_, done, err := idem.Claim(ctx, "u1:retry")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestIdempotency_PendingClaimExpires(t *testing.T) {
	client, mr := setupTestRedis(t)
	idem := &Idempotency{Client: client}
	ctx := context.Background()

	_, _, err := idem.Claim(ctx, "u1:crashed")
	require.NoError(t, err)
	mr.FastForward(TTLIdempotencyPending + time.Second)

	_, done, err := idem.Claim(ctx, "u1:crashed")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestLocker(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := &Locker{Client: client, TTL: 10 * time.Second}
	ctx := context.Background()

	unlock, ok, err := l.TryLock(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok)

	// other orders are independent
	unlockOther, ok, err := l.TryLock(ctx, 6)
	require.NoError(t, err)
	assert.True(t, ok)
	unlockOther()

	unlock()
	assert.False(t, mr.Exists("lock:order:5"))

	_, ok, err = l.TryLock(ctx, 5)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocker_StaleUnlockKeepsNewHolder(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := &Locker{Client: client, TTL: time.Second}
	ctx := context.Background()

	stale, ok, err := l.TryLock(ctx, 9)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, err = l.TryLock(ctx, 9)
	require.NoError(t, err)
	require.True(t, ok)

	stale()
	assert.True(t, mr.Exists("lock:order:9"))
}

func TestMarkOnce(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()
	key := fmt.Sprintf(KeyDedup, "svc", "evt-1")

	first, err := MarkOnce(ctx, client, key, TTLDedup)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := MarkOnce(ctx, client, key, TTLDedup)
	require.NoError(t, err)
	assert.False(t, again)

	assert.Equal(t, TTLDedup, mr.TTL(key))
}
