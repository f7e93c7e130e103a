package inventory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/postgres/postgrestest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_ReserveAndRelease(t *testing.T) {
	db := postgrestest.Start(t)
	l := &Ledger{DB: db}
	ctx := context.Background()
	id := postgrestest.SeedProduct(t, db, "MUG", "12.50", 5)

	ok, err := l.Reserve(ctx, id, 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, postgrestest.Stock(t, db, id))

	ok, err = l.Reserve(ctx, id, 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, postgrestest.Stock(t, db, id))

	require.NoError(t, l.Release(ctx, id, 3))
	n, err := l.Available(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestLedger_UnknownProduct(t *testing.T) {
	db := postgrestest.Start(t)
	l := &Ledger{DB: db}
	ctx := context.Background()

	ok, err := l.Reserve(ctx, 999, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, l.Release(ctx, 999, 1), orders.ErrProductNotFound)

	_, err = l.Available(ctx, 999)
	assert.ErrorIs(t, err, orders.ErrProductNotFound)
}

func TestLedger_RejectsNonPositiveQuantity(t *testing.T) {
	l := &Ledger{}
	_, err := l.Reserve(context.Background(), 1, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.ErrorIs(t, l.Release(context.Background(), 1, -2), ErrInvalidQuantity)
}

func TestLedger_ConcurrentReserveNeverOversells(t *testing.T) {
	db := postgrestest.Start(t)
	l := &Ledger{DB: db}
	id := postgrestest.SeedProduct(t, db, "TEA", "40.00", 10)

	var won atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Reserve(context.Background(), id, 1)
			if err == nil && ok {
				won.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), won.Load())
	assert.Equal(t, 0, postgrestest.Stock(t, db, id))
}
