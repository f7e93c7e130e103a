package cart

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-order-fulfillment/internal/postgres/postgrestest"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClearer_Clear(t *testing.T) {
	db := postgrestest.Start(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()

	p := postgrestest.SeedProduct(t, db, "MUG", "12.50", 5)
	_, err := db.Exec(ctx, `INSERT INTO cart_items(user_id, product_id, quantity) VALUES ('u1',$1,2),('u2',$1,1)`, p)
	require.NoError(t, err)
	require.NoError(t, mr.Set("cart:u1", `{"items":[]}`))

	c := &Clearer{DB: db, Redis: rdb}
	require.NoError(t, c.Clear(ctx, "u1"))

	var left int
	require.NoError(t, db.QueryRow(ctx, `SELECT count(*) FROM cart_items WHERE user_id='u1'`).Scan(&left))
	assert.Zero(t, left)
	require.NoError(t, db.QueryRow(ctx, `SELECT count(*) FROM cart_items WHERE user_id='u2'`).Scan(&left))
	assert.Equal(t, 1, left)
	assert.False(t, mr.Exists("cart:u1"))

	// clearing an empty cart is fine
	require.NoError(t, c.Clear(ctx, "u3"))
}
