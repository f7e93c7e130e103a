package cart

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/redisx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Clearer empties a user's cart after a successful placement: the stored
// rows and the cart service's redis copy.
type Clearer struct {
	DB    *pgxpool.Pool
	Redis *redis.Client
}

var _ orders.CartClearer = (*Clearer)(nil)

func (c *Clearer) Clear(ctx context.Context, userID string) error {
	if _, err := c.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1`, userID); err != nil {
		return fmt.Errorf("delete cart rows: %w", err)
	}
	if c.Redis != nil {
		if err := c.Redis.Del(ctx, fmt.Sprintf(redisx.KeyCart, userID)).Err(); err != nil {
			return fmt.Errorf("redis delete failed: %w", err)
		}
	}
	return nil
}
