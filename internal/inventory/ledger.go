package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrInvalidQuantity = errors.New("quantity must be positive")

// Ledger keeps the available-stock counter in products.stock. Every mutation
// is one statement; there is no read-then-write at the application layer.
type Ledger struct{ DB *pgxpool.Pool }

var _ orders.Ledger = (*Ledger)(nil)

// Reserve decrements stock only if enough is left, in one round trip. A
// false result with nil error means insufficient stock (or unknown product).
func (l *Ledger) Reserve(ctx context.Context, productID int64, qty int) (bool, error) {
	if qty <= 0 {
		return false, ErrInvalidQuantity
	}
	ct, err := l.DB.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// Release credits qty back. Callers must release exactly what they reserved.
func (l *Ledger) Release(ctx context.Context, productID int64, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	ct, err := l.DB.Exec(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("release: %w: %d", orders.ErrProductNotFound, productID)
	}
	return nil
}

func (l *Ledger) Available(ctx context.Context, productID int64) (int, error) {
	var stock int
	err := l.DB.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %d", orders.ErrProductNotFound, productID)
	}
	return stock, err
}
