package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the postgres-backed Store.
type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

const productColumns = `id, sku, name, price, stock, created_at, updated_at`

const orderColumns = `id, order_number, user_id, status, total, payment_method,
	customer_name, customer_email, customer_phone,
	shipping_street, shipping_city, shipping_state, shipping_postal_code, shipping_country,
	carrier, tracking_number, version, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var status string
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &status, &o.Total, &o.PaymentMethod,
		&o.Customer.Name, &o.Customer.Email, &o.Customer.Phone,
		&o.Shipping.Street, &o.Shipping.City, &o.Shipping.State, &o.Shipping.PostalCode, &o.Shipping.Country,
		&o.Carrier, &o.TrackingNumber, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	o.Status = Status(status)
	return o, err
}

func (r *Repo) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: %d", ErrProductNotFound, id)
	}
	if err != nil {
		return Product{}, fmt.Errorf("query product %d: %w", id, err)
	}
	return p, nil
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) CreateOrder(ctx context.Context, o *Order) error {
	return r.DB.QueryRow(ctx, `
		INSERT INTO orders(user_id, status, total, payment_method,
			customer_name, customer_email, customer_phone,
			shipping_street, shipping_city, shipping_state, shipping_postal_code, shipping_country)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id, version, created_at, updated_at`,
		o.UserID, string(o.Status), o.Total, o.PaymentMethod,
		o.Customer.Name, o.Customer.Email, o.Customer.Phone,
		o.Shipping.Street, o.Shipping.City, o.Shipping.State, o.Shipping.PostalCode, o.Shipping.Country,
	).Scan(&o.ID, &o.Version, &o.CreatedAt, &o.UpdatedAt)
}

func (r *Repo) AssignNumber(ctx context.Context, orderID int64, status Status, number string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$2, order_number=$3, version=version+1, updated_at=now()
		WHERE id=$1`, orderID, string(status), number)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
	}
	return nil
}

// InsertItems writes all lines of one order in a single transaction.
func (r *Repo) InsertItems(ctx context.Context, orderID int64, items []OrderItem) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i := range items {
		err := tx.QueryRow(ctx, `
			INSERT INTO order_items(order_id, product_id, quantity, price)
			VALUES ($1,$2,$3,$4) RETURNING id`,
			orderID, items[i].ProductID, items[i].Quantity, items[i].Price,
		).Scan(&items[i].ID)
		if err != nil {
			return fmt.Errorf("insert item product=%d: %w", items[i].ProductID, err)
		}
	}
	return tx.Commit(ctx)
}

// MarkCancelled is used only by the placement abort path; it bypasses the
// state machine because the abort path already released the stock itself.
func (r *Repo) MarkCancelled(ctx context.Context, orderID int64) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$2, version=version+1, updated_at=now() WHERE id=$1`,
		orderID, string(StatusCancelled))
	return err
}

func (r *Repo) GetOrder(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	if err != nil {
		return Order{}, fmt.Errorf("query order %d: %w", id, err)
	}
	return o, nil
}

func (r *Repo) GetItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, quantity, price
		FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []OrderItem{}
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// UpdateStatus is conditional on the version read by the caller. Carrier and
// tracking are only overwritten when non-empty.
func (r *Repo) UpdateStatus(ctx context.Context, u StatusUpdate) (Order, error) {
	return updateStatus(ctx, r.DB, u)
}

func (r *Repo) ReleaseAndUpdate(ctx context.Context, u StatusUpdate, items []OrderItem) (Order, []OrderItem, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var missed []OrderItem
	for _, it := range items {
		ct, err := tx.Exec(ctx, `
			UPDATE products SET stock = stock + $2, updated_at = now()
			WHERE id = $1`, it.ProductID, it.Quantity)
		if err != nil {
			return Order{}, nil, fmt.Errorf("release product %d: %w", it.ProductID, err)
		}
		if ct.RowsAffected() == 0 {
			missed = append(missed, it)
		}
	}

	o, err := updateStatus(ctx, tx, u)
	if err != nil {
		return Order{}, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, nil, fmt.Errorf("commit release of order %d: %w", u.OrderID, err)
	}
	return o, missed, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func updateStatus(ctx context.Context, q queryRower, u StatusUpdate) (Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, `
		UPDATE orders SET status=$3,
			carrier=COALESCE(NULLIF($4, ''), carrier),
			tracking_number=COALESCE(NULLIF($5, ''), tracking_number),
			version=version+1, updated_at=now()
		WHERE id=$1 AND version=$2
		RETURNING `+orderColumns,
		u.OrderID, u.Version, string(u.Status), u.Carrier, u.TrackingNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, u.OrderID).Scan(&exists); err != nil {
			return Order{}, fmt.Errorf("query order %d: %w", u.OrderID, err)
		}
		if !exists {
			return Order{}, fmt.Errorf("%w: %d", ErrOrderNotFound, u.OrderID)
		}
		return Order{}, fmt.Errorf("%w: order %d version %d", ErrVersionConflict, u.OrderID, u.Version)
	}
	if err != nil {
		return Order{}, err
	}
	return o, nil
}
