// Package postgrestest starts a throwaway migrated postgres for integration tests.
package postgrestest

import (
	"context"
	"testing"
	"time"

	"github.com/ariefcatur/go-order-fulfillment/internal/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Start runs postgres in a container, applies the migrations and returns a
// pool. The test is skipped in -short mode or when no docker is available.
func Start(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	c, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("orders"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, postgres.Migrate(dsn))

	pool, err := postgres.Connect(ctx, dsn, postgres.PoolOptions{AppName: t.Name()})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

// SeedProduct inserts a product and returns its id.
func SeedProduct(t *testing.T, db *pgxpool.Pool, sku, price string, stock int) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(context.Background(),
		`INSERT INTO products(sku, name, price, stock) VALUES ($1,$1,$2::numeric,$3) RETURNING id`,
		sku, price, stock).Scan(&id)
	require.NoError(t, err)
	return id
}

// Stock reads the current counter of one product.
func Stock(t *testing.T, db *pgxpool.Pool, productID int64) int {
	t.Helper()
	var n int
	err := db.QueryRow(context.Background(), `SELECT stock FROM products WHERE id=$1`, productID).Scan(&n)
	require.NoError(t, err)
	return n
}
