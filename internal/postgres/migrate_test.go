package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h:5432/db?sslmode=disable", migrateURL("postgres://u:p@h:5432/db?sslmode=disable"))
	assert.Equal(t, "pgx5://u@h/db", migrateURL("postgresql://u@h/db"))
	assert.Equal(t, "pgx5://already", migrateURL("pgx5://already"))
}

func TestPoolConfig(t *testing.T) {
	cfg, err := poolConfig("postgres://u:p@h:5432/db?sslmode=disable", PoolOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(16), cfg.MaxConns)
	assert.Equal(t, int32(2), cfg.MinConns)
	assert.Equal(t, time.Hour, cfg.MaxConnLifetime)
	assert.Equal(t, "5000ms", cfg.ConnConfig.RuntimeParams["lock_timeout"])
	assert.NotContains(t, cfg.ConnConfig.RuntimeParams, "application_name")

	cfg, err = poolConfig("postgres://u:p@h:5432/db", PoolOptions{MaxConns: 40, AppName: "order-api-worker", LockTimeout: 2 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, int32(40), cfg.MaxConns)
	assert.Equal(t, "order-api-worker", cfg.ConnConfig.RuntimeParams["application_name"])
	assert.Equal(t, "2000ms", cfg.ConnConfig.RuntimeParams["lock_timeout"])

	_, err = poolConfig("postgres://u@h:notaport/db", PoolOptions{})
	assert.ErrorContains(t, err, "parse dsn")
}
