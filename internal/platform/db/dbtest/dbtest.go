// Package dbtest opens the migrated PostgreSQL database used by repository tests.
package dbtest

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/stockroom/stockroom/internal/platform/db"
)

// EnvDSN names the variable holding the test database DSN.
const EnvDSN = "STOCKROOM_TEST_PG_DSN"

// lockKey serialises test packages that share one database.
const lockKey = 7_470_001

// Open skips t unless EnvDSN is set. Otherwise it migrates the database, empties every table
// and returns a pool that is closed when t ends. The database stays locked against other
// callers of Open until then.
func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(EnvDSN)
	if dsn == "" {
		t.Skipf("%s not set", EnvDSN)
	}
	ctx := context.Background()

	pool, err := db.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, lockKey)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, lockKey)
		conn.Release()
	})

	require.NoError(t, db.Migrate(dsn))
	_, err = pool.Exec(ctx, `TRUNCATE suppliers, products, customers, customer_orders, customer_order_items,
	supplier_purchases, supplier_purchase_items, inventory_movements, audit_logs, idempotency_keys
	RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return pool
}

// Exec runs a seeding statement and fails t on error.
func Exec(t *testing.T, pool *pgxpool.Pool, sql string, args ...any) {
	t.Helper()
	_, err := pool.Exec(context.Background(), sql, args...)
	require.NoError(t, err)
}

// Stock returns the stored stock_quantity of a product.
func Stock(t *testing.T, pool *pgxpool.Pool, productID int64) int {
	t.Helper()
	var qty int
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT stock_quantity FROM products WHERE product_id = $1`, productID).Scan(&qty))
	return qty
}
