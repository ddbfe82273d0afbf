package dashboard

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository exposes the aggregate queries the dashboard relies on.
type Repository interface {
	CountProducts(ctx context.Context) (int, error)
	CountBelow(ctx context.Context, threshold int) (int, error)
	InventoryValue(ctx context.Context) (decimal.Decimal, error)
	RevenueSince(ctx context.Context, from time.Time) (decimal.Decimal, error)
	LowStock(ctx context.Context, threshold int) ([]LowStockProduct, error)
	TopSelling(ctx context.Context, limit int) ([]TopProduct, error)
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a Postgres backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) CountProducts(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&n)
	return n, err
}

func (r *pgRepository) CountBelow(ctx context.Context, threshold int) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE stock_quantity < $1`, threshold).Scan(&n)
	return n, err
}

func (r *pgRepository) InventoryValue(ctx context.Context) (decimal.Decimal, error) {
	var v decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(stock_quantity * unit_price), 0) FROM products`).Scan(&v)
	return v, err
}

func (r *pgRepository) RevenueSince(ctx context.Context, from time.Time) (decimal.Decimal, error) {
	var v decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total_amount), 0) FROM customer_orders
WHERE order_date >= $1 AND status <> 'cancelled'`, from).Scan(&v)
	return v, err
}

func (r *pgRepository) LowStock(ctx context.Context, threshold int) ([]LowStockProduct, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_id, name, COALESCE(category, ''), stock_quantity, reorder_level
FROM products WHERE stock_quantity < $1
ORDER BY stock_quantity ASC, product_id ASC`, threshold)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (LowStockProduct, error) {
		var p LowStockProduct
		err := row.Scan(&p.ProductID, &p.Name, &p.Category, &p.StockQuantity, &p.ReorderLevel)
		return p, err
	})
}

func (r *pgRepository) TopSelling(ctx context.Context, limit int) ([]TopProduct, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.product_id, p.name, SUM(i.quantity)::int AS total_sold, SUM(i.subtotal) AS total_revenue
FROM customer_order_items i
JOIN customer_orders o ON o.order_id = i.order_id
JOIN products p ON p.product_id = i.product_id
WHERE o.status <> 'cancelled'
GROUP BY p.product_id, p.name
ORDER BY total_sold DESC, p.product_id ASC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TopProduct, error) {
		var p TopProduct
		err := row.Scan(&p.ProductID, &p.ProductName, &p.TotalSold, &p.TotalRevenue)
		return p, err
	})
}
