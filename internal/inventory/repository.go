package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockroom/stockroom/internal/platform/db"
)

// Repository reads the stock card from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListMovements returns stock card entries, newest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	var where db.Where
	if filter.ProductID > 0 {
		where.Add("product_id = $%d", filter.ProductID)
	}
	if filter.RefModule != "" {
		where.Add("ref_module = $%d", string(filter.RefModule))
	}
	if !filter.From.IsZero() {
		where.Add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		where.Add("created_at < $%d", filter.To)
	}
	query := `SELECT movement_id, product_id, qty_change, balance_after, ref_module, ref_id, note, created_at
FROM inventory_movements` + where.SQL() + " ORDER BY created_at DESC, movement_id DESC LIMIT " + where.Bind(filter.Limit)

	rows, err := r.pool.Query(ctx, query, where.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var m Movement
		var ref string
		if err := rows.Scan(&m.ID, &m.ProductID, &m.QtyChange, &m.BalanceAfter, &ref, &m.RefID, &m.Note, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.RefModule = RefModule(ref)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// Querier is satisfied by pgx.Tx, *pgxpool.Pool and *pgx.Conn.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxStock implements StockTx on top of a Querier. Row locks only last as long as the
// surrounding transaction, so q should be a pgx.Tx.
type TxStock struct {
	q Querier
}

// NewTxStock wraps q.
func NewTxStock(q Querier) *TxStock {
	return &TxStock{q: q}
}

// GetProductForUpdate locks the product row until tx ends.
func (s *TxStock) GetProductForUpdate(ctx context.Context, productID int64) (ProductStock, error) {
	var ps ProductStock
	err := s.q.QueryRow(ctx, `SELECT product_id, name, stock_quantity FROM products WHERE product_id = $1 FOR UPDATE`, productID).
		Scan(&ps.ProductID, &ps.Name, &ps.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return ProductStock{}, ErrProductNotFound
	}
	if err != nil {
		return ProductStock{}, err
	}
	return ps, nil
}

func (s *TxStock) SetProductStock(ctx context.Context, productID int64, qty int) error {
	_, err := s.q.Exec(ctx, `UPDATE products SET stock_quantity = $2, updated_at = NOW() WHERE product_id = $1`, productID, qty)
	return err
}

func (s *TxStock) InsertMovement(ctx context.Context, m Movement) error {
	_, err := s.q.Exec(ctx, `INSERT INTO inventory_movements (product_id, qty_change, balance_after, ref_module, ref_id, note)
VALUES ($1, $2, $3, $4, $5, $6)`, m.ProductID, m.QtyChange, m.BalanceAfter, string(m.RefModule), m.RefID, m.Note)
	return err
}
