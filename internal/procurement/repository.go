package procurement

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stockroom/stockroom/internal/inventory"
	"github.com/stockroom/stockroom/internal/platform/db"
	"github.com/stockroom/stockroom/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations. Reads suffixed ForUpdate lock their rows
// until the surrounding transaction ends.
type TxRepository interface {
	inventory.StockTx

	SupplierExists(ctx context.Context, id int64) (bool, error)
	GetForUpdate(ctx context.Context, id int64) (Purchase, error)
	CreatePurchase(ctx context.Context, p Purchase) (Purchase, error)
	UpdateHeader(ctx context.Context, p Purchase) error
	SetTotal(ctx context.Context, id int64, total decimal.Decimal) error
	DeletePurchase(ctx context.Context, id int64) error
	InsertItem(ctx context.Context, item Item) (Item, error)
	GetItemForUpdate(ctx context.Context, purchaseID, itemID int64) (Item, error)
	UpdateItem(ctx context.Context, item Item) (Item, error)
	DeleteItem(ctx context.Context, itemID int64) error
	ListItemsForUpdate(ctx context.Context, purchaseID int64) ([]Item, error)
}

type txRepo struct {
	*inventory.TxStock
	tx pgx.Tx
}

// WithTx wraps callback in a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{TxStock: inventory.NewTxStock(tx), tx: tx})
	})
}

func purchaseNotFound(id int64) error {
	return httpx.NotFoundf("purchase %d not found", id)
}

func itemNotFound(id int64) error {
	return httpx.NotFoundf("item %d not found", id)
}

// Fetch helpers

const selectPurchase = `SELECT p.purchase_id, p.supplier_id, p.purchase_date, p.status, COALESCE(p.notes, ''),
	p.total_amount, p.created_at, p.updated_at,
	s.supplier_id, s.name, COALESCE(s.contact_person, ''), COALESCE(s.email, ''), COALESCE(s.phone, ''),
	COALESCE(s.region, ''), s.status
FROM supplier_purchases p
JOIN suppliers s ON s.supplier_id = p.supplier_id`

func scanPurchase(row pgx.Row) (Purchase, error) {
	var (
		p Purchase
		s Supplier
	)
	if err := row.Scan(&p.ID, &p.SupplierID, &p.PurchaseDate, &p.Status, &p.Notes, &p.TotalAmount, &p.CreatedAt, &p.UpdatedAt,
		&s.ID, &s.Name, &s.ContactPerson, &s.Email, &s.Phone, &s.Region, &s.Status); err != nil {
		return Purchase{}, err
	}
	p.Supplier = &s
	p.Items = []Item{}
	return p, nil
}

// List returns purchases newest first with items and their product names.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Purchase, error) {
	var where db.Where
	if filters.Search != "" {
		where.Add("s.name ILIKE $%d ESCAPE '\\'", db.Like(filters.Search))
	}
	if filters.SupplierID > 0 {
		where.Add("p.supplier_id = $%d", filters.SupplierID)
	}
	if filters.Status != "" {
		where.Add("p.status = $%d", string(filters.Status))
	}
	if !filters.From.IsZero() && !filters.To.IsZero() {
		where.Add("p.purchase_date >= $%d", filters.From)
		where.Add("p.purchase_date < $%d", filters.To.AddDate(0, 0, 1))
	}

	rows, err := r.pool.Query(ctx, selectPurchase+where.SQL()+" ORDER BY p.purchase_date DESC, p.purchase_id DESC", where.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := []Purchase{}
	index := map[int64]int{}
	var ids []int64
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		index[p.ID] = len(purchases)
		ids = append(ids, p.ID)
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return purchases, nil
	}

	lineRows, err := r.pool.Query(ctx, `SELECT i.item_id, i.purchase_id, i.product_id, i.quantity, i.unit_cost, i.subtotal,
	i.created_at, i.updated_at, p.product_id, p.name
FROM supplier_purchase_items i
LEFT JOIN products p ON p.product_id = i.product_id
WHERE i.purchase_id = ANY($1)
ORDER BY i.item_id`, ids)
	if err != nil {
		return nil, err
	}
	defer lineRows.Close()
	for lineRows.Next() {
		var (
			it    Item
			pID   *int64
			pName *string
		)
		if err := lineRows.Scan(&it.ID, &it.PurchaseID, &it.ProductID, &it.Quantity, &it.UnitCost, &it.Subtotal,
			&it.CreatedAt, &it.UpdatedAt, &pID, &pName); err != nil {
			return nil, err
		}
		if pID != nil && pName != nil {
			it.Product = &Product{ID: *pID, Name: *pName}
		}
		pos := index[it.PurchaseID]
		purchases[pos].Items = append(purchases[pos].Items, it)
	}
	return purchases, lineRows.Err()
}

// Get returns purchase with supplier and items joined to their full products.
func (r *Repository) Get(ctx context.Context, id int64) (Purchase, error) {
	p, err := scanPurchase(r.pool.QueryRow(ctx, selectPurchase+" WHERE p.purchase_id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Purchase{}, purchaseNotFound(id)
		}
		return Purchase{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT i.item_id, i.purchase_id, i.product_id, i.quantity, i.unit_cost, i.subtotal,
	i.created_at, i.updated_at,
	p.product_id, p.name, p.category, p.unit, p.unit_price, p.stock_quantity, p.reorder_level
FROM supplier_purchase_items i
LEFT JOIN products p ON p.product_id = i.product_id
WHERE i.purchase_id = $1
ORDER BY i.item_id`, id)
	if err != nil {
		return Purchase{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			it        Item
			pID       *int64
			pName     *string
			category  *string
			unit      *string
			unitPrice *decimal.Decimal
			stock     *int
			reorder   *int
		)
		if err := rows.Scan(&it.ID, &it.PurchaseID, &it.ProductID, &it.Quantity, &it.UnitCost, &it.Subtotal,
			&it.CreatedAt, &it.UpdatedAt,
			&pID, &pName, &category, &unit, &unitPrice, &stock, &reorder); err != nil {
			return Purchase{}, err
		}
		if pID != nil {
			product := &Product{ID: *pID, UnitPrice: unitPrice, StockQuantity: stock, ReorderLevel: reorder}
			if pName != nil {
				product.Name = *pName
			}
			if category != nil {
				product.Category = *category
			}
			if unit != nil {
				product.Unit = *unit
			}
			it.Product = product
		}
		p.Items = append(p.Items, it)
	}
	return p, rows.Err()
}

// ListIDs returns every purchase id in ascending order.
func (r *Repository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT purchase_id FROM supplier_purchases ORDER BY purchase_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// MonthlySpend sums non-cancelled purchase totals per UTC month of year.
func (r *Repository) MonthlySpend(ctx context.Context, year int) (map[int]decimal.Decimal, error) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	rows, err := r.pool.Query(ctx, `SELECT EXTRACT(MONTH FROM purchase_date AT TIME ZONE 'UTC')::int AS month, SUM(total_amount)
FROM supplier_purchases
WHERE purchase_date >= $1 AND purchase_date < $2 AND status <> 'cancelled'
GROUP BY month`, start, start.AddDate(1, 0, 0))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[int]decimal.Decimal{}
	for rows.Next() {
		var (
			month int
			sum   decimal.Decimal
		)
		if err := rows.Scan(&month, &sum); err != nil {
			return nil, err
		}
		out[month] = sum
	}
	return out, rows.Err()
}

// Transactional helpers

func (t *txRepo) SupplierExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM suppliers WHERE supplier_id = $1)`, id).Scan(&exists)
	return exists, err
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (Purchase, error) {
	var p Purchase
	err := t.tx.QueryRow(ctx, `SELECT purchase_id, supplier_id, purchase_date, status, COALESCE(notes, ''), total_amount,
	created_at, updated_at
FROM supplier_purchases WHERE purchase_id = $1 FOR UPDATE`, id).
		Scan(&p.ID, &p.SupplierID, &p.PurchaseDate, &p.Status, &p.Notes, &p.TotalAmount, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Purchase{}, purchaseNotFound(id)
	}
	return p, err
}

func (t *txRepo) CreatePurchase(ctx context.Context, p Purchase) (Purchase, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO supplier_purchases (supplier_id, purchase_date, status, notes, total_amount)
VALUES ($1, $2, $3, $4, $5) RETURNING purchase_id, created_at, updated_at`,
		p.SupplierID, p.PurchaseDate, string(p.Status), p.Notes, p.TotalAmount).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Purchase{}, err
	}
	return p, nil
}

func (t *txRepo) UpdateHeader(ctx context.Context, p Purchase) error {
	tag, err := t.tx.Exec(ctx, `UPDATE supplier_purchases SET supplier_id = $2, purchase_date = $3, status = $4, notes = $5,
	updated_at = NOW()
WHERE purchase_id = $1`, p.ID, p.SupplierID, p.PurchaseDate, string(p.Status), p.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return purchaseNotFound(p.ID)
	}
	return nil
}

func (t *txRepo) SetTotal(ctx context.Context, id int64, total decimal.Decimal) error {
	_, err := t.tx.Exec(ctx, `UPDATE supplier_purchases SET total_amount = $2, updated_at = NOW() WHERE purchase_id = $1`, id, total)
	return err
}

func (t *txRepo) DeletePurchase(ctx context.Context, id int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM supplier_purchase_items WHERE purchase_id = $1`, id); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM supplier_purchases WHERE purchase_id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return purchaseNotFound(id)
	}
	return nil
}

func (t *txRepo) InsertItem(ctx context.Context, it Item) (Item, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO supplier_purchase_items (purchase_id, product_id, quantity, unit_cost, subtotal)
VALUES ($1, $2, $3, $4, $5) RETURNING item_id, created_at, updated_at`,
		it.PurchaseID, it.ProductID, it.Quantity, it.UnitCost, it.Subtotal).Scan(&it.ID, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return Item{}, err
	}
	return it, nil
}

func (t *txRepo) GetItemForUpdate(ctx context.Context, purchaseID, itemID int64) (Item, error) {
	var it Item
	err := t.tx.QueryRow(ctx, `SELECT item_id, purchase_id, product_id, quantity, unit_cost, subtotal, created_at, updated_at
FROM supplier_purchase_items WHERE item_id = $1 AND purchase_id = $2 FOR UPDATE`, itemID, purchaseID).
		Scan(&it.ID, &it.PurchaseID, &it.ProductID, &it.Quantity, &it.UnitCost, &it.Subtotal, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, itemNotFound(itemID)
	}
	return it, err
}

func (t *txRepo) UpdateItem(ctx context.Context, it Item) (Item, error) {
	err := t.tx.QueryRow(ctx, `UPDATE supplier_purchase_items SET quantity = $2, subtotal = $3, updated_at = NOW()
WHERE item_id = $1 RETURNING updated_at`, it.ID, it.Quantity, it.Subtotal).Scan(&it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, itemNotFound(it.ID)
	}
	return it, err
}

func (t *txRepo) DeleteItem(ctx context.Context, itemID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM supplier_purchase_items WHERE item_id = $1`, itemID)
	return err
}

func (t *txRepo) ListItemsForUpdate(ctx context.Context, purchaseID int64) ([]Item, error) {
	rows, err := t.tx.Query(ctx, `SELECT item_id, purchase_id, product_id, quantity, unit_cost, subtotal, created_at, updated_at
FROM supplier_purchase_items WHERE purchase_id = $1 ORDER BY item_id FOR UPDATE`, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.PurchaseID, &it.ProductID, &it.Quantity, &it.UnitCost, &it.Subtotal, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
