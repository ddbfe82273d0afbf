package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stockroom/stockroom/internal/inventory"
	"github.com/stockroom/stockroom/internal/platform/db"
	"github.com/stockroom/stockroom/internal/platform/httpx"
)

// Repository is the order store. Methods suffixed ForUpdate lock the rows they return and
// are only meaningful on the Repository passed to a WithTx callback.
type Repository interface {
	inventory.StockTx

	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	List(ctx context.Context, filters ListFilters) ([]Order, error)
	Get(ctx context.Context, id int64) (Order, error)
	GetForUpdate(ctx context.Context, id int64) (Order, error)
	CustomerExists(ctx context.Context, id int64) (bool, error)
	Create(ctx context.Context, order Order) (Order, error)
	UpdateHeader(ctx context.Context, order Order) error
	SetTotal(ctx context.Context, id int64, total decimal.Decimal) error
	Delete(ctx context.Context, id int64) error
	InsertItem(ctx context.Context, item Item) (Item, error)
	GetItemForUpdate(ctx context.Context, orderID, itemID int64) (Item, error)
	UpdateItem(ctx context.Context, item Item) (Item, error)
	DeleteItem(ctx context.Context, itemID int64) error
	ListItemsForUpdate(ctx context.Context, orderID int64) ([]Item, error)
	ListIDs(ctx context.Context) ([]int64, error)
	MonthlyRevenue(ctx context.Context, year int) (map[int]decimal.Decimal, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	*inventory.TxStock
	db   dbtx
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{TxStock: inventory.NewTxStock(pool), db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{TxStock: inventory.NewTxStock(tx), db: tx, pool: r.pool})
	})
}

func notFound(id int64) error {
	return httpx.NotFoundf("order %d not found", id)
}

const selectOrder = `SELECT o.order_id, o.customer_id, o.order_date, o.status, COALESCE(o.shipping_address, ''),
	COALESCE(o.notes, ''), o.total_amount, o.created_at, o.updated_at,
	c.customer_id, c.name, COALESCE(c.email, ''), COALESCE(c.phone, ''), COALESCE(c.address, ''),
	c.customer_type, c.status
FROM customer_orders o
JOIN customers c ON c.customer_id = o.customer_id`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o Order
		c Customer
	)
	err := row.Scan(&o.ID, &o.CustomerID, &o.OrderDate, &o.Status, &o.ShippingAddress, &o.Notes,
		&o.TotalAmount, &o.CreatedAt, &o.UpdatedAt,
		&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CustomerType, &c.Status)
	if err != nil {
		return Order{}, err
	}
	o.Customer = &c
	o.Items = []Item{}
	return o, nil
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Order, error) {
	var where db.Where
	if filters.Search != "" {
		where.Add("c.name ILIKE $%d ESCAPE '\\'", db.Like(filters.Search))
	}
	if filters.CustomerID > 0 {
		where.Add("o.customer_id = $%d", filters.CustomerID)
	}
	if filters.Status != "" {
		where.Add("o.status = $%d", string(filters.Status))
	}
	if !filters.From.IsZero() && !filters.To.IsZero() {
		where.Add("o.order_date >= $%d", filters.From)
		where.Add("o.order_date < $%d", filters.To.AddDate(0, 0, 1))
	}

	rows, err := r.db.Query(ctx, selectOrder+where.SQL()+" ORDER BY o.order_date DESC, o.order_id DESC", where.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []Order{}
	index := map[int64]int{}
	var ids []int64
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		index[o.ID] = len(orders)
		ids = append(ids, o.ID)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return orders, nil
	}

	itemRows, err := r.db.Query(ctx, `SELECT i.item_id, i.order_id, i.product_id, i.quantity, i.unit_price, i.subtotal,
	i.created_at, i.updated_at, p.product_id, p.name
FROM customer_order_items i
LEFT JOIN products p ON p.product_id = i.product_id
WHERE i.order_id = ANY($1)
ORDER BY i.item_id`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var (
			it    Item
			pID   *int64
			pName *string
		)
		if err := itemRows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.Subtotal,
			&it.CreatedAt, &it.UpdatedAt, &pID, &pName); err != nil {
			return nil, err
		}
		if pID != nil && pName != nil {
			it.Product = &Product{ID: *pID, Name: *pName}
		}
		pos := index[it.OrderID]
		orders[pos].Items = append(orders[pos].Items, it)
	}
	return orders, itemRows.Err()
}

// Get returns the order with its customer and items joined to their full products.
func (r *repository) Get(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, selectOrder+" WHERE o.order_id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, notFound(id)
	}
	if err != nil {
		return Order{}, err
	}
	rows, err := r.db.Query(ctx, `SELECT i.item_id, i.order_id, i.product_id, i.quantity, i.unit_price, i.subtotal,
	i.created_at, i.updated_at,
	p.product_id, p.name, COALESCE(p.category, ''), COALESCE(p.unit, ''),
	COALESCE(p.unit_price, 0), COALESCE(p.stock_quantity, 0), COALESCE(p.reorder_level, 0)
FROM customer_order_items i
LEFT JOIN products p ON p.product_id = i.product_id
WHERE i.order_id = $1
ORDER BY i.item_id`, id)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			it    Item
			pID   *int64
			pName *string
			cat   *string
			unit  *string
			p     Product
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.Subtotal,
			&it.CreatedAt, &it.UpdatedAt,
			&pID, &pName, &cat, &unit, &p.UnitPrice, &p.StockQuantity, &p.ReorderLevel); err != nil {
			return Order{}, err
		}
		if pID != nil {
			p.ID = *pID
			p.Name = deref(pName)
			p.Category = deref(cat)
			p.Unit = deref(unit)
			it.Product = &p
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

func (r *repository) GetForUpdate(ctx context.Context, id int64) (Order, error) {
	var o Order
	err := r.db.QueryRow(ctx, `SELECT order_id, customer_id, order_date, status, COALESCE(shipping_address, ''),
	COALESCE(notes, ''), total_amount, created_at, updated_at
FROM customer_orders WHERE order_id = $1 FOR UPDATE`, id).
		Scan(&o.ID, &o.CustomerID, &o.OrderDate, &o.Status, &o.ShippingAddress, &o.Notes, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, notFound(id)
	}
	return o, err
}

func (r *repository) CustomerExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE customer_id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *repository) Create(ctx context.Context, o Order) (Order, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO customer_orders (customer_id, order_date, status, shipping_address, notes, total_amount)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING order_id, created_at, updated_at`,
		o.CustomerID, o.OrderDate, string(o.Status), o.ShippingAddress, o.Notes, o.TotalAmount).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *repository) UpdateHeader(ctx context.Context, o Order) error {
	tag, err := r.db.Exec(ctx, `UPDATE customer_orders SET customer_id = $2, order_date = $3, status = $4,
	shipping_address = $5, notes = $6, updated_at = NOW()
WHERE order_id = $1`, o.ID, o.CustomerID, o.OrderDate, string(o.Status), o.ShippingAddress, o.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(o.ID)
	}
	return nil
}

func (r *repository) SetTotal(ctx context.Context, id int64, total decimal.Decimal) error {
	_, err := r.db.Exec(ctx, `UPDATE customer_orders SET total_amount = $2, updated_at = NOW() WHERE order_id = $1`, id, total)
	return err
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM customer_order_items WHERE order_id = $1`, id); err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM customer_orders WHERE order_id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func (r *repository) InsertItem(ctx context.Context, it Item) (Item, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO customer_order_items (order_id, product_id, quantity, unit_price, subtotal)
VALUES ($1, $2, $3, $4, $5) RETURNING item_id, created_at, updated_at`,
		it.OrderID, it.ProductID, it.Quantity, it.UnitPrice, it.Subtotal).Scan(&it.ID, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return Item{}, err
	}
	return it, nil
}

func (r *repository) GetItemForUpdate(ctx context.Context, orderID, itemID int64) (Item, error) {
	var it Item
	err := r.db.QueryRow(ctx, `SELECT item_id, order_id, product_id, quantity, unit_price, subtotal, created_at, updated_at
FROM customer_order_items WHERE item_id = $1 AND order_id = $2 FOR UPDATE`, itemID, orderID).
		Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.Subtotal, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, httpx.NotFoundf("item %d not found", itemID)
	}
	return it, err
}

func (r *repository) UpdateItem(ctx context.Context, it Item) (Item, error) {
	err := r.db.QueryRow(ctx, `UPDATE customer_order_items SET quantity = $2, subtotal = $3, updated_at = NOW()
WHERE item_id = $1 RETURNING updated_at`, it.ID, it.Quantity, it.Subtotal).Scan(&it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, httpx.NotFoundf("item %d not found", it.ID)
	}
	return it, err
}

func (r *repository) DeleteItem(ctx context.Context, itemID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM customer_order_items WHERE item_id = $1`, itemID)
	return err
}

func (r *repository) ListItemsForUpdate(ctx context.Context, orderID int64) ([]Item, error) {
	rows, err := r.db.Query(ctx, `SELECT item_id, order_id, product_id, quantity, unit_price, subtotal, created_at, updated_at
FROM customer_order_items WHERE order_id = $1 ORDER BY item_id FOR UPDATE`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.Subtotal, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *repository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT order_id FROM customer_orders ORDER BY order_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r *repository) MonthlyRevenue(ctx context.Context, year int) (map[int]decimal.Decimal, error) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	rows, err := r.db.Query(ctx, `SELECT EXTRACT(MONTH FROM order_date AT TIME ZONE 'UTC')::int AS month, SUM(total_amount)
FROM customer_orders
WHERE order_date >= $1 AND order_date < $2 AND status <> 'cancelled'
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

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
