package customers

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockroom/stockroom/internal/platform/db"
	"github.com/stockroom/stockroom/internal/platform/httpx"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (Customer, error)
	ListOrders(ctx context.Context, customerID int64) ([]Order, error)
	List(ctx context.Context, filters ListFilters) ([]Customer, error)
	Create(ctx context.Context, customer Customer) (Customer, error)
	Update(ctx context.Context, customer Customer) (Customer, error)
	Delete(ctx context.Context, id int64) error
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const selectCustomer = `SELECT customer_id, name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(address, ''),
	customer_type, status, created_at, updated_at
FROM customers`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CustomerType, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *repository) Get(ctx context.Context, id int64) (Customer, error) {
	c, err := scanCustomer(r.db.QueryRow(ctx, selectCustomer+" WHERE customer_id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, httpx.NotFoundf("customer %d not found", id)
	}
	return c, err
}

func (r *repository) ListOrders(ctx context.Context, customerID int64) ([]Order, error) {
	rows, err := r.db.Query(ctx, `SELECT order_id, order_date, status, total_amount
FROM customer_orders WHERE customer_id = $1 ORDER BY order_date DESC, order_id DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	orders := []Order{}
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.OrderDate, &o.Status, &o.TotalAmount); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Customer, error) {
	var where db.Where
	if filters.Search != "" {
		where.Add("(name ILIKE $%[1]d ESCAPE '\\' OR email ILIKE $%[1]d ESCAPE '\\' OR phone ILIKE $%[1]d ESCAPE '\\')", db.Like(filters.Search))
	}
	if filters.Status != "" {
		where.Add("status = $%d", filters.Status)
	}
	if filters.CustomerType != "" {
		where.Add("customer_type = $%d", filters.CustomerType)
	}
	rows, err := r.db.Query(ctx, selectCustomer+where.SQL()+" ORDER BY name ASC, customer_id ASC", where.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	customers := []Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (r *repository) Create(ctx context.Context, c Customer) (Customer, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO customers (name, email, phone, address, customer_type, status)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING customer_id, created_at, updated_at`,
		c.Name, c.Email, c.Phone, c.Address, c.CustomerType, c.Status).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Customer{}, err
	}
	return c, nil
}

func (r *repository) Update(ctx context.Context, c Customer) (Customer, error) {
	err := r.db.QueryRow(ctx, `UPDATE customers SET name = $2, email = $3, phone = $4, address = $5,
	customer_type = $6, status = $7, updated_at = NOW()
WHERE customer_id = $1 RETURNING updated_at`,
		c.ID, c.Name, c.Email, c.Phone, c.Address, c.CustomerType, c.Status).Scan(&c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, httpx.NotFoundf("customer %d not found", c.ID)
	}
	if err != nil {
		return Customer{}, err
	}
	return c, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM customers WHERE customer_id = $1`, id)
	if db.IsCode(err, db.CodeForeignKeyViolation) {
		return httpx.Conflictf("customer %d still has orders", id)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.NotFoundf("customer %d not found", id)
	}
	return nil
}
