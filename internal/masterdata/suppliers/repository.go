package suppliers

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockroom/stockroom/internal/platform/db"
	"github.com/stockroom/stockroom/internal/platform/httpx"
)

// Repository persists suppliers.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Supplier, error)
	Get(ctx context.Context, id int64) (Supplier, error)
	Create(ctx context.Context, supplier Supplier) (Supplier, error)
	Update(ctx context.Context, supplier Supplier) (Supplier, error)
	Delete(ctx context.Context, id int64) error
	Regions(ctx context.Context) ([]string, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a PostgreSQL backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const selectSupplier = `SELECT supplier_id, name, COALESCE(contact_person, ''), COALESCE(email, ''),
	COALESCE(phone, ''), COALESCE(address, ''), COALESCE(region, ''), status, created_at, updated_at
FROM suppliers`

func scanSupplier(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.Name, &s.ContactPerson, &s.Email, &s.Phone, &s.Address, &s.Region,
		&s.Status, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Supplier, error) {
	var where db.Where
	if filters.Search != "" {
		where.Add("(name ILIKE $%[1]d ESCAPE '\\' OR contact_person ILIKE $%[1]d ESCAPE '\\' OR email ILIKE $%[1]d ESCAPE '\\')", db.Like(filters.Search))
	}
	if filters.Region != "" {
		where.Add("region = $%d", filters.Region)
	}
	if filters.Status != "" {
		where.Add("status = $%d", filters.Status)
	}
	rows, err := r.db.Query(ctx, selectSupplier+where.SQL()+" ORDER BY name ASC, supplier_id ASC", where.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := []Supplier{}
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, rows.Err()
}

// Get returns the supplier with its products.
func (r *repository) Get(ctx context.Context, id int64) (Supplier, error) {
	s, err := scanSupplier(r.db.QueryRow(ctx, selectSupplier+" WHERE supplier_id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, httpx.NotFoundf("supplier %d not found", id)
	}
	if err != nil {
		return Supplier{}, err
	}
	rows, err := r.db.Query(ctx, `SELECT product_id, name, COALESCE(category, ''), unit_price, stock_quantity, reorder_level
FROM products WHERE supplier_id = $1 ORDER BY name`, id)
	if err != nil {
		return Supplier{}, err
	}
	defer rows.Close()
	s.Products = []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.UnitPrice, &p.StockQuantity, &p.ReorderLevel); err != nil {
			return Supplier{}, err
		}
		s.Products = append(s.Products, p)
	}
	return s, rows.Err()
}

func (r *repository) Create(ctx context.Context, s Supplier) (Supplier, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO suppliers (name, contact_person, email, phone, address, region, status)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING supplier_id, created_at, updated_at`,
		s.Name, s.ContactPerson, s.Email, s.Phone, s.Address, s.Region, s.Status).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return Supplier{}, err
	}
	return s, nil
}

func (r *repository) Update(ctx context.Context, s Supplier) (Supplier, error) {
	err := r.db.QueryRow(ctx, `UPDATE suppliers SET name = $2, contact_person = $3, email = $4, phone = $5,
	address = $6, region = $7, status = $8, updated_at = NOW()
WHERE supplier_id = $1 RETURNING updated_at`,
		s.ID, s.Name, s.ContactPerson, s.Email, s.Phone, s.Address, s.Region, s.Status).Scan(&s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, httpx.NotFoundf("supplier %d not found", s.ID)
	}
	if err != nil {
		return Supplier{}, err
	}
	s.Products = nil
	return s, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM suppliers WHERE supplier_id = $1`, id)
	if db.IsCode(err, db.CodeForeignKeyViolation) {
		return httpx.Conflictf("supplier %d is still referenced by products or purchases", id)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.NotFoundf("supplier %d not found", id)
	}
	return nil
}

func (r *repository) Regions(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT region FROM suppliers WHERE region IS NOT NULL AND region <> '' ORDER BY region`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
