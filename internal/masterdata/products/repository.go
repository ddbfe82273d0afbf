package products

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockroom/stockroom/internal/platform/db"
	"github.com/stockroom/stockroom/internal/platform/httpx"
)

// Repository persists products.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, product Product) (Product, error)
	Delete(ctx context.Context, id int64) error
	Categories(ctx context.Context) ([]string, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a PostgreSQL backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const selectProduct = `SELECT p.product_id, p.name, COALESCE(p.description, ''), COALESCE(p.category, ''),
	COALESCE(p.unit, ''), p.unit_price, p.stock_quantity, p.reorder_level, p.supplier_id,
	p.created_at, p.updated_at,
	s.supplier_id, s.name, COALESCE(s.contact_person, ''), COALESCE(s.email, ''),
	COALESCE(s.phone, ''), COALESCE(s.region, ''), s.status
FROM products p
LEFT JOIN suppliers s ON s.supplier_id = p.supplier_id`

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p   Product
		sID *int64
		s   Supplier
		sN  *string
		sSt *string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Unit, &p.UnitPrice,
		&p.StockQuantity, &p.ReorderLevel, &p.SupplierID, &p.CreatedAt, &p.UpdatedAt,
		&sID, &sN, &s.ContactPerson, &s.Email, &s.Phone, &s.Region, &sSt)
	if err != nil {
		return Product{}, err
	}
	if sID != nil {
		s.ID = *sID
		if sN != nil {
			s.Name = *sN
		}
		if sSt != nil {
			s.Status = *sSt
		}
		p.Supplier = &s
	}
	return p, nil
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Product, error) {
	var where db.Where
	if filters.Search != "" {
		where.Add("(p.name ILIKE $%[1]d ESCAPE '\\' OR p.description ILIKE $%[1]d ESCAPE '\\')", db.Like(filters.Search))
	}
	if filters.Category != "" {
		where.Add("p.category = $%d", filters.Category)
	}
	if filters.SupplierID > 0 {
		where.Add("p.supplier_id = $%d", filters.SupplierID)
	}
	if filters.LowStock {
		where.Raw("p.stock_quantity <= p.reorder_level")
	}

	rows, err := r.db.Query(ctx, selectProduct+where.SQL()+" ORDER BY p.name ASC, p.product_id ASC", where.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, selectProduct+" WHERE p.product_id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, httpx.NotFoundf("product %d not found", id)
	}
	return p, err
}

func (r *repository) Create(ctx context.Context, p Product) (Product, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO products
	(name, description, category, unit, unit_price, stock_quantity, reorder_level, supplier_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING product_id`,
		p.Name, p.Description, p.Category, p.Unit, p.UnitPrice, p.StockQuantity, p.ReorderLevel, p.SupplierID).Scan(&id)
	if err != nil {
		return Product{}, mapWriteError(err, p)
	}
	return r.Get(ctx, id)
}

func (r *repository) Update(ctx context.Context, p Product) (Product, error) {
	tag, err := r.db.Exec(ctx, `UPDATE products SET name = $2, description = $3, category = $4, unit = $5,
	unit_price = $6, stock_quantity = $7, reorder_level = $8, supplier_id = $9, updated_at = NOW()
WHERE product_id = $1`,
		p.ID, p.Name, p.Description, p.Category, p.Unit, p.UnitPrice, p.StockQuantity, p.ReorderLevel, p.SupplierID)
	if err != nil {
		return Product{}, mapWriteError(err, p)
	}
	if tag.RowsAffected() == 0 {
		return Product{}, httpx.NotFoundf("product %d not found", p.ID)
	}
	return r.Get(ctx, p.ID)
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE product_id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.NotFoundf("product %d not found", id)
	}
	return nil
}

func (r *repository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT category FROM products WHERE category IS NOT NULL AND category <> '' ORDER BY category`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func mapWriteError(err error, p Product) error {
	switch {
	case db.IsCode(err, db.CodeForeignKeyViolation) && p.SupplierID != nil:
		return httpx.Invalidf("supplier %d does not exist", *p.SupplierID)
	case db.IsCode(err, db.CodeCheckViolation):
		return httpx.Invalidf("product violates a stock constraint")
	default:
		return err
	}
}
