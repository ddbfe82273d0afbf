package products

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a stocked item.
type Product struct {
	ID            int64           `json:"product_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Unit          string          `json:"unit"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	StockQuantity int             `json:"stock_quantity"`
	ReorderLevel  int             `json:"reorder_level"`
	SupplierID    *int64          `json:"supplier_id"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Supplier      *Supplier       `json:"supplier,omitempty"`
}

// Supplier is the supplier summary embedded in product responses.
type Supplier struct {
	ID            int64  `json:"supplier_id"`
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Region        string `json:"region"`
	Status        string `json:"status"`
}

// ListFilters narrows product listings.
type ListFilters struct {
	Search     string
	Category   string
	SupplierID int64
	LowStock   bool
}
