package suppliers

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status values accepted for suppliers.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Supplier represents a vendor of products.
type Supplier struct {
	ID            int64     `json:"supplier_id"`
	Name          string    `json:"name"`
	ContactPerson string    `json:"contact_person"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Address       string    `json:"address"`
	Region        string    `json:"region"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Products      []Product `json:"products,omitempty"`
}

// Product is the product summary embedded in supplier detail responses.
type Product struct {
	ID            int64           `json:"product_id"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	StockQuantity int             `json:"stock_quantity"`
	ReorderLevel  int             `json:"reorder_level"`
}

// ListFilters narrows supplier listings.
type ListFilters struct {
	Search string
	Region string
	Status string
}
