package procurement

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the supplier purchase lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusOrdered   Status = "ordered"
	StatusReceived  Status = "received"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known purchase status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusOrdered, StatusReceived, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Purchase is a supplier purchase. TotalAmount always equals the sum of item subtotals
// after a committed change.
type Purchase struct {
	ID           int64           `json:"purchase_id"`
	SupplierID   int64           `json:"supplier_id"`
	PurchaseDate time.Time       `json:"purchase_date"`
	Status       Status          `json:"status"`
	Notes        string          `json:"notes"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Supplier     *Supplier       `json:"supplier,omitempty"`
	Items        []Item          `json:"items"`
}

// Item is a purchased line. UnitCost is fixed once the line exists.
type Item struct {
	ID         int64           `json:"item_id"`
	PurchaseID int64           `json:"purchase_id"`
	ProductID  int64           `json:"product_id"`
	Quantity   int             `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Product    *Product        `json:"product,omitempty"`
}

// Supplier is embedded in purchase responses.
type Supplier struct {
	ID            int64  `json:"supplier_id"`
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Region        string `json:"region"`
	Status        string `json:"status"`
}

// Product is embedded in item responses. List views only fill ID and Name.
type Product struct {
	ID            int64            `json:"product_id"`
	Name          string           `json:"name"`
	Category      string           `json:"category,omitempty"`
	Unit          string           `json:"unit,omitempty"`
	UnitPrice     *decimal.Decimal `json:"unit_price,omitempty"`
	StockQuantity *int             `json:"stock_quantity,omitempty"`
	ReorderLevel  *int             `json:"reorder_level,omitempty"`
}

// ListFilters narrows purchase listings. From and To are inclusive dates.
type ListFilters struct {
	Search     string
	SupplierID int64
	Status     Status
	From       time.Time
	To         time.Time
}

// MonthlySpend is one month of non-cancelled purchase totals.
type MonthlySpend struct {
	Month      int             `json:"month"`
	TotalSpend decimal.Decimal `json:"totalSpend"`
}

// Drift reports a stored total that differs from the sum of item subtotals.
type Drift struct {
	PurchaseID int64           `json:"purchase_id"`
	Stored     decimal.Decimal `json:"stored"`
	Computed   decimal.Decimal `json:"computed"`
	Repaired   bool            `json:"repaired"`
}

// CreatePurchaseInput describes purchase creation.
type CreatePurchaseInput struct {
	SupplierID   int64       `json:"supplier_id" validate:"required,gt=0"`
	PurchaseDate *time.Time  `json:"purchase_date"`
	Status       Status      `json:"status" validate:"omitempty,oneof=pending ordered received completed cancelled"`
	Notes        string      `json:"notes"`
	Items        []ItemInput `json:"items" validate:"dive"`
}

// ItemInput describes a purchase line.
type ItemInput struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  int             `json:"quantity" validate:"required,gt=0,max=2147483647"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

// UpdateItemInput changes a line quantity.
type UpdateItemInput struct {
	Quantity *int `json:"quantity" validate:"required,gt=0,max=2147483647"`
}

// UpdatePurchaseInput patches header fields. Totals and stock never change here.
type UpdatePurchaseInput struct {
	SupplierID   *int64     `json:"supplier_id" validate:"omitempty,gt=0"`
	PurchaseDate *time.Time `json:"purchase_date"`
	Status       *Status    `json:"status" validate:"omitempty,oneof=pending ordered received completed cancelled"`
	Notes        *string    `json:"notes"`
}

func subtotal(qty int, cost decimal.Decimal) decimal.Decimal {
	return cost.Mul(decimal.NewFromInt(int64(qty)))
}
