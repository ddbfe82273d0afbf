package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is a known order status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Order is a customer order. TotalAmount is maintained alongside item mutations and always
// equals the sum of item subtotals after a committed change.
type Order struct {
	ID              int64           `json:"order_id"`
	CustomerID      int64           `json:"customer_id"`
	OrderDate       time.Time       `json:"order_date"`
	Status          Status          `json:"status"`
	ShippingAddress string          `json:"shipping_address"`
	Notes           string          `json:"notes"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Customer        *Customer       `json:"customer,omitempty"`
	Items           []Item          `json:"items"`
}

// Item is one order line. UnitPrice is a snapshot taken at creation and never changes.
type Item struct {
	ID        int64           `json:"item_id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Product   *Product        `json:"product,omitempty"`
}

// Customer is embedded in order responses.
type Customer struct {
	ID           int64  `json:"customer_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	CustomerType string `json:"customer_type"`
	Status       string `json:"status"`
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

// ListFilters narrows order listings. From and To are inclusive dates.
type ListFilters struct {
	Search     string
	CustomerID int64
	Status     Status
	From       time.Time
	To         time.Time
}

// MonthlyRevenue is one month of non-cancelled order totals.
type MonthlyRevenue struct {
	Month        int             `json:"month"`
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
}

// Drift reports a stored total that differs from the sum of item subtotals.
type Drift struct {
	OrderID  int64           `json:"order_id"`
	Stored   decimal.Decimal `json:"stored"`
	Computed decimal.Decimal `json:"computed"`
	Repaired bool            `json:"repaired"`
}

func subtotal(qty int, price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(qty)))
}
