package customers

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer types and statuses.
const (
	TypeRetail    = "retail"
	TypeWholesale = "wholesale"

	StatusActive   = "active"
	StatusInactive = "inactive"
)

type Customer struct {
	ID           int64     `json:"customer_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Address      string    `json:"address"`
	CustomerType string    `json:"customer_type"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Orders       []Order   `json:"orders,omitempty"`
}

// Order is the order summary embedded in customer detail responses.
type Order struct {
	ID          int64           `json:"order_id"`
	OrderDate   time.Time       `json:"order_date"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type ListFilters struct {
	Search       string
	Status       string
	CustomerType string
}
