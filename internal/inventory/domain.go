package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/stockroom/stockroom/internal/platform/httpx"
)

// RefModule names the document type that caused a stock movement.
type RefModule string

const (
	// RefCustomerOrder marks movements caused by customer order items.
	RefCustomerOrder RefModule = "customer_order"
	// RefSupplierPurchase marks movements caused by supplier purchase items.
	RefSupplierPurchase RefModule = "supplier_purchase"
)

// ProductStock is the locked view of a product row used while moving stock.
type ProductStock struct {
	ProductID int64
	Name      string
	Quantity  int
}

// Movement is one stock card entry.
type Movement struct {
	ID           int64     `json:"movement_id"`
	ProductID    int64     `json:"product_id"`
	QtyChange    int       `json:"qty_change"`
	BalanceAfter int       `json:"balance_after"`
	RefModule    RefModule `json:"ref_module"`
	RefID        int64     `json:"ref_id"`
	Note         string    `json:"note"`
	CreatedAt    time.Time `json:"created_at"`
}

// MovementFilter filters stock card entries.
type MovementFilter struct {
	ProductID int64
	RefModule RefModule
	From      time.Time
	To        time.Time
	Limit     int
}

// ErrProductNotFound is returned when a movement targets a missing product.
var ErrProductNotFound = fmt.Errorf("%w: product not found", httpx.ErrNotFound)

// ErrInsufficientStock is matched by every InsufficientStockError.
var ErrInsufficientStock = errors.New("inventory: insufficient stock")

// InsufficientStockError reports a movement that would drive stock below zero.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Available   int
	Required    int
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = fmt.Sprintf("product %d", e.ProductID)
	}
	return fmt.Sprintf("insufficient stock for %s: available %d, required %d", name, e.Available, e.Required)
}

// Unwrap lets callers match both ErrInsufficientStock and httpx.ErrValidation.
func (e *InsufficientStockError) Unwrap() []error {
	return []error{ErrInsufficientStock, httpx.ErrValidation}
}
