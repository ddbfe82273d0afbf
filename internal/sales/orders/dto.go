package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreateOrderRequest struct {
	CustomerID      int64         `json:"customer_id" validate:"required,gt=0"`
	OrderDate       *time.Time    `json:"order_date"`
	Status          Status        `json:"status" validate:"omitempty,oneof=pending processing shipped delivered completed cancelled"`
	ShippingAddress string        `json:"shipping_address"`
	Notes           string        `json:"notes"`
	Items           []ItemRequest `json:"items" validate:"dive"`
}

type ItemRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  int             `json:"quantity" validate:"required,gt=0,max=2147483647"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type UpdateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,gt=0,max=2147483647"`
}

// UpdateOrderRequest patches order header fields. Totals and stock are never patched here.
type UpdateOrderRequest struct {
	CustomerID      *int64     `json:"customer_id" validate:"omitempty,gt=0"`
	OrderDate       *time.Time `json:"order_date"`
	Status          *Status    `json:"status" validate:"omitempty,oneof=pending processing shipped delivered completed cancelled"`
	ShippingAddress *string    `json:"shipping_address"`
	Notes           *string    `json:"notes"`
}
