package products

import (
	"strings"

	"github.com/stockroom/stockroom/internal/platform/httpx"
)

func validateProduct(p Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return httpx.Invalidf("name is required")
	}
	if p.UnitPrice.IsNegative() {
		return httpx.Invalidf("unit_price must not be negative")
	}
	if p.StockQuantity < 0 {
		return httpx.Invalidf("stock_quantity must not be negative")
	}
	if p.ReorderLevel < 0 {
		return httpx.Invalidf("reorder_level must not be negative")
	}
	return nil
}
