package dashboard

import "github.com/shopspring/decimal"

// Summary is the headline dashboard card set.
type Summary struct {
	TotalProducts       int             `json:"totalProducts"`
	LowStockCount       int             `json:"lowStockCount"`
	TotalInventoryValue decimal.Decimal `json:"totalInventoryValue"`
	YTDRevenue          decimal.Decimal `json:"ytdRevenue"`
}

// LowStockProduct is a product below the alert threshold.
type LowStockProduct struct {
	ProductID     int64  `json:"product_id"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	StockQuantity int    `json:"stock_quantity"`
	ReorderLevel  int    `json:"reorder_level"`
}

// TopProduct aggregates units sold over non-cancelled orders.
type TopProduct struct {
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	TotalSold    int             `json:"total_sold"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}
