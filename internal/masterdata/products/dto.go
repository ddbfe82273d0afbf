package products

import "github.com/shopspring/decimal"

// CreateProductRequest is the payload of POST /products.
type CreateProductRequest struct {
	Name          string          `json:"name" validate:"required,max=200"`
	Description   string          `json:"description"`
	Category      string          `json:"category" validate:"max=100"`
	Unit          string          `json:"unit" validate:"max=30"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
	ReorderLevel  int             `json:"reorder_level" validate:"gte=0"`
	SupplierID    *int64          `json:"supplier_id" validate:"omitempty,gt=0"`
}

// UpdateProductRequest is the payload of PUT /products/{id}. Absent fields are left unchanged.
type UpdateProductRequest struct {
	Name          *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Description   *string          `json:"description"`
	Category      *string          `json:"category" validate:"omitempty,max=100"`
	Unit          *string          `json:"unit" validate:"omitempty,max=30"`
	UnitPrice     *decimal.Decimal `json:"unit_price"`
	StockQuantity *int             `json:"stock_quantity" validate:"omitempty,gte=0"`
	ReorderLevel  *int             `json:"reorder_level" validate:"omitempty,gte=0"`
	SupplierID    *int64           `json:"supplier_id" validate:"omitempty,gt=0"`
}

func (r CreateProductRequest) toProduct() Product {
	return Product{
		Name:          r.Name,
		Description:   r.Description,
		Category:      r.Category,
		Unit:          r.Unit,
		UnitPrice:     r.UnitPrice,
		StockQuantity: r.StockQuantity,
		ReorderLevel:  r.ReorderLevel,
		SupplierID:    r.SupplierID,
	}
}

func (r UpdateProductRequest) apply(p *Product) {
	if r.Name != nil {
		p.Name = *r.Name
	}
	if r.Description != nil {
		p.Description = *r.Description
	}
	if r.Category != nil {
		p.Category = *r.Category
	}
	if r.Unit != nil {
		p.Unit = *r.Unit
	}
	if r.UnitPrice != nil {
		p.UnitPrice = *r.UnitPrice
	}
	if r.StockQuantity != nil {
		p.StockQuantity = *r.StockQuantity
	}
	if r.ReorderLevel != nil {
		p.ReorderLevel = *r.ReorderLevel
	}
	if r.SupplierID != nil {
		p.SupplierID = r.SupplierID
	}
}
