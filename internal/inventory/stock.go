package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stockroom/stockroom/internal/platform/db"
	"github.com/stockroom/stockroom/internal/platform/httpx"
)

// MaxStock is the largest stock_quantity a product can hold.
const MaxStock = db.MaxInteger

// StockTx is the transactional surface needed to move stock. Implementations must lock
// the product row in GetProductForUpdate until the surrounding transaction ends.
type StockTx interface {
	GetProductForUpdate(ctx context.Context, productID int64) (ProductStock, error)
	SetProductStock(ctx context.Context, productID int64, qty int) error
	InsertMovement(ctx context.Context, m Movement) error
}

// MoveParams describes a single signed stock change.
type MoveParams struct {
	ProductID int64
	QtyChange int
	RefModule RefModule
	RefID     int64
	Note      string
}

// Move applies params.QtyChange to the product inside tx and records a stock card entry.
// It returns ErrProductNotFound when the product does not exist and an
// *InsufficientStockError when the result would be negative. A result above MaxStock is a
// validation error.
func Move(ctx context.Context, tx StockTx, params MoveParams) (Movement, error) {
	if params.ProductID <= 0 {
		return Movement{}, ErrProductNotFound
	}
	stock, err := tx.GetProductForUpdate(ctx, params.ProductID)
	if err != nil {
		return Movement{}, err
	}
	if params.QtyChange == 0 {
		return Movement{ProductID: params.ProductID, BalanceAfter: stock.Quantity}, nil
	}
	if params.QtyChange > 0 && params.QtyChange > MaxStock-stock.Quantity {
		return Movement{}, httpx.Invalidf("stock for %s would exceed %d units", stock.Name, MaxStock)
	}
	if params.QtyChange < -stock.Quantity {
		return Movement{}, &InsufficientStockError{
			ProductID:   stock.ProductID,
			ProductName: stock.Name,
			Available:   stock.Quantity,
			Required:    -params.QtyChange,
		}
	}
	newQty := stock.Quantity + params.QtyChange
	if err := tx.SetProductStock(ctx, params.ProductID, newQty); err != nil {
		return Movement{}, fmt.Errorf("inventory: set stock for product %d: %w", params.ProductID, err)
	}
	m := Movement{
		ProductID:    params.ProductID,
		QtyChange:    params.QtyChange,
		BalanceAfter: newQty,
		RefModule:    params.RefModule,
		RefID:        params.RefID,
		Note:         params.Note,
		CreatedAt:    time.Now().UTC(),
	}
	if err := tx.InsertMovement(ctx, m); err != nil {
		return Movement{}, fmt.Errorf("inventory: record movement: %w", err)
	}
	return m, nil
}

// MoveIfPresent behaves like Move but treats a missing product as a no-op and reports
// whether stock was touched.
func MoveIfPresent(ctx context.Context, tx StockTx, params MoveParams) (bool, error) {
	_, err := Move(ctx, tx, params)
	if errors.Is(err, ErrProductNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
