// Package inventorytest provides an in-memory inventory.StockTx for service tests.
package inventorytest

import (
	"context"
	"sort"
	"time"

	"github.com/stockroom/stockroom/internal/inventory"
)

// Stock is an in-memory product stock table. It is not safe for concurrent use; callers
// that need transactional behaviour work on a Clone and swap it in on commit.
type Stock struct {
	products  map[int64]inventory.ProductStock
	movements []inventory.Movement
	nextID    int64

	// FailSetStock, when set, is returned by SetProductStock.
	FailSetStock error
}

// New returns an empty Stock.
func New() *Stock {
	return &Stock{products: make(map[int64]inventory.ProductStock)}
}

// Put creates or replaces a product row.
func (s *Stock) Put(productID int64, name string, qty int) {
	s.products[productID] = inventory.ProductStock{ProductID: productID, Name: name, Quantity: qty}
}

// Remove deletes a product row.
func (s *Stock) Remove(productID int64) {
	delete(s.products, productID)
}

// Quantity returns the current stock of productID, or -1 when the product is missing.
func (s *Stock) Quantity(productID int64) int {
	ps, ok := s.products[productID]
	if !ok {
		return -1
	}
	return ps.Quantity
}

// Movements returns recorded movements in insertion order.
func (s *Stock) Movements() []inventory.Movement {
	out := make([]inventory.Movement, len(s.movements))
	copy(out, s.movements)
	return out
}

// Clone deep-copies the table.
func (s *Stock) Clone() *Stock {
	c := &Stock{
		products:     make(map[int64]inventory.ProductStock, len(s.products)),
		movements:    make([]inventory.Movement, len(s.movements)),
		nextID:       s.nextID,
		FailSetStock: s.FailSetStock,
	}
	for id, p := range s.products {
		c.products[id] = p
	}
	copy(c.movements, s.movements)
	return c
}

func (s *Stock) GetProductForUpdate(_ context.Context, productID int64) (inventory.ProductStock, error) {
	ps, ok := s.products[productID]
	if !ok {
		return inventory.ProductStock{}, inventory.ErrProductNotFound
	}
	return ps, nil
}

func (s *Stock) SetProductStock(_ context.Context, productID int64, qty int) error {
	if s.FailSetStock != nil {
		return s.FailSetStock
	}
	ps := s.products[productID]
	ps.Quantity = qty
	s.products[productID] = ps
	return nil
}

func (s *Stock) InsertMovement(_ context.Context, m inventory.Movement) error {
	s.nextID++
	m.ID = s.nextID
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.movements = append(s.movements, m)
	return nil
}

// ListMovements satisfies inventory.RepositoryPort.
func (s *Stock) ListMovements(_ context.Context, filter inventory.MovementFilter) ([]inventory.Movement, error) {
	var out []inventory.Movement
	for _, m := range s.movements {
		if filter.ProductID > 0 && m.ProductID != filter.ProductID {
			continue
		}
		if filter.RefModule != "" && m.RefModule != filter.RefModule {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
