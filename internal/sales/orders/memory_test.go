package orders

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/stockroom/stockroom/internal/inventory/inventorytest"
	"github.com/stockroom/stockroom/internal/platform/httpx"
)

// memoryRepo is a transactional in-memory Repository. WithTx runs the callback against a
// deep copy and only publishes it when the callback succeeds.
type memoryRepo struct {
	*inventorytest.Stock
	customers map[int64]Customer
	orders    map[int64]Order
	items     map[int64]Item
	nextOrder int64
	nextItem  int64

	failSetTotal error
	txCount      int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		Stock:     inventorytest.New(),
		customers: map[int64]Customer{},
		orders:    map[int64]Order{},
		items:     map[int64]Item{},
	}
}

func (m *memoryRepo) clone() *memoryRepo {
	c := *m
	c.Stock = m.Stock.Clone()
	c.customers = make(map[int64]Customer, len(m.customers))
	for k, v := range m.customers {
		c.customers[k] = v
	}
	c.orders = make(map[int64]Order, len(m.orders))
	for k, v := range m.orders {
		c.orders[k] = v
	}
	c.items = make(map[int64]Item, len(m.items))
	for k, v := range m.items {
		c.items[k] = v
	}
	return &c
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	m.txCount++
	tx := m.clone()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	txCount := m.txCount
	*m = *tx
	m.txCount = txCount
	return nil
}

func (m *memoryRepo) addCustomer(id int64, name string) {
	m.customers[id] = Customer{ID: id, Name: name, CustomerType: "retail", Status: "active"}
}

func (m *memoryRepo) itemsOf(orderID int64) []Item {
	var out []Item
	for _, it := range m.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memoryRepo) view(o Order) Order {
	c := m.customers[o.CustomerID]
	o.Customer = &c
	o.Items = []Item{}
	for _, it := range m.itemsOf(o.ID) {
		if ps, err := m.GetProductForUpdate(context.Background(), it.ProductID); err == nil {
			it.Product = &Product{ID: ps.ProductID, Name: ps.Name}
		}
		o.Items = append(o.Items, it)
	}
	return o
}

func (m *memoryRepo) List(_ context.Context, f ListFilters) ([]Order, error) {
	out := []Order{}
	for _, o := range m.orders {
		if f.CustomerID > 0 && o.CustomerID != f.CustomerID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(m.customers[o.CustomerID].Name), strings.ToLower(f.Search)) {
			continue
		}
		if !f.From.IsZero() && !f.To.IsZero() && (o.OrderDate.Before(f.From) || !o.OrderDate.Before(f.To.AddDate(0, 0, 1))) {
			continue
		}
		out = append(out, m.view(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderDate.After(out[j].OrderDate) })
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return Order{}, notFound(id)
	}
	return m.view(o), nil
}

func (m *memoryRepo) GetForUpdate(_ context.Context, id int64) (Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return Order{}, notFound(id)
	}
	return o, nil
}

func (m *memoryRepo) CustomerExists(_ context.Context, id int64) (bool, error) {
	_, ok := m.customers[id]
	return ok, nil
}

func (m *memoryRepo) Create(_ context.Context, o Order) (Order, error) {
	m.nextOrder++
	o.ID = m.nextOrder
	m.orders[o.ID] = o
	return o, nil
}

func (m *memoryRepo) UpdateHeader(_ context.Context, o Order) error {
	cur, ok := m.orders[o.ID]
	if !ok {
		return notFound(o.ID)
	}
	cur.CustomerID, cur.OrderDate, cur.Status, cur.ShippingAddress, cur.Notes = o.CustomerID, o.OrderDate, o.Status, o.ShippingAddress, o.Notes
	m.orders[o.ID] = cur
	return nil
}

func (m *memoryRepo) SetTotal(_ context.Context, id int64, total decimal.Decimal) error {
	if m.failSetTotal != nil {
		return m.failSetTotal
	}
	o := m.orders[id]
	o.TotalAmount = total
	m.orders[id] = o
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.orders[id]; !ok {
		return notFound(id)
	}
	for _, it := range m.itemsOf(id) {
		delete(m.items, it.ID)
	}
	delete(m.orders, id)
	return nil
}

func (m *memoryRepo) InsertItem(_ context.Context, it Item) (Item, error) {
	m.nextItem++
	it.ID = m.nextItem
	m.items[it.ID] = it
	return it, nil
}

func (m *memoryRepo) GetItemForUpdate(_ context.Context, orderID, itemID int64) (Item, error) {
	it, ok := m.items[itemID]
	if !ok || it.OrderID != orderID {
		return Item{}, httpx.NotFoundf("item %d not found", itemID)
	}
	return it, nil
}

func (m *memoryRepo) UpdateItem(_ context.Context, it Item) (Item, error) {
	if _, ok := m.items[it.ID]; !ok {
		return Item{}, httpx.NotFoundf("item %d not found", it.ID)
	}
	m.items[it.ID] = it
	return it, nil
}

func (m *memoryRepo) DeleteItem(_ context.Context, itemID int64) error {
	delete(m.items, itemID)
	return nil
}

func (m *memoryRepo) ListItemsForUpdate(_ context.Context, orderID int64) ([]Item, error) {
	return m.itemsOf(orderID), nil
}

func (m *memoryRepo) ListIDs(_ context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(m.orders))
	for id := range m.orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memoryRepo) MonthlyRevenue(_ context.Context, year int) (map[int]decimal.Decimal, error) {
	out := map[int]decimal.Decimal{}
	for _, o := range m.orders {
		if o.OrderDate.UTC().Year() != year || o.Status == StatusCancelled {
			continue
		}
		month := int(o.OrderDate.UTC().Month())
		out[month] = out[month].Add(o.TotalAmount)
	}
	return out, nil
}
