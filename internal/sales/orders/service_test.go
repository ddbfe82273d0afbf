package orders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/stockroom/stockroom/internal/inventory"
	"github.com/stockroom/stockroom/internal/platform/httpx"
	"github.com/stockroom/stockroom/internal/shared"
)

// ============================================================================
// TEST DOUBLES
// ============================================================================

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type memoryIdempotency struct {
	keys map[string]bool
}

func (m *memoryIdempotency) CheckAndInsert(_ context.Context, key, module string) error {
	if m.keys[module+":"+key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[module+":"+key] = true
	return nil
}

func (m *memoryIdempotency) Delete(_ context.Context, key, module string) error {
	delete(m.keys, module+":"+key)
	return nil
}

type countingCache struct{ invalidations int }

func (c *countingCache) Invalidate(context.Context) error {
	c.invalidations++
	return nil
}

type countingMetrics struct{ rejections map[string]int }

func (c *countingMetrics) StockRejected(module string) { c.rejections[module]++ }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func requireDecimal(t *testing.T, expected string, actual decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, dec(expected).Equal(actual), "expected %s, got %s %v", expected, actual.String(), msgAndArgs)
}

// ============================================================================
// SUITE
// ============================================================================

type OrderServiceSuite struct {
	suite.Suite
	repo    *memoryRepo
	audit   *recordingAudit
	idem    *memoryIdempotency
	cache   *countingCache
	metrics *countingMetrics
	svc     *Service
	ctx     context.Context
}

const (
	productA int64 = 1
	productB int64 = 2
	customer int64 = 1
)

func (s *OrderServiceSuite) SetupTest() {
	s.repo = newMemoryRepo()
	s.repo.addCustomer(customer, "Corner Cafe")
	s.repo.Put(productA, "Arabica Beans", 50)
	s.repo.Put(productB, "Oat Milk", 20)
	s.audit = &recordingAudit{}
	s.idem = &memoryIdempotency{keys: map[string]bool{}}
	s.cache = &countingCache{}
	s.metrics = &countingMetrics{rejections: map[string]int{}}
	s.svc = NewService(s.repo, s.audit, s.idem, s.cache, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.svc.SetMetrics(s.metrics)
	s.ctx = context.Background()
}

func (s *OrderServiceSuite) createOrder(items ...ItemRequest) Order {
	order, err := s.svc.Create(s.ctx, CreateOrderRequest{CustomerID: customer, Items: items}, "")
	s.Require().NoError(err)
	return order
}

func (s *OrderServiceSuite) assertConsistent(orderID int64) {
	t := s.T()
	t.Helper()
	order, ok := s.repo.orders[orderID]
	require.True(t, ok, "order %d missing", orderID)
	sum := decimal.Zero
	for _, it := range s.repo.itemsOf(orderID) {
		requireDecimal(t, it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).String(), it.Subtotal, "item", it.ID)
		sum = sum.Add(it.Subtotal)
	}
	requireDecimal(t, sum.String(), order.TotalAmount, "order", orderID)
}

// ============================================================================
// CREATE
// ============================================================================

func (s *OrderServiceSuite) TestCreateWithItemsMovesStockAndSetsTotal() {
	order := s.createOrder(
		ItemRequest{ProductID: productA, Quantity: 5, UnitPrice: dec("12.50")},
		ItemRequest{ProductID: productB, Quantity: 3, UnitPrice: dec("4.20")},
	)

	requireDecimal(s.T(), "75.10", order.TotalAmount)
	s.Len(order.Items, 2)
	s.Equal(StatusPending, order.Status)
	s.Equal(45, s.repo.Quantity(productA))
	s.Equal(17, s.repo.Quantity(productB))
	s.assertConsistent(order.ID)

	movements := s.repo.Movements()
	s.Require().Len(movements, 2)
	s.Equal(inventory.RefCustomerOrder, movements[0].RefModule)
	s.Equal(order.ID, movements[0].RefID)
	s.Equal(1, s.cache.invalidations)
	s.Require().Len(s.audit.logs, 1)
	s.Equal("ORDER_CREATE", s.audit.logs[0].Action)
}

func (s *OrderServiceSuite) TestCreateWithoutItemsHasZeroTotal() {
	order := s.createOrder()
	requireDecimal(s.T(), "0", order.TotalAmount)
	s.Empty(order.Items)
}

func (s *OrderServiceSuite) TestCreateInsufficientStockWritesNothing() {
	_, err := s.svc.Create(s.ctx, CreateOrderRequest{CustomerID: customer, Items: []ItemRequest{
		{ProductID: productA, Quantity: 5, UnitPrice: dec("1")},
		{ProductID: productB, Quantity: 21, UnitPrice: dec("1")},
	}}, "")

	s.Require().Error(err)
	s.Equal(400, httpx.StatusFor(err))
	s.Equal("insufficient stock for Oat Milk: available 20, required 21", err.Error())
	s.Empty(s.repo.orders)
	s.Empty(s.repo.items)
	s.Equal(50, s.repo.Quantity(productA))
	s.Equal(20, s.repo.Quantity(productB))
	s.Empty(s.repo.Movements())
	s.Equal(1, s.metrics.rejections[idempotencyModule])
	s.Zero(s.cache.invalidations)
}

func (s *OrderServiceSuite) TestCreateSameProductTwiceChecksCumulativeStock() {
	_, err := s.svc.Create(s.ctx, CreateOrderRequest{CustomerID: customer, Items: []ItemRequest{
		{ProductID: productB, Quantity: 15, UnitPrice: dec("1")},
		{ProductID: productB, Quantity: 6, UnitPrice: dec("1")},
	}}, "")
	s.Require().ErrorIs(err, inventory.ErrInsufficientStock)
	s.Equal(20, s.repo.Quantity(productB))
}

func (s *OrderServiceSuite) TestCreateMissingProductOrCustomer() {
	_, err := s.svc.Create(s.ctx, CreateOrderRequest{CustomerID: customer, Items: []ItemRequest{
		{ProductID: productA, Quantity: 1, UnitPrice: dec("1")},
		{ProductID: 99, Quantity: 1, UnitPrice: dec("1")},
	}}, "")
	s.Require().Error(err)
	s.Equal("product 99 not found", err.Error())
	s.Equal(400, httpx.StatusFor(err))
	s.Equal(50, s.repo.Quantity(productA))

	_, err = s.svc.Create(s.ctx, CreateOrderRequest{CustomerID: 42}, "")
	s.Require().Error(err)
	s.Equal("customer 42 not found", err.Error())
}

func (s *OrderServiceSuite) TestCreateValidatesPayload() {
	_, err := s.svc.Create(s.ctx, CreateOrderRequest{Items: []ItemRequest{{ProductID: productA}}}, "")
	s.Require().ErrorIs(err, httpx.ErrValidation)
	s.Contains(err.Error(), "customer_id is required")
	s.Contains(err.Error(), "items[0].quantity is required")

	_, err = s.svc.Create(s.ctx, CreateOrderRequest{CustomerID: customer, Items: []ItemRequest{{ProductID: productA, Quantity: 1, UnitPrice: dec("-1")}}}, "")
	s.Require().ErrorIs(err, httpx.ErrValidation)
}

func (s *OrderServiceSuite) TestCreateIdempotencyKey() {
	key := "2f1d3c5e-8b7a-4c6d-9e0f-1a2b3c4d5e6f"
	req := CreateOrderRequest{CustomerID: customer, Items: []ItemRequest{{ProductID: productA, Quantity: 1, UnitPrice: dec("2")}}}

	_, err := s.svc.Create(s.ctx, req, key)
	s.Require().NoError(err)
	_, err = s.svc.Create(s.ctx, req, key)
	s.Require().ErrorIs(err, httpx.ErrConflict)
	s.Equal(49, s.repo.Quantity(productA))
	s.Len(s.repo.orders, 1)
}

func (s *OrderServiceSuite) TestCreateFailureReleasesIdempotencyKey() {
	key := "2f1d3c5e-8b7a-4c6d-9e0f-1a2b3c4d5e6f"
	_, err := s.svc.Create(s.ctx, CreateOrderRequest{CustomerID: customer, Items: []ItemRequest{{ProductID: productA, Quantity: 500, UnitPrice: dec("2")}}}, key)
	s.Require().Error(err)
	s.Empty(s.idem.keys)
}

// ============================================================================
// ITEM OPERATIONS
// ============================================================================

func (s *OrderServiceSuite) TestAddItemOverStockLeavesEverythingUnchanged() {
	order := s.createOrder(ItemRequest{ProductID: productA, Quantity: 2, UnitPrice: dec("3")})

	_, err := s.svc.AddItem(s.ctx, order.ID, ItemRequest{ProductID: productB, Quantity: 21, UnitPrice: dec("1")})

	s.Require().Error(err)
	s.Equal(400, httpx.StatusFor(err))
	s.Equal(20, s.repo.Quantity(productB))
	requireDecimal(s.T(), "6", s.repo.orders[order.ID].TotalAmount)
	s.Len(s.repo.itemsOf(order.ID), 1)
}

func (s *OrderServiceSuite) TestQuantityAndAmountBounds() {
	order := s.createOrder(ItemRequest{ProductID: productA, Quantity: 1, UnitPrice: dec("1000000000")})

	_, err := s.svc.AddItem(s.ctx, order.ID, ItemRequest{ProductID: productB, Quantity: 3_000_000_000, UnitPrice: dec("1")})
	s.Require().ErrorIs(err, httpx.ErrValidation)
	s.Equal("quantity must be at most 2147483647", err.Error())

	_, err = s.svc.AddItem(s.ctx, order.ID, ItemRequest{ProductID: productB, Quantity: 1, UnitPrice: dec("10000000000")})
	s.Require().ErrorIs(err, httpx.ErrValidation)
	s.Equal("subtotal 10000000000.00 exceeds the maximum of 9999999999.99", err.Error())

	_, err = s.svc.UpdateItemQuantity(s.ctx, order.ID, order.Items[0].ID, UpdateItemRequest{Quantity: intPtr(11)})
	s.Require().ErrorIs(err, httpx.ErrValidation)
	s.Equal(49, s.repo.Quantity(productA))
	s.Equal(1, s.repo.items[order.Items[0].ID].Quantity)

	_, err = s.svc.Create(s.ctx, CreateOrderRequest{CustomerID: customer, Items: []ItemRequest{
		{ProductID: productA, Quantity: 1, UnitPrice: dec("6000000000")},
		{ProductID: productB, Quantity: 1, UnitPrice: dec("6000000000")},
	}}, "")
	s.Require().ErrorIs(err, httpx.ErrValidation)
	s.Equal("total_amount 12000000000.00 exceeds the maximum of 9999999999.99", err.Error())
	s.Equal(49, s.repo.Quantity(productA))
	s.Equal(20, s.repo.Quantity(productB))
	s.assertConsistent(order.ID)
}

func (s *OrderServiceSuite) TestAddItemMissingParentOrProduct() {
	_, err := s.svc.AddItem(s.ctx, 77, ItemRequest{ProductID: productA, Quantity: 1, UnitPrice: dec("1")})
	s.Require().ErrorIs(err, httpx.ErrNotFound)
	s.Equal("order 77 not found", err.Error())

	order := s.createOrder()
	_, err = s.svc.AddItem(s.ctx, order.ID, ItemRequest{ProductID: 99, Quantity: 1, UnitPrice: dec("1")})
	s.Require().ErrorIs(err, httpx.ErrNotFound)
	s.Equal("product 99 not found", err.Error())
}

func (s *OrderServiceSuite) TestAddItemAdjustsTotalAndStock() {
	order := s.createOrder(ItemRequest{ProductID: productA, Quantity: 2, UnitPrice: dec("3")})

	item, err := s.svc.AddItem(s.ctx, order.ID, ItemRequest{ProductID: productB, Quantity: 4, UnitPrice: dec("2.25")})
	s.Require().NoError(err)
	requireDecimal(s.T(), "9", item.Subtotal)
	requireDecimal(s.T(), "15", s.repo.orders[order.ID].TotalAmount)
	s.Equal(16, s.repo.Quantity(productB))
	s.assertConsistent(order.ID)
}

func (s *OrderServiceSuite) TestUpdateItemQuantityDecrease() {
	s.repo.Put(productA, "Arabica Beans", 10)
	order := s.createOrder(
		ItemRequest{ProductID: productA, Quantity: 10, UnitPrice: dec("2.5")},
		ItemRequest{ProductID: productB, Quantity: 2, UnitPrice: dec("1")},
	)
	itemID := order.Items[0].ID
	s.Equal(0, s.repo.Quantity(productA))

	item, err := s.svc.UpdateItemQuantity(s.ctx, order.ID, itemID, UpdateItemRequest{Quantity: intPtr(4)})
	s.Require().NoError(err)

	requireDecimal(s.T(), "10.00", item.Subtotal)
	requireDecimal(s.T(), "2.5", item.UnitPrice)
	s.Equal(6, s.repo.Quantity(productA))
	requireDecimal(s.T(), "12", s.repo.orders[order.ID].TotalAmount)
	s.assertConsistent(order.ID)
}

func (s *OrderServiceSuite) TestUpdateItemQuantityIncreaseBeyondStock() {
	order := s.createOrder(ItemRequest{ProductID: productB, Quantity: 15, UnitPrice: dec("1")})
	itemID := order.Items[0].ID

	_, err := s.svc.UpdateItemQuantity(s.ctx, order.ID, itemID, UpdateItemRequest{Quantity: intPtr(21)})
	s.Require().ErrorIs(err, inventory.ErrInsufficientStock)
	s.Equal("insufficient stock for Oat Milk: available 5, required 6", err.Error())
	s.Equal(5, s.repo.Quantity(productB))
	s.Equal(15, s.repo.items[itemID].Quantity)

	_, err = s.svc.UpdateItemQuantity(s.ctx, order.ID, itemID, UpdateItemRequest{Quantity: intPtr(20)})
	s.Require().NoError(err)
	s.Equal(0, s.repo.Quantity(productB))
}

func (s *OrderServiceSuite) TestUpdateItemQuantityValidation() {
	order := s.createOrder(ItemRequest{ProductID: productB, Quantity: 1, UnitPrice: dec("1")})

	_, err := s.svc.UpdateItemQuantity(s.ctx, order.ID, order.Items[0].ID, UpdateItemRequest{})
	s.Require().ErrorIs(err, httpx.ErrValidation)
	s.Equal("quantity is required", err.Error())

	_, err = s.svc.UpdateItemQuantity(s.ctx, order.ID, order.Items[0].ID, UpdateItemRequest{Quantity: intPtr(0)})
	s.Require().ErrorIs(err, httpx.ErrValidation)

	_, err = s.svc.UpdateItemQuantity(s.ctx, order.ID, 999, UpdateItemRequest{Quantity: intPtr(1)})
	s.Require().ErrorIs(err, httpx.ErrNotFound)
}

func (s *OrderServiceSuite) TestItemMustBelongToOrder() {
	first := s.createOrder(ItemRequest{ProductID: productA, Quantity: 1, UnitPrice: dec("1")})
	second := s.createOrder()

	err := s.svc.DeleteItem(s.ctx, second.ID, first.Items[0].ID)
	s.Require().ErrorIs(err, httpx.ErrNotFound)
	s.Len(s.repo.itemsOf(first.ID), 1)
}

func (s *OrderServiceSuite) TestDeleteItemRestoresStock() {
	order := s.createOrder(
		ItemRequest{ProductID: productA, Quantity: 5, UnitPrice: dec("2")},
		ItemRequest{ProductID: productB, Quantity: 3, UnitPrice: dec("1")},
	)

	s.Require().NoError(s.svc.DeleteItem(s.ctx, order.ID, order.Items[0].ID))
	s.Equal(50, s.repo.Quantity(productA))
	requireDecimal(s.T(), "3", s.repo.orders[order.ID].TotalAmount)
	s.assertConsistent(order.ID)
	s.Require().Len(s.audit.logs, 2)
	s.Equal("ORDER_ITEM_DELETE", s.audit.logs[1].Action)
	s.Equal("customer_order", s.audit.logs[1].Entity)
}

func (s *OrderServiceSuite) TestDeleteItemToleratesMissingProduct() {
	order := s.createOrder(ItemRequest{ProductID: productA, Quantity: 5, UnitPrice: dec("2")})
	s.repo.Remove(productA)

	s.Require().NoError(s.svc.DeleteItem(s.ctx, order.ID, order.Items[0].ID))
	requireDecimal(s.T(), "0", s.repo.orders[order.ID].TotalAmount)
	s.Empty(s.repo.itemsOf(order.ID))
}

func (s *OrderServiceSuite) TestFailedWriteRollsBackStock() {
	order := s.createOrder()
	s.repo.failSetTotal = errors.New("connection reset")

	_, err := s.svc.AddItem(s.ctx, order.ID, ItemRequest{ProductID: productA, Quantity: 5, UnitPrice: dec("1")})
	s.Require().Error(err)
	s.Equal(500, httpx.StatusFor(err))
	s.Equal(50, s.repo.Quantity(productA))
	s.Empty(s.repo.itemsOf(order.ID))
}

// ============================================================================
// PARENT OPERATIONS
// ============================================================================

func (s *OrderServiceSuite) TestDeleteOrderRestoresAllStock() {
	order := s.createOrder(
		ItemRequest{ProductID: productA, Quantity: 5, UnitPrice: dec("1")},
		ItemRequest{ProductID: productB, Quantity: 3, UnitPrice: dec("1")},
	)
	s.Equal(45, s.repo.Quantity(productA))
	s.Equal(17, s.repo.Quantity(productB))

	s.Require().NoError(s.svc.Delete(s.ctx, order.ID))

	s.Equal(50, s.repo.Quantity(productA))
	s.Equal(20, s.repo.Quantity(productB))
	_, err := s.svc.Get(s.ctx, order.ID)
	s.Require().ErrorIs(err, httpx.ErrNotFound)
	s.Empty(s.repo.items)

	s.Require().ErrorIs(s.svc.Delete(s.ctx, order.ID), httpx.ErrNotFound)
}

func (s *OrderServiceSuite) TestUpdatePatchesHeaderOnly() {
	order := s.createOrder(ItemRequest{ProductID: productA, Quantity: 2, UnitPrice: dec("5")})
	shipped := StatusShipped
	notes := "leave at back door"

	updated, err := s.svc.Update(s.ctx, order.ID, UpdateOrderRequest{Status: &shipped, Notes: &notes})
	s.Require().NoError(err)
	s.Equal(StatusShipped, updated.Status)
	s.Equal(notes, updated.Notes)
	requireDecimal(s.T(), "10", updated.TotalAmount)
	s.Equal(48, s.repo.Quantity(productA))

	bogus := Status("lost")
	_, err = s.svc.Update(s.ctx, order.ID, UpdateOrderRequest{Status: &bogus})
	s.Require().ErrorIs(err, httpx.ErrValidation)

	other := int64(9)
	_, err = s.svc.Update(s.ctx, order.ID, UpdateOrderRequest{CustomerID: &other})
	s.Require().ErrorIs(err, httpx.ErrValidation)
}

func (s *OrderServiceSuite) TestReconcileDetectsAndRepairsDrift() {
	order := s.createOrder(ItemRequest{ProductID: productA, Quantity: 2, UnitPrice: dec("5")})

	_, drifted, err := s.svc.Reconcile(s.ctx, order.ID, false)
	s.Require().NoError(err)
	s.False(drifted)

	o := s.repo.orders[order.ID]
	o.TotalAmount = dec("99")
	s.repo.orders[order.ID] = o

	drifts, err := s.svc.ReconcileAll(s.ctx, false)
	s.Require().NoError(err)
	s.Require().Len(drifts, 1)
	requireDecimal(s.T(), "99", drifts[0].Stored)
	requireDecimal(s.T(), "10", drifts[0].Computed)
	s.False(drifts[0].Repaired)

	d, drifted, err := s.svc.Reconcile(s.ctx, order.ID, true)
	s.Require().NoError(err)
	s.True(drifted)
	s.True(d.Repaired)
	s.assertConsistent(order.ID)
}

func (s *OrderServiceSuite) TestMonthlyRevenue() {
	march := time.Date(2024, time.March, 14, 10, 0, 0, 0, time.UTC)
	cancelledDate := time.Date(2024, time.May, 2, 10, 0, 0, 0, time.UTC)
	s.repo.Put(3, "Gift Box", 100)

	_, err := s.svc.Create(s.ctx, CreateOrderRequest{CustomerID: customer, OrderDate: &cancelledDate, Status: StatusCancelled,
		Items: []ItemRequest{{ProductID: 3, Quantity: 1, UnitPrice: dec("100")}}}, "")
	s.Require().NoError(err)
	_, err = s.svc.Create(s.ctx, CreateOrderRequest{CustomerID: customer, OrderDate: &march, Status: StatusCompleted,
		Items: []ItemRequest{{ProductID: 3, Quantity: 2, UnitPrice: dec("100")}}}, "")
	s.Require().NoError(err)

	stats, err := s.svc.MonthlyRevenue(s.ctx, 2024)
	s.Require().NoError(err)
	s.Require().Len(stats, 12)
	for i, m := range stats {
		s.Equal(i+1, m.Month)
		if m.Month == 3 {
			requireDecimal(s.T(), "200.00", m.TotalRevenue)
			continue
		}
		requireDecimal(s.T(), "0", m.TotalRevenue, "month", m.Month)
	}

	_, err = s.svc.MonthlyRevenue(s.ctx, 0)
	s.Require().ErrorIs(err, httpx.ErrValidation)
}

// TestRandomItemSequencesKeepInvariants drives random item mutations and checks totals and
// stock after each step.
func (s *OrderServiceSuite) TestRandomItemSequencesKeepInvariants() {
	initial := map[int64]int{productA: 50, productB: 20}
	order := s.createOrder()
	rng := rand.New(rand.NewSource(7))
	prices := []string{"0.99", "2.5", "3", "12.75"}

	for step := 0; step < 200; step++ {
		items := s.repo.itemsOf(order.ID)
		switch op := rng.Intn(3); {
		case op == 0 || len(items) == 0:
			pid := productA + int64(rng.Intn(2))
			_, _ = s.svc.AddItem(s.ctx, order.ID, ItemRequest{ProductID: pid, Quantity: 1 + rng.Intn(8), UnitPrice: dec(prices[rng.Intn(len(prices))])})
		case op == 1:
			it := items[rng.Intn(len(items))]
			_, _ = s.svc.UpdateItemQuantity(s.ctx, order.ID, it.ID, UpdateItemRequest{Quantity: intPtr(1 + rng.Intn(12))})
		default:
			it := items[rng.Intn(len(items))]
			s.Require().NoError(s.svc.DeleteItem(s.ctx, order.ID, it.ID))
		}

		s.assertConsistent(order.ID)
		allocated := map[int64]int{}
		for _, it := range s.repo.itemsOf(order.ID) {
			allocated[it.ProductID] += it.Quantity
		}
		for pid, start := range initial {
			s.Require().Equal(start-allocated[pid], s.repo.Quantity(pid), "step %d product %d", step, pid)
			s.Require().GreaterOrEqual(s.repo.Quantity(pid), 0)
		}
	}
}

func TestOrderServiceSuite(t *testing.T) {
	suite.Run(t, new(OrderServiceSuite))
}

func intPtr(v int) *int { return &v }

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusDelivered.Valid())
	assert.False(t, Status("archived").Valid())
}
