package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockroom/stockroom/internal/inventory"
	"github.com/stockroom/stockroom/internal/platform/db"
	"github.com/stockroom/stockroom/internal/platform/httpx"
	"github.com/stockroom/stockroom/internal/shared"
)

const idempotencyModule = "customer_order"

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards order creation against replays.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// MetricsPort receives domain events worth counting.
type MetricsPort interface {
	StockRejected(module string)
}

// Service keeps order totals and product stock consistent with order items. Every mutation
// runs in one transaction that locks the order row and each touched product row.
type Service struct {
	repo        Repository
	audit       AuditPort
	idempotency IdempotencyPort
	cache       shared.CacheInvalidator
	metrics     MetricsPort
	validator   *httpx.Validator
	logger      *slog.Logger
}

// NewService wires the service. audit, idem and cache may be nil.
func NewService(repo Repository, audit AuditPort, idem IdempotencyPort, cache shared.CacheInvalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		audit:       audit,
		idempotency: idem,
		cache:       cache,
		validator:   httpx.NewValidator(),
		logger:      logger,
	}
}

// SetMetrics attaches a metrics sink.
func (s *Service) SetMetrics(m MetricsPort) {
	s.metrics = m
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Order, error) {
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, httpx.Invalidf("invalid status %q", filters.Status)
	}
	if !filters.From.IsZero() && !filters.To.IsZero() && filters.To.Before(filters.From) {
		return nil, httpx.Invalidf("endDate must not be before startDate")
	}
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	return s.repo.Get(ctx, id)
}

// Create inserts the order and its items, moving stock for each item. Any missing product
// or shortfall aborts the whole order.
func (s *Service) Create(ctx context.Context, req CreateOrderRequest, idempotencyKey string) (Order, error) {
	if err := s.validator.Struct(req); err != nil {
		return Order{}, err
	}
	sum := decimal.Zero
	for i, it := range req.Items {
		if it.UnitPrice.IsNegative() {
			return Order{}, httpx.Invalidf("items[%d].unit_price must not be negative", i)
		}
		line := subtotal(it.Quantity, it.UnitPrice.Round(2))
		if err := checkAmount(fmt.Sprintf("items[%d].subtotal", i), line); err != nil {
			return Order{}, err
		}
		sum = sum.Add(line)
	}
	if err := checkAmount("total_amount", sum); err != nil {
		return Order{}, err
	}

	if idempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idempotencyKey, idempotencyModule); err != nil {
			return Order{}, err
		}
	}

	order := Order{
		CustomerID:      req.CustomerID,
		OrderDate:       time.Now().UTC(),
		Status:          StatusPending,
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
		TotalAmount:     decimal.Zero,
	}
	if req.OrderDate != nil {
		order.OrderDate = *req.OrderDate
	}
	if req.Status != "" {
		order.Status = req.Status
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		ok, err := repo.CustomerExists(ctx, order.CustomerID)
		if err != nil {
			return err
		}
		if !ok {
			return httpx.Invalidf("customer %d not found", order.CustomerID)
		}
		created, err := repo.Create(ctx, order)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		order = created

		// Lock products in id order so concurrent orders cannot deadlock.
		moves := make([]ItemRequest, len(req.Items))
		copy(moves, req.Items)
		sort.SliceStable(moves, func(i, j int) bool { return moves[i].ProductID < moves[j].ProductID })
		for _, it := range moves {
			_, err := inventory.Move(ctx, repo, inventory.MoveParams{
				ProductID: it.ProductID,
				QtyChange: -it.Quantity,
				RefModule: inventory.RefCustomerOrder,
				RefID:     order.ID,
				Note:      "order created",
			})
			if errors.Is(err, inventory.ErrProductNotFound) {
				return httpx.Invalidf("product %d not found", it.ProductID)
			}
			if err != nil {
				return err
			}
		}

		total := decimal.Zero
		for _, it := range req.Items {
			price := it.UnitPrice.Round(2)
			line := Item{
				OrderID:   order.ID,
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				UnitPrice: price,
				Subtotal:  subtotal(it.Quantity, price),
			}
			if _, err := repo.InsertItem(ctx, line); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
			total = total.Add(line.Subtotal)
		}
		return repo.SetTotal(ctx, order.ID, total)
	})
	if err != nil {
		if idempotencyKey != "" && s.idempotency != nil {
			_ = s.idempotency.Delete(ctx, idempotencyKey, idempotencyModule)
		}
		s.observe(err)
		return Order{}, err
	}

	s.committed(ctx, "ORDER_CREATE", order.ID, map[string]any{"items": len(req.Items)})
	return s.repo.Get(ctx, order.ID)
}

// Update patches header fields only; items, stock and total_amount are untouched.
func (s *Service) Update(ctx context.Context, id int64, req UpdateOrderRequest) (Order, error) {
	if err := s.validator.Struct(req); err != nil {
		return Order{}, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		order, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.CustomerID != nil && *req.CustomerID != order.CustomerID {
			ok, err := repo.CustomerExists(ctx, *req.CustomerID)
			if err != nil {
				return err
			}
			if !ok {
				return httpx.Invalidf("customer %d not found", *req.CustomerID)
			}
			order.CustomerID = *req.CustomerID
		}
		if req.OrderDate != nil {
			order.OrderDate = *req.OrderDate
		}
		if req.Status != nil {
			order.Status = *req.Status
		}
		if req.ShippingAddress != nil {
			order.ShippingAddress = *req.ShippingAddress
		}
		if req.Notes != nil {
			order.Notes = *req.Notes
		}
		return repo.UpdateHeader(ctx, order)
	})
	if err != nil {
		return Order{}, err
	}
	s.committed(ctx, "ORDER_UPDATE", id, nil)
	return s.repo.Get(ctx, id)
}

// Delete returns every item's quantity to stock and removes the order. Items whose product
// no longer exists are removed without a stock change.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if _, err := repo.GetForUpdate(ctx, id); err != nil {
			return err
		}
		items, err := repo.ListItemsForUpdate(ctx, id)
		if err != nil {
			return err
		}
		sort.SliceStable(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
		for _, it := range items {
			if _, err := inventory.MoveIfPresent(ctx, repo, inventory.MoveParams{
				ProductID: it.ProductID,
				QtyChange: it.Quantity,
				RefModule: inventory.RefCustomerOrder,
				RefID:     id,
				Note:      "order deleted",
			}); err != nil {
				return err
			}
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.committed(ctx, "ORDER_DELETE", id, nil)
	return nil
}

// AddItem appends an item, taking its quantity out of stock.
func (s *Service) AddItem(ctx context.Context, orderID int64, req ItemRequest) (Item, error) {
	if err := s.validator.Struct(req); err != nil {
		return Item{}, err
	}
	if req.UnitPrice.IsNegative() {
		return Item{}, httpx.Invalidf("unit_price must not be negative")
	}
	if err := checkAmount("subtotal", subtotal(req.Quantity, req.UnitPrice.Round(2))); err != nil {
		return Item{}, err
	}
	var item Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		order, err := repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if _, err := inventory.Move(ctx, repo, inventory.MoveParams{
			ProductID: req.ProductID,
			QtyChange: -req.Quantity,
			RefModule: inventory.RefCustomerOrder,
			RefID:     orderID,
			Note:      "item added",
		}); err != nil {
			if errors.Is(err, inventory.ErrProductNotFound) {
				return httpx.NotFoundf("product %d not found", req.ProductID)
			}
			return err
		}
		price := req.UnitPrice.Round(2)
		item, err = repo.InsertItem(ctx, Item{
			OrderID:   orderID,
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
			UnitPrice: price,
			Subtotal:  subtotal(req.Quantity, price),
		})
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
		total := order.TotalAmount.Add(item.Subtotal)
		if err := checkAmount("total_amount", total); err != nil {
			return err
		}
		return repo.SetTotal(ctx, orderID, total)
	})
	if err != nil {
		s.observe(err)
		return Item{}, err
	}
	s.committed(ctx, "ORDER_ITEM_ADD", orderID, map[string]any{"item_id": item.ID, "product_id": item.ProductID, "quantity": item.Quantity})
	return item, nil
}

// UpdateItemQuantity changes an item's quantity at its original unit price. Growth is taken
// from stock and must be available; shrinkage is returned to stock.
func (s *Service) UpdateItemQuantity(ctx context.Context, orderID, itemID int64, req UpdateItemRequest) (Item, error) {
	if err := s.validator.Struct(req); err != nil {
		return Item{}, err
	}
	var item Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		order, err := repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		current, err := repo.GetItemForUpdate(ctx, orderID, itemID)
		if err != nil {
			return err
		}
		newSubtotal := subtotal(*req.Quantity, current.UnitPrice)
		if err := checkAmount("subtotal", newSubtotal); err != nil {
			return err
		}
		if err := checkAmount("total_amount", order.TotalAmount.Sub(current.Subtotal).Add(newSubtotal)); err != nil {
			return err
		}
		delta := *req.Quantity - current.Quantity
		params := inventory.MoveParams{
			ProductID: current.ProductID,
			QtyChange: -delta,
			RefModule: inventory.RefCustomerOrder,
			RefID:     orderID,
			Note:      "item quantity changed",
		}
		if delta > 0 {
			if _, err := inventory.Move(ctx, repo, params); err != nil {
				if errors.Is(err, inventory.ErrProductNotFound) {
					return httpx.NotFoundf("product %d not found", current.ProductID)
				}
				return err
			}
		} else if _, err := inventory.MoveIfPresent(ctx, repo, params); err != nil {
			return err
		}

		oldSubtotal := current.Subtotal
		current.Quantity = *req.Quantity
		current.Subtotal = subtotal(current.Quantity, current.UnitPrice)
		item, err = repo.UpdateItem(ctx, current)
		if err != nil {
			return err
		}
		return repo.SetTotal(ctx, orderID, order.TotalAmount.Sub(oldSubtotal).Add(item.Subtotal))
	})
	if err != nil {
		s.observe(err)
		return Item{}, err
	}
	s.committed(ctx, "ORDER_ITEM_UPDATE", orderID, map[string]any{"item_id": itemID, "quantity": item.Quantity})
	return item, nil
}

// DeleteItem removes an item and returns its quantity to stock. A product that no longer
// exists is skipped; the item and total are still updated.
func (s *Service) DeleteItem(ctx context.Context, orderID, itemID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		order, err := repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		item, err := repo.GetItemForUpdate(ctx, orderID, itemID)
		if err != nil {
			return err
		}
		if _, err := inventory.MoveIfPresent(ctx, repo, inventory.MoveParams{
			ProductID: item.ProductID,
			QtyChange: item.Quantity,
			RefModule: inventory.RefCustomerOrder,
			RefID:     orderID,
			Note:      "item deleted",
		}); err != nil {
			return err
		}
		if err := repo.SetTotal(ctx, orderID, order.TotalAmount.Sub(item.Subtotal)); err != nil {
			return err
		}
		return repo.DeleteItem(ctx, itemID)
	})
	if err != nil {
		return err
	}
	s.committed(ctx, "ORDER_ITEM_DELETE", orderID, map[string]any{"item_id": itemID})
	return nil
}

// Reconcile compares the stored total with the sum of item subtotals. When repair is set a
// drifted total is overwritten. The boolean result reports whether drift was found.
func (s *Service) Reconcile(ctx context.Context, id int64, repair bool) (Drift, bool, error) {
	var drift Drift
	var drifted bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		order, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		items, err := repo.ListItemsForUpdate(ctx, id)
		if err != nil {
			return err
		}
		computed := decimal.Zero
		for _, it := range items {
			computed = computed.Add(it.Subtotal)
		}
		drift = Drift{OrderID: id, Stored: order.TotalAmount, Computed: computed}
		if order.TotalAmount.Equal(computed) {
			return nil
		}
		drifted = true
		if !repair {
			return nil
		}
		if err := repo.SetTotal(ctx, id, computed); err != nil {
			return err
		}
		drift.Repaired = true
		return nil
	})
	if err != nil {
		return Drift{}, false, err
	}
	if drift.Repaired {
		s.committed(ctx, "ORDER_RECONCILE", id, map[string]any{"stored": drift.Stored.String(), "computed": drift.Computed.String()})
	}
	return drift, drifted, nil
}

// ReconcileAll runs Reconcile over every order and returns the drifted ones.
func (s *Service) ReconcileAll(ctx context.Context, repair bool) ([]Drift, error) {
	ids, err := s.repo.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	drifts := []Drift{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return drifts, err
		}
		d, drifted, err := s.Reconcile(ctx, id, repair)
		if errors.Is(err, httpx.ErrNotFound) {
			continue
		}
		if err != nil {
			return drifts, err
		}
		if drifted {
			drifts = append(drifts, d)
		}
	}
	return drifts, nil
}

// MonthlyRevenue returns twelve entries for year, zero-filled, excluding cancelled orders.
func (s *Service) MonthlyRevenue(ctx context.Context, year int) ([]MonthlyRevenue, error) {
	if year < 1 || year > 9999 {
		return nil, httpx.Invalidf("year is required")
	}
	sums, err := s.repo.MonthlyRevenue(ctx, year)
	if err != nil {
		return nil, err
	}
	out := make([]MonthlyRevenue, 12)
	for i := range out {
		out[i] = MonthlyRevenue{Month: i + 1, TotalRevenue: decimal.Zero}
		if v, ok := sums[i+1]; ok {
			out[i].TotalRevenue = v
		}
	}
	return out, nil
}

func (s *Service) observe(err error) {
	if s.metrics != nil && errors.Is(err, inventory.ErrInsufficientStock) {
		s.metrics.StockRejected(idempotencyModule)
	}
}

func (s *Service) committed(ctx context.Context, action string, orderID int64, meta map[string]any) {
	shared.InvalidateQuietly(ctx, s.logger, s.cache)
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "customer_order",
		EntityID: strconv.FormatInt(orderID, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

// checkAmount rejects amounts that do not fit the NUMERIC(12,2) money columns.
func checkAmount(field string, amount decimal.Decimal) error {
	if !db.FitsMoney(amount) {
		return httpx.Invalidf("%s %s exceeds the maximum of %s", field, amount.StringFixed(2), db.MaxMoney.StringFixed(2))
	}
	return nil
}
