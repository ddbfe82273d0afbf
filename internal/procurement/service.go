package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockroom/stockroom/internal/inventory"
	"github.com/stockroom/stockroom/internal/platform/db"
	"github.com/stockroom/stockroom/internal/platform/httpx"
	"github.com/stockroom/stockroom/internal/shared"
)

const idempotencyModule = "supplier_purchase"

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, filters ListFilters) ([]Purchase, error)
	Get(ctx context.Context, id int64) (Purchase, error)
	ListIDs(ctx context.Context) ([]int64, error)
	MonthlySpend(ctx context.Context, year int) (map[int]decimal.Decimal, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards purchase creation against replays.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// MetricsPort receives rejected stock movements.
type MetricsPort interface {
	StockRejected(module string)
}

// Service orchestrates supplier purchases. Purchased quantities add to stock; removing them
// takes stock back out and fails when the product no longer holds enough.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency IdempotencyPort
	cache       shared.CacheInvalidator
	metrics     MetricsPort
	validator   *httpx.Validator
	logger      *slog.Logger
}

// NewService constructs procurement service.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, cache shared.CacheInvalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, idempotency: idem, cache: cache, validator: httpx.NewValidator(), logger: logger}
}

// SetMetrics attaches a metrics sink.
func (s *Service) SetMetrics(m MetricsPort) {
	s.metrics = m
}

// ListPurchases returns purchases matching filters.
func (s *Service) ListPurchases(ctx context.Context, filters ListFilters) ([]Purchase, error) {
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, httpx.Invalidf("invalid status %q", filters.Status)
	}
	if !filters.From.IsZero() && !filters.To.IsZero() && filters.To.Before(filters.From) {
		return nil, httpx.Invalidf("endDate must not be before startDate")
	}
	return s.repo.List(ctx, filters)
}

// GetPurchase returns a purchase with supplier and items.
func (s *Service) GetPurchase(ctx context.Context, id int64) (Purchase, error) {
	return s.repo.Get(ctx, id)
}

// CreatePurchase persists header and lines and receives every line into stock.
func (s *Service) CreatePurchase(ctx context.Context, input CreatePurchaseInput, idempotencyKey string) (Purchase, error) {
	if err := s.validator.Struct(input); err != nil {
		return Purchase{}, err
	}
	sum := decimal.Zero
	for i, line := range input.Items {
		if line.UnitCost.IsNegative() {
			return Purchase{}, httpx.Invalidf("items[%d].unit_cost must not be negative", i)
		}
		amount := subtotal(line.Quantity, line.UnitCost.Round(2))
		if err := checkAmount(fmt.Sprintf("items[%d].subtotal", i), amount); err != nil {
			return Purchase{}, err
		}
		sum = sum.Add(amount)
	}
	if err := checkAmount("total_amount", sum); err != nil {
		return Purchase{}, err
	}

	inserted := false
	if idempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idempotencyKey, idempotencyModule); err != nil {
			return Purchase{}, err
		}
		inserted = true
	}

	purchase := Purchase{
		SupplierID:   input.SupplierID,
		PurchaseDate: defaultTime(input.PurchaseDate),
		Status:       defaultStatus(input.Status),
		Notes:        input.Notes,
		TotalAmount:  decimal.Zero,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.SupplierExists(ctx, purchase.SupplierID)
		if err != nil {
			return err
		}
		if !ok {
			return httpx.Invalidf("supplier %d not found", purchase.SupplierID)
		}
		created, err := tx.CreatePurchase(ctx, purchase)
		if err != nil {
			return fmt.Errorf("create purchase: %w", err)
		}
		purchase = created

		lines := append([]ItemInput(nil), input.Items...)
		sort.SliceStable(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
		for _, line := range lines {
			_, err := inventory.Move(ctx, tx, inventory.MoveParams{
				ProductID: line.ProductID,
				QtyChange: line.Quantity,
				RefModule: inventory.RefSupplierPurchase,
				RefID:     purchase.ID,
				Note:      "purchase created",
			})
			if errors.Is(err, inventory.ErrProductNotFound) {
				return httpx.Invalidf("product %d not found", line.ProductID)
			}
			if err != nil {
				return err
			}
		}

		total := decimal.Zero
		for _, line := range input.Items {
			cost := line.UnitCost.Round(2)
			item, err := tx.InsertItem(ctx, Item{
				PurchaseID: purchase.ID,
				ProductID:  line.ProductID,
				Quantity:   line.Quantity,
				UnitCost:   cost,
				Subtotal:   subtotal(line.Quantity, cost),
			})
			if err != nil {
				return fmt.Errorf("insert purchase item: %w", err)
			}
			total = total.Add(item.Subtotal)
		}
		return tx.SetTotal(ctx, purchase.ID, total)
	})
	if err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, idempotencyKey, idempotencyModule)
		}
		s.observe(err)
		return Purchase{}, err
	}
	s.committed(ctx, "PURCHASE_CREATE", purchase.ID, map[string]any{"items": len(input.Items)})
	return s.repo.Get(ctx, purchase.ID)
}

// UpdatePurchase patches header fields.
func (s *Service) UpdatePurchase(ctx context.Context, id int64, input UpdatePurchaseInput) (Purchase, error) {
	if err := s.validator.Struct(input); err != nil {
		return Purchase{}, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		purchase, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if input.SupplierID != nil && *input.SupplierID != purchase.SupplierID {
			ok, err := tx.SupplierExists(ctx, *input.SupplierID)
			if err != nil {
				return err
			}
			if !ok {
				return httpx.Invalidf("supplier %d not found", *input.SupplierID)
			}
			purchase.SupplierID = *input.SupplierID
		}
		if input.PurchaseDate != nil {
			purchase.PurchaseDate = *input.PurchaseDate
		}
		if input.Status != nil {
			purchase.Status = *input.Status
		}
		if input.Notes != nil {
			purchase.Notes = *input.Notes
		}
		return tx.UpdateHeader(ctx, purchase)
	})
	if err != nil {
		return Purchase{}, err
	}
	s.committed(ctx, "PURCHASE_UPDATE", id, nil)
	return s.repo.Get(ctx, id)
}

// DeletePurchase takes every line back out of stock and removes the purchase.
func (s *Service) DeletePurchase(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetForUpdate(ctx, id); err != nil {
			return err
		}
		items, err := tx.ListItemsForUpdate(ctx, id)
		if err != nil {
			return err
		}
		sort.SliceStable(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
		for _, it := range items {
			if _, err := inventory.MoveIfPresent(ctx, tx, inventory.MoveParams{
				ProductID: it.ProductID,
				QtyChange: -it.Quantity,
				RefModule: inventory.RefSupplierPurchase,
				RefID:     id,
				Note:      "purchase deleted",
			}); err != nil {
				return err
			}
		}
		return tx.DeletePurchase(ctx, id)
	})
	if err != nil {
		s.observe(err)
		return err
	}
	s.committed(ctx, "PURCHASE_DELETE", id, nil)
	return nil
}

// AddItem appends a line and receives its quantity into stock.
func (s *Service) AddItem(ctx context.Context, purchaseID int64, input ItemInput) (Item, error) {
	if err := s.validator.Struct(input); err != nil {
		return Item{}, err
	}
	if input.UnitCost.IsNegative() {
		return Item{}, httpx.Invalidf("unit_cost must not be negative")
	}
	if err := checkAmount("subtotal", subtotal(input.Quantity, input.UnitCost.Round(2))); err != nil {
		return Item{}, err
	}
	var item Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		purchase, err := tx.GetForUpdate(ctx, purchaseID)
		if err != nil {
			return err
		}
		if _, err := inventory.Move(ctx, tx, inventory.MoveParams{
			ProductID: input.ProductID,
			QtyChange: input.Quantity,
			RefModule: inventory.RefSupplierPurchase,
			RefID:     purchaseID,
			Note:      "item added",
		}); err != nil {
			if errors.Is(err, inventory.ErrProductNotFound) {
				return httpx.NotFoundf("product %d not found", input.ProductID)
			}
			return err
		}
		cost := input.UnitCost.Round(2)
		item, err = tx.InsertItem(ctx, Item{
			PurchaseID: purchaseID,
			ProductID:  input.ProductID,
			Quantity:   input.Quantity,
			UnitCost:   cost,
			Subtotal:   subtotal(input.Quantity, cost),
		})
		if err != nil {
			return fmt.Errorf("insert purchase item: %w", err)
		}
		total := purchase.TotalAmount.Add(item.Subtotal)
		if err := checkAmount("total_amount", total); err != nil {
			return err
		}
		return tx.SetTotal(ctx, purchaseID, total)
	})
	if err != nil {
		return Item{}, err
	}
	s.committed(ctx, "PURCHASE_ITEM_ADD", purchaseID, map[string]any{"item_id": item.ID, "product_id": item.ProductID, "quantity": item.Quantity})
	return item, nil
}

// UpdateItemQuantity changes a line quantity at its original unit cost. Shrinking a line
// takes the difference back out of stock.
func (s *Service) UpdateItemQuantity(ctx context.Context, purchaseID, itemID int64, input UpdateItemInput) (Item, error) {
	if err := s.validator.Struct(input); err != nil {
		return Item{}, err
	}
	var item Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		purchase, err := tx.GetForUpdate(ctx, purchaseID)
		if err != nil {
			return err
		}
		current, err := tx.GetItemForUpdate(ctx, purchaseID, itemID)
		if err != nil {
			return err
		}
		amount := subtotal(*input.Quantity, current.UnitCost)
		if err := checkAmount("subtotal", amount); err != nil {
			return err
		}
		if err := checkAmount("total_amount", purchase.TotalAmount.Sub(current.Subtotal).Add(amount)); err != nil {
			return err
		}
		delta := *input.Quantity - current.Quantity
		params := inventory.MoveParams{
			ProductID: current.ProductID,
			QtyChange: delta,
			RefModule: inventory.RefSupplierPurchase,
			RefID:     purchaseID,
			Note:      "item quantity changed",
		}
		if delta > 0 {
			if _, err := inventory.Move(ctx, tx, params); err != nil {
				if errors.Is(err, inventory.ErrProductNotFound) {
					return httpx.NotFoundf("product %d not found", current.ProductID)
				}
				return err
			}
		} else if _, err := inventory.MoveIfPresent(ctx, tx, params); err != nil {
			return err
		}

		old := current.Subtotal
		current.Quantity = *input.Quantity
		current.Subtotal = subtotal(current.Quantity, current.UnitCost)
		if item, err = tx.UpdateItem(ctx, current); err != nil {
			return err
		}
		return tx.SetTotal(ctx, purchaseID, purchase.TotalAmount.Sub(old).Add(item.Subtotal))
	})
	if err != nil {
		s.observe(err)
		return Item{}, err
	}
	s.committed(ctx, "PURCHASE_ITEM_UPDATE", purchaseID, map[string]any{"item_id": itemID, "quantity": item.Quantity})
	return item, nil
}

// DeleteItem removes a line and takes its quantity back out of stock. A product that no
// longer exists is skipped.
func (s *Service) DeleteItem(ctx context.Context, purchaseID, itemID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		purchase, err := tx.GetForUpdate(ctx, purchaseID)
		if err != nil {
			return err
		}
		item, err := tx.GetItemForUpdate(ctx, purchaseID, itemID)
		if err != nil {
			return err
		}
		if _, err := inventory.MoveIfPresent(ctx, tx, inventory.MoveParams{
			ProductID: item.ProductID,
			QtyChange: -item.Quantity,
			RefModule: inventory.RefSupplierPurchase,
			RefID:     purchaseID,
			Note:      "item deleted",
		}); err != nil {
			return err
		}
		if err := tx.SetTotal(ctx, purchaseID, purchase.TotalAmount.Sub(item.Subtotal)); err != nil {
			return err
		}
		return tx.DeleteItem(ctx, itemID)
	})
	if err != nil {
		s.observe(err)
		return err
	}
	s.committed(ctx, "PURCHASE_ITEM_DELETE", purchaseID, map[string]any{"item_id": itemID})
	return nil
}

// Reconcile recomputes the total from the lines and optionally repairs drift.
func (s *Service) Reconcile(ctx context.Context, id int64, repair bool) (Drift, bool, error) {
	var (
		drift   Drift
		drifted bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		purchase, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		items, err := tx.ListItemsForUpdate(ctx, id)
		if err != nil {
			return err
		}
		computed := decimal.Zero
		for _, it := range items {
			computed = computed.Add(it.Subtotal)
		}
		drift = Drift{PurchaseID: id, Stored: purchase.TotalAmount, Computed: computed}
		if purchase.TotalAmount.Equal(computed) {
			return nil
		}
		drifted = true
		if !repair {
			return nil
		}
		drift.Repaired = true
		return tx.SetTotal(ctx, id, computed)
	})
	if err != nil {
		return Drift{}, false, err
	}
	if drift.Repaired {
		s.committed(ctx, "PURCHASE_RECONCILE", id, map[string]any{"stored": drift.Stored.String(), "computed": drift.Computed.String()})
	}
	return drift, drifted, nil
}

// ReconcileAll runs Reconcile for every purchase and returns the drifted ones.
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

// MonthlySpend returns twelve zero-filled entries for year, excluding cancelled purchases.
func (s *Service) MonthlySpend(ctx context.Context, year int) ([]MonthlySpend, error) {
	if year < 1 || year > 9999 {
		return nil, httpx.Invalidf("year is required")
	}
	sums, err := s.repo.MonthlySpend(ctx, year)
	if err != nil {
		return nil, err
	}
	out := make([]MonthlySpend, 12)
	for i := range out {
		out[i] = MonthlySpend{Month: i + 1, TotalSpend: decimal.Zero}
		if v, ok := sums[i+1]; ok {
			out[i].TotalSpend = v
		}
	}
	return out, nil
}

func (s *Service) observe(err error) {
	if s.metrics != nil && errors.Is(err, inventory.ErrInsufficientStock) {
		s.metrics.StockRejected(idempotencyModule)
	}
}

func (s *Service) committed(ctx context.Context, action string, purchaseID int64, meta map[string]any) {
	shared.InvalidateQuietly(ctx, s.logger, s.cache)
	s.recordAudit(ctx, action, purchaseID, meta)
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "supplier_purchase", EntityID: fmt.Sprintf("%d", entityID), Meta: meta}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func defaultStatus(value Status) Status {
	if value == "" {
		return StatusPending
	}
	return value
}

func defaultTime(value *time.Time) time.Time {
	if value == nil || value.IsZero() {
		return time.Now().UTC()
	}
	return *value
}

func checkAmount(field string, amount decimal.Decimal) error {
	if !db.FitsMoney(amount) {
		return httpx.Invalidf("%s %s exceeds the maximum of %s", field, amount.StringFixed(2), db.MaxMoney.StringFixed(2))
	}
	return nil
}
