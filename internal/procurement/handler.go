package procurement

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockroom/stockroom/internal/platform/httpx"
	"github.com/stockroom/stockroom/internal/shared"
)

// Handler manages supplier purchase endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers supplier purchase routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/stats/monthly-spend", h.handleMonthlySpend)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.handleShow)
		r.Put("/", h.handleUpdate)
		r.Delete("/", h.handleDelete)
		r.Post("/items", h.handleAddItem)
		r.Put("/items/{itemId}", h.handleUpdateItem)
		r.Delete("/items/{itemId}", h.handleDeleteItem)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ListFilters{Search: q.Get("search"), Status: Status(q.Get("status"))}
	if raw := q.Get("supplier_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			h.fail(w, httpx.Invalidf("invalid supplier_id %q", raw))
			return
		}
		filters.SupplierID = id
	}
	var err error
	if filters.From, err = parseDate(q.Get("startDate"), "startDate"); err != nil {
		h.fail(w, err)
		return
	}
	if filters.To, err = parseDate(q.Get("endDate"), "endDate"); err != nil {
		h.fail(w, err)
		return
	}
	purchases, err := h.service.ListPurchases(r.Context(), filters)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, purchases)
}

func (h *Handler) handleShow(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	purchase, err := h.service.GetPurchase(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, purchase)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	key, err := shared.ParseIdempotencyKey(r.Header.Get(shared.IdempotencyHeader))
	if err != nil {
		h.fail(w, err)
		return
	}
	var input CreatePurchaseInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.fail(w, err)
		return
	}
	purchase, err := h.service.CreatePurchase(r.Context(), input, key)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, purchase)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	var input UpdatePurchaseInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.fail(w, err)
		return
	}
	purchase, err := h.service.UpdatePurchase(r.Context(), id, input)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, purchase)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.service.DeletePurchase(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	httpx.Message(w, "Purchase deleted successfully")
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	var input ItemInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.fail(w, err)
		return
	}
	item, err := h.service.AddItem(r.Context(), id, input)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	purchaseID, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	itemID, err := httpx.IDParam(r, "itemId")
	if err != nil {
		h.fail(w, err)
		return
	}
	var input UpdateItemInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.fail(w, err)
		return
	}
	item, err := h.service.UpdateItemQuantity(r.Context(), purchaseID, itemID, input)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	purchaseID, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	itemID, err := httpx.IDParam(r, "itemId")
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.service.DeleteItem(r.Context(), purchaseID, itemID); err != nil {
		h.fail(w, err)
		return
	}
	httpx.Message(w, "Item deleted successfully")
}

func (h *Handler) handleMonthlySpend(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("year")
	year, err := strconv.Atoi(raw)
	if raw == "" || err != nil {
		h.fail(w, httpx.Invalidf("year is required"))
		return
	}
	stats, err := h.service.MonthlySpend(r.Context(), year)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	httpx.RespondError(w, h.logger, err)
}

func parseDate(raw, name string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, httpx.Invalidf("invalid %s %q", name, raw)
}
