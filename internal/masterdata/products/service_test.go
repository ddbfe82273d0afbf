package products

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockroom/stockroom/internal/platform/httpx"
)

type memoryRepo struct {
	products map[int64]Product
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: make(map[int64]Product)}
}

func (m *memoryRepo) List(_ context.Context, f ListFilters) ([]Product, error) {
	out := []Product{}
	for _, p := range m.products {
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Name+" "+p.Description), strings.ToLower(f.Search)) {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.LowStock && p.StockQuantity > p.ReorderLevel {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, httpx.NotFoundf("product %d not found", id)
	}
	return p, nil
}

func (m *memoryRepo) Create(_ context.Context, p Product) (Product, error) {
	m.nextID++
	p.ID = m.nextID
	m.products[p.ID] = p
	return p, nil
}

func (m *memoryRepo) Update(_ context.Context, p Product) (Product, error) {
	if _, ok := m.products[p.ID]; !ok {
		return Product{}, httpx.NotFoundf("product %d not found", p.ID)
	}
	m.products[p.ID] = p
	return p, nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.products[id]; !ok {
		return httpx.NotFoundf("product %d not found", id)
	}
	delete(m.products, id)
	return nil
}

func (m *memoryRepo) Categories(_ context.Context) ([]string, error) {
	seen := map[string]bool{}
	out := []string{}
	for _, p := range m.products {
		if p.Category != "" && !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return nil
}

func newTestHandler() (*chi.Mux, *memoryRepo, *countingInvalidator) {
	repo := newMemoryRepo()
	inv := &countingInvalidator{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, NewService(repo, inv, logger))
	r := chi.NewRouter()
	r.Route("/products", func(r chi.Router) { h.MountRoutes(r, nil) })
	return r, repo, inv
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndPatchProduct(t *testing.T) {
	r, repo, inv := newTestHandler()

	rec := do(r, http.MethodPost, "/products", `{"name":"Green Tea","category":"Beverages","unit_price":4.5,"stock_quantity":40,"reorder_level":10}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, int64(1), created.ID)
	assert.True(t, decimal.RequireFromString("4.5").Equal(created.UnitPrice))

	rec = do(r, http.MethodPut, "/products/1", `{"stock_quantity":5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 5, repo.products[1].StockQuantity)
	assert.Equal(t, "Green Tea", repo.products[1].Name)
	assert.Equal(t, 2, inv.calls)
}

func TestCreateProductValidation(t *testing.T) {
	r, _, _ := newTestHandler()

	rec := do(r, http.MethodPost, "/products", `{"stock_quantity":-1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "name is required")
	assert.Contains(t, rec.Body.String(), "stock_quantity must be at least 0")

	rec = do(r, http.MethodPost, "/products", `{"name":"Salt","unit_price":-1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"unit_price must not be negative"}`, rec.Body.String())

	rec = do(r, http.MethodPost, "/products", `{"name":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListFiltersAndCategories(t *testing.T) {
	r, repo, _ := newTestHandler()
	ctx := context.Background()
	_, _ = repo.Create(ctx, Product{Name: "Espresso Beans", Category: "Coffee", StockQuantity: 3, ReorderLevel: 10})
	_, _ = repo.Create(ctx, Product{Name: "Oat Milk", Category: "Dairy Alternatives", StockQuantity: 50, ReorderLevel: 10})
	_, _ = repo.Create(ctx, Product{Name: "Decaf Beans", Category: "Coffee", StockQuantity: 10, ReorderLevel: 10})

	rec := do(r, http.MethodGet, "/products?lowStock=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var low []Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &low))
	require.Len(t, low, 2)
	assert.Equal(t, "Decaf Beans", low[0].Name)

	rec = do(r, http.MethodGet, "/products?search=milk", "")
	var found []Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	require.Len(t, found, 1)

	rec = do(r, http.MethodGet, "/products/meta/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["Coffee","Dairy Alternatives"]`, rec.Body.String())

	rec = do(r, http.MethodGet, "/products?supplier_id=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductNotFound(t *testing.T) {
	r, _, inv := newTestHandler()

	rec := do(r, http.MethodGet, "/products/9", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"product 9 not found"}`, rec.Body.String())

	rec = do(r, http.MethodDelete, "/products/9", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, inv.calls)
}

func TestDeleteProduct(t *testing.T) {
	r, repo, _ := newTestHandler()
	_, _ = repo.Create(context.Background(), Product{Name: "Honey"})

	rec := do(r, http.MethodDelete, "/products/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Product deleted successfully"}`, rec.Body.String())
	assert.Empty(t, repo.products)
}
