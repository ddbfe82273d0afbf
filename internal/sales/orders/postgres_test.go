package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockroom/stockroom/internal/inventory"
	"github.com/stockroom/stockroom/internal/platform/db/dbtest"
	"github.com/stockroom/stockroom/internal/platform/httpx"
)

func newPostgresService(t *testing.T) (*Service, func(sql string, args ...any)) {
	pool := dbtest.Open(t)
	exec := func(sql string, args ...any) { dbtest.Exec(t, pool, sql, args...) }
	exec(`INSERT INTO customers (name) VALUES ('Corner Cafe')`)
	exec(`INSERT INTO products (name, unit_price, stock_quantity) VALUES ('Arabica Beans', 12.50, 3), ('Oat Milk', 4.00, 100)`)
	return NewService(NewRepository(pool), nil, nil, nil, nil), exec
}

func TestPostgresConcurrentAddItemTakesLastUnitsOnce(t *testing.T) {
	svc, _ := newPostgresService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateOrderRequest{CustomerID: 1}, "")
	require.NoError(t, err)
	second, err := svc.Create(ctx, CreateOrderRequest{CustomerID: 1}, "")
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, orderID := range []int64{first.ID, second.ID} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.AddItem(ctx, orderID, ItemRequest{ProductID: 1, Quantity: 3, UnitPrice: dec("12.50")})
		}()
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, inventory.ErrInsufficientStock):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, rejected)

	a, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	b, err := svc.Get(ctx, second.ID)
	require.NoError(t, err)
	requireDecimal(t, "37.50", a.TotalAmount.Add(b.TotalAmount))
	require.Len(t, append(a.Items, b.Items...), 1)
}

func TestPostgresGetToleratesDeletedProduct(t *testing.T) {
	svc, exec := newPostgresService(t)
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateOrderRequest{CustomerID: 1, Items: []ItemRequest{
		{ProductID: 1, Quantity: 2, UnitPrice: dec("12.50")},
		{ProductID: 2, Quantity: 1, UnitPrice: dec("4.00")},
	}}, "")
	require.NoError(t, err)
	exec(`DELETE FROM products WHERE product_id = 1`)

	got, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	require.Nil(t, got.Items[0].Product)
	require.Equal(t, int64(1), got.Items[0].ProductID)
	require.NotNil(t, got.Items[1].Product)
	require.Equal(t, "Oat Milk", got.Items[1].Product.Name)
	requireDecimal(t, "29.00", got.TotalAmount)

	require.NoError(t, svc.DeleteItem(ctx, order.ID, got.Items[0].ID))
	got, err = svc.Get(ctx, order.ID)
	require.NoError(t, err)
	requireDecimal(t, "4.00", got.TotalAmount)
}

func TestPostgresMonthlyRevenueExcludesCancelled(t *testing.T) {
	svc, _ := newPostgresService(t)
	ctx := context.Background()
	march := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	april := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Create(ctx, CreateOrderRequest{CustomerID: 1, OrderDate: &march, Status: StatusCompleted,
		Items: []ItemRequest{{ProductID: 2, Quantity: 50, UnitPrice: dec("4.00")}}}, "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateOrderRequest{CustomerID: 1, OrderDate: &march, Status: StatusCancelled,
		Items: []ItemRequest{{ProductID: 2, Quantity: 10, UnitPrice: dec("4.00")}}}, "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateOrderRequest{CustomerID: 1, OrderDate: &april,
		Items: []ItemRequest{{ProductID: 1, Quantity: 1, UnitPrice: dec("12.50")}}}, "")
	require.NoError(t, err)

	months, err := svc.MonthlyRevenue(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, months, 12)
	requireDecimal(t, "0", months[1].TotalRevenue)
	requireDecimal(t, "200.00", months[2].TotalRevenue)
	requireDecimal(t, "12.50", months[3].TotalRevenue)

	_, err = svc.MonthlyRevenue(ctx, 0)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestPostgresSearchMatchesWildcardsLiterally(t *testing.T) {
	svc, exec := newPostgresService(t)
	ctx := context.Background()
	exec(`INSERT INTO customers (name) VALUES ('100% Juice_Bar')`)
	for _, customerID := range []int64{1, 2} {
		_, err := svc.Create(ctx, CreateOrderRequest{CustomerID: customerID}, "")
		require.NoError(t, err)
	}

	for search, want := range map[string]int{"%": 1, "e_b": 1, "cafe": 1, "juice": 1, "_": 1, "x%": 0} {
		got, err := svc.List(ctx, ListFilters{Search: search})
		require.NoError(t, err)
		require.Len(t, got, want, "search %q", search)
	}
}
