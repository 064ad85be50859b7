package order_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/grocery-backoffice/internal/domain/order"
	"github.com/xenking/grocery-backoffice/internal/domain/product"
	"github.com/xenking/grocery-backoffice/internal/storage/memory"
)

// --- Helpers ---

type fixture struct {
	store *memory.Store
	svc   *order.Service
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.New(),
		now:   time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
	f.svc = order.NewService(f.store, order.WithClock(func() time.Time {
		f.now = f.now.Add(time.Second)
		return f.now
	}))
	return f
}

func (f *fixture) addProduct(t *testing.T, id, name, price string, stock int) {
	t.Helper()
	require.NoError(t, f.store.Products().Create(context.Background(), &product.Product{
		ID:            id,
		Name:          name,
		Category:      product.CategoryOther,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
	}))
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := f.store.Products().GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.StockQuantity
}

func (f *fixture) placeOrder(t *testing.T, lines ...order.Line) *order.View {
	t.Helper()
	v, err := f.svc.CreateOrder(context.Background(), order.CreateRequest{
		CustomerName:    "John Doe",
		CustomerPhone:   "+1234567890",
		CustomerAddress: "123 Main St, City",
		Items:           lines,
	})
	require.NoError(t, err)
	return v
}

// --- CreateOrder ---

func TestCreateOrder_ReservesStockAndSnapshotsPrice(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "apple", "Apple", "2.50", 100)

	v := f.placeOrder(t, order.Line{ProductID: "apple", Quantity: 5})

	assert.True(t, decimal.RequireFromString("12.50").Equal(v.Order.TotalPrice))
	assert.Equal(t, order.StatusPending, v.Order.Status)
	require.Len(t, v.Order.Items, 1)
	assert.True(t, decimal.RequireFromString("2.50").Equal(v.Order.Items[0].Price))
	assert.Equal(t, 95, f.stock(t, "apple"))

	p, ok := v.Product("apple")
	require.True(t, ok)
	assert.Equal(t, "Apple", p.Name)
	assert.Equal(t, 95, p.StockQuantity)
}

func TestCreateOrder_MultipleItemsTotal(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "apple", "Apple", "2.50", 100)
	f.addProduct(t, "milk", "Milk", "4.50", 50)
	f.addProduct(t, "bread", "Bread", "2.00", 70)

	v := f.placeOrder(t,
		order.Line{ProductID: "apple", Quantity: 5},
		order.Line{ProductID: "milk", Quantity: 2},
		order.Line{ProductID: "bread", Quantity: 3},
	)

	assert.True(t, decimal.RequireFromString("27.50").Equal(v.Order.TotalPrice))
	assert.Equal(t, 95, f.stock(t, "apple"))
	assert.Equal(t, 48, f.stock(t, "milk"))
	assert.Equal(t, 67, f.stock(t, "bread"))
}

func TestCreateOrder_ZeroStockBoundary(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "milk", "Milk", "4.50", 1)

	f.placeOrder(t, order.Line{ProductID: "milk", Quantity: 1})
	assert.Equal(t, 0, f.stock(t, "milk"))
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "carrot", "Carrot", "1.00", 3)

	_, err := f.svc.CreateOrder(context.Background(), order.CreateRequest{
		CustomerName: "John Doe",
		Items:        []order.Line{{ProductID: "carrot", Quantity: 5}},
	})

	var isErr *order.InsufficientStockError
	require.ErrorAs(t, err, &isErr)
	assert.Equal(t, "Carrot", isErr.ProductName)
	assert.Equal(t, 3, isErr.Available)
	assert.Equal(t, 5, isErr.Requested)
	assert.Equal(t, "Insufficient stock for Carrot. Available: 3, Requested: 5", err.Error())
	assert.Equal(t, 3, f.stock(t, "carrot"))

	orders, err := f.svc.List(context.Background(), order.Filter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

// A failing line rolls back the reservations of earlier lines in the same
// call: order creation is all-or-nothing.
func TestCreateOrder_FailureLeavesEarlierItemsUntouched(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "apple", "Apple", "2.50", 100)
	f.addProduct(t, "carrot", "Carrot", "1.00", 3)

	_, err := f.svc.CreateOrder(context.Background(), order.CreateRequest{
		CustomerName: "John Doe",
		Items: []order.Line{
			{ProductID: "apple", Quantity: 10},
			{ProductID: "carrot", Quantity: 5},
		},
	})

	var isErr *order.InsufficientStockError
	require.ErrorAs(t, err, &isErr)
	assert.Equal(t, 100, f.stock(t, "apple"))
	assert.Equal(t, 3, f.stock(t, "carrot"))
}

func TestCreateOrder_ProductNotFoundRollsBack(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "apple", "Apple", "2.50", 100)

	_, err := f.svc.CreateOrder(context.Background(), order.CreateRequest{
		CustomerName: "John Doe",
		Items: []order.Line{
			{ProductID: "apple", Quantity: 1},
			{ProductID: "ghost", Quantity: 1},
		},
	})

	var pnfErr *order.ProductNotFoundError
	require.ErrorAs(t, err, &pnfErr)
	assert.Equal(t, "ghost", pnfErr.ProductID)
	assert.Equal(t, 100, f.stock(t, "apple"))
}

func TestCreateOrder_RepeatedProductCountsAgainstSameStock(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "apple", "Apple", "2.50", 5)

	_, err := f.svc.CreateOrder(context.Background(), order.CreateRequest{
		CustomerName: "John Doe",
		Items: []order.Line{
			{ProductID: "apple", Quantity: 3},
			{ProductID: "apple", Quantity: 3},
		},
	})

	var isErr *order.InsufficientStockError
	require.ErrorAs(t, err, &isErr)
	assert.Equal(t, 2, isErr.Available)
	assert.Equal(t, 5, f.stock(t, "apple"))
}

func TestCreateOrder_EmptyItems(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateOrder(context.Background(), order.CreateRequest{})
	require.ErrorIs(t, err, order.ErrEmptyItems)
}

func TestCreateOrder_InvalidQuantity(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "apple", "Apple", "2.50", 5)

	_, err := f.svc.CreateOrder(context.Background(), order.CreateRequest{
		Items: []order.Line{{ProductID: "apple", Quantity: 0}},
	})

	var iqErr *order.InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, "apple", iqErr.ProductID)
	assert.Equal(t, 5, f.stock(t, "apple"))
}

// --- UpdateStatus ---

func TestUpdateStatus_CancelAndReactivate(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "apple", "Apple", "2.50", 100)
	ctx := context.Background()

	v := f.placeOrder(t, order.Line{ProductID: "apple", Quantity: 5})
	require.Equal(t, 95, f.stock(t, "apple"))

	cancelled, err := f.svc.UpdateStatus(ctx, v.Order.ID, order.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, cancelled.Order.Status)
	assert.Equal(t, 100, f.stock(t, "apple"))

	reactivated, err := f.svc.UpdateStatus(ctx, v.Order.ID, order.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, reactivated.Order.Status)
	assert.Equal(t, 95, f.stock(t, "apple"))
}

func TestUpdateStatus_SameStatusIsNoOpForStock(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "apple", "Apple", "2.50", 100)
	ctx := context.Background()

	v := f.placeOrder(t, order.Line{ProductID: "apple", Quantity: 5})

	_, err := f.svc.UpdateStatus(ctx, v.Order.ID, order.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, 95, f.stock(t, "apple"))

	_, err = f.svc.UpdateStatus(ctx, v.Order.ID, order.StatusCancelled)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, v.Order.ID, order.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, 100, f.stock(t, "apple"))
}

func TestUpdateStatus_NonCancelTransitionsKeepStock(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "apple", "Apple", "2.50", 100)
	ctx := context.Background()

	v := f.placeOrder(t, order.Line{ProductID: "apple", Quantity: 5})
	for _, s := range []order.Status{order.StatusProcessing, order.StatusShipped, order.StatusDelivered, order.StatusPending} {
		got, err := f.svc.UpdateStatus(ctx, v.Order.ID, s)
		require.NoError(t, err)
		assert.Equal(t, s, got.Order.Status)
		assert.Equal(t, 95, f.stock(t, "apple"), "after %s", s)
	}
}

func TestUpdateStatus_CancelSkipsDeletedProduct(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "apple", "Apple", "2.50", 100)
	f.addProduct(t, "milk", "Milk", "4.50", 10)
	ctx := context.Background()

	v := f.placeOrder(t,
		order.Line{ProductID: "apple", Quantity: 5},
		order.Line{ProductID: "milk", Quantity: 2},
	)
	require.NoError(t, f.store.Products().Delete(ctx, "apple"))

	got, err := f.svc.UpdateStatus(ctx, v.Order.ID, order.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, got.Order.Status)
	assert.Equal(t, 10, f.stock(t, "milk"))

	_, ok := got.Product("apple")
	assert.False(t, ok)
	require.Len(t, got.Order.Items, 2)
}

func TestUpdateStatus_ReactivateSkipsDeletedProduct(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "apple", "Apple", "2.50", 100)
	f.addProduct(t, "milk", "Milk", "4.50", 10)
	ctx := context.Background()

	v := f.placeOrder(t,
		order.Line{ProductID: "apple", Quantity: 5},
		order.Line{ProductID: "milk", Quantity: 2},
	)
	_, err := f.svc.UpdateStatus(ctx, v.Order.ID, order.StatusCancelled)
	require.NoError(t, err)
	require.NoError(t, f.store.Products().Delete(ctx, "apple"))

	_, err = f.svc.UpdateStatus(ctx, v.Order.ID, order.StatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, 8, f.stock(t, "milk"))
}

// A reactivation that fails on a later item rolls back the re-reservations
// of earlier items and keeps the order cancelled.
func TestUpdateStatus_ReactivateInsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "apple", "Apple", "2.50", 100)
	f.addProduct(t, "carrot", "Carrot", "1.00", 5)
	ctx := context.Background()

	v := f.placeOrder(t,
		order.Line{ProductID: "apple", Quantity: 10},
		order.Line{ProductID: "carrot", Quantity: 5},
	)
	_, err := f.svc.UpdateStatus(ctx, v.Order.ID, order.StatusCancelled)
	require.NoError(t, err)
	require.Equal(t, 5, f.stock(t, "carrot"))

	// Someone else buys carrots while the order is cancelled.
	f.placeOrder(t, order.Line{ProductID: "carrot", Quantity: 3})

	_, err = f.svc.UpdateStatus(ctx, v.Order.ID, order.StatusPending)
	var isErr *order.InsufficientStockError
	require.ErrorAs(t, err, &isErr)
	assert.True(t, isErr.Reactivation)
	assert.Equal(t, "Cannot reactivate order. Insufficient stock for Carrot", err.Error())

	assert.Equal(t, 100, f.stock(t, "apple"))
	assert.Equal(t, 2, f.stock(t, "carrot"))

	current, err := f.svc.Get(ctx, v.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, current.Order.Status)
}

func TestUpdateStatus_ReactivateShortfallReportsCombinedQuantity(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "carrot", "Carrot", "1.00", 6)
	ctx := context.Background()

	v := f.placeOrder(t,
		order.Line{ProductID: "carrot", Quantity: 3},
		order.Line{ProductID: "carrot", Quantity: 3},
	)
	_, err := f.svc.UpdateStatus(ctx, v.Order.ID, order.StatusCancelled)
	require.NoError(t, err)
	f.placeOrder(t, order.Line{ProductID: "carrot", Quantity: 2})

	_, err = f.svc.UpdateStatus(ctx, v.Order.ID, order.StatusPending)
	var isErr *order.InsufficientStockError
	require.ErrorAs(t, err, &isErr)
	assert.True(t, isErr.Reactivation)
	assert.Equal(t, 4, isErr.Available)
	assert.Equal(t, 6, isErr.Requested)
	assert.Equal(t, 4, f.stock(t, "carrot"))
}

func TestUpdateStatus_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UpdateStatus(context.Background(), "missing", order.StatusShipped)
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UpdateStatus(context.Background(), "any", order.Status("lost"))
	require.ErrorIs(t, err, order.ErrInvalidStatus)
}

// --- Properties ---

func TestTotalPriceIsSnapshot(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "apple", "Apple", "2.50", 100)
	ctx := context.Background()

	v := f.placeOrder(t, order.Line{ProductID: "apple", Quantity: 4})

	p, err := f.store.Products().GetByID(ctx, "apple")
	require.NoError(t, err)
	_, err = f.store.Products().Update(ctx, p.ID, product.Changes{
		Name:     p.Name,
		Category: p.Category,
		Price:    decimal.RequireFromString("9.99"),
	})
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, v.Order.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("10.00").Equal(got.Order.TotalPrice))
	assert.True(t, decimal.RequireFromString("2.50").Equal(got.Order.Items[0].Price))

	joined, ok := got.Product("apple")
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("9.99").Equal(joined.Price))
}

func TestStockNeverNegativeAcrossLifecycle(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "apple", "Apple", "1.00", 3)
	ctx := context.Background()

	var ids []string
	for range 5 {
		v, err := f.svc.CreateOrder(ctx, order.CreateRequest{
			CustomerName: "Jane",
			Items:        []order.Line{{ProductID: "apple", Quantity: 1}},
		})
		if err != nil {
			var isErr *order.InsufficientStockError
			require.ErrorAs(t, err, &isErr)
			continue
		}
		ids = append(ids, v.Order.ID)
	}
	require.Len(t, ids, 3)
	assert.Equal(t, 0, f.stock(t, "apple"))

	_, err := f.svc.UpdateStatus(ctx, ids[0], order.StatusCancelled)
	require.NoError(t, err)
	f.placeOrder(t, order.Line{ProductID: "apple", Quantity: 1})

	_, err = f.svc.UpdateStatus(ctx, ids[0], order.StatusShipped)
	var isErr *order.InsufficientStockError
	require.ErrorAs(t, err, &isErr)
	assert.Equal(t, 0, f.stock(t, "apple"))
}

// --- Queries ---

func TestList_NewestFirstWithFilters(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "apple", "Apple", "2.50", 100)
	ctx := context.Background()

	create := func(name, phone string) *order.View {
		v, err := f.svc.CreateOrder(ctx, order.CreateRequest{
			CustomerName:    name,
			CustomerPhone:   phone,
			CustomerAddress: "1 Long Road",
			Items:           []order.Line{{ProductID: "apple", Quantity: 1}},
		})
		require.NoError(t, err)
		return v
	}
	first := create("John Doe", "+111")
	second := create("Jane Smith", "+222")
	third := create("Johnny Walker", "+111")

	_, err := f.svc.UpdateStatus(ctx, second.Order.ID, order.StatusShipped)
	require.NoError(t, err)

	all, err := f.svc.List(ctx, order.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, third.Order.ID, all[0].Order.ID)
	assert.Equal(t, first.Order.ID, all[2].Order.ID)

	johns, err := f.svc.List(ctx, order.Filter{CustomerName: "JOHN"})
	require.NoError(t, err)
	require.Len(t, johns, 2)

	shipped, err := f.svc.List(ctx, order.Filter{Status: order.StatusShipped})
	require.NoError(t, err)
	require.Len(t, shipped, 1)
	assert.Equal(t, second.Order.ID, shipped[0].Order.ID)

	byPhone, err := f.svc.ListByPhone(ctx, "+111")
	require.NoError(t, err)
	require.Len(t, byPhone, 2)
	assert.Equal(t, third.Order.ID, byPhone[0].Order.ID)

	_, ok := byPhone[0].Product("apple")
	assert.True(t, ok)
}

func TestList_InvalidStatus(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.List(context.Background(), order.Filter{Status: "lost"})
	require.ErrorIs(t, err, order.ErrInvalidStatus)
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Get(context.Background(), "missing")
	require.ErrorIs(t, err, order.ErrNotFound)
}

// --- Store failures ---

type brokenStore struct {
	*memory.Store
	err error
}

func (b *brokenStore) Atomic(context.Context, func(product.Repository, order.Repository) error) error {
	return b.err
}

func TestCreateOrder_StoreFailurePropagates(t *testing.T) {
	boom := errors.New("connection refused")
	svc := order.NewService(&brokenStore{Store: memory.New(), err: boom})

	_, err := svc.CreateOrder(context.Background(), order.CreateRequest{
		Items: []order.Line{{ProductID: "apple", Quantity: 1}},
	})
	require.ErrorIs(t, err, boom)
}
