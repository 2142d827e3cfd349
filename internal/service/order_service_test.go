package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderFixture struct {
	db     *store.Store
	repo   Repository
	guard  *fakeGuard
	events *fakePublisher
	carts  *CartService
	orders *OrderService
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	repo := newTestStore(t)
	guard := newFakeGuard()
	events := &fakePublisher{}

	seedVendor(t, repo, "vendor-a", "Alpha")
	seedVendor(t, repo, "vendor-b", "Beta")
	seedProduct(t, repo, "rice", "vendor-a", "100", 10)
	seedProduct(t, repo, "beans", "vendor-b", "50", 5)

	return &orderFixture{
		db:     repo,
		repo:   repo,
		guard:  guard,
		events: events,
		carts:  NewCartService(repo),
		orders: NewOrderService(repo, guard, events, DefaultPricing, CheckoutOptions{}),
	}
}

func (f *orderFixture) fillCart(t *testing.T, cartID string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.carts.AddToCart(ctx, cartID, "rice", 2)
	require.NoError(t, err)
	_, err = f.carts.AddToCart(ctx, cartID, "beans", 1)
	require.NoError(t, err)
}

var jane = CustomerInfo{
	CustomerName:    "Jane Doe",
	CustomerEmail:   "jane@example.com",
	CustomerPhone:   "555-0100",
	ShippingAddress: "1 Main St",
}

func TestPricingQuote(t *testing.T) {
	entries := []models.CartEntry{
		{ProductID: "rice", Price: decimal.NewFromInt(100), Quantity: 2},
		{ProductID: "beans", Price: decimal.NewFromInt(50), Quantity: 1},
	}

	subtotal, tax, shipping, total := DefaultPricing.Quote(entries)

	assert.Equal(t, "250.00", subtotal.StringFixed(2))
	assert.Equal(t, "12.50", tax.StringFixed(2))
	assert.Equal(t, "50.00", shipping.StringFixed(2))
	assert.Equal(t, "312.50", total.StringFixed(2))
}

func TestPricingQuote_KeepsTaxUnrounded(t *testing.T) {
	entries := []models.CartEntry{{Price: decimal.RequireFromString("0.99"), Quantity: 3}}

	subtotal, tax, _, total := DefaultPricing.Quote(entries)

	assert.Equal(t, "0.1485", tax.String())
	want := subtotal.Mul(decimal.RequireFromString("1.05")).Add(decimal.NewFromInt(50))
	assert.True(t, want.Equal(total), "total %s, want %s", total, want)
}

func TestCreateOrder_TotalMatchesPricingFormula(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	seedProduct(t, f.repo, "gum", "vendor-a", "0.99", 10)
	_, err := f.carts.AddToCart(ctx, "cart-gum", "gum", 3)
	require.NoError(t, err)

	order, err := f.orders.CreateOrder(ctx, "cart-gum", jane, "")
	require.NoError(t, err)

	stored, err := f.db.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	for _, o := range []*models.Order{order, stored} {
		want := o.Subtotal.Mul(decimal.RequireFromString("1.05")).Add(decimal.NewFromInt(50))
		assert.True(t, o.Total.Sub(want).Abs().LessThan(decimal.RequireFromString("0.000001")),
			"total %s, want %s", o.Total, want)
		assert.True(t, decimal.RequireFromString("53.1185").Equal(o.Total))
	}
}

func TestCreateOrder_SplitsByVendorAndClearsCart(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	f.fillCart(t, "cart-1")

	order, err := f.orders.CreateOrder(ctx, "cart-1", jane, "")
	require.NoError(t, err)

	assert.Regexp(t, `^CB[0-9A-F]{8}$`, order.ID)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.True(t, decimal.NewFromInt(250).Equal(order.Subtotal))
	assert.True(t, decimal.RequireFromString("12.5").Equal(order.Tax))
	assert.True(t, decimal.NewFromInt(50).Equal(order.Shipping))
	assert.True(t, decimal.RequireFromString("312.5").Equal(order.Total))

	_, items, err := f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)

	sum := decimal.Zero
	vendors := map[string]string{}
	for _, item := range items {
		sum = sum.Add(item.TotalPrice)
		require.NotNil(t, item.VendorID)
		vendors[item.ProductID] = *item.VendorID
		assert.Equal(t, models.StatusPending, item.Status)
	}
	assert.True(t, sum.Equal(order.Subtotal), "item totals must add up to the subtotal")
	assert.Equal(t, map[string]string{"rice": "vendor-a", "beans": "vendor-b"}, vendors)

	cart, err := f.carts.GetCart(ctx, "cart-1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	rice, err := f.repo.GetProductByID(ctx, "rice")
	require.NoError(t, err)
	assert.Equal(t, 8, rice.Stock)

	require.Len(t, f.events.created, 1)
	assert.Equal(t, order.ID, f.events.created[0].OrderID)
	assert.Len(t, f.events.created[0].Items, 2)
}

func TestCreateOrder_DefaultsGuestName(t *testing.T) {
	f := newOrderFixture(t)
	f.fillCart(t, "cart-guest")

	order, err := f.orders.CreateOrder(context.Background(), "cart-guest",
		CustomerInfo{CustomerEmail: "anon@example.com"}, "")
	require.NoError(t, err)
	assert.Equal(t, "Guest Customer", order.CustomerName)
}

func TestCreateOrder_EmptyCartWritesNothing(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	order, err := f.orders.CreateOrder(ctx, "empty-cart", jane, "")
	assert.Nil(t, order)
	assert.ErrorIs(t, err, ErrEmptyCart)

	all, err := f.orders.GetAllOrdersWithItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, f.events.created)
}

func TestCreateOrder_MissingEmail(t *testing.T) {
	f := newOrderFixture(t)
	f.fillCart(t, "cart-1")

	_, err := f.orders.CreateOrder(context.Background(), "cart-1", CustomerInfo{CustomerName: "Jane"}, "")
	assert.ErrorIs(t, err, ErrMissingField)
	assert.True(t, IsValidationError(err))

	cart, err := f.carts.GetCart(context.Background(), "cart-1")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2, "cart must survive a failed checkout")
}

func TestCreateOrder_InsufficientStockRollsBack(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	_, err := f.carts.AddToCart(ctx, "cart-1", "rice", 1)
	require.NoError(t, err)
	_, err = f.carts.AddToCart(ctx, "cart-1", "beans", 6)
	require.NoError(t, err)

	_, err = f.orders.CreateOrder(ctx, "cart-1", jane, "")
	require.ErrorIs(t, err, ErrInsufficientStock)

	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "beans", stockErr.ProductID)
	assert.Equal(t, 5, stockErr.Available)
	assert.Equal(t, 6, stockErr.Requested)

	rice, err := f.repo.GetProductByID(ctx, "rice")
	require.NoError(t, err)
	assert.Equal(t, 10, rice.Stock)

	all, err := f.orders.GetAllOrdersWithItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateOrder_IdempotencyKeyReturnsOriginal(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	f.fillCart(t, "cart-1")

	first, err := f.orders.CreateOrder(ctx, "cart-1", jane, "key-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, f.guard.keys["key-1"])

	second, err := f.orders.CreateOrder(ctx, "cart-1", jane, "key-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// without the cache the database column still dedupes
	delete(f.guard.keys, "key-1")
	third, err := f.orders.CreateOrder(ctx, "cart-1", jane, "key-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, third.ID)

	assert.Len(t, f.events.created, 1)
}

func TestCreateOrder_RejectsConcurrentCheckout(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	f.fillCart(t, "cart-1")

	ok, err := f.guard.AcquireLock(ctx, "checkout:cart-1", 0)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.orders.CreateOrder(ctx, "cart-1", jane, "")
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
}

func TestCreateOrder_ProceedsWhenLockStoreDown(t *testing.T) {
	f := newOrderFixture(t)
	f.fillCart(t, "cart-1")
	f.guard.lockErr = errors.New("redis unreachable")
	f.events.err = errBrokerDown

	order, err := f.orders.CreateOrder(context.Background(), "cart-1", jane, "")
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
}

func TestCreateOrder_UnknownProductKeepsNullVendor(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	f.fillCart(t, "cart-1")

	// the product disappears from the catalog after being carted
	_, err := f.db.GetDB().ExecContext(ctx, "DELETE FROM products WHERE id = 'rice'")
	require.NoError(t, err)

	order, err := f.orders.CreateOrder(ctx, "cart-1", jane, "")
	require.NoError(t, err)

	_, items, err := f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		if item.ProductID == "rice" {
			assert.Nil(t, item.VendorID)
			assert.Equal(t, "Product rice", item.ProductName)
		}
	}
}

func TestCreateOrder_UnreachableBrokerDoesNotHoldCheckout(t *testing.T) {
	f := newOrderFixture(t)
	f.events.hang = true
	f.orders = NewOrderService(f.repo, f.guard, f.events, DefaultPricing,
		CheckoutOptions{PublishTimeout: 50 * time.Millisecond})
	f.fillCart(t, "cart-1")

	start := time.Now()
	order, err := f.orders.CreateOrder(context.Background(), "cart-1", jane, "")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	_, err = f.db.GetOrderByID(context.Background(), order.ID)
	assert.NoError(t, err)
	assert.Len(t, f.events.created, 1)
}

func TestCreateOrder_RetriesTakenOrderID(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	f.fillCart(t, "cart-1")
	f.orders.newID = func() string { return "CBAAAAAAAA" }
	first, err := f.orders.CreateOrder(ctx, "cart-1", jane, "")
	require.NoError(t, err)

	ids := []string{"CBAAAAAAAA", "CBBBBBBBBB"}
	f.orders.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	f.fillCart(t, "cart-2")
	second, err := f.orders.CreateOrder(ctx, "cart-2", jane, "")
	require.NoError(t, err)

	assert.Equal(t, "CBAAAAAAAA", first.ID)
	assert.Equal(t, "CBBBBBBBBB", second.ID)
	_, items, err := f.orders.GetOrder(ctx, second.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestSubmitOrder(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	order, err := f.orders.SubmitOrder(ctx, CheckoutSubmission{
		CustomerInfo: CustomerInfo{CustomerEmail: "rest@example.com"},
		Items: []SubmissionItem{
			{ProductID: "rice", Quantity: 1},
			{ProductID: "beans", Quantity: 2},
			{ProductID: "rice", Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(300).Equal(order.Subtotal))

	_, items, err := f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, err = f.orders.SubmitOrder(ctx, CheckoutSubmission{
		CustomerInfo: CustomerInfo{CustomerEmail: "rest@example.com"},
		Items:        []SubmissionItem{{ProductID: "ghost", Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = f.orders.SubmitOrder(ctx, CheckoutSubmission{CustomerInfo: CustomerInfo{CustomerEmail: "a@b.c"}})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestUpdateItemStatus_AggregatesOrder(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	f.fillCart(t, "cart-1")
	order, err := f.orders.CreateOrder(ctx, "cart-1", jane, "")
	require.NoError(t, err)

	vendorA, err := f.orders.GetOrdersForVendor(ctx, "vendor-a")
	require.NoError(t, err)
	require.Len(t, vendorA, 1)
	assert.Equal(t, order.ID, vendorA[0].OrderID)
	assert.Equal(t, "Jane Doe", vendorA[0].CustomerName)

	ok, err := f.orders.UpdateItemStatus(ctx, vendorA[0].ID, models.StatusPacked)
	require.NoError(t, err)
	assert.True(t, ok)

	got, _, err := f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPacked, got.Status)

	require.Len(t, f.events.itemChanges, 1)
	require.Len(t, f.events.statusChanges, 1)
	assert.Equal(t, models.StatusPending, f.events.statusChanges[0].PreviousStatus)
	assert.Equal(t, models.StatusPacked, f.events.statusChanges[0].Status)

	vendorB, err := f.orders.GetOrdersForVendor(ctx, "vendor-b")
	require.NoError(t, err)
	require.Len(t, vendorB, 1)
	assert.Equal(t, models.StatusPending, vendorB[0].Status)
	assert.Equal(t, models.StatusPacked, vendorB[0].OrderStatus)

	for _, item := range append(vendorA, vendorB...) {
		_, err := f.orders.UpdateItemStatus(ctx, item.ID, models.StatusDelivered)
		require.NoError(t, err)
	}
	got, _, err = f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, got.Status)
}

func TestUpdateItemStatus_UnknownItem(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	f.fillCart(t, "cart-1")
	order, err := f.orders.CreateOrder(ctx, "cart-1", jane, "")
	require.NoError(t, err)

	ok, err := f.orders.UpdateItemStatus(ctx, "no-such-item", models.StatusShipped)
	require.NoError(t, err)
	assert.False(t, ok)

	got, items, err := f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	for _, item := range items {
		assert.Equal(t, models.StatusPending, item.Status)
	}
	assert.Empty(t, f.events.itemChanges)
}

func TestUpdateItemStatus_InvalidStatus(t *testing.T) {
	f := newOrderFixture(t)

	ok, err := f.orders.UpdateItemStatus(context.Background(), "any", "Lost")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateOrderStatus_Override(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	f.fillCart(t, "cart-1")
	order, err := f.orders.CreateOrder(ctx, "cart-1", jane, "")
	require.NoError(t, err)

	ok, err := f.orders.UpdateOrderStatus(ctx, order.ID, models.StatusConfirmed)
	require.NoError(t, err)
	assert.True(t, ok)

	got, _, err := f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)
	require.Len(t, f.events.statusChanges, 1)

	ok, err = f.orders.UpdateOrderStatus(ctx, "CB00000000", models.StatusConfirmed)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.orders.UpdateOrderStatus(ctx, order.ID, "Teleported")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestDeleteOrder_OnlyDelivered(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	f.fillCart(t, "cart-1")
	order, err := f.orders.CreateOrder(ctx, "cart-1", jane, "")
	require.NoError(t, err)

	err = f.orders.DeleteOrder(ctx, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotDelivered)

	_, err = f.orders.UpdateOrderStatus(ctx, order.ID, models.StatusDelivered)
	require.NoError(t, err)
	require.NoError(t, f.orders.DeleteOrder(ctx, order.ID))

	_, _, err = f.orders.GetOrder(ctx, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	items, err := f.repo.GetOrderItemsByOrderID(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	assert.ErrorIs(t, f.orders.DeleteOrder(ctx, order.ID), ErrOrderNotFound)
}

func TestGetAllOrdersWithItems_LiveVendorNames(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	f.fillCart(t, "cart-1")
	order, err := f.orders.CreateOrder(ctx, "cart-1", jane, "")
	require.NoError(t, err)

	seedVendor(t, f.repo, "vendor-a", "Alpha Renamed")

	all, err := f.orders.GetAllOrdersWithItems(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, order.ID, all[0].ID)
	require.Len(t, all[0].Items, 2)

	names := map[string]string{}
	for _, item := range all[0].Items {
		names[item.ProductID] = item.VendorName
	}
	assert.Equal(t, "Alpha Renamed", names["rice"])
	assert.Equal(t, "Beta", names["beans"])
}

func TestGetCustomerOrders(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	f.fillCart(t, "cart-1")
	_, err := f.orders.CreateOrder(ctx, "cart-1", jane, "")
	require.NoError(t, err)

	orders, err := f.orders.GetCustomerOrders(ctx, "JANE@example.com")
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	_, err = f.orders.GetCustomerOrders(ctx, "")
	assert.ErrorIs(t, err, ErrMissingField)
}
