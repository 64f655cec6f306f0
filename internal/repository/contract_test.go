package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/storefront-api/internal/model"
)

// runContract exercises behavior every backend must share. newRepos returns
// repositories over an empty store.
func runContract(t *testing.T, newRepos func(t *testing.T) Repositories) {
	t.Run("users", func(t *testing.T) { testUsers(t, newRepos(t)) })
	t.Run("product stock", func(t *testing.T) { testProductStock(t, newRepos(t)) })
	t.Run("product list", func(t *testing.T) { testProductList(t, newRepos(t)) })
	t.Run("cart", func(t *testing.T) { testCart(t, newRepos(t)) })
	t.Run("cart merge keeps price", func(t *testing.T) { testCartMergeKeepsPrice(t, newRepos(t)) })
	t.Run("product delete drops cart lines", func(t *testing.T) { testProductDeleteDropsCartLines(t, newRepos(t)) })
	t.Run("orders", func(t *testing.T) { testOrders(t, newRepos(t)) })
	t.Run("payment and delivery", func(t *testing.T) { testPaymentDelivery(t, newRepos(t)) })
	t.Run("rollback", func(t *testing.T) { testRollback(t, newRepos(t)) })
}

func seedUser(t *testing.T, repos Repositories, email string) *model.User {
	t.Helper()
	u := &model.User{Email: email, Password: "h", FirstName: "F", LastName: "L", Role: model.RoleCustomer}
	require.NoError(t, repos.Users.Create(context.Background(), u))
	return u
}

func seedProduct(t *testing.T, repos Repositories, name string, price int64, stock int) *model.Product {
	t.Helper()
	p := &model.Product{Name: name, Description: "d", Price: decimal.NewFromInt(price), Stock: stock}
	require.NoError(t, repos.Products.Create(context.Background(), p))
	return p
}

func testUsers(t *testing.T, repos Repositories) {
	ctx := context.Background()
	u := seedUser(t, repos, "test@example.com")
	assert.NotEqual(t, uuid.Nil, u.ID)

	found, err := repos.Users.GetByEmail(ctx, "test@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, u.ID, found.ID)

	missing, err := repos.Users.GetByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testProductStock(t *testing.T, repos Repositories) {
	ctx := context.Background()
	p := seedProduct(t, repos, "mug", 1000, 3)
	assert.Equal(t, model.ProductStatusActive, p.Status)

	got, err := repos.Products.DecrementStock(ctx, p.ID, 4)
	require.NoError(t, err)
	assert.Nil(t, got, "decrement beyond stock must not apply")

	got, err = repos.Products.DecrementStock(ctx, p.ID, 3)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 0, got.Stock)
	assert.Equal(t, model.ProductStatusSoldOut, got.Status)

	got, err = repos.Products.DecrementStock(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = repos.Products.IncrementStock(ctx, p.ID, 2)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.Stock)
	assert.Equal(t, model.ProductStatusActive, got.Status)

	got.Status = model.ProductStatusInactive
	require.NoError(t, repos.Products.Update(ctx, got))
	dec, err := repos.Products.DecrementStock(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.Nil(t, dec, "inactive products are not sellable")

	inc, err := repos.Products.IncrementStock(ctx, uuid.New(), 1)
	require.NoError(t, err)
	assert.Nil(t, inc)

	require.NoError(t, repos.Products.Delete(ctx, p.ID))
	assert.ErrorIs(t, repos.Products.Delete(ctx, p.ID), ErrNotFound)
}

func testProductList(t *testing.T, repos Repositories) {
	ctx := context.Background()
	seedProduct(t, repos, "Blue Mug", 3000, 5)
	seedProduct(t, repos, "Red Mug", 1000, 5)
	seedProduct(t, repos, "Teapot", 2000, 0)

	list, total, err := repos.Products.List(ctx, ProductFilter{Limit: 10, Search: "mug", Sort: "price", Order: "asc"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, list, 2)
	assert.Equal(t, "Red Mug", list[0].Name)

	list, total, err = repos.Products.List(ctx, ProductFilter{Limit: 1, Offset: 1, Sort: "name", Order: "asc"})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, list, 1)
	assert.Equal(t, "Red Mug", list[0].Name)

	arrivals, err := repos.Products.ListNewArrivals(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, arrivals, 2, "sold-out products are not listed")
}

func testCart(t *testing.T, repos Repositories) {
	ctx := context.Background()
	u := seedUser(t, repos, "cart@example.com")
	p := seedProduct(t, repos, "P", 15, 10)

	none, err := repos.Carts.GetByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	cart, err := repos.Carts.GetOrCreate(ctx, u.ID)
	require.NoError(t, err)
	again, err := repos.Carts.GetOrCreate(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, again.ID)

	item := &model.CartItem{CartID: cart.ID, ProductID: p.ID, Quantity: 2, UnitPrice: p.Price}
	require.NoError(t, repos.Carts.AddItem(ctx, item))
	require.NoError(t, repos.Carts.AddItem(ctx, &model.CartItem{CartID: cart.ID, ProductID: p.ID, Quantity: 3, UnitPrice: p.Price}))

	cart, err = repos.Carts.GetByUserID(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)

	line, err := repos.Carts.GetItem(ctx, cart.Items[0].ID)
	require.NoError(t, err)
	require.NotNil(t, line)
	assert.Equal(t, cart.ID, line.CartID)

	require.NoError(t, repos.Carts.UpdateItemQuantity(ctx, cart.Items[0].ID, 7))
	n, err := repos.Carts.CountItems(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	assert.ErrorIs(t, repos.Carts.UpdateItemQuantity(ctx, uuid.New(), 1), ErrNotFound)
	assert.ErrorIs(t, repos.Carts.DeleteItem(ctx, uuid.New()), ErrNotFound)

	require.NoError(t, repos.Carts.Clear(ctx, cart.ID))
	cart, err = repos.Carts.GetByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func testCartMergeKeepsPrice(t *testing.T, repos Repositories) {
	ctx := context.Background()
	u := seedUser(t, repos, "merge@example.com")
	p := seedProduct(t, repos, "P", 10000, 10)
	cart, err := repos.Carts.GetOrCreate(ctx, u.ID)
	require.NoError(t, err)

	require.NoError(t, repos.Carts.AddItem(ctx, &model.CartItem{CartID: cart.ID, ProductID: p.ID, Quantity: 2, UnitPrice: decimal.NewFromInt(10000)}))
	merged := &model.CartItem{CartID: cart.ID, ProductID: p.ID, Quantity: 1, UnitPrice: decimal.NewFromInt(20000)}
	require.NoError(t, repos.Carts.AddItem(ctx, merged))
	assert.Equal(t, 3, merged.Quantity)
	assert.True(t, decimal.NewFromInt(10000).Equal(merged.UnitPrice), "merged line reports the captured price")

	cart, err = repos.Carts.GetByUserID(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.True(t, decimal.NewFromInt(10000).Equal(cart.Items[0].UnitPrice))
}

func testProductDeleteDropsCartLines(t *testing.T, repos Repositories) {
	ctx := context.Background()
	u := seedUser(t, repos, "gone@example.com")
	kept := seedProduct(t, repos, "kept", 1000, 5)
	gone := seedProduct(t, repos, "gone", 2000, 5)
	cart, err := repos.Carts.GetOrCreate(ctx, u.ID)
	require.NoError(t, err)
	require.NoError(t, repos.Carts.AddItem(ctx, &model.CartItem{CartID: cart.ID, ProductID: kept.ID, Quantity: 1, UnitPrice: kept.Price}))
	require.NoError(t, repos.Carts.AddItem(ctx, &model.CartItem{CartID: cart.ID, ProductID: gone.ID, Quantity: 2, UnitPrice: gone.Price}))

	require.NoError(t, repos.Products.Delete(ctx, gone.ID))

	cart, err = repos.Carts.GetByUserID(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, kept.ID, cart.Items[0].ProductID)

	n, err := repos.Carts.CountItems(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func newTestOrder(userID uuid.UUID, p *model.Product, qty int) *model.Order {
	o := &model.Order{
		OrderNumber:   model.NewOrderNumber(time.Now()),
		UserID:        userID,
		Status:        model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusPending,
		PaymentMethod: model.PaymentMethodCard,
		Shipping:      model.ShippingAddress{Recipient: "R", Phone: "010", Zipcode: "12345", Address: "A"},
		Items:         []model.OrderItem{model.NewOrderItem(p, qty, p.Price)},
	}
	sub := o.Items[0].TotalPrice
	_ = o.SetAmounts(sub, decimal.NewFromInt(3000), decimal.Zero)
	return o
}

func testOrders(t *testing.T, repos Repositories) {
	ctx := context.Background()
	u := seedUser(t, repos, "order@example.com")
	p := seedProduct(t, repos, "P", 25, 10)

	first := newTestOrder(u.ID, p, 2)
	require.NoError(t, repos.Orders.Create(ctx, first))
	assert.NotEqual(t, uuid.Nil, first.ID)
	second := newTestOrder(u.ID, p, 1)
	require.NoError(t, repos.Orders.Create(ctx, second))

	found, err := repos.Orders.GetByNumber(ctx, first.OrderNumber)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "P", found.Items[0].ProductName)
	assert.True(t, decimal.NewFromInt(50).Equal(found.Items[0].TotalPrice))
	assert.True(t, first.Total.Equal(found.Total))

	exists, err := repos.Orders.NumberExists(ctx, first.OrderNumber)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, found.Transition(model.OrderStatusCancelled, time.Now().UTC()))
	require.NoError(t, repos.Orders.Update(ctx, found))

	all, total, err := repos.Orders.ListByUser(ctx, u.ID, "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, all, 2)

	cancelled, total, err := repos.Orders.ListByUser(ctx, u.ID, model.OrderStatusCancelled, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, cancelled, 1)
	assert.NotNil(t, cancelled[0].CancelledAt)

	n, err := repos.Orders.CountByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func testPaymentDelivery(t *testing.T, repos Repositories) {
	ctx := context.Background()
	u := seedUser(t, repos, "pay@example.com")
	p := seedProduct(t, repos, "P", 25, 10)
	o := newTestOrder(u.ID, p, 1)
	require.NoError(t, repos.Orders.Create(ctx, o))

	pay := model.NewPayment(o, time.Now().UTC())
	require.NoError(t, repos.Payments.Create(ctx, &pay))

	got, err := repos.Payments.GetByOrderID(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.PaymentStatusPending, got.Status)
	assert.True(t, o.Total.Equal(got.Amount))

	require.NoError(t, got.UpdateStatus(model.PaymentStatusPaid, time.Now().UTC()))
	got.UpdateGatewayInfo("pk_1", "tx_1", model.PGProviderToss)
	require.NoError(t, repos.Payments.Update(ctx, got))
	got, err = repos.Payments.GetByOrderID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, got.Status)
	assert.Equal(t, "pk_1", got.PaymentKey)
	assert.NotNil(t, got.ApprovedAt)

	d := model.NewDelivery(o.ID, time.Now().UTC())
	require.NoError(t, repos.Deliveries.Create(ctx, &d))
	require.NoError(t, d.AssignTracking("CJ", "T-1", time.Now().UTC()))
	require.NoError(t, repos.Deliveries.Update(ctx, &d))

	gotD, err := repos.Deliveries.GetByOrderID(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, gotD)
	assert.Equal(t, model.DeliveryStatusPickedUp, gotD.Status)
	assert.Equal(t, "T-1", gotD.TrackingNumber)

	none, err := repos.Deliveries.GetByOrderID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, none)
}

func testRollback(t *testing.T, repos Repositories) {
	ctx := context.Background()
	u := seedUser(t, repos, "tx@example.com")
	p := seedProduct(t, repos, "P", 25, 5)
	boom := errors.New("boom")

	err := repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := repos.Products.DecrementStock(ctx, p.ID, 2); err != nil {
			return err
		}
		// nested units join the outer one
		if err := repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
			return repos.Orders.Create(ctx, newTestOrder(u.ID, p, 2))
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := repos.Products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)
	n, err := repos.Orders.CountByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		_, err := repos.Products.DecrementStock(ctx, p.ID, 2)
		return err
	}))
	got, err = repos.Products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)
}
