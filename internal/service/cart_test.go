package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/storefront-api/internal/apperr"
	"github.com/flicky/storefront-api/internal/cache"
	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/model"
)

func TestCartService_GetCart_Empty(t *testing.T) {
	env := newTestEnv(t)

	cart, err := env.carts.GetCart(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.Total.IsZero())
	assert.True(t, cart.ShippingFee.IsZero())
}

func TestCartService_AddItem_MergesLines(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t)
	p := env.seedProduct(t, 10000, 5)

	env.addToCart(t, user, p.ID, 2)
	env.addToCart(t, user, p.ID, 1)

	cart, err := env.carts.GetCart(ctx, user)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(30000).Equal(cart.Subtotal))
	assert.True(t, cart.ShippingFee.IsZero())
	assert.True(t, cart.Items[0].Available)
	assert.Equal(t, p.Name, cart.Items[0].Name)

	n, err := env.carts.ItemCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestCartService_AddItem_MergeKeepsCapturedPrice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t)
	p := env.seedProduct(t, 10000, 5)

	env.addToCart(t, user, p.ID, 2)
	raised := decimal.NewFromInt(20000)
	_, err := env.products.Update(ctx, p.ID, dto.UpdateProductRequest{Price: &raised})
	require.NoError(t, err)
	env.addToCart(t, user, p.ID, 1)

	cart, err := env.carts.GetCart(ctx, user)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(10000).Equal(cart.Items[0].UnitPrice))
	assert.True(t, decimal.NewFromInt(30000).Equal(cart.Subtotal), "got %s", cart.Subtotal)
}

func TestCartService_AddItem_CapturesDiscountPrice(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t)
	p := &model.Product{
		Name: "sale", Price: decimal.NewFromInt(10000), Stock: 5,
		DiscountPrice: decimal.NewNullDecimal(decimal.NewFromInt(8000)),
	}
	require.NoError(t, env.repos.Products.Create(context.Background(), p))

	env.addToCart(t, user, p.ID, 1)

	cart, err := env.carts.GetCart(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.True(t, decimal.NewFromInt(8000).Equal(cart.Items[0].UnitPrice))
}

func TestCartService_AddItem_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t)
	p := env.seedProduct(t, 1000, 2)
	soldOut := env.seedProduct(t, 1000, 0)
	inactive := &model.Product{Name: "off", Price: decimal.NewFromInt(1000), Stock: 5, Status: model.ProductStatusInactive}
	require.NoError(t, env.repos.Products.Create(ctx, inactive))

	tests := []struct {
		name    string
		req     dto.AddCartItemRequest
		wantErr error
	}{
		{"zero quantity", dto.AddCartItemRequest{ProductID: p.ID, Quantity: 0}, apperr.ErrInvalidQuantity},
		{"unknown product", dto.AddCartItemRequest{ProductID: uuid.New(), Quantity: 1}, apperr.ErrProductNotFound},
		{"inactive", dto.AddCartItemRequest{ProductID: inactive.ID, Quantity: 1}, apperr.ErrProductUnavailable},
		{"sold out", dto.AddCartItemRequest{ProductID: soldOut.ID, Quantity: 1}, apperr.ErrOutOfStock},
		{"over stock", dto.AddCartItemRequest{ProductID: p.ID, Quantity: 3}, apperr.ErrInsufficientStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.carts.AddItem(ctx, user, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	env.addToCart(t, user, p.ID, 2)
	err := env.carts.AddItem(ctx, user, dto.AddCartItemRequest{ProductID: p.ID, Quantity: 1})
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock, "merged quantity exceeds stock")
}

func TestCartService_UpdateAndRemove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t)
	p := env.seedProduct(t, 1000, 5)
	env.addToCart(t, user, p.ID, 1)

	cart, err := env.carts.GetCart(ctx, user)
	require.NoError(t, err)
	itemID := cart.Items[0].ID

	require.NoError(t, env.carts.UpdateItemQuantity(ctx, user, itemID, 4))
	cart, err = env.carts.GetCart(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 4, cart.Items[0].Quantity)

	assert.ErrorIs(t, env.carts.UpdateItemQuantity(ctx, user, itemID, 6), apperr.ErrInsufficientStock)
	assert.ErrorIs(t, env.carts.UpdateItemQuantity(ctx, user, itemID, 0), apperr.ErrInvalidQuantity)

	require.NoError(t, env.carts.RemoveItem(ctx, user, itemID))
	cart, err = env.carts.GetCart(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	assert.ErrorIs(t, env.carts.RemoveItem(ctx, user, itemID), apperr.ErrCartItemNotFound)
}

func TestCartService_OtherUsersItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, intruder := env.seedUser(t), env.seedUser(t)
	p := env.seedProduct(t, 1000, 5)
	env.addToCart(t, owner, p.ID, 1)
	env.addToCart(t, intruder, p.ID, 1)

	cart, err := env.carts.GetCart(ctx, owner)
	require.NoError(t, err)
	itemID := cart.Items[0].ID

	assert.ErrorIs(t, env.carts.UpdateItemQuantity(ctx, intruder, itemID, 2), apperr.ErrAccessDenied)
	assert.ErrorIs(t, env.carts.RemoveItem(ctx, intruder, itemID), apperr.ErrAccessDenied)

	cart, err = env.carts.GetCart(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, cart.Items[0].Quantity)
}

func TestCartService_CacheCoherence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t)
	p := env.seedProduct(t, 1000, 5)

	// Prime the cache with the empty cart.
	cart, err := env.carts.GetCart(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	_, ok, _ := env.store.Get(ctx, cache.CartKey(user))
	require.True(t, ok)

	env.addToCart(t, user, p.ID, 2)
	cart, err = env.carts.GetCart(ctx, user)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)

	// A stale entry written just before the clear must not survive it.
	stale, err := json.Marshal(cart)
	require.NoError(t, err)
	require.NoError(t, env.store.Set(ctx, cache.CartKey(user), stale, cache.CartTTL))
	require.NoError(t, env.store.Set(ctx, cache.CartCountKey(user), []byte("2"), cache.CartCountTTL))

	require.NoError(t, env.carts.Clear(ctx, user))

	cart, err = env.carts.GetCart(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	n, err := env.carts.ItemCount(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, n)
}
