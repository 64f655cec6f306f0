package service

import (
	"context"
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

func TestProductService_Create(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.products.Create(ctx, dto.CreateProductRequest{
		Name:          "Widget",
		Price:         decimal.NewFromInt(12000),
		DiscountPrice: decimal.NewNullDecimal(decimal.NewFromInt(9000)),
		Stock:         5,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, resp.ID)
	assert.Equal(t, model.ProductStatusActive, resp.Status)
	assert.True(t, decimal.NewFromInt(9000).Equal(resp.EffectivePrice))

	empty, err := env.products.Create(ctx, dto.CreateProductRequest{Name: "Ghost", Price: decimal.NewFromInt(1000)})
	require.NoError(t, err)
	assert.Equal(t, model.ProductStatusSoldOut, empty.Status)

	_, err = env.products.Create(ctx, dto.CreateProductRequest{Name: "Free", Price: decimal.Zero, Stock: 1})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	bad := model.ProductStatus("HIDDEN")
	_, err = env.products.Create(ctx, dto.CreateProductRequest{Name: "X", Price: decimal.NewFromInt(1), Status: &bad})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestProductService_GetByID_Cached(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.seedProduct(t, 1000, 5)

	first, err := env.products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, first.Stock)
	_, ok, _ := env.store.Get(ctx, cache.ProductKey(p.ID))
	assert.True(t, ok)

	_, err = env.ledger.Reserve(ctx, p.ID, 2)
	require.NoError(t, err)

	second, err := env.products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, second.Stock, "reservation drops the cached product")

	_, err = env.products.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrProductNotFound)
}

func TestProductService_Update(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.seedProduct(t, 1000, 5)

	zero := 0
	resp, err := env.products.Update(ctx, p.ID, dto.UpdateProductRequest{Stock: &zero})
	require.NoError(t, err)
	assert.Equal(t, model.ProductStatusSoldOut, resp.Status)

	restock := 4
	resp, err = env.products.Update(ctx, p.ID, dto.UpdateProductRequest{Stock: &restock})
	require.NoError(t, err)
	assert.Equal(t, model.ProductStatusActive, resp.Status)

	inactive := model.ProductStatusInactive
	resp, err = env.products.Update(ctx, p.ID, dto.UpdateProductRequest{Status: &inactive, Stock: &restock})
	require.NoError(t, err)
	assert.Equal(t, model.ProductStatusInactive, resp.Status)

	negative := decimal.NewFromInt(-1)
	_, err = env.products.Update(ctx, p.ID, dto.UpdateProductRequest{Price: &negative})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = env.products.Update(ctx, uuid.New(), dto.UpdateProductRequest{Stock: &restock})
	assert.ErrorIs(t, err, apperr.ErrProductNotFound)
}

func TestProductService_Listings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	plain := env.seedProduct(t, 1000, 5)
	featured := &model.Product{Name: "star", Price: decimal.NewFromInt(2000), Stock: 5, IsFeatured: true}
	require.NoError(t, env.repos.Products.Create(ctx, featured))
	hidden := &model.Product{Name: "hidden", Price: decimal.NewFromInt(2000), Stock: 5, IsFeatured: true, Status: model.ProductStatusInactive}
	require.NoError(t, env.repos.Products.Create(ctx, hidden))

	recommended, err := env.products.ListRecommended(ctx)
	require.NoError(t, err)
	require.Len(t, recommended, 1)
	assert.Equal(t, featured.ID, recommended[0].ID)

	arrivals, err := env.products.ListNewArrivals(ctx)
	require.NoError(t, err)
	ids := make([]uuid.UUID, 0, len(arrivals))
	for _, a := range arrivals {
		ids = append(ids, a.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{plain.ID, featured.ID}, ids)

	// Creating a product drops the cached listings.
	created, err := env.products.Create(ctx, dto.CreateProductRequest{Name: "new", Price: decimal.NewFromInt(1), Stock: 1, IsFeatured: true})
	require.NoError(t, err)
	recommended, err = env.products.ListRecommended(ctx)
	require.NoError(t, err)
	assert.Len(t, recommended, 2)
	assert.Contains(t, []uuid.UUID{recommended[0].ID, recommended[1].ID}, created.ID)
}

func TestProductService_List(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, name := range []string{"apple", "banana", "cherry"} {
		_, err := env.products.Create(ctx, dto.CreateProductRequest{Name: name, Price: decimal.NewFromInt(1000), Stock: 1})
		require.NoError(t, err)
	}

	list, err := env.products.List(ctx, dto.ListProductsRequest{Page: 1, Limit: 2, Sort: "name", Order: "asc"})
	require.NoError(t, err)
	assert.Equal(t, 3, list.Total)
	require.Len(t, list.Products, 2)
	assert.Equal(t, "apple", list.Products[0].Name)

	list, err = env.products.List(ctx, dto.ListProductsRequest{Page: 1, Limit: 10, Search: "an", Sort: "name", Order: "asc"})
	require.NoError(t, err)
	require.Len(t, list.Products, 1)
	assert.Equal(t, "banana", list.Products[0].Name)
}

func TestProductService_Delete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.seedProduct(t, 1000, 5)

	require.NoError(t, env.products.Delete(ctx, p.ID))
	_, err := env.products.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, apperr.ErrProductNotFound)

	assert.ErrorIs(t, env.products.Delete(ctx, p.ID), apperr.ErrProductNotFound)
}

func TestProductService_DeleteDropsCartLines(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t)
	kept := env.seedProduct(t, 1000, 5)
	gone := env.seedProduct(t, 2000, 5)
	env.addToCart(t, user, kept.ID, 1)
	env.addToCart(t, user, gone.ID, 2)

	cart, err := env.carts.GetCart(ctx, user)
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)

	require.NoError(t, env.products.Delete(ctx, gone.ID))

	cart, err = env.carts.GetCart(ctx, user)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, kept.ID, cart.Items[0].ProductID)

	n, err := env.carts.ItemCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
