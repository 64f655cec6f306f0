package service

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/flicky/storefront-api/internal/apperr"
	"github.com/flicky/storefront-api/internal/cache"
	"github.com/flicky/storefront-api/internal/model"
)

func TestInventoryLedger_Reserve(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.seedProduct(t, 1000, 3)

	got, err := env.ledger.Reserve(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stock)
	assert.Equal(t, model.ProductStatusActive, got.Status)

	got, err = env.ledger.Reserve(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
	assert.Equal(t, model.ProductStatusSoldOut, got.Status)

	_, err = env.ledger.Reserve(ctx, p.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)

	got, err = env.ledger.Release(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)
	assert.Equal(t, model.ProductStatusActive, got.Status)
}

func TestInventoryLedger_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.seedProduct(t, 1000, 5)

	_, err := env.ledger.Reserve(ctx, p.ID, 0)
	assert.ErrorIs(t, err, apperr.ErrInvalidQuantity)
	_, err = env.ledger.Release(ctx, p.ID, -1)
	assert.ErrorIs(t, err, apperr.ErrInvalidQuantity)

	_, err = env.ledger.Reserve(ctx, uuid.New(), 1)
	assert.ErrorIs(t, err, apperr.ErrProductNotFound)
	_, err = env.ledger.Release(ctx, uuid.New(), 1)
	assert.ErrorIs(t, err, apperr.ErrProductNotFound)

	_, err = env.ledger.Reserve(ctx, p.ID, 6)
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)

	inactive := &model.Product{Name: "hidden", Price: p.Price, Stock: 5, Status: model.ProductStatusInactive}
	require.NoError(t, env.repos.Products.Create(ctx, inactive))
	_, err = env.ledger.Reserve(ctx, inactive.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrProductUnavailable)
	assert.Equal(t, 5, env.stockOf(t, inactive.ID))

	got, err := env.ledger.Release(ctx, inactive.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, model.ProductStatusInactive, got.Status)
}

func TestInventoryLedger_StockConservation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const initial = 20
	p := env.seedProduct(t, 1000, initial)

	rng := rand.New(rand.NewSource(7))
	reserved, released := 0, 0
	for i := 0; i < 500; i++ {
		qty := rng.Intn(4) + 1
		if rng.Intn(2) == 0 {
			if _, err := env.ledger.Reserve(ctx, p.ID, qty); err == nil {
				reserved += qty
			} else {
				require.ErrorIs(t, err, apperr.ErrInsufficientStock)
			}
		} else if reserved-released >= qty {
			_, err := env.ledger.Release(ctx, p.ID, qty)
			require.NoError(t, err)
			released += qty
		}
		stock := env.stockOf(t, p.ID)
		require.GreaterOrEqual(t, stock, 0)
		require.Equal(t, initial-reserved+released, stock)
	}
}

func TestInventoryLedger_ConcurrentReserve(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct(t, 1000, 10)

	var g errgroup.Group
	results := make([]error, 40)
	for i := range results {
		i := i
		g.Go(func() error {
			_, results[i] = env.ledger.Reserve(context.Background(), p.ID, 1)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	ok := 0
	for _, err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, apperr.ErrInsufficientStock), "unexpected error: %v", err)
	}
	assert.Equal(t, 10, ok)
	assert.Equal(t, 0, env.stockOf(t, p.ID))
}

func TestInventoryLedger_InvalidatesCatalogKeys(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.seedProduct(t, 1000, 5)

	for _, key := range cache.ProductKeys(p.ID) {
		require.NoError(t, env.store.Set(ctx, key, []byte(`{}`), cache.ProductTTL))
	}
	_, err := env.ledger.Reserve(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, env.store.Len())
}
