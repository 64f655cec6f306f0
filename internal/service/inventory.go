package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/flicky/storefront-api/internal/apperr"
	"github.com/flicky/storefront-api/internal/cache"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/repository"
)

// InventoryLedger owns per-product stock. Reserve and Release are single
// conditional updates, so concurrent callers never lose an update and stock
// never goes negative.
type InventoryLedger struct {
	products repository.ProductRepository
	inv      *cache.Invalidator
}

func NewInventoryLedger(products repository.ProductRepository, inv *cache.Invalidator) *InventoryLedger {
	return &InventoryLedger{products: products, inv: inv}
}

// Reserve takes quantity units of the product. It fails with
// ErrProductUnavailable for an INACTIVE product and ErrInsufficientStock when
// fewer than quantity units remain.
func (l *InventoryLedger) Reserve(ctx context.Context, productID uuid.UUID, quantity int) (*model.Product, error) {
	if quantity < 1 {
		return nil, apperr.ErrInvalidQuantity
	}
	p, err := l.products.DecrementStock(ctx, productID, quantity)
	if err != nil {
		return nil, fmt.Errorf("reserve stock: %w", err)
	}
	if p == nil {
		return nil, l.classify(ctx, productID, quantity)
	}
	l.inv.Keys(ctx, cache.ProductKeys(productID)...)
	return p, nil
}

// classify explains why a conditional decrement did not apply.
func (l *InventoryLedger) classify(ctx context.Context, productID uuid.UUID, quantity int) error {
	current, err := l.products.GetByID(ctx, productID)
	if err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	if current == nil {
		return apperr.ErrProductNotFound
	}
	if current.Status == model.ProductStatusInactive {
		return fmt.Errorf("product %s: %w", productID, apperr.ErrProductUnavailable)
	}
	return fmt.Errorf("product %s has %d, requested %d: %w", productID, current.Stock, quantity, apperr.ErrInsufficientStock)
}

// Release returns quantity units to the product. Callers guard against
// releasing the same units twice through order state transitions.
func (l *InventoryLedger) Release(ctx context.Context, productID uuid.UUID, quantity int) (*model.Product, error) {
	if quantity < 1 {
		return nil, apperr.ErrInvalidQuantity
	}
	p, err := l.products.IncrementStock(ctx, productID, quantity)
	if err != nil {
		return nil, fmt.Errorf("release stock: %w", err)
	}
	if p == nil {
		return nil, apperr.ErrProductNotFound
	}
	l.inv.Keys(ctx, cache.ProductKeys(productID)...)
	return p, nil
}
