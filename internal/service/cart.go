package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/storefront-api/internal/apperr"
	"github.com/flicky/storefront-api/internal/cache"
	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/pricing"
	"github.com/flicky/storefront-api/internal/repository"
)

type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	tx       repository.Transactor
	store    cache.Store
	inv      *cache.Invalidator
	log      *slog.Logger
}

func NewCartService(repos repository.Repositories, store cache.Store, log *slog.Logger) *CartService {
	log = loggerOrDiscard(log)
	return &CartService{
		carts:    repos.Carts,
		products: repos.Products,
		tx:       repos.Tx,
		store:    store,
		inv:      cache.NewInvalidator(store, log),
		log:      log,
	}
}

// GetCart returns the user's cart, served from cache when possible. A user
// without a cart gets an empty one.
func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) (*dto.CartResponse, error) {
	resp, err := cache.Cached(ctx, s.store, cache.CartKey(userID), cache.CartTTL, func(ctx context.Context) (dto.CartResponse, error) {
		cart, err := s.carts.GetByUserID(ctx, userID)
		if err != nil {
			return dto.CartResponse{}, fmt.Errorf("get cart: %w", err)
		}
		return s.toCartResponse(ctx, cart)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *CartService) toCartResponse(ctx context.Context, cart *model.Cart) (dto.CartResponse, error) {
	resp := dto.CartResponse{
		Items:       []dto.CartItemResponse{},
		Subtotal:    decimal.Zero,
		ShippingFee: decimal.Zero,
		Total:       decimal.Zero,
	}
	if cart == nil {
		return resp, nil
	}
	resp.ID = cart.ID
	if cart.IsEmpty() {
		return resp, nil
	}

	for _, item := range cart.Items {
		p, err := s.products.GetByID(ctx, item.ProductID)
		if err != nil {
			return dto.CartResponse{}, fmt.Errorf("get product: %w", err)
		}
		line := dto.CartItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			LineTotal: pricing.LineTotal(item.UnitPrice, item.Quantity),
		}
		if p != nil {
			line.Name = p.Name
			line.ImageURL = p.ImageURL
			line.Available = p.Status == model.ProductStatusActive && p.Stock >= item.Quantity
		}
		resp.Items = append(resp.Items, line)
		resp.ItemCount += item.Quantity
	}

	summary, err := pricing.Summarize(pricing.CartLines(cart.Items), decimal.Zero)
	if err != nil {
		return dto.CartResponse{}, err
	}
	resp.Subtotal = summary.Subtotal
	resp.ShippingFee = summary.ShippingFee
	resp.Total = summary.Total
	return resp, nil
}

// AddItem puts quantity units of the product in the user's cart, merging
// into an existing line. The unit price is captured now and not repriced.
// Stock is validated here but only reserved at checkout.
func (s *CartService) AddItem(ctx context.Context, userID uuid.UUID, req dto.AddCartItemRequest) error {
	if req.Quantity < 1 {
		return apperr.ErrInvalidQuantity
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		product, err := s.products.GetByID(ctx, req.ProductID)
		if err != nil {
			return fmt.Errorf("get product: %w", err)
		}
		if product == nil {
			return apperr.ErrProductNotFound
		}

		cart, err := s.carts.GetOrCreate(ctx, userID)
		if err != nil {
			return fmt.Errorf("get or create cart: %w", err)
		}

		wanted := req.Quantity
		if existing, ok := cart.ItemForProduct(product.ID); ok {
			wanted += existing.Quantity
		}
		if err := checkAddable(product, wanted); err != nil {
			return err
		}

		return s.carts.AddItem(ctx, &model.CartItem{
			CartID:    cart.ID,
			ProductID: product.ID,
			Quantity:  req.Quantity,
			UnitPrice: pricing.EffectiveUnitPrice(product),
		})
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func checkAddable(p *model.Product, quantity int) error {
	switch {
	case p.Status == model.ProductStatusInactive:
		return fmt.Errorf("product %s: %w", p.ID, apperr.ErrProductUnavailable)
	case !p.InStock():
		return fmt.Errorf("product %s: %w", p.ID, apperr.ErrOutOfStock)
	case quantity > p.Stock:
		return fmt.Errorf("product %s has %d, requested %d: %w", p.ID, p.Stock, quantity, apperr.ErrInsufficientStock)
	}
	return nil
}

// UpdateItemQuantity sets the quantity of a line in the caller's cart.
func (s *CartService) UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) error {
	if quantity < 1 {
		return apperr.ErrInvalidQuantity
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		item, err := s.ownedItem(ctx, userID, itemID)
		if err != nil {
			return err
		}
		product, err := s.products.GetByID(ctx, item.ProductID)
		if err != nil {
			return fmt.Errorf("get product: %w", err)
		}
		if product == nil {
			return apperr.ErrProductNotFound
		}
		if err := checkAddable(product, quantity); err != nil {
			return err
		}
		return s.carts.UpdateItemQuantity(ctx, itemID, quantity)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.ownedItem(ctx, userID, itemID); err != nil {
			return err
		}
		if err := s.carts.DeleteItem(ctx, itemID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.ErrCartItemNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// ownedItem loads itemID and checks it sits in the user's cart.
func (s *CartService) ownedItem(ctx context.Context, userID, itemID uuid.UUID) (*model.CartItem, error) {
	item, err := s.carts.GetItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("get cart item: %w", err)
	}
	if item == nil {
		return nil, apperr.ErrCartItemNotFound
	}
	cart, err := s.carts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if cart == nil || cart.ID != item.CartID {
		return nil, fmt.Errorf("cart item %s: %w", itemID, apperr.ErrAccessDenied)
	}
	return item, nil
}

// Clear empties the user's cart. Clearing a missing cart is a no-op.
func (s *CartService) Clear(ctx context.Context, userID uuid.UUID) error {
	cart, err := s.carts.GetByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get cart: %w", err)
	}
	if cart != nil {
		if err := s.carts.Clear(ctx, cart.ID); err != nil {
			return err
		}
	}
	s.invalidate(ctx, userID)
	return nil
}

// ItemCount returns the total quantity across the user's cart lines.
func (s *CartService) ItemCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return cache.Cached(ctx, s.store, cache.CartCountKey(userID), cache.CartCountTTL, func(ctx context.Context) (int, error) {
		n, err := s.carts.CountItems(ctx, userID)
		if err != nil {
			return 0, fmt.Errorf("count cart items: %w", err)
		}
		return n, nil
	})
}

func (s *CartService) invalidate(ctx context.Context, userID uuid.UUID) {
	s.inv.Keys(ctx, cache.CartKey(userID), cache.CartCountKey(userID))
}
