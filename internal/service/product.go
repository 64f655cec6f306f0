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
	"github.com/flicky/storefront-api/internal/repository"
)

const listingSize = 8

type ProductService struct {
	products repository.ProductRepository
	tx       repository.Transactor
	store    cache.Store
	inv      *cache.Invalidator
	log      *slog.Logger
}

func NewProductService(repos repository.Repositories, store cache.Store, log *slog.Logger) *ProductService {
	log = loggerOrDiscard(log)
	return &ProductService{
		products: repos.Products,
		tx:       repos.Tx,
		store:    store,
		inv:      cache.NewInvalidator(store, log),
		log:      log,
	}
}

func (s *ProductService) Create(ctx context.Context, req dto.CreateProductRequest) (*dto.ProductResponse, error) {
	if err := validatePrice(req.Price, req.DiscountPrice); err != nil {
		return nil, err
	}
	status := model.ProductStatusActive
	if req.Status != nil {
		if !validProductStatus(*req.Status) {
			return nil, fmt.Errorf("product status %q: %w", *req.Status, apperr.ErrInvalidInput)
		}
		status = *req.Status
	}

	product := &model.Product{
		Name:          req.Name,
		Description:   req.Description,
		BrandName:     req.BrandName,
		CategoryName:  req.CategoryName,
		SKU:           req.SKU,
		ImageURL:      req.ImageURL,
		Price:         req.Price,
		DiscountPrice: req.DiscountPrice,
		Status:        status,
		IsFeatured:    req.IsFeatured,
	}
	product.SetStock(req.Stock)

	if err := s.products.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	s.inv.Keys(ctx, cache.ProductKeys(product.ID)...)

	resp := toProductResponse(product)
	return &resp, nil
}

func (s *ProductService) GetByID(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error) {
	resp, err := cache.Cached(ctx, s.store, cache.ProductKey(id), cache.ProductTTL, func(ctx context.Context) (dto.ProductResponse, error) {
		product, err := s.products.GetByID(ctx, id)
		if err != nil {
			return dto.ProductResponse{}, fmt.Errorf("get product: %w", err)
		}
		if product == nil {
			return dto.ProductResponse{}, apperr.ErrProductNotFound
		}
		return toProductResponse(product), nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *ProductService) List(ctx context.Context, req dto.ListProductsRequest) (*dto.ProductListResponse, error) {
	products, total, err := s.products.List(ctx, repository.ProductFilter{
		Limit:  req.Limit,
		Offset: (req.Page - 1) * req.Limit,
		Search: req.Search,
		Sort:   req.Sort,
		Order:  req.Order,
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return &dto.ProductListResponse{
		Products: toProductResponses(products),
		Total:    total,
		Page:     req.Page,
		Limit:    req.Limit,
	}, nil
}

// ListNewArrivals returns the newest sellable products.
func (s *ProductService) ListNewArrivals(ctx context.Context) ([]dto.ProductResponse, error) {
	return cache.Cached(ctx, s.store, cache.NewProductsKey, cache.ListingTTL, func(ctx context.Context) ([]dto.ProductResponse, error) {
		products, err := s.products.ListNewArrivals(ctx, listingSize)
		if err != nil {
			return nil, fmt.Errorf("list new arrivals: %w", err)
		}
		return toProductResponses(products), nil
	})
}

// ListRecommended returns featured sellable products.
func (s *ProductService) ListRecommended(ctx context.Context) ([]dto.ProductResponse, error) {
	return cache.Cached(ctx, s.store, cache.RecommendedProductsKey, cache.ListingTTL, func(ctx context.Context) ([]dto.ProductResponse, error) {
		products, err := s.products.ListFeatured(ctx, listingSize)
		if err != nil {
			return nil, fmt.Errorf("list featured: %w", err)
		}
		return toProductResponses(products), nil
	})
}

// Update applies the non-nil fields of req. The row is locked so an edit
// racing a checkout cannot overwrite the stock it reserved.
func (s *ProductService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	var product *model.Product
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		product, err = s.products.GetForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("get product: %w", err)
		}
		if product == nil {
			return apperr.ErrProductNotFound
		}
		if err := applyProductUpdate(product, req); err != nil {
			return err
		}
		if err := s.products.Update(ctx, product); err != nil {
			return fmt.Errorf("update product: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.inv.Keys(ctx, cache.ProductKeys(id)...)
	resp := toProductResponse(product)
	return &resp, nil
}

func applyProductUpdate(p *model.Product, req dto.UpdateProductRequest) error {
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.BrandName != nil {
		p.BrandName = *req.BrandName
	}
	if req.CategoryName != nil {
		p.CategoryName = *req.CategoryName
	}
	if req.ImageURL != nil {
		p.ImageURL = *req.ImageURL
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.DiscountPrice != nil {
		p.DiscountPrice = *req.DiscountPrice
	}
	if req.IsFeatured != nil {
		p.IsFeatured = *req.IsFeatured
	}
	if err := validatePrice(p.Price, p.DiscountPrice); err != nil {
		return err
	}
	if req.Status != nil {
		if !validProductStatus(*req.Status) {
			return fmt.Errorf("product status %q: %w", *req.Status, apperr.ErrInvalidInput)
		}
		p.Status = *req.Status
	}
	stock := p.Stock
	if req.Stock != nil {
		stock = *req.Stock
	}
	p.SetStock(stock)
	return nil
}

func (s *ProductService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.products.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.ErrProductNotFound
		}
		return fmt.Errorf("delete product: %w", err)
	}
	s.inv.Keys(ctx, cache.ProductKeys(id)...)
	s.inv.Prefix(ctx, cache.CartPrefix)
	return nil
}

func validatePrice(price decimal.Decimal, discount decimal.NullDecimal) error {
	if !price.IsPositive() {
		return fmt.Errorf("price %s: %w", price, apperr.ErrInvalidInput)
	}
	if discount.Valid && discount.Decimal.IsNegative() {
		return fmt.Errorf("discount price %s: %w", discount.Decimal, apperr.ErrInvalidInput)
	}
	return nil
}

func validProductStatus(st model.ProductStatus) bool {
	switch st {
	case model.ProductStatusActive, model.ProductStatusInactive, model.ProductStatusSoldOut:
		return true
	}
	return false
}
